package layout

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ByLCY/lyricard/card"
	"github.com/ByLCY/lyricard/cssvalue"
	"github.com/ByLCY/lyricard/fit"
	"github.com/ByLCY/lyricard/fonts"
	lyrlog "github.com/ByLCY/lyricard/logger"
)

// Font resource names used by the card layout.
const (
	FontBody    = "Body"
	FontHeading = "Heading"
	FontAlt     = "Alt"
	FontTitle   = "Title"
)

const (
	titleLineHeight   = 1.1
	titleSizeVW       = 9.0 // 默认标题字号：页面宽度的 9%
	titlePanelPadding = 2.0
	titlePanelRadius  = 1.5
	panelRadius       = 2.0
	creditsFontPt     = 7.0
	creditsLineHeight = 1.3
	guideWidth        = 0.1
)

// sectionSpacer 是每段歌词之后的 8px 间距。
var sectionSpacer = Length{Value: 8, Unit: UnitPX}

// 默认配色。
var (
	frontBackground = RGB(17, 17, 17)
	backBackground  = RGB(255, 255, 255)
	titleFill       = RGB(255, 255, 255)
	bodyColor       = RGB(34, 34, 34)
	headingColor    = RGB(17, 17, 17)
	altColor        = RGB(110, 110, 120)
	creditsColor    = RGB(85, 85, 85)
	guideColor      = RGB(255, 0, 128)
)

// DefaultFonts 返回内置字体资源，可被 BuildOptions.Fonts 覆盖。
func DefaultFonts() map[string]FontResource {
	return map[string]FontResource{
		FontBody:    {Name: FontBody, Src: fonts.ForWeight(400, false), Style: "regular", Family: "lyricard-body"},
		FontHeading: {Name: FontHeading, Src: fonts.ForWeight(700, false), Style: "bold", Family: "lyricard-heading"},
		FontAlt:     {Name: FontAlt, Src: fonts.ForWeight(400, true), Style: "italic", Family: "lyricard-alt"},
	}
}

// BuildCard 根据卡片数据生成正面与背面两页布局，并对背面歌词执行自动缩排。
func BuildCard(c card.Card, opts BuildOptions) (*Result, error) {
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	sheet := opts.Sheet
	if sheet == (Sheet{}) {
		sheet = DefaultSheet()
	}
	if !sheet.Valid() {
		return nil, fmt.Errorf("layout: invalid sheet %gx%gmm padding %gmm", sheet.Width, sheet.Height, sheet.Padding)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fonts := DefaultFonts()
	for name, fr := range opts.Fonts {
		if fr.Src == "" || name == FontTitle {
			continue
		}
		if fr.Name == "" {
			fr.Name = name
		}
		fr.Fallback = fonts[name].Src
		fonts[name] = fr
	}
	fonts[FontTitle] = titleFont(c.Front.TitleStyle, opts.Fonts[FontTitle], logger)

	front, err := buildFront(c, sheet, fonts, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("front: %w", err)
	}
	back, report, err := buildBack(c, sheet, fonts, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("back: %w", err)
	}

	return &Result{
		Pages:     []Page{front, back},
		Resources: ResourceSet{Fonts: fonts},
		Meta:      collectMeta(c),
		Fit:       report,
	}, nil
}

func collectMeta(c card.Card) DocumentMeta {
	meta := DocumentMeta{
		Title:   c.DocumentTitle(),
		Subject: c.Front.TitleText,
		Creator: "lyricard",
	}
	for _, sec := range c.Back.Sections {
		if sec.Heading != "" {
			meta.Keywords = append(meta.Keywords, sec.Heading)
		}
	}
	return meta
}

func newPage(face string, sheet Sheet, bg Color) Page {
	return Page{
		Face:       face,
		Width:      sheet.Width,
		Height:     sheet.Height,
		Margin:     Margin{Top: sheet.Padding, Right: sheet.Padding, Bottom: sheet.Padding, Left: sheet.Padding},
		Background: bg,
	}
}

// applyBackground 将背景值解释为颜色/渐变或图片（cover）。
func applyBackground(page *Page, value string, logger *slog.Logger) {
	if value == "" {
		return
	}
	if card.IsFill(value) {
		if col, err := cssvalue.ParseBackground(value); err == nil {
			page.Background = fromCSS(col)
		}
		return
	}
	page.Images = append(page.Images, ImageBox{
		Path: value, Width: page.Width, Height: page.Height, Fit: FitCover, Opacity: 1,
	})
	logger.Debug("background image", "face", page.Face, "src", value)
}

// ---- front ----

func buildFront(c card.Card, sheet Sheet, fonts map[string]FontResource, opts BuildOptions, logger *slog.Logger) (Page, error) {
	page := newPage(FaceFront, sheet, frontBackground)
	applyBackground(&page, c.Front.Background, logger)

	pad := sheet.Padding
	innerW := sheet.Width - 2*pad
	innerH := sheet.Height - 2*pad
	if c.Front.HeroImage != "" {
		page.Images = append(page.Images, ImageBox{
			Path: c.Front.HeroImage, X: pad, Y: pad, Width: innerW, Height: innerH, Fit: FitContain, Opacity: 1,
		})
	}
	if c.Front.TitleText == "" {
		return page, nil
	}

	st := c.Front.TitleStyle
	vp := cssvalue.Viewport{Width: sheet.Width, Height: sheet.Height, FontSize: 16 * PxToMm}
	size := sheet.Width * titleSizeVW / 100
	var sizeRaw *RawLengthJSON
	if st.SizeClamp != "" {
		sz, err := cssvalue.ParseSize(st.SizeClamp)
		if err != nil {
			logger.Debug("ignoring title size", "value", st.SizeClamp, "err", err)
		} else if v := sz.Resolve(vp); v > 0 {
			size = v
			sizeRaw = Length{Value: v, Unit: UnitMM}.Raw()
		}
	}
	vp.FontSize = size

	tracking := 0.0
	if st.TrackingEm != nil {
		tracking = *st.TrackingEm * size
	}
	lineHeight := Factor(titleLineHeight).Resolve(Length{Value: size, Unit: UnitMM}, UnitMM)
	lines, err := layoutLines(c.Front.TitleText, innerW, fonts[FontTitle], size, lineHeight, opts.Typesetter)
	if err != nil {
		return page, err
	}
	height, widest := 0.0, 0.0
	for i := range lines {
		if tracking != 0 {
			if n := utf8.RuneCountInString(lines[i].Content); n > 1 {
				lines[i].Width += tracking * float64(n-1)
			}
		}
		height += lines[i].GapBefore + lines[i].Height
		widest = math.Max(widest, lines[i].Width)
	}

	fill := titleFill
	if st.Fill != "" {
		if col, err := cssvalue.ParseColor(st.Fill); err == nil {
			fill = fromCSS(col)
		} else {
			logger.Debug("ignoring title fill", "value", st.Fill, "err", err)
		}
	}

	tb := TextBox{
		Content:    c.Front.TitleText,
		X:          pad,
		Width:      innerW,
		LineHeight: lineHeight,
		Font:       FontTitle,
		FontSize:   size,
		Color:      fill,
		Lines:      lines,
		Height:     height,
		Tracking:   tracking,
		Shadows:    resolveShadows(st.Shadow, vp, fill, logger),
	}
	switch st.Align {
	case card.AlignLeftTop:
		tb.Y = pad
	case card.AlignCenter:
		tb.Y = (sheet.Height - height) / 2
		tb.Align = "center"
	case card.AlignRightBottom:
		tb.Y = sheet.Height - pad - height
		tb.Align = "right"
	default:
		tb.Y = sheet.Height - pad - height
	}
	if opts.Debug.RawUnits {
		tb.Debug = &TextBoxDebug{RawUnits: &RawUnits{FontSize: sizeRaw, LineHeight: Factor(titleLineHeight).Raw()}}
	}

	if st.Bg != "" {
		col, err := cssvalue.ParseBackground(st.Bg)
		if err != nil {
			logger.Debug("ignoring title bg", "value", st.Bg, "err", err)
		} else {
			fillCol := fromCSS(col)
			x := tb.X + alignOffset(innerW, widest, tb.Align)
			page.Rects = append(page.Rects, Rect{
				X:         x - titlePanelPadding,
				Y:         tb.Y - titlePanelPadding,
				Width:     widest + 2*titlePanelPadding,
				Height:    height + 2*titlePanelPadding,
				Radius:    titlePanelRadius,
				FillColor: &fillCol,
			})
		}
	}
	page.Texts = append(page.Texts, tb)
	return page, nil
}

func titleFont(st card.TitleStyle, override FontResource, logger *slog.Logger) FontResource {
	weight := 700
	if st.Weight != "" {
		if w, err := cssvalue.ParseWeight(st.Weight); err == nil {
			weight = w
		} else {
			logger.Debug("ignoring title weight", "value", st.Weight, "err", err)
		}
	}
	style := "regular"
	switch {
	case weight >= 600:
		style = "bold"
	case weight >= 500:
		style = "medium"
	}
	fr := FontResource{Name: FontTitle, Src: fonts.ForWeight(weight, false), Style: style, Family: "lyricard-title", Weight: weight}
	if families, err := cssvalue.ParseFontFamily(st.FontFamily); err == nil && len(families) > 0 {
		fr.Family = families[0]
		for _, f := range families {
			if f == "monospace" {
				fr.Src = "embed:go/mono"
				break
			}
		}
	}
	if override.Src != "" {
		fr.Fallback = fr.Src
		fr.Src = override.Src
	}
	if st.FontURL != "" {
		if fr.Fallback == "" {
			fr.Fallback = fr.Src
		}
		fr.Src = "url:" + st.FontURL
	}
	return fr
}

func resolveShadows(value string, vp cssvalue.Viewport, current Color, logger *slog.Logger) []Shadow {
	if value == "" {
		return nil
	}
	parsed, err := cssvalue.ParseShadows(value)
	if err != nil {
		logger.Debug("ignoring title shadow", "value", value, "err", err)
		return nil
	}
	out := make([]Shadow, 0, len(parsed))
	for _, s := range parsed {
		col := current
		if s.Color != nil {
			col = fromCSS(*s.Color)
		}
		out = append(out, Shadow{
			OffsetX: s.OffsetX.Resolve(vp),
			OffsetY: s.OffsetY.Resolve(vp),
			Blur:    s.Blur.Resolve(vp),
			Color:   col,
		})
	}
	return out
}

// ---- back ----

func buildBack(c card.Card, sheet Sheet, fonts map[string]FontResource, opts BuildOptions, logger *slog.Logger) (Page, *FitReport, error) {
	page := newPage(FaceBack, sheet, backBackground)
	applyBackground(&page, c.Back.Background, logger)

	pad := sheet.Padding
	innerW := sheet.Width - 2*pad
	innerH := sheet.Height - 2*pad
	if c.Back.BgPanel != "" {
		if col, err := cssvalue.ParseBackground(c.Back.BgPanel); err == nil {
			fillCol := fromCSS(col)
			inset := pad / 2
			page.Rects = append(page.Rects, Rect{
				X: inset, Y: inset, Width: sheet.Width - 2*inset, Height: sheet.Height - 2*inset,
				Radius: panelRadius, FillColor: &fillCol,
			})
		} else {
			logger.Debug("ignoring bg panel", "value", c.Back.BgPanel, "err", err)
		}
	}

	credits, creditsHeight, err := buildCredits(c.Back.Credits, pad, innerW, fonts, opts.Typesetter)
	if err != nil {
		return page, nil, err
	}
	for i := range credits {
		credits[i].Y += pad + innerH - creditsHeight
	}

	margin := opts.Fit.ReservedMargin
	if margin <= 0 {
		margin = DefaultReservedMargin
	}
	typ := c.Back.Typography
	flow := newBackFlow(c.Back.Sections, typ, innerW, fonts, opts)
	flow.x0, flow.y0 = pad, pad
	flow.available = innerH - (creditsHeight + margin)

	report, err := flow.fit(typ, opts.Fit, logger)
	if err != nil {
		return page, nil, err
	}

	page.Texts = append(page.Texts, flow.texts...)
	page.Texts = append(page.Texts, credits...)
	if opts.Debug.Guides {
		page.Lines = append(page.Lines, flow.guides()...)
	}
	return page, report, nil
}

// buildCredits 生成 "Credits" 标题与各行，坐标相对于块顶部。
func buildCredits(credits []string, x, width float64, fonts map[string]FontResource, ts Typesetter) ([]TextBox, float64, error) {
	if len(credits) == 0 {
		return nil, 0, nil
	}
	fs := Length{Value: creditsFontPt, Unit: UnitPT}
	size := fs.ToMM()
	lh := Factor(creditsLineHeight).Resolve(fs, UnitMM)

	var out []TextBox
	cursor := 0.0
	for _, part := range []struct {
		font    string
		content string
		color   Color
	}{
		{FontHeading, "Credits", headingColor},
		{FontBody, strings.Join(credits, "\n"), creditsColor},
	} {
		lines, err := layoutLines(part.content, width, fonts[part.font], size, lh, ts)
		if err != nil {
			return nil, 0, err
		}
		lineBoxes(lines, lh)
		h := lh * float64(len(lines))
		out = append(out, TextBox{
			Content: part.content, X: x, Y: cursor, Width: width, LineHeight: lh,
			Font: part.font, FontSize: size, Color: part.color, Lines: lines, Height: h,
		})
		cursor += h
	}
	return out, cursor, nil
}

// lineBoxes 把行高统一为 CSS 行盒：每行高度 lh，不再额外留 GapBefore。
func lineBoxes(lines []TextLine, lh float64) {
	for i := range lines {
		lines[i].Height = lh
		lines[i].GapBefore = 0
	}
}

// flowRow 是分栏排版的最小单位：一行文字或一段空白。
type flowRow struct {
	box    *TextBox
	height float64
}

// backFlow 持有背面歌词的当前排版状态，并为 fit.Controller 提供 measure/apply。
type backFlow struct {
	sections []card.Section
	ts       Typesetter
	fonts    map[string]FontResource
	debug    DebugOptions

	columns   int
	gap       float64
	colWidth  float64
	x0, y0    float64
	available float64

	params     fit.Params
	texts      []TextBox
	colHeights []float64
}

func newBackFlow(sections []card.Section, typ card.Typography, innerW float64, fonts map[string]FontResource, opts BuildOptions) *backFlow {
	columns := max(typ.Columns, 1)
	gap := math.Max(typ.ColumnGapMM, 0)
	colWidth := (innerW - gap*float64(columns-1)) / float64(columns)
	if colWidth <= 1 {
		columns, gap, colWidth = 1, 0, innerW
	}
	return &backFlow{
		sections: sections,
		ts:       opts.Typesetter,
		fonts:    fonts,
		debug:    opts.Debug,
		columns:  columns,
		gap:      gap,
		colWidth: colWidth,
		params:   fit.Params{FontSize: typ.FontSizePt, LineHeight: typ.LineHeight},
	}
}

// fit 先按起始参数排版，再按需运行缩排循环。
func (b *backFlow) fit(typ card.Typography, fo FitOptions, logger *slog.Logger) (*FitReport, error) {
	if err := b.reflow(); err != nil {
		return nil, err
	}
	start := b.params
	report := &FitReport{
		AutoShrink: typ.AutoShrink,
		StartPt:    start.FontSize,
		StartLH:    start.LineHeight,
		Available:  b.available,
		Columns:    b.columns,
	}

	if typ.AutoShrink {
		limits := fit.DefaultLimits(typ.MinFontPt, typ.MinLineHeight)
		if fo.Step != 0 {
			limits.Step = fo.Step
		}
		if fo.LineHeightStep != 0 {
			limits.LineHeightStep = fo.LineHeightStep
		}
		if fo.MaxIterations != 0 {
			limits.MaxIterations = fo.MaxIterations
		}
		ctrl, err := fit.NewController(limits,
			fit.WithLogger(logger),
			fit.WithObserver(func(s fit.State, p fit.Params) {
				logger.Log(context.Background(), lyrlog.LevelTrace, "fit state", "state", s.String(), "font_pt", p.FontSize, "line_height", p.LineHeight)
			}),
		)
		if err != nil {
			return nil, err
		}
		res, err := ctrl.Run(start, b.measure, b.apply)
		if err != nil {
			return nil, err
		}
		report.Outcome = res.Outcome.String()
		report.Iterations = res.Iterations
	} else {
		report.Outcome = "skipped"
		if over, _ := b.measure(); over > 0 {
			logger.Warn("lyrics overflow with autoshrink disabled", "overflow_mm", float64(over))
		}
	}

	report.FinalPt = b.params.FontSize
	report.FinalLH = b.params.LineHeight
	report.Content = b.contentHeight()
	report.Overflow = report.Content - b.available
	return report, nil
}

func (b *backFlow) measure() (fit.Overflow, error) {
	return fit.Overflow(b.contentHeight() - b.available), nil
}

func (b *backFlow) apply(p fit.Params) error {
	b.params = p
	return b.reflow()
}

func (b *backFlow) contentHeight() float64 {
	h := 0.0
	for _, v := range b.colHeights {
		h = math.Max(h, v)
	}
	return h
}

// reflow 以当前参数重新断行并分栏：前 N-1 栏在超出可用高度前换栏，最后一栏承接剩余内容。
func (b *backFlow) reflow() error {
	rows, err := b.rows()
	if err != nil {
		return err
	}
	b.texts = b.texts[:0]
	b.colHeights = make([]float64, b.columns)
	col, cursor := 0, 0.0
	for _, r := range rows {
		if col < b.columns-1 && cursor > 0 && cursor+r.height > b.available {
			col++
			cursor = 0
		}
		if r.box == nil && cursor == 0 && col > 0 {
			continue
		}
		if r.box != nil {
			tb := *r.box
			tb.X = b.x0 + float64(col)*(b.colWidth+b.gap)
			tb.Y = b.y0 + cursor
			if tb.Debug != nil {
				d := *tb.Debug
				d.Column = col
				tb.Debug = &d
			}
			b.texts = append(b.texts, tb)
		}
		cursor += r.height
		b.colHeights[col] = cursor
	}
	return nil
}

func (b *backFlow) rows() ([]flowRow, error) {
	fs := Length{Value: b.params.FontSize, Unit: UnitPT}
	size := fs.ToMM()
	lhSpec := Factor(b.params.LineHeight)
	lh := lhSpec.Resolve(fs, UnitMM)
	var dbg *TextBoxDebug
	if b.debug.RawUnits || b.debug.Guides {
		dbg = &TextBoxDebug{}
		if b.debug.RawUnits {
			dbg.RawUnits = &RawUnits{FontSize: fs.Raw(), LineHeight: lhSpec.Raw()}
		}
	}

	var rows []flowRow
	add := func(content, font string, color Color, effect string) error {
		lines, err := layoutLines(content, b.colWidth, b.fonts[font], size, lh, b.ts)
		if err != nil {
			return err
		}
		lineBoxes(lines, lh)
		for _, ln := range lines {
			rows = append(rows, flowRow{height: lh, box: &TextBox{
				Content:    ln.Content,
				Width:      b.colWidth,
				LineHeight: lh,
				Font:       font,
				FontSize:   size,
				Color:      color,
				Lines:      []TextLine{ln},
				Height:     lh,
				Effect:     effect,
				Debug:      dbg,
			}})
		}
		return nil
	}

	spacer := sectionSpacer.ToMM()
	for _, sec := range b.sections {
		if sec.Heading != "" {
			if err := add(sec.Heading, FontHeading, headingColor, ""); err != nil {
				return nil, err
			}
		}
		if !sec.HasBody() {
			continue
		}
		if sec.Lyrics != "" {
			if err := add(sec.Lyrics, FontBody, bodyColor, ""); err != nil {
				return nil, err
			}
		} else {
			for _, ln := range sec.Lines {
				var err error
				switch ln.Style {
				case card.LineGlitch:
					err = add(ln.Text, FontBody, bodyColor, EffectGlitch)
				case card.LineAlt:
					err = add(ln.Text, FontAlt, altColor, "")
				default:
					err = add(ln.Text, FontBody, bodyColor, "")
				}
				if err != nil {
					return nil, err
				}
			}
		}
		rows = append(rows, flowRow{height: spacer})
	}
	return rows, nil
}

// guides 返回列边界与可用高度的辅助线。
func (b *backFlow) guides() []Line {
	bottom := b.y0 + b.available
	var out []Line
	for i := 0; i < b.columns; i++ {
		x := b.x0 + float64(i)*(b.colWidth+b.gap)
		out = append(out,
			Line{X1: x, Y1: b.y0, X2: x, Y2: bottom, Color: guideColor, Width: guideWidth},
			Line{X1: x + b.colWidth, Y1: b.y0, X2: x + b.colWidth, Y2: bottom, Color: guideColor, Width: guideWidth},
		)
	}
	right := b.x0 + float64(b.columns)*b.colWidth + float64(b.columns-1)*b.gap
	out = append(out, Line{X1: b.x0, Y1: bottom, X2: right, Y2: bottom, Color: guideColor, Width: guideWidth})
	return out
}

// ---- helpers ----

func layoutLines(content string, width float64, font FontResource, fontSize, lineHeight float64, ts Typesetter) ([]TextLine, error) {
	if ts == nil {
		lines := strings.Split(content, "\n")
		out := make([]TextLine, 0, len(lines))
		leading := math.Max(lineHeight-fontSize, 0)
		for _, l := range lines {
			out = append(out, TextLine{Content: l, Width: width, Height: fontSize, GapBefore: leading})
		}
		out[0].GapBefore = 0
		return out, nil
	}
	lines, err := ts.LayoutLines(content, width, font, fontSize, lineHeight)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		lines = []TextLine{{Content: "", Width: 0, Height: fontSize}}
	}
	lines[0].GapBefore = 0
	return lines, nil
}

func alignOffset(container, width float64, align string) float64 {
	if container <= width {
		return 0
	}
	switch strings.ToLower(align) {
	case "center", "middle":
		return (container - width) / 2
	case "right", "end":
		return container - width
	default:
		return 0
	}
}

func fromCSS(c cssvalue.Color) Color {
	return Color{R: int(c.R), G: int(c.G), B: int(c.B), A: c.A}
}
