package canvasrenderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/lyricard/fetch"
	"github.com/ByLCY/lyricard/fonts"
	"github.com/ByLCY/lyricard/layout"
	"github.com/ByLCY/lyricard/renderer"
)

const (
	// DefaultDPMM 约等于 300dpi。
	DefaultDPMM = 300 / 25.4

	glitchOffset = 0.35 // mm
)

var (
	glitchRed  = layout.Color{R: 255, G: 0, B: 80, A: 0.75}
	glitchCyan = layout.Color{R: 0, G: 230, B: 255, A: 0.75}
)

// Renderer draws layout results via github.com/tdewolff/canvas.
type Renderer struct {
	ctx     context.Context
	baseDir string
	dpmm    float64
	client  *retryablehttp.Client
	fetcher *fonts.Fetcher
	logger  *slog.Logger

	// injected resources
	fontBlobs  map[string][]byte // by unique name
	imageBlobs map[string][]byte // by unique name

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *canvas.FontFamily

	imageMu sync.Mutex
	images  map[string]image.Image
}

var (
	_ renderer.FaceRenderer = (*Renderer)(nil)
	_ layout.Typesetter     = (*Renderer)(nil)
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// Options configures the canvas renderer.
type Options struct {
	// Context bounds remote font and image downloads.
	Context context.Context
	BaseDir string
	Fonts   map[string]Resource // built-in fonts accessible via built-in:<name>
	Images  map[string]Resource // built-in images accessible via built-in:<name>
	// Client downloads images given by URL; fetch.Default() when nil.
	Client *retryablehttp.Client
	// Fetcher resolves url: font sources. Without it those fonts use their fallback.
	Fetcher *fonts.Fetcher
	// DPMM is the PNG resolution in dots per millimetre.
	DPMM   float64
	Logger *slog.Logger
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving assets.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		ctx:          opts.Context,
		baseDir:      opts.BaseDir,
		dpmm:         opts.DPMM,
		client:       opts.Client,
		fetcher:      opts.Fetcher,
		logger:       opts.Logger,
		fontBlobs:    map[string][]byte{},
		imageBlobs:   map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
		images:       map[string]image.Image{},
	}
	if r.ctx == nil {
		r.ctx = context.Background()
	}
	if r.dpmm <= 0 {
		r.dpmm = DefaultDPMM
	}
	if r.client == nil {
		r.client = fetch.Default()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	ingest(r.fontBlobs, opts.Fonts)
	ingest(r.imageBlobs, opts.Images)
	return r
}

func ingest(dst map[string][]byte, src map[string]Resource) {
	for name, res := range src {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			dst[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path) // 读取失败时在实际使用处报错
			if len(data) > 0 {
				dst[name] = data
			}
		}
	}
}

// Render renders every page of the result into one PDF.
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, result.Pages[0].Width, result.Pages[0].Height, nil)
	r.applyMeta(writer, result.Meta)
	for i, page := range result.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c, err := r.paint(page, result.Resources)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", page.Face, err)
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderFace renders a single face (front/back) in the given format.
func (r *Renderer) RenderFace(result *layout.Result, face string, format renderer.Format) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	page := result.Page(face)
	if page == nil {
		return nil, fmt.Errorf("找不到页面 %q", face)
	}
	c, err := r.paint(*page, result.Resources)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", face, err)
	}

	var buf bytes.Buffer
	switch format {
	case renderer.FormatSVG:
		w := svg.New(&buf, page.Width, page.Height, nil)
		c.RenderTo(w)
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("写入 SVG 失败: %w", err)
		}
	case renderer.FormatPNG:
		img := rasterizer.Draw(c, canvas.DPMM(r.dpmm), canvas.DefaultColorSpace)
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("写入 PNG 失败: %w", err)
		}
	case renderer.FormatPDF, "":
		w := pdf.New(&buf, page.Width, page.Height, nil)
		r.applyMeta(w, result.Meta)
		c.RenderTo(w)
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("写入 PDF 失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的输出格式 %q", format)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) paint(page layout.Page, resources layout.ResourceSet) (*canvas.Canvas, error) {
	c := canvas.New(page.Width, page.Height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点
	if err := r.drawPage(ctx, page, resources); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Renderer) applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：fontSize/lineHeight 入参均为毫米（mm）。渲染器内部与字体系统交互使用 pt，并在边界做 mm↔pt 换算。
func (r *Renderer) LayoutLines(content string, width float64, font layout.FontResource, fontSize, lineHeight float64) ([]layout.TextLine, error) {
	face, err := r.fontFace(font, toPt(fontSize), layout.RGB(30, 30, 30))
	if err != nil {
		return nil, err
	}

	lines := wrapLines(content, width, face)
	textHeight := face.Metrics().LineHeight
	if textHeight <= 0 {
		textHeight = lineHeight
	}
	leading := math.Max(lineHeight-textHeight, 0)
	if len(lines) == 0 {
		lines = []layout.TextLine{{Height: textHeight}}
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = textHeight
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

// drawPage 按背景、图片、形状、文字的顺序绘制。
func (r *Renderer) drawPage(ctx *canvas.Context, page layout.Page, resources layout.ResourceSet) error {
	if page.Background.A > 0 {
		ctx.SetFillColor(colorFromLayout(page.Background))
		ctx.SetStrokeColor(canvas.Transparent)
		ctx.DrawPath(0, 0, canvas.Rectangle(page.Width, page.Height))
	}
	r.drawImages(ctx, page.Images)
	r.drawRects(ctx, page.Rects)
	for _, tb := range page.Texts {
		if err := r.drawTextBox(ctx, tb, resolveFontResource(tb.Font, resources.Fonts)); err != nil {
			return err
		}
	}
	r.drawLines(ctx, page.Lines)
	return nil
}

func (r *Renderer) drawTextBox(ctx *canvas.Context, tb layout.TextBox, fontRes layout.FontResource) error {
	// TextBox 的坐标/字号/行高均为 mm；创建字体面需要 pt，这里做一次 mm→pt。
	sizePt := toPt(tb.FontSize)
	face, err := r.fontFace(fontRes, sizePt, tb.Color)
	if err != nil {
		return err
	}

	lines := tb.Lines
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: tb.Content, Width: tb.Width, Height: tb.LineHeight}}
	}

	// 底层先画阴影与残影，最后画正文
	type layer struct {
		dx, dy float64
		face   *canvas.FontFace
	}
	var layers []layer
	for _, sh := range tb.Shadows {
		f, err := r.fontFace(fontRes, sizePt, sh.Color)
		if err != nil {
			return err
		}
		layers = append(layers, layer{sh.OffsetX, sh.OffsetY, f})
	}
	if tb.Effect == layout.EffectGlitch {
		red, err := r.fontFace(fontRes, sizePt, glitchRed)
		if err != nil {
			return err
		}
		cyan, err := r.fontFace(fontRes, sizePt, glitchCyan)
		if err != nil {
			return err
		}
		layers = append(layers, layer{-glitchOffset, 0, red}, layer{glitchOffset, 0, cyan})
	}
	layers = append(layers, layer{0, 0, face})

	metrics := face.Metrics()
	glyphHeight := metrics.Ascent + metrics.Descent

	cursorY := tb.Y
	for _, line := range lines {
		cursorY += line.GapBefore
		lineHeight := line.Height
		if lineHeight <= 0 {
			lineHeight = tb.LineHeight
		}
		// 行盒内 half-leading：字形在行高内垂直居中
		baseline := cursorY + (lineHeight-glyphHeight)/2 + metrics.Ascent
		for _, l := range layers {
			drawLine(ctx, l.face, line, tb, l.dx, baseline+l.dy)
		}
		cursorY += lineHeight
	}
	return nil
}

// drawLine 绘制单行；有字距时逐字放置。
func drawLine(ctx *canvas.Context, face *canvas.FontFace, line layout.TextLine, tb layout.TextBox, dx, baseline float64) {
	if line.Content == "" {
		return
	}
	if tb.Tracking == 0 {
		align, anchorX := canvas.Left, tb.X
		switch strings.ToLower(tb.Align) {
		case "center":
			align, anchorX = canvas.Center, tb.X+tb.Width/2
		case "right", "end":
			align, anchorX = canvas.Right, tb.X+tb.Width
		}
		ctx.DrawText(anchorX+dx, baseline, canvas.NewTextLine(face, line.Content, align))
		return
	}

	width := line.Width
	if width <= 0 {
		width = trackedWidth(face, line.Content, tb.Tracking)
	}
	x := tb.X
	switch strings.ToLower(tb.Align) {
	case "center":
		x += (tb.Width - width) / 2
	case "right", "end":
		x += tb.Width - width
	}
	for _, ch := range line.Content {
		s := string(ch)
		ctx.DrawText(x+dx, baseline, canvas.NewTextLine(face, s, canvas.Left))
		x += face.TextWidth(s) + tb.Tracking
	}
}

func trackedWidth(face *canvas.FontFace, s string, tracking float64) float64 {
	n := len([]rune(s))
	if n == 0 {
		return 0
	}
	return face.TextWidth(s) + tracking*float64(n-1)
}

// drawImages 绘制图片；无法读取的图片记录日志后跳过。
func (r *Renderer) drawImages(ctx *canvas.Context, images []layout.ImageBox) {
	for _, box := range images {
		if box.Path == "" || box.Width <= 0 || box.Height <= 0 {
			continue
		}
		img, err := r.loadImage(box.Path)
		if err != nil {
			r.logger.Warn("image skipped", "src", box.Path, "err", err)
			continue
		}
		crop, x, y, w, _ := placeImage(box, img.Bounds())
		if crop != img.Bounds() {
			if sub, ok := img.(interface {
				SubImage(image.Rectangle) image.Image
			}); ok {
				img = sub.SubImage(crop)
			}
		}
		if box.Opacity > 0 && box.Opacity < 1 {
			r.logger.Debug("image opacity not supported, drawing opaque", "src", box.Path)
		}
		ctx.DrawImage(x, y, img, canvas.DPMM(float64(crop.Dx())/w))
	}
}

// placeImage 计算 cover（居中裁剪铺满）或 contain（等比缩放留白）后的
// 源图裁剪区域与目标位置尺寸（mm）。
func placeImage(box layout.ImageBox, bounds image.Rectangle) (crop image.Rectangle, x, y, w, h float64) {
	iw, ih := float64(bounds.Dx()), float64(bounds.Dy())
	if iw <= 0 || ih <= 0 {
		return bounds, box.X, box.Y, box.Width, box.Height
	}
	if box.Fit == layout.FitContain {
		scale := math.Min(box.Width/iw, box.Height/ih)
		w, h = iw*scale, ih*scale
		return bounds, box.X + (box.Width-w)/2, box.Y + (box.Height-h)/2, w, h
	}
	scale := math.Max(box.Width/iw, box.Height/ih)
	cw := int(math.Round(box.Width / scale))
	ch := int(math.Round(box.Height / scale))
	cw = min(max(cw, 1), bounds.Dx())
	ch = min(max(ch, 1), bounds.Dy())
	x0 := bounds.Min.X + (bounds.Dx()-cw)/2
	y0 := bounds.Min.Y + (bounds.Dy()-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch), box.X, box.Y, box.Width, box.Height
}

func (r *Renderer) loadImage(src string) (image.Image, error) {
	r.imageMu.Lock()
	defer r.imageMu.Unlock()
	if img, ok := r.images[src]; ok {
		return img, nil
	}
	data, err := r.imageBytes(src)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", src, err)
	}
	r.images[src] = img
	return img, nil
}

func (r *Renderer) imageBytes(src string) ([]byte, error) {
	if name, ok := builtinName(src); ok {
		blob, ok := r.imageBlobs[name]
		if !ok {
			return nil, fmt.Errorf("找不到内置图片资源 built-in:%s", name)
		}
		return blob, nil
	}
	if payload, ok := strings.CutPrefix(src, "data:"); ok {
		return decodeDataURI(payload)
	}
	if fetch.IsURL(src) {
		return fetch.Get(r.ctx, r.client, src)
	}
	path, err := r.localPath(src)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// decodeDataURI 解析 data: 之后的部分：[<mediatype>][;base64],<data>。
func decodeDataURI(s string) ([]byte, error) {
	meta, data, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("data URI 缺少 ',' 分隔符")
	}
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		// YAML 折行可能带入空白
		out, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(data), ""))
		if err != nil {
			return nil, fmt.Errorf("解码 data URI 失败: %w", err)
		}
		return out, nil
	}
	out, err := url.PathUnescape(data)
	if err != nil {
		return nil, fmt.Errorf("解码 data URI 失败: %w", err)
	}
	return []byte(out), nil
}

func (r *Renderer) localPath(src string) (string, error) {
	if filepath.IsAbs(src) {
		return src, nil
	}
	if r.baseDir == "" {
		return "", fmt.Errorf("未指定资源目录时不允许直接使用路径：%s（请改用 built-in: 或 embed:）", src)
	}
	return filepath.Join(r.baseDir, src), nil
}

func builtinName(src string) (string, bool) {
	for _, prefix := range []string{"built-in:", "builtin:"} {
		if strings.HasPrefix(src, prefix) {
			return strings.TrimPrefix(src, prefix), true
		}
	}
	return "", false
}

// drawLines 绘制直线列表（毫米单位）
func (r *Renderer) drawLines(ctx *canvas.Context, lines []layout.Line) {
	for _, ln := range lines {
		if ln.Width <= 0 {
			continue
		}
		ctx.SetStrokeColor(colorFromLayout(ln.Color))
		ctx.SetStrokeWidth(ln.Width)
		p := &canvas.Path{}
		p.MoveTo(0, 0)
		p.LineTo(ln.X2-ln.X1, ln.Y2-ln.Y1)
		ctx.DrawPath(ln.X1, ln.Y1, p)
	}
}

// drawRects 绘制（圆角）矩形；StrokeWidth 为 0 时不描边。
func (r *Renderer) drawRects(ctx *canvas.Context, rects []layout.Rect) {
	for _, rc := range rects {
		if rc.FillColor != nil {
			ctx.SetFillColor(colorFromLayout(*rc.FillColor))
		} else {
			ctx.SetFillColor(canvas.Transparent)
		}
		if rc.StrokeWidth > 0 {
			ctx.SetStrokeColor(colorFromLayout(rc.StrokeColor))
			ctx.SetStrokeWidth(rc.StrokeWidth)
		} else {
			ctx.SetStrokeColor(canvas.Transparent)
		}
		path := canvas.Rectangle(rc.Width, rc.Height)
		if rc.Radius > 0 {
			path = canvas.RoundedRectangle(rc.Width, rc.Height, rc.Radius)
		}
		ctx.DrawPath(rc.X, rc.Y, path)
	}
}

func (r *Renderer) fontFace(font layout.FontResource, size float64, col layout.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(size, colorFromLayout(col), style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(font.Style)
	familyName := font.Family
	if familyName == "" {
		familyName = font.Name
	}
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)

	err := r.loadFontIntoFamily(family, font.Src, font.Weight, style)
	if err != nil && font.Fallback != "" {
		r.logger.Warn("font unavailable, using fallback", "font", font.Name, "src", font.Src, "fallback", font.Fallback, "err", err)
		family = canvas.NewFontFamily(familyName)
		err = r.loadFontIntoFamily(family, font.Fallback, font.Weight, style)
	}
	if err != nil {
		fallback, fbStyle, fbErr := r.fallback()
		if fbErr != nil {
			return nil, canvas.FontRegular, err
		}
		r.logger.Warn("font unavailable, using default", "font", font.Name, "err", err)
		r.fontFamilies[key] = &fontFamilyEntry{family: fallback, style: fbStyle}
		return fallback, fbStyle, nil
	}

	entry := &fontFamilyEntry{family: family, style: style}
	r.fontFamilies[key] = entry
	return family, style, nil
}

func (r *Renderer) loadFontIntoFamily(family *canvas.FontFamily, src string, weight int, style canvas.FontStyle) error {
	data, err := r.loadFontBytes(src, weight)
	if err != nil {
		return err
	}
	return family.LoadFont(data, 0, style)
}

func (r *Renderer) loadFontBytes(src string, weight int) ([]byte, error) {
	if src == "" {
		return nil, fmt.Errorf("字体缺少 src")
	}
	if name, ok := builtinName(src); ok {
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置字体资源 built-in:%s", name)
	}
	if strings.HasPrefix(src, fonts.EmbedPrefix) {
		return fonts.Load(src)
	}
	if css, ok := strings.CutPrefix(src, "url:"); ok {
		if r.fetcher == nil {
			return nil, fmt.Errorf("未配置字体下载器，无法加载 %s", css)
		}
		return r.fetcher.Fetch(r.ctx, css, weight)
	}
	path, err := r.localPath(src)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (r *Renderer) fallback() (*canvas.FontFamily, canvas.FontStyle, error) {
	if r.fallbackFamily != nil {
		return r.fallbackFamily, canvas.FontRegular, nil
	}
	data, err := fonts.Load("go/regular")
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	family := canvas.NewFontFamily("lyricard-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, canvas.FontRegular, err
	}
	r.fallbackFamily = family
	return family, canvas.FontRegular, nil
}

func resolveFontResource(name string, fonts map[string]layout.FontResource) layout.FontResource {
	if font, ok := fonts[name]; ok {
		return font
	}
	if font, ok := fonts[layout.FontBody]; ok {
		return font
	}
	for _, font := range fonts {
		return font
	}
	return layout.FontResource{}
}

func parseFontStyle(style string) canvas.FontStyle {
	if style == "" {
		return canvas.FontRegular
	}
	s := strings.ToLower(style)
	result := canvas.FontRegular
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", font.Name, font.Src, font.Fallback, font.Style, font.Weight)
}

func colorFromLayout(c layout.Color) color.Color {
	a := math.Min(math.Max(c.A, 0), 1)
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, a)
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }

// wrapLines 逐段(显式换行)贪心折行：优先在空白处断开，单词超宽时按字符拆分。
// 断行处的空白不计入行宽，段首空白保留。width 单位为 mm。
func wrapLines(content string, width float64, face *canvas.FontFace) []layout.TextLine {
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}
	var lines []layout.TextLine
	push := func(s string) {
		lines = append(lines, layout.TextLine{Content: s, Width: face.TextWidth(s)})
	}
	for _, para := range strings.Split(strings.ReplaceAll(content, "\r", ""), "\n") {
		line := ""
		for _, run := range spaceRuns(para) {
			blank := strings.TrimSpace(run) == ""
			if line != "" && face.TextWidth(line+run) > limit {
				if kept := strings.TrimRightFunc(line, unicode.IsSpace); kept != "" {
					push(kept)
				}
				line = ""
				if blank {
					continue
				}
			}
			if line == "" && !blank && face.TextWidth(run) > limit {
				parts := breakWord(run, limit, face)
				for _, part := range parts[:len(parts)-1] {
					push(part)
				}
				run = parts[len(parts)-1]
			}
			line += run
		}
		push(strings.TrimRightFunc(line, unicode.IsSpace))
	}
	return lines
}

// spaceRuns 将一段文字切成空白/非空白交替的片段。
func spaceRuns(s string) []string {
	var runs []string
	start, prevSpace := 0, false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i > start && space != prevSpace {
			runs = append(runs, s[start:i])
			start = i
		}
		prevSpace = space
	}
	if start < len(s) {
		runs = append(runs, s[start:])
	}
	return runs
}

// breakWord 将超宽单词按字符拆分，每段至少一个字符。
func breakWord(word string, limit float64, face *canvas.FontFace) []string {
	var parts []string
	var cur []rune
	for _, r := range word {
		if len(cur) > 0 && face.TextWidth(string(cur)+string(r)) > limit {
			parts = append(parts, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	return append(parts, string(cur))
}
