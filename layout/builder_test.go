package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ByLCY/lyricard/card"
	"github.com/ByLCY/lyricard/fit"
	lyrlog "github.com/ByLCY/lyricard/logger"
)

// stubTypesetter 是一个最小实现，仅用于测试，避免引入 renderer 造成循环依赖。
// 每个字符宽度为字号的一半，只按显式换行拆分。
type stubTypesetter struct{}

func (s *stubTypesetter) LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64) ([]TextLine, error) {
	parts := strings.Split(content, "\n")
	lines := make([]TextLine, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, TextLine{
			Content: p,
			Width:   float64(utf8.RuneCountInString(p)) * fontSize / 2,
			Height:  fontSize,
		})
	}
	return lines, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func lyricLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return strings.Join(lines, "\n")
}

func lyricsCard(lines int, autoshrink bool) card.Card {
	c := card.FromData(nil)
	c.Back.Typography.AutoShrink = autoshrink
	c.Back.Sections = []card.Section{{Lyrics: lyricLines(lines)}}
	return c
}

func build(t *testing.T, c card.Card, opts BuildOptions) *Result {
	t.Helper()
	if opts.Typesetter == nil {
		opts.Typesetter = &stubTypesetter{}
	}
	if opts.Logger == nil {
		opts.Logger = quiet()
	}
	res, err := BuildCard(c, opts)
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return res
}

func abs(x float64) float64 { return math.Abs(x) }

func eq(a, b float64) bool { return abs(a-b) < 1e-6 }

func TestBuildCardProducesBothFaces(t *testing.T) {
	res := build(t, card.FromData(nil), BuildOptions{})
	if len(res.Pages) != 2 || res.Pages[0].Face != FaceFront || res.Pages[1].Face != FaceBack {
		t.Fatalf("unexpected pages: %+v", res.Pages)
	}
	for _, p := range res.Pages {
		if p.Width != 120 || p.Height != 120 || p.Margin.Left != 8 {
			t.Fatalf("page %s uses wrong sheet: %gx%g margin %+v", p.Face, p.Width, p.Height, p.Margin)
		}
	}
	if res.Meta.Title != "Card - Card" {
		t.Fatalf("meta title = %q", res.Meta.Title)
	}
	if res.Page(FaceBack) == nil || res.Page("spine") != nil {
		t.Fatalf("Page lookup broken")
	}
}

func TestBuildCardRequiresTypesetter(t *testing.T) {
	if _, err := BuildCard(card.FromData(nil), BuildOptions{}); err == nil {
		t.Fatalf("expected error without typesetter")
	}
	_, err := BuildCard(card.FromData(nil), BuildOptions{Typesetter: &stubTypesetter{}, Sheet: Sheet{Width: 10, Height: 10, Padding: 6}})
	if err == nil {
		t.Fatalf("expected error for sheet without inner area")
	}
}

// TestColumnFill 断言前 N-1 栏在可用高度处换栏，最后一栏承接剩余内容。
func TestColumnFill(t *testing.T) {
	res := build(t, lyricsCard(30, false), BuildOptions{})
	back := res.Page(FaceBack)
	lh := Factor(1.35).Resolve(Length{Value: 10.5, Unit: UnitPT}, UnitMM)
	available := 120 - 2*8 - DefaultReservedMargin
	perColumn := int(available / lh)

	first, second := 0, 0
	for _, tb := range back.Texts {
		switch {
		case eq(tb.X, 8):
			first++
		case eq(tb.X, 8+49+6):
			second++
		default:
			t.Fatalf("text at unexpected x=%g", tb.X)
		}
	}
	if first != perColumn || second != 30-perColumn {
		t.Fatalf("columns hold %d/%d rows, want %d/%d", first, second, perColumn, 30-perColumn)
	}
	if res.Fit.Outcome != "skipped" || !res.Fit.Fits() {
		t.Fatalf("fit report = %+v", res.Fit)
	}
	if !eq(res.Fit.Content, float64(perColumn)*lh) {
		t.Fatalf("content height = %g, want tallest column %g", res.Fit.Content, float64(perColumn)*lh)
	}
}

func TestShortLyricsFitWithoutShrinking(t *testing.T) {
	res := build(t, lyricsCard(4, true), BuildOptions{})
	if res.Fit.Outcome != fit.OutcomeFit.String() || res.Fit.Iterations != 0 {
		t.Fatalf("fit report = %+v", res.Fit)
	}
	if res.Fit.FinalPt != 10.5 || res.Fit.FinalLH != 1.35 {
		t.Fatalf("params changed: %+v", res.Fit)
	}
}

func TestLongLyricsShrinkToMinimum(t *testing.T) {
	res := build(t, lyricsCard(200, true), BuildOptions{})
	f := res.Fit
	if f.Outcome != fit.OutcomeFitAtMinimum.String() {
		t.Fatalf("outcome = %s", f.Outcome)
	}
	if f.FinalPt != 8 || f.FinalLH != 1.25 || f.Iterations != 10 {
		t.Fatalf("final params = %+v", f)
	}
	if f.Overflow <= 0 || f.Fits() {
		t.Fatalf("expected residual overflow, got %g", f.Overflow)
	}
	want := Length{Value: 8, Unit: UnitPT}.ToMM()
	for _, tb := range res.Page(FaceBack).Texts {
		if tb.Font == FontBody && !eq(tb.FontSize, want) {
			t.Fatalf("text laid out at %gmm, want final size %gmm", tb.FontSize, want)
		}
	}
}

func TestShrinkStopsOnceContentFits(t *testing.T) {
	// 2 栏、可用高度 102mm：起始行高 ≈5.0mm 放不下 44 行，缩小后可以。
	res := build(t, lyricsCard(44, true), BuildOptions{})
	f := res.Fit
	if f.Outcome != fit.OutcomeFit.String() || f.Iterations == 0 {
		t.Fatalf("fit report = %+v", f)
	}
	if f.FinalPt >= 10.5 || f.FinalPt < 8 || !f.Fits() {
		t.Fatalf("unexpected final params: %+v", f)
	}
}

func TestInvalidFitOptions(t *testing.T) {
	_, err := BuildCard(lyricsCard(10, true), BuildOptions{Typesetter: &stubTypesetter{}, Logger: quiet(), Fit: FitOptions{Step: -1}})
	if !errors.Is(err, fit.ErrInvalidLimits) {
		t.Fatalf("expected ErrInvalidLimits, got %v", err)
	}
}

func TestCreditsReserveBottom(t *testing.T) {
	c := lyricsCard(4, true)
	c.Back.Credits = []string{"Music: A", "Words: B"}
	res := build(t, c, BuildOptions{Fit: FitOptions{ReservedMargin: 3}})
	back := res.Page(FaceBack)

	var creditBoxes []TextBox
	for _, tb := range back.Texts {
		if tb.Content == "Credits" || strings.Contains(tb.Content, "Music: A") {
			creditBoxes = append(creditBoxes, tb)
		}
	}
	if len(creditBoxes) != 2 {
		t.Fatalf("credits boxes = %d", len(creditBoxes))
	}
	lh := Factor(creditsLineHeight).Resolve(Length{Value: creditsFontPt, Unit: UnitPT}, UnitMM)
	last := creditBoxes[1]
	if !eq(last.Y+last.Height, 120-8) {
		t.Fatalf("credits not pinned to bottom: y=%g h=%g", last.Y, last.Height)
	}
	if !eq(res.Fit.Available, 104-(3*lh+3)) {
		t.Fatalf("available = %g, want %g", res.Fit.Available, 104-(3*lh+3))
	}
}

func TestSectionRowsAndEffects(t *testing.T) {
	c := card.FromData(nil)
	c.Back.Sections = []card.Section{
		{Heading: "Verse", Lines: []card.Line{
			{Text: "glitchy", Style: card.LineGlitch},
			{Text: "whisper", Style: card.LineAlt},
			{Text: "plain"},
		}},
	}
	back := build(t, c, BuildOptions{}).Page(FaceBack)
	got := map[string]TextBox{}
	for _, tb := range back.Texts {
		got[tb.Content] = tb
	}
	if got["Verse"].Font != FontHeading {
		t.Fatalf("heading font = %q", got["Verse"].Font)
	}
	if got["glitchy"].Effect != EffectGlitch {
		t.Fatalf("glitch effect missing")
	}
	if got["whisper"].Font != FontAlt || got["whisper"].Color != altColor {
		t.Fatalf("alt style missing: %+v", got["whisper"])
	}
	// 每行为一个行盒，Y 依次递增一个行高
	lh := got["Verse"].LineHeight
	if !eq(got["plain"].Y-got["Verse"].Y, 3*lh) {
		t.Fatalf("rows not stacked by line height")
	}
}

// TestTextBoxTotalHeightInvariant 断言：TextBox.Height == Σ(line.Height + line.GapBefore)。
func TestTextBoxTotalHeightInvariant(t *testing.T) {
	c := card.FromData(map[string]any{"front": map[string]any{"title_text": "Un\nconscious\nness"}})
	c.Back.Credits = []string{"a", "b"}
	res := build(t, c, BuildOptions{})
	checked := 0
	for _, p := range res.Pages {
		for _, tb := range p.Texts {
			total := 0.0
			for _, ln := range tb.Lines {
				total += ln.GapBefore + ln.Height
			}
			if diff := abs(total - tb.Height); diff > 1e-6 {
				t.Fatalf("TextBox.Height 不变式不成立: %q got=%g want=%g", tb.Content, tb.Height, total)
			}
			checked++
		}
	}
	if checked == 0 {
		t.Fatalf("未找到文本框进行校验")
	}
}

func TestFrontTitlePlacement(t *testing.T) {
	for _, tc := range []struct {
		align card.Align
		check func(tb TextBox) bool
	}{
		{card.AlignLeftTop, func(tb TextBox) bool { return eq(tb.Y, 8) && tb.Align == "" }},
		{card.AlignLeftBottom, func(tb TextBox) bool { return eq(tb.Y+tb.Height, 112) && tb.Align == "" }},
		{card.AlignRightBottom, func(tb TextBox) bool { return eq(tb.Y+tb.Height, 112) && tb.Align == "right" }},
		{card.AlignCenter, func(tb TextBox) bool { return eq(tb.Y+tb.Height/2, 60) && tb.Align == "center" }},
	} {
		c := card.FromData(map[string]any{"meta": map[string]any{"title": "Koishi"}})
		c.Front.TitleStyle.Align = tc.align
		front := build(t, c, BuildOptions{}).Page(FaceFront)
		if len(front.Texts) != 1 {
			t.Fatalf("%s: expected one title box", tc.align)
		}
		if !tc.check(front.Texts[0]) {
			t.Fatalf("%s: misplaced title %+v", tc.align, front.Texts[0])
		}
	}
}

func TestFrontTitleStyle(t *testing.T) {
	tracking := 0.1
	c := card.FromData(map[string]any{"meta": map[string]any{"title": "ABCD"}})
	c.Front.HeroImage = "hero.webp"
	c.Front.Background = "#202020"
	c.Front.TitleStyle = card.TitleStyle{
		SizeClamp:  "clamp(10mm, 5vw, 40mm)",
		TrackingEm: &tracking,
		Fill:       "#ff0000",
		Shadow:     "0 0.1em 2px rgba(0,0,0,.5)",
		Bg:         "linear-gradient(#000a, transparent)",
		Weight:     "400",
		Align:      card.AlignLeftBottom,
	}
	res := build(t, c, BuildOptions{Debug: DebugOptions{RawUnits: true}})
	front := res.Page(FaceFront)
	tb := front.Texts[0]
	if !eq(tb.FontSize, 10) {
		t.Fatalf("title size = %g, want clamp floor 10mm", tb.FontSize)
	}
	if !eq(tb.Tracking, 1) {
		t.Fatalf("tracking = %g, want 1mm", tb.Tracking)
	}
	if tb.Color != RGB(255, 0, 0) {
		t.Fatalf("fill = %+v", tb.Color)
	}
	if len(tb.Shadows) != 1 || !eq(tb.Shadows[0].OffsetY, 1) || tb.Shadows[0].Color.A != 0.5 {
		t.Fatalf("shadows = %+v", tb.Shadows)
	}
	if !eq(tb.Lines[0].Width, 4*5+3*1) {
		t.Fatalf("tracked width = %g", tb.Lines[0].Width)
	}
	if len(front.Rects) != 1 || front.Rects[0].FillColor == nil || front.Rects[0].Radius == 0 {
		t.Fatalf("title panel = %+v", front.Rects)
	}
	if front.Background != RGB(32, 32, 32) {
		t.Fatalf("background = %+v", front.Background)
	}
	if len(front.Images) != 1 || front.Images[0].Fit != FitContain {
		t.Fatalf("hero image = %+v", front.Images)
	}
	if tb.Debug == nil || tb.Debug.RawUnits.FontSize == nil || tb.Debug.RawUnits.FontSize.Unit != "mm" {
		t.Fatalf("debug raw units missing: %+v", tb.Debug)
	}
	title := res.Resources.Fonts[FontTitle]
	if title.Src != "embed:go/regular" || title.Weight != 400 {
		t.Fatalf("title font = %+v", title)
	}
}

func TestTitleFontWeights(t *testing.T) {
	cases := []struct {
		weight string
		src    string
		style  string
	}{
		{"", "embed:go/bold", "bold"},
		{"400", "embed:go/regular", "regular"},
		{"500", "embed:go/medium", "medium"},
		{"semibold", "embed:go/bold", "bold"},
	}
	for _, c := range cases {
		fr := titleFont(card.TitleStyle{Weight: c.weight}, FontResource{}, quiet())
		if fr.Src != c.src || fr.Style != c.style {
			t.Fatalf("weight %q: font = %+v, want %s/%s", c.weight, fr, c.src, c.style)
		}
	}
}

func TestTitleFontURLKeepsFallback(t *testing.T) {
	st := card.TitleStyle{FontURL: "https://fonts.example/css2?family=X", FontFamily: "'X Sans', monospace"}
	fr := titleFont(st, FontResource{}, quiet())
	if fr.Src != "url:https://fonts.example/css2?family=X" || fr.Fallback != "embed:go/mono" || fr.Family != "X Sans" {
		t.Fatalf("title font = %+v", fr)
	}
}

func TestBackBackgroundImageAndGuides(t *testing.T) {
	c := lyricsCard(3, true)
	c.Back.Background = "paper.png"
	c.Back.BgPanel = "rgba(255,255,255,0.8)"
	back := build(t, c, BuildOptions{Debug: DebugOptions{Guides: true}}).Page(FaceBack)
	if len(back.Images) != 1 || back.Images[0].Fit != FitCover || back.Images[0].Width != 120 {
		t.Fatalf("background image = %+v", back.Images)
	}
	if len(back.Rects) != 1 || back.Rects[0].FillColor.A != 0.8 {
		t.Fatalf("bg panel = %+v", back.Rects)
	}
	// 2 栏 × 2 条边界 + 1 条底线
	if len(back.Lines) != 5 {
		t.Fatalf("guides = %d", len(back.Lines))
	}
	for _, tb := range back.Texts {
		if tb.Debug == nil {
			t.Fatalf("guide mode should annotate columns")
		}
	}
}

func TestFitStatesLoggedAtTrace(t *testing.T) {
	for _, tc := range []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{lyrlog.LevelTrace, true},
	} {
		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tc.level}))
		build(t, lyricsCard(44, true), BuildOptions{Logger: log})
		if got := strings.Contains(buf.String(), "fit state"); got != tc.want {
			t.Fatalf("level %v: fit state logged = %v, want %v", tc.level, got, tc.want)
		}
	}
}
