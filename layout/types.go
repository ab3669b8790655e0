package layout

// 该文件定义布局结果与资源描述，供布局计算、渲染与调试 JSON 共用。

// Face names of the two card pages.
const (
	FaceFront = "front"
	FaceBack  = "back"
)

// Result 保存布局后的页面、字体资源与自动缩排结果。
type Result struct {
	Pages     []Page       `json:"pages"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
	Fit       *FitReport   `json:"fit,omitempty"`
}

// Page returns the page for face, or nil.
func (r *Result) Page(face string) *Page {
	if r == nil {
		return nil
	}
	for i := range r.Pages {
		if r.Pages[i].Face == face {
			return &r.Pages[i]
		}
	}
	return nil
}

// ResourceSet 记录解析出的字体定义。
type ResourceSet struct {
	Fonts map[string]FontResource `json:"fonts"`
}

// FontResource 描述字体资源。src 可以是文件路径、embed:go/* 内置字体或 url:<css> 远程样式表。
type FontResource struct {
	Name     string `json:"name"`
	Src      string `json:"src"`
	Style    string `json:"style"`
	Family   string `json:"family"` // 渲染器使用的 Family 名称
	Weight   int    `json:"weight,omitempty"`
	Fallback string `json:"fallback,omitempty"` // src 无法加载时使用的 embed 字体
}

// Color 采用 0-255 的 RGB 数值，A 为 0-1 的不透明度。
type Color struct {
	R int     `json:"r"`
	G int     `json:"g"`
	B int     `json:"b"`
	A float64 `json:"a"`
}

// RGB returns an opaque color.
func RGB(r, g, b int) Color { return Color{R: r, G: g, B: b, A: 1} }

// Page 记录页面尺寸、边距与最终可以直接渲染的元素（单位：mm）。
type Page struct {
	Face       string     `json:"face"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Margin     Margin     `json:"margin"`
	Background Color      `json:"background"`
	Images     []ImageBox `json:"images"`
	Rects      []Rect     `json:"rects,omitempty"`
	Texts      []TextBox  `json:"texts"`
	// 调试辅助线（列边界、可用高度），仅在 DebugOptions.Guides 时生成
	Lines []Line `json:"lines,omitempty"`
}

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// TextBox 表示一个已经排好坐标的文本块。
type TextBox struct {
	Content    string        `json:"content"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Width      float64       `json:"width"`
	LineHeight float64       `json:"lineHeight"`
	Font       string        `json:"font"`
	FontSize   float64       `json:"fontSize"`
	Color      Color         `json:"color"`
	Lines      []TextLine    `json:"lines"`
	Height     float64       `json:"height"`
	Align      string        `json:"align,omitempty"`    // left/center/right（默认 left）
	Tracking   float64       `json:"tracking,omitempty"` // 字距（mm），逐字绘制
	Shadows    []Shadow      `json:"shadows,omitempty"`
	Effect     string        `json:"effect,omitempty"` // "glitch" 时绘制红/青错位残影
	Debug      *TextBoxDebug `json:"debug,omitempty"`
}

// Effect names understood by renderers.
const EffectGlitch = "glitch"

// Shadow is a resolved text shadow; offsets in mm.
type Shadow struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Blur    float64 `json:"blur,omitempty"`
	Color   Color   `json:"color"`
}

// TextLine 表示排版后的一行文本内容及其宽高。
// Height 为行盒高度，文字在行盒内垂直居中（half-leading）。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// TextBoxDebug holds optional debug info displayed only when enabled by BuildOptions.
type TextBoxDebug struct {
	RawUnits *RawUnits `json:"rawUnits,omitempty"`
	Column   int       `json:"column"`
}

// RawUnits describes original author-specified units for key fields.
type RawUnits struct {
	FontSize   *RawLengthJSON     `json:"fontSize,omitempty"`
	LineHeight *RawLineHeightJSON `json:"lineHeight,omitempty"`
}

// RawLengthJSON is a JSON-friendly representation of Length.
type RawLengthJSON struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// RawLineHeightJSON is a JSON-friendly representation of LineHeightSpec.
type RawLineHeightJSON struct {
	Kind   string  `json:"kind"` // "factor" | "absolute"
	Factor float64 `json:"factor,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}

// Image fit modes.
const (
	FitCover   = "cover"
	FitContain = "contain"
)

// ImageBox 用于描述图片位置与尺寸。Fit 决定图片如何填入该区域。
type ImageBox struct {
	Path    string  `json:"path"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Fit     string  `json:"fit"`
	Opacity float64 `json:"opacity"`
}

// Line 表示一条线段。
type Line struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Color Color   `json:"color"`
	Width float64 `json:"width"` // 线宽（mm），<=0 时由渲染器给默认值
}

// Rect 表示一个矩形，Radius > 0 时为圆角矩形。
type Rect struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Radius      float64 `json:"radius,omitempty"`
	StrokeColor Color   `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`         // mm，0 表示不描边
	FillColor   *Color  `json:"fillColor,omitempty"` // 为空表示不填充
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}

// FitReport 记录背面歌词自动缩排的结果。
type FitReport struct {
	AutoShrink bool    `json:"autoshrink"`
	Outcome    string  `json:"outcome"`
	Iterations int     `json:"iterations"`
	StartPt    float64 `json:"startFontPt"`
	StartLH    float64 `json:"startLineHeight"`
	FinalPt    float64 `json:"finalFontPt"`
	FinalLH    float64 `json:"finalLineHeight"`
	Overflow   float64 `json:"overflow"`  // mm
	Available  float64 `json:"available"` // mm
	Content    float64 `json:"content"`   // mm
	Columns    int     `json:"columns"`
}

// Fits reports whether the final layout stayed inside the available height.
func (f *FitReport) Fits() bool { return f != nil && f.Overflow <= 0 }
