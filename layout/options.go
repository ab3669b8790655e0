package layout

import "log/slog"

// BuildOptions 配置布局阶段所需的依赖，例如排版后端。
type BuildOptions struct {
	Typesetter Typesetter
	Sheet      Sheet
	Fit        FitOptions
	// Fonts 覆盖默认字体资源（按 FontBody/FontHeading/FontAlt/FontTitle 命名）。
	Fonts  map[string]FontResource
	Logger *slog.Logger
	Debug  DebugOptions
}

// FitOptions tunes the back-face shrink loop. Zero fields take the fit
// package defaults.
type FitOptions struct {
	Step           float64 // pt
	LineHeightStep float64
	MaxIterations  int
	ReservedMargin float64 // mm kept free above the credits block
}

// DefaultReservedMargin is the gap between lyrics and credits.
const DefaultReservedMargin = 2.0

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	RawUnits bool // 在调试 JSON 中输出 debug.rawUnits 影子字段
	Guides   bool // 在背面绘制列边界与可用高度辅助线
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
// fontSize、lineHeight 与 width 均为 mm。
type Typesetter interface {
	LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64) ([]TextLine, error)
}

// Sheet is the physical card size.
type Sheet struct {
	Name    string  `json:"name" toml:"name"`
	Width   float64 `json:"width" toml:"width_mm"`
	Height  float64 `json:"height" toml:"height_mm"`
	Padding float64 `json:"padding" toml:"padding_mm"`
}

// Sheets lists the named sizes accepted by --sheet.
var Sheets = map[string]Sheet{
	"cd":       {Name: "cd", Width: 120, Height: 120, Padding: 8},
	"postcard": {Name: "postcard", Width: 100, Height: 148, Padding: 8},
	"a6":       {Name: "a6", Width: 105, Height: 148, Padding: 8},
	"square":   {Name: "square", Width: 150, Height: 150, Padding: 10},
	"business": {Name: "business", Width: 91, Height: 55, Padding: 5},
}

// DefaultSheet is a CD booklet face.
func DefaultSheet() Sheet { return Sheets["cd"] }

// Valid reports whether the sheet leaves a positive inner area.
func (s Sheet) Valid() bool {
	return s.Width > 0 && s.Height > 0 && s.Padding >= 0 &&
		s.Width > 2*s.Padding && s.Height > 2*s.Padding
}
