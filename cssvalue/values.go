package cssvalue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Millimetres per CSS unit.
const (
	PxToMm = 25.4 / 96
	PtToMm = 25.4 / 72
)

// Viewport supplies the references relative units resolve against. All
// fields are millimetres.
type Viewport struct {
	Width    float64
	Height   float64
	FontSize float64 // em/rem reference
	Percent  float64 // what 100% means; Width when zero
}

// Length is a number with its CSS unit ("" for unitless).
type Length struct {
	Value float64
	Unit  string
}

// Resolve converts l to millimetres. Unitless numbers are read as px.
func (l Length) Resolve(vp Viewport) float64 {
	switch l.Unit {
	case "", "px":
		return l.Value * PxToMm
	case "pt":
		return l.Value * PtToMm
	case "mm":
		return l.Value
	case "cm":
		return l.Value * 10
	case "in":
		return l.Value * 25.4
	case "em", "rem":
		return l.Value * vp.FontSize
	case "vw":
		return l.Value * vp.Width / 100
	case "vh":
		return l.Value * vp.Height / 100
	case "vmin":
		return l.Value * math.Min(vp.Width, vp.Height) / 100
	case "vmax":
		return l.Value * math.Max(vp.Width, vp.Height) / 100
	case "%":
		base := vp.Percent
		if base == 0 {
			base = vp.Width
		}
		return l.Value * base / 100
	default:
		return l.Value
	}
}

// ParseLength parses a single dimension such as "12px" or "-0.5em".
func ParseLength(s string) (Length, error) {
	list, err := Parse(strings.ToLower(s))
	if err != nil {
		return Length{}, err
	}
	t, ok := list.single()
	if !ok {
		return Length{}, fmt.Errorf("cssvalue: %q is not a single length", s)
	}
	return termLength(t)
}

func termLength(t *Term) (Length, error) {
	if t == nil || t.Number == nil {
		return Length{}, fmt.Errorf("cssvalue: %q is not a length", t.String())
	}
	raw := *t.Number
	i := len(raw)
	for i > 0 && !isDigit(raw[i-1]) && raw[i-1] != '.' {
		i--
	}
	v, err := strconv.ParseFloat(raw[:i], 64)
	if err != nil {
		return Length{}, fmt.Errorf("cssvalue: bad number %q: %w", raw, err)
	}
	return Length{Value: v, Unit: raw[i:]}, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Size is a resolvable size expression: a length or clamp()/min()/max() of
// size expressions.
type Size interface {
	Resolve(vp Viewport) float64
}

type sizeFunc struct {
	name string
	args []Size
}

func (f sizeFunc) Resolve(vp Viewport) float64 {
	vals := make([]float64, len(f.args))
	for i, a := range f.args {
		vals[i] = a.Resolve(vp)
	}
	switch f.name {
	case "clamp":
		// clamp(MIN, VAL, MAX) = max(MIN, min(VAL, MAX))
		return math.Max(vals[0], math.Min(vals[1], vals[2]))
	case "min":
		out := vals[0]
		for _, v := range vals[1:] {
			out = math.Min(out, v)
		}
		return out
	default:
		out := vals[0]
		for _, v := range vals[1:] {
			out = math.Max(out, v)
		}
		return out
	}
}

// ParseSize parses values such as "clamp(28px, 9vw, 64px)" or "18mm".
func ParseSize(s string) (Size, error) {
	list, err := Parse(strings.ToLower(s))
	if err != nil {
		return nil, err
	}
	t, ok := list.single()
	if !ok {
		return nil, fmt.Errorf("cssvalue: %q is not a single size", s)
	}
	return termSize(t)
}

func termSize(t *Term) (Size, error) {
	if t.Func == nil {
		return termLength(t)
	}
	name := t.Func.Name
	switch name {
	case "clamp", "min", "max":
	default:
		return nil, fmt.Errorf("cssvalue: unsupported size function %s()", name)
	}
	args := make([]Size, 0, len(t.Func.Args))
	for _, g := range t.Func.Args {
		if len(g.Terms) != 1 {
			return nil, fmt.Errorf("cssvalue: %s() argument %q must be a single size", name, g.String())
		}
		a, err := termSize(g.Terms[0])
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	if name == "clamp" && len(args) != 3 {
		return nil, fmt.Errorf("cssvalue: clamp() takes 3 arguments, got %d", len(args))
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("cssvalue: %s() needs arguments", name)
	}
	return sizeFunc{name: name, args: args}, nil
}

// Color is an sRGB color with straight alpha in [0,1].
type Color struct {
	R, G, B uint8
	A       float64
}

// Transparent reports whether c has no visible coverage.
func (c Color) Transparent() bool { return c.A <= 0 }

var namedColors = map[string]Color{
	"black":       {0, 0, 0, 1},
	"white":       {255, 255, 255, 1},
	"red":         {255, 0, 0, 1},
	"green":       {0, 128, 0, 1},
	"blue":        {0, 0, 255, 1},
	"cyan":        {0, 255, 255, 1},
	"aqua":        {0, 255, 255, 1},
	"magenta":     {255, 0, 255, 1},
	"fuchsia":     {255, 0, 255, 1},
	"yellow":      {255, 255, 0, 1},
	"gray":        {128, 128, 128, 1},
	"grey":        {128, 128, 128, 1},
	"silver":      {192, 192, 192, 1},
	"navy":        {0, 0, 128, 1},
	"purple":      {128, 0, 128, 1},
	"orange":      {255, 165, 0, 1},
	"pink":        {255, 192, 203, 1},
	"crimson":     {220, 20, 60, 1},
	"gold":        {255, 215, 0, 1},
	"indigo":      {75, 0, 130, 1},
	"transparent": {0, 0, 0, 0},
}

// ParseColor parses hex, rgb()/rgba() and named colors.
func ParseColor(s string) (Color, error) {
	list, err := Parse(strings.ToLower(s))
	if err != nil {
		return Color{}, err
	}
	t, ok := list.single()
	if !ok {
		return Color{}, fmt.Errorf("cssvalue: %q is not a single color", s)
	}
	c, ok := termColor(t)
	if !ok {
		return Color{}, fmt.Errorf("cssvalue: %q is not a color", s)
	}
	return c, nil
}

func termColor(t *Term) (Color, bool) {
	switch {
	case t.Hash != nil:
		return hexColor(strings.TrimPrefix(*t.Hash, "#"))
	case t.Ident != nil:
		c, ok := namedColors[*t.Ident]
		return c, ok
	case t.Func != nil && (t.Func.Name == "rgb" || t.Func.Name == "rgba"):
		return rgbColor(t.Func)
	}
	return Color{}, false
}

func hexColor(h string) (Color, bool) {
	if len(h) == 3 || len(h) == 4 {
		var b strings.Builder
		for _, r := range h {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		h = b.String()
	}
	if len(h) != 6 && len(h) != 8 {
		return Color{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, false
	}
	if len(h) == 6 {
		return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 1}, true
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: float64(uint8(v)) / 255}, true
}

// rgbColor accepts both rgba(0, 0, 0, .5) and rgb(0 0 0 / 50%).
func rgbColor(f *Func) (Color, bool) {
	var comps []*Term
	for _, g := range f.Args {
		for _, t := range g.Terms {
			comps = append(comps, t)
		}
	}
	var nums []*Term
	alphaAt := -1
	for _, t := range comps {
		if t.Slash {
			alphaAt = len(nums)
			continue
		}
		nums = append(nums, t)
	}
	if len(nums) != 3 && len(nums) != 4 {
		return Color{}, false
	}
	if alphaAt != -1 && alphaAt != 3 {
		return Color{}, false
	}
	out := Color{A: 1}
	ch := []*uint8{&out.R, &out.G, &out.B}
	for i := 0; i < 3; i++ {
		l, err := termLength(nums[i])
		if err != nil {
			return Color{}, false
		}
		v := l.Value
		if l.Unit == "%" {
			v = v * 255 / 100
		} else if l.Unit != "" {
			return Color{}, false
		}
		*ch[i] = uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	if len(nums) == 4 {
		l, err := termLength(nums[3])
		if err != nil {
			return Color{}, false
		}
		a := l.Value
		if l.Unit == "%" {
			a /= 100
		}
		out.A = math.Max(0, math.Min(1, a))
	}
	return out, true
}

// Shadow is one text-shadow layer. Offsets and blur are lengths; a nil
// Color means currentColor.
type Shadow struct {
	OffsetX Length
	OffsetY Length
	Blur    Length
	Color   *Color
}

// ParseShadows parses a text-shadow list. "none" yields no shadows.
func ParseShadows(s string) ([]Shadow, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return nil, nil
	}
	list, err := Parse(s)
	if err != nil {
		return nil, err
	}
	out := make([]Shadow, 0, len(list.Items))
	for _, g := range list.Items {
		var lengths []Length
		var sh Shadow
		for _, t := range g.Terms {
			if c, ok := termColor(t); ok {
				cc := c
				sh.Color = &cc
				continue
			}
			l, err := termLength(t)
			if err != nil {
				return nil, fmt.Errorf("cssvalue: shadow %q: %w", g.String(), err)
			}
			lengths = append(lengths, l)
		}
		if len(lengths) < 2 || len(lengths) > 3 {
			return nil, fmt.Errorf("cssvalue: shadow %q needs 2 or 3 lengths", g.String())
		}
		sh.OffsetX, sh.OffsetY = lengths[0], lengths[1]
		if len(lengths) == 3 {
			sh.Blur = lengths[2]
		}
		out = append(out, sh)
	}
	return out, nil
}

// ParseBackground reads a background value as a single fill color. For
// gradients the first color stop is used.
func ParseBackground(s string) (Color, error) {
	list, err := Parse(strings.ToLower(s))
	if err != nil {
		return Color{}, err
	}
	for _, g := range list.Items {
		for _, t := range g.Terms {
			if c, ok := termColor(t); ok {
				return c, nil
			}
			if t.Func != nil && strings.HasSuffix(t.Func.Name, "gradient") {
				for _, arg := range t.Func.Args {
					for _, at := range arg.Terms {
						if c, ok := termColor(at); ok {
							return c, nil
						}
					}
				}
			}
		}
	}
	return Color{}, fmt.Errorf("cssvalue: no color in background %q", s)
}

var weightKeywords = map[string]int{
	"thin":       100,
	"extralight": 200,
	"light":      300,
	"lighter":    300,
	"normal":     400,
	"regular":    400,
	"medium":     500,
	"semibold":   600,
	"bold":       700,
	"extrabold":  800,
	"bolder":     800,
	"black":      900,
}

// ParseWeight returns a numeric font weight in [100, 900].
func ParseWeight(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if w, ok := weightKeywords[strings.ReplaceAll(s, "-", "")]; ok {
		return w, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("cssvalue: bad font weight %q", s)
	}
	if v < 1 || v > 1000 {
		return 0, fmt.Errorf("cssvalue: font weight %d out of range", v)
	}
	return int(math.Min(900, math.Max(100, float64((v+50)/100*100)))), nil
}

// ParseFontFamily splits a font-family list into family names, quotes
// removed, generic families kept as is.
func ParseFontFamily(s string) ([]string, error) {
	list, err := Parse(s)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list.Items))
	for _, g := range list.Items {
		if len(g.Terms) == 1 && g.Terms[0].Str != nil {
			out = append(out, string(*g.Terms[0].Str))
			continue
		}
		parts := make([]string, 0, len(g.Terms))
		for _, t := range g.Terms {
			if t.Ident == nil {
				return nil, fmt.Errorf("cssvalue: bad family name %q", g.String())
			}
			parts = append(parts, *t.Ident)
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out, nil
}
