// Package card maps a decoded preset onto the typed description of a
// two-sided lyrics card. Mapping never fails: absent or malformed fields
// fall back to the defaults below.
package card

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/lyricard/binding"
	"github.com/ByLCY/lyricard/cssvalue"
	"github.com/ByLCY/lyricard/preset"
)

// TitlePattern builds the document title from the preset.
const TitlePattern = "${meta.title} - Card"

// Typography defaults for the back face.
const (
	DefaultFontSizePt    = 10.5
	DefaultLineHeight    = 1.35
	DefaultColumns       = 2
	DefaultColumnGapMM   = 6.0
	DefaultMinFontPt     = 8.0
	DefaultMinLineHeight = 1.25
)

// Align selects where the front title sits.
type Align string

const (
	AlignLeftBottom  Align = "left-bottom"
	AlignLeftTop     Align = "left-top"
	AlignCenter      Align = "center"
	AlignRightBottom Align = "right-bottom"
)

// ParseAlign lower-cases s; unknown values map to AlignLeftBottom.
func ParseAlign(s string) Align {
	switch a := Align(strings.ToLower(strings.TrimSpace(s))); a {
	case AlignLeftTop, AlignCenter, AlignRightBottom:
		return a
	default:
		return AlignLeftBottom
	}
}

// Card is the full description of both faces.
type Card struct {
	Meta  Meta  `json:"meta"`
	Front Front `json:"front"`
	Back  Back  `json:"back"`
}

// Meta holds document metadata.
type Meta struct {
	Title    string `json:"title"`
	HasTitle bool   `json:"-"`
}

// Front describes the hero face.
type Front struct {
	HeroImage  string     `json:"heroImage,omitempty"`
	Background string     `json:"background,omitempty"`
	TitleText  string     `json:"titleText"`
	TitleStyle TitleStyle `json:"titleStyle"`
}

// TitleStyle carries the raw CSS-like values; layout parses them.
type TitleStyle struct {
	FontFamily string   `json:"fontFamily,omitempty"`
	FontURL    string   `json:"fontUrl,omitempty"`
	Weight     string   `json:"weight,omitempty"`
	TrackingEm *float64 `json:"trackingEm,omitempty"`
	SizeClamp  string   `json:"sizeClamp,omitempty"`
	Fill       string   `json:"fill,omitempty"`
	Shadow     string   `json:"shadow,omitempty"`
	Bg         string   `json:"bg,omitempty"`
	Align      Align    `json:"align"`
}

// Back describes the lyrics face.
type Back struct {
	Background string     `json:"background,omitempty"`
	BgPanel    string     `json:"bgPanel,omitempty"`
	Typography Typography `json:"typography"`
	Sections   []Section  `json:"sections"`
	Credits    []string   `json:"credits"`
}

// Typography is the starting point and the floors of the fit loop.
type Typography struct {
	FontSizePt    float64 `json:"fontSizePt"`
	LineHeight    float64 `json:"lineHeight"`
	Columns       int     `json:"columns"`
	ColumnGapMM   float64 `json:"columnGapMm"`
	AutoShrink    bool    `json:"autoshrink"`
	MinFontPt     float64 `json:"minFontPt"`
	MinLineHeight float64 `json:"minLineHeight"`
}

// DefaultTypography returns the typography used when a preset is silent.
func DefaultTypography() Typography {
	return Typography{
		FontSizePt:    DefaultFontSizePt,
		LineHeight:    DefaultLineHeight,
		Columns:       DefaultColumns,
		ColumnGapMM:   DefaultColumnGapMM,
		AutoShrink:    true,
		MinFontPt:     DefaultMinFontPt,
		MinLineHeight: DefaultMinLineHeight,
	}
}

// Section is one block of lyrics. When Lyrics is set Lines is ignored.
type Section struct {
	Heading string `json:"heading,omitempty"`
	Lyrics  string `json:"lyrics,omitempty"`
	Lines   []Line `json:"lines,omitempty"`
}

// HasBody reports whether the section renders anything below its heading.
func (s Section) HasBody() bool { return s.Lyrics != "" || s.Lines != nil }

// LineStyle decorates a single lyric line.
type LineStyle string

const (
	LinePlain  LineStyle = ""
	LineGlitch LineStyle = "glitch"
	LineAlt    LineStyle = "alt"
)

// Line is one entry of a section's lines list.
type Line struct {
	Text  string    `json:"text"`
	Style LineStyle `json:"style,omitempty"`
}

// DocumentTitle renders TitlePattern, using "Card" when meta.title is absent.
func (c Card) DocumentTitle() string {
	title := "Card"
	if c.Meta.HasTitle {
		title = c.Meta.Title
	}
	return binding.Interpolate(TitlePattern, map[string]any{"meta": map[string]any{"title": title}})
}

// FromPreset maps doc onto a Card. A nil document yields the defaults.
func FromPreset(doc *preset.Document) Card {
	var data map[string]any
	if doc != nil {
		data = doc.Data
	}
	c := FromData(data)
	c.Front.HeroImage = doc.Asset(c.Front.HeroImage)
	c.Front.Background = backgroundAsset(doc, c.Front.Background)
	c.Back.Background = backgroundAsset(doc, c.Back.Background)
	return c
}

// IsFill reports whether a background value is a color or gradient rather
// than an image reference.
func IsFill(bg string) bool {
	if strings.TrimSpace(bg) == "" {
		return false
	}
	_, err := cssvalue.ParseBackground(bg)
	return err == nil
}

func backgroundAsset(doc *preset.Document, bg string) string {
	if IsFill(bg) {
		return bg
	}
	return doc.Asset(bg)
}

// FromData maps an already decoded document. Asset paths are left as is.
func FromData(data map[string]any) Card {
	var c Card

	if t, ok := binding.Text(data, "meta.title"); ok {
		c.Meta = Meta{Title: clean(t), HasTitle: true}
	}

	c.Front.HeroImage = truthyString(data, "front.hero_image")
	c.Front.Background = truthyString(data, "front.background")
	if t, ok := binding.Text(data, "front.title_text"); ok {
		c.Front.TitleText = clean(t)
	} else {
		c.Front.TitleText = c.Meta.Title
	}
	c.Front.TitleStyle = titleStyle(data)

	c.Back.Background = truthyString(data, "back.background")
	c.Back.BgPanel = truthyString(data, "back.bg_panel")
	c.Back.Typography = typography(data)
	c.Back.Sections = sections(data)
	c.Back.Credits = credits(data)
	return c
}

func titleStyle(data map[string]any) TitleStyle {
	const p = "front.title_style."
	st := TitleStyle{
		FontFamily: truthyString(data, p+"font_family"),
		FontURL:    truthyString(data, p+"font_url"),
		Weight:     truthyString(data, p+"weight"),
		SizeClamp:  truthyString(data, p+"size_clamp"),
		Fill:       truthyString(data, p+"fill"),
		Shadow:     truthyString(data, p+"shadow"),
		Bg:         truthyString(data, p+"bg"),
		Align:      ParseAlign(binding.StringOr(data, p+"align", string(AlignLeftBottom))),
	}
	if v, ok := binding.Number(data, p+"tracking_em"); ok {
		st.TrackingEm = &v
	}
	return st
}

func typography(data map[string]any) Typography {
	const p = "back.typography."
	t := DefaultTypography()
	if v, ok := positive(data, p+"font_size_pt"); ok {
		t.FontSizePt = v
	}
	if v, ok := positive(data, p+"line_height"); ok {
		t.LineHeight = v
	}
	if v, ok := positive(data, p+"columns"); ok {
		t.Columns = max(1, int(math.Round(v)))
	}
	if v, ok := positive(data, p+"column_gap_mm"); ok {
		t.ColumnGapMM = v
	}
	if b, ok := binding.Bool(data, p+"autoshrink"); ok && !b {
		t.AutoShrink = false
	}
	if v, ok := positive(data, p+"min_font_pt"); ok {
		t.MinFontPt = v
	}
	if v, ok := positive(data, p+"min_line_height"); ok {
		t.MinLineHeight = v
	}
	t.MinFontPt = math.Min(t.MinFontPt, t.FontSizePt)
	t.MinLineHeight = math.Min(t.MinLineHeight, t.LineHeight)
	return t
}

func sections(data map[string]any) []Section {
	raw, _ := binding.List(data, "back.sections")
	out := make([]Section, 0, len(raw))
	for _, item := range raw {
		var sec Section
		sec.Heading = clean(truthyString(item, "heading"))
		if l := truthyString(item, "lyrics"); l != "" {
			sec.Lyrics = clean(l)
		} else if lines, ok := binding.List(item, "lines"); ok {
			sec.Lines = make([]Line, 0, len(lines))
			for _, ln := range lines {
				line := Line{}
				if txt, ok := binding.Text(ln, "text"); ok {
					line.Text = clean(txt)
				}
				switch {
				case binding.Truthy(ln, "glitch"):
					line.Style = LineGlitch
				case binding.Truthy(ln, "alt"):
					line.Style = LineAlt
				}
				sec.Lines = append(sec.Lines, line)
			}
		}
		out = append(out, sec)
	}
	return out
}

func credits(data map[string]any) []string {
	raw, _ := binding.List(data, "back.credits")
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item == nil {
			continue
		}
		s, ok := binding.Text(item, "")
		if !ok {
			s = fmt.Sprint(item)
		}
		out = append(out, clean(s))
	}
	return out
}

// truthyString returns the scalar at path as text unless it is falsy.
func truthyString(data any, path string) string {
	if !binding.Truthy(data, path) {
		return ""
	}
	s, _ := binding.Text(data, path)
	return s
}

// positive reads a number, also accepting numeric strings such as "11".
func positive(data any, path string) (float64, bool) {
	if v, ok := binding.Number(data, path); ok {
		return v, v > 0 && !math.IsInf(v, 0)
	}
	if s, ok := binding.String(data, path); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && v > 0 && !math.IsInf(v, 0) {
			return v, true
		}
	}
	return 0, false
}

func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return norm.NFC.String(s)
}
