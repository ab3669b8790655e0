package preview

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ByLCY/lyricard/card"
	"github.com/ByLCY/lyricard/layout"
)

func box(x, y float64, font string, lines ...string) layout.TextBox {
	tb := layout.TextBox{X: x, Y: y, Font: font, Content: strings.Join(lines, "\n")}
	for _, l := range lines {
		tb.Lines = append(tb.Lines, layout.TextLine{Content: l})
	}
	return tb
}

func sample() (card.Card, *layout.Result) {
	c := card.Card{
		Meta: card.Meta{Title: "Unconsciousness", HasTitle: true},
		Back: card.Back{Credits: []string{"Words: A"}},
	}
	res := &layout.Result{
		Pages: []layout.Page{
			{Face: layout.FaceFront, Width: 120, Height: 120, Texts: []layout.TextBox{box(8, 90, layout.FontTitle, "Unconsciousness")}},
			{Face: layout.FaceBack, Width: 120, Height: 120, Texts: []layout.TextBox{
				box(63, 8, layout.FontBody, "second column"),
				box(8, 12, layout.FontBody, "first line"),
				box(8, 8, layout.FontHeading, "Verse"),
				box(8, 100, layout.FontHeading, "Credits"),
				box(8, 103, layout.FontBody, "Words: A"),
			}},
		},
		Fit: &layout.FitReport{Outcome: "fit", StartPt: 10.5, StartLH: 1.35, FinalPt: 9.5, FinalLH: 1.35, Iterations: 2, Content: 80, Available: 90, Overflow: -10},
	}
	return c, res
}

func TestTextColumnOrder(t *testing.T) {
	c, res := sample()
	out := Text(c, res, 80)
	for _, want := range []string{"== Unconsciousness - Card ==", `title "Unconsciousness"`, "fit  9.50pt/1.35 (from 10.50pt/1.35)", "[column 1]", "[column 2]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("preview missing %q:\n%s", want, out)
		}
	}
	verse := strings.Index(out, "Verse")
	first := strings.Index(out, "first line")
	second := strings.Index(out, "second column")
	credits := strings.Index(out, "Credits")
	if !(verse < first && first < second && second < credits) {
		t.Fatalf("rows out of reading order:\n%s", out)
	}
	if strings.Contains(out, "overflow") {
		t.Fatalf("fitting card should not report overflow:\n%s", out)
	}
}

func TestTextWrapsToWidth(t *testing.T) {
	c, res := sample()
	back := res.Page(layout.FaceBack)
	back.Texts[1] = box(8, 12, layout.FontBody, "a fairly long lyric line that must wrap somewhere")
	out := Text(c, res, 24)
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "  ") && len(line) > 24 {
			t.Fatalf("line exceeds width: %q", line)
		}
	}
}

func TestFitLineOverflow(t *testing.T) {
	got := FitLine(&layout.FitReport{Outcome: "fit-at-minimum", StartPt: 10.5, StartLH: 1.35, FinalPt: 8, FinalLH: 1.25, Iterations: 10, Content: 120, Available: 90, Overflow: 30})
	if !strings.Contains(got, "fit-at-minimum") || !strings.Contains(got, "overflow 30.0mm") {
		t.Fatalf("FitLine = %q", got)
	}
}

func TestTerminalWidthFallback(t *testing.T) {
	t.Setenv("COLUMNS", "")
	if got := TerminalWidth(&bytes.Buffer{}, 72); got != 72 {
		t.Fatalf("width = %d, want fallback 72", got)
	}
	t.Setenv("COLUMNS", "100")
	if got := TerminalWidth(&bytes.Buffer{}, 72); got != 100 {
		t.Fatalf("width = %d, want $COLUMNS 100", got)
	}
}
