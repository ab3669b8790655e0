// Package preview prints a plain text rendition of a laid out card: the
// title, the fit report and the back face text in column order.
package preview

import (
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/ByLCY/lyricard/card"
	"github.com/ByLCY/lyricard/layout"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 80

// TerminalWidth returns the width of w when it is a terminal, then $COLUMNS,
// then fallback.
func TerminalWidth(w io.Writer, fallback int) int {
	if f, ok := w.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			if width, _, err := term.GetSize(fd); err == nil && width > 0 {
				return width
			}
		}
	}
	if value := os.Getenv("COLUMNS"); value != "" {
		if width, err := strconv.Atoi(value); err == nil && width > 0 {
			return width
		}
	}
	return fallback
}

// Text renders c and its layout result wrapped at width columns.
func Text(c card.Card, res *layout.Result, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	body := max(width-2, 10)
	var b strings.Builder

	fmt.Fprintf(&b, "== %s ==\n", c.DocumentTitle())
	if front := res.Page(layout.FaceFront); front != nil {
		fmt.Fprintf(&b, "front  %gx%gmm", front.Width, front.Height)
		if title := frontTitle(front); title != "" {
			fmt.Fprintf(&b, "  title %q", title)
		}
		b.WriteByte('\n')
	}
	if rep := res.Fit; rep != nil {
		b.WriteString(FitLine(rep))
		b.WriteByte('\n')
	}

	back := res.Page(layout.FaceBack)
	if back == nil {
		return b.String()
	}
	texts := back.Texts
	var credits []string
	// 署名块（标题 + 正文两个文本框）总是排在背面最后
	if len(c.Back.Credits) > 0 && len(texts) >= 2 {
		for _, tb := range texts[len(texts)-2:] {
			credits = append(credits, lineContents(tb)...)
		}
		texts = texts[:len(texts)-2]
	}
	columns := splitColumns(texts)
	for i, col := range columns {
		fmt.Fprintf(&b, "\n[column %d]\n", i+1)
		b.WriteString(indent.String(wordwrap.String(strings.Join(col, "\n"), body), 2))
		b.WriteByte('\n')
	}
	if len(credits) > 0 {
		b.WriteByte('\n')
		b.WriteString(indent.String(wordwrap.String(strings.Join(credits, "\n"), body), 2))
		b.WriteByte('\n')
	}
	return b.String()
}

// FitLine summarises a fit report on one line.
func FitLine(rep *layout.FitReport) string {
	s := fmt.Sprintf("back   %s  %.2fpt/%.2f", rep.Outcome, rep.FinalPt, rep.FinalLH)
	if rep.FinalPt != rep.StartPt || rep.FinalLH != rep.StartLH {
		s += fmt.Sprintf(" (from %.2fpt/%.2f)", rep.StartPt, rep.StartLH)
	}
	s += fmt.Sprintf("  %d iterations  content %.1f/%.1fmm", rep.Iterations, rep.Content, rep.Available)
	if rep.Overflow > 0 {
		s += fmt.Sprintf("  overflow %.1fmm", rep.Overflow)
	}
	return s
}

func frontTitle(p *layout.Page) string {
	for _, tb := range p.Texts {
		if tb.Font == layout.FontTitle {
			return tb.Content
		}
	}
	return ""
}

// splitColumns groups lyric rows by column (x position) in reading order.
func splitColumns(texts []layout.TextBox) [][]string {
	type row struct {
		x, y float64
		text string
	}
	var rows []row
	for _, tb := range texts {
		rows = append(rows, row{x: math.Round(tb.X*100) / 100, y: tb.Y, text: strings.Join(lineContents(tb), "\n")})
	}
	slices.SortStableFunc(rows, func(a, b row) int {
		if a.x != b.x {
			return cmpFloat(a.x, b.x)
		}
		return cmpFloat(a.y, b.y)
	})
	var columns [][]string
	lastX := math.Inf(-1)
	for _, r := range rows {
		if r.x != lastX {
			columns = append(columns, nil)
			lastX = r.x
		}
		columns[len(columns)-1] = append(columns[len(columns)-1], r.text)
	}
	return columns
}

func lineContents(tb layout.TextBox) []string {
	if len(tb.Lines) == 0 {
		return []string{tb.Content}
	}
	out := make([]string, len(tb.Lines))
	for i, ln := range tb.Lines {
		out[i] = ln.Content
	}
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
