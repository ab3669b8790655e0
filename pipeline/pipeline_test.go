package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/lyricard/config"
	"github.com/ByLCY/lyricard/layout"
	"github.com/ByLCY/lyricard/renderer"
)

const samplePreset = `
meta:
  title: Unconsciousness
front:
  background: "#101018"
  title_style:
    weight: 700
    align: left-bottom
back:
  typography:
    font_size_pt: 10.5
  sections:
    - heading: Verse 1
      lyrics: |
        first line
        second line
    - lines:
        - text: echo
          glitch: true
  credits:
    - "Words: A"
`

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Fonts.CacheDir = ""
	cfg.Output.DPMM = 1
	return New(Options{Config: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func writePreset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unconsciousness.yml")
	if err := os.WriteFile(path, []byte(samplePreset), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return path
}

func TestBuildAndEncode(t *testing.T) {
	p := newTestPipeline(t)
	src := writePreset(t)
	job, err := p.Build(context.Background(), "?preset="+src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if job.Source != src {
		t.Fatalf("source = %q, want %q", job.Source, src)
	}
	if job.Card.Meta.Title != "Unconsciousness" || len(job.Card.Back.Sections) != 2 {
		t.Fatalf("unexpected card: %+v", job.Card)
	}
	if job.Result.Fit == nil || !job.Result.Fit.Fits() {
		t.Fatalf("short lyrics should fit: %+v", job.Result.Fit)
	}

	files, err := job.Files("unconsciousness", renderer.FormatPDF)
	if err != nil {
		t.Fatalf("Files(pdf): %v", err)
	}
	if len(files) != 1 || files[0].Name != "unconsciousness.pdf" || !bytes.HasPrefix(files[0].Data, []byte("%PDF")) {
		t.Fatalf("unexpected pdf output: %d files", len(files))
	}

	files, err = job.Files("unconsciousness", renderer.FormatSVG)
	if err != nil {
		t.Fatalf("Files(svg): %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"unconsciousness-front.svg", "unconsciousness-back.svg"}, names); diff != "" {
		t.Fatalf("svg names mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMissingPresetStillRenders(t *testing.T) {
	p := newTestPipeline(t)
	job, err := p.Build(context.Background(), filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(job.Result.Pages) != 2 || job.Result.Page(layout.FaceBack) == nil {
		t.Fatalf("expected both faces for an empty document")
	}
	if job.Card.DocumentTitle() == "" {
		t.Fatalf("document title should never be empty")
	}
}

func TestBuildRejectsBadSheet(t *testing.T) {
	cfg := config.Default()
	cfg.Sheet.Size = "poster"
	p := New(Options{Config: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if _, err := p.Build(context.Background(), writePreset(t)); err == nil {
		t.Fatalf("expected error for unknown sheet")
	}
}

func TestName(t *testing.T) {
	for src, want := range map[string]string{
		"presets/card_unconsciousness.yml":           "card_unconsciousness",
		"https://example.com/p/card.toml?x=1#top":    "card",
		"https://example.com/p/night.json":           "night",
		"":                                           "card",
		filepath.Join("a", "b", "lyrics.final.yaml"): "lyrics.final",
	} {
		if got := Name(src); got != want {
			t.Fatalf("Name(%q) = %q, want %q", src, got, want)
		}
	}
}
