package preset

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/lyricard/binding"
	"github.com/ByLCY/lyricard/fetch"
)

const sampleYAML = `
meta:
  title: Unconsciousness
front:
  hero_image: hero.webp
  title_style:
    weight: 700
    tracking_em: 0.08
back:
  typography:
    columns: 3
  sections:
    - heading: Verse 1
      lyrics: "line a\nline b"
    - lines:
        - text: static
          glitch: true
  credits:
    - "Music: Someone"
`

func quietLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestResolve(t *testing.T) {
	cases := map[string]string{
		"":                               DefaultPath,
		"  ":                             DefaultPath,
		"presets/a.yml":                  "presets/a.yml",
		"?preset=presets/b.yml":          "presets/b.yml",
		"preset=presets/c.toml":          "presets/c.toml",
		"x=1&preset=presets/d.yml":       "presets/d.yml",
		"?preset=":                       DefaultPath,
		"https://example.com/?preset=zz": "https://example.com/?preset=zz",
	}
	for in, want := range cases {
		if got := Resolve(in); got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLocalYAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "card.yml")
	if err := os.WriteFile(p, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := Load(context.Background(), p, Options{Logger: quietLogger(io.Discard)})
	if got := binding.StringOr(doc.Data, "meta.title", ""); got != "Unconsciousness" {
		t.Fatalf("meta.title = %q", got)
	}
	if got, ok := binding.Bool(doc.Data, "back.sections[1].lines[0].glitch"); !ok || !got {
		t.Fatalf("glitch flag not decoded")
	}
	if got, ok := binding.Number(doc.Data, "back.typography.columns"); !ok || got != 3 {
		t.Fatalf("columns = %v, %v", got, ok)
	}
	if got := doc.Asset("hero.webp"); got != filepath.Join(dir, "hero.webp") {
		t.Fatalf("asset = %q", got)
	}
}

func TestLoadTOMLArrayOfTables(t *testing.T) {
	raw := []byte(`
[meta]
title = "T"

[[back.sections]]
heading = "A"
lyrics = "x"

[[back.sections]]
heading = "B"
`)
	data, err := Decode(raw, "toml")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sections, ok := binding.List(data, "back.sections")
	if !ok || len(sections) != 2 {
		t.Fatalf("sections = %#v", data["back"])
	}
	if got := binding.StringOr(data, "back.sections[1].heading", ""); got != "B" {
		t.Fatalf("heading = %q", got)
	}
}

func TestDecodeJSONAndErrors(t *testing.T) {
	data, err := Decode([]byte(`{"meta":{"title":"J"}}`), "json")
	if err != nil {
		t.Fatalf("Decode json: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"meta": map[string]any{"title": "J"}}, data); diff != "" {
		t.Fatalf("json mismatch (-want +got):\n%s", diff)
	}
	if _, err := Decode([]byte("- a\n- b\n"), "yaml"); err == nil {
		t.Fatalf("expected error for sequence root")
	}
	if got, err := Decode([]byte("  \n"), "yaml"); err != nil || len(got) != 0 {
		t.Fatalf("empty input = %v, %v", got, err)
	}
}

func TestLoadFailuresYieldEmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/presets/ok.yml":
			_, _ = io.WriteString(w, sampleYAML)
		case "/presets/broken.yml":
			_, _ = io.WriteString(w, "meta: [unclosed")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var buf bytes.Buffer
	opts := Options{Client: fetch.NewClient(fetch.Options{}), Logger: quietLogger(&buf)}

	doc := Load(context.Background(), srv.URL+"/presets/ok.yml", opts)
	if got := binding.StringOr(doc.Data, "meta.title", ""); got != "Unconsciousness" {
		t.Fatalf("remote meta.title = %q", got)
	}
	if got := doc.Asset("hero.webp"); got != srv.URL+"/presets/hero.webp" {
		t.Fatalf("remote asset = %q", got)
	}

	for _, src := range []string{srv.URL + "/presets/missing.yml", srv.URL + "/presets/broken.yml", filepath.Join(t.TempDir(), "nope.yml")} {
		buf.Reset()
		doc := Load(context.Background(), src, opts)
		if doc == nil || len(doc.Data) != 0 {
			t.Fatalf("%s: expected empty document, got %#v", src, doc)
		}
		if !strings.Contains(buf.String(), "level=ERROR") {
			t.Fatalf("%s: failure was not logged: %s", src, buf.String())
		}
	}
}

func TestFormat(t *testing.T) {
	for in, want := range map[string]string{
		"a.yml":                       "yaml",
		"a.YAML":                      "yaml",
		"a.toml":                      "toml",
		"a.json":                      "json",
		"https://x.test/p/a.toml?v=2": "toml",
		"noext":                       "yaml",
	} {
		if got := Format(in); got != want {
			t.Fatalf("Format(%q) = %q, want %q", in, got, want)
		}
	}
}
