// Package preset locates and decodes card presets.
//
// Loading is best-effort: read and parse failures are logged and an empty
// document comes back, so a card can still be rendered with defaults.
package preset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-retryablehttp"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/lyricard/fetch"
)

// DefaultPath is used when no preset is requested.
const DefaultPath = "presets/card_unconsciousness.yml"

// Document is a decoded preset.
type Document struct {
	Source  string
	BaseDir string // directory (or URL directory) relative assets resolve against
	Data    map[string]any
}

// Options configures Load.
type Options struct {
	Client *retryablehttp.Client
	Logger *slog.Logger
}

// Resolve turns a user-supplied preset argument into a path or URL. It
// understands bare paths as well as "?preset=x" and "preset=x" query forms.
func Resolve(arg string) string {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return DefaultPath
	}
	if !fetch.IsURL(arg) {
		q := strings.TrimPrefix(arg, "?")
		if strings.HasPrefix(q, "preset=") || strings.Contains(q, "&preset=") {
			values, err := url.ParseQuery(q)
			if err == nil {
				arg = strings.TrimSpace(values.Get("preset"))
			}
		}
	}
	if arg == "" {
		return DefaultPath
	}
	return arg
}

// Load reads and decodes src. It never fails: problems are logged and an
// empty document is returned.
func Load(ctx context.Context, src string, opts Options) *Document {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	doc := &Document{Source: src, BaseDir: baseDir(src), Data: map[string]any{}}

	raw, err := fetch.Read(ctx, opts.Client, src)
	if err != nil {
		logger.Error("preset load failed", "preset", src, "err", err)
		return doc
	}
	data, err := Decode(raw, Format(src))
	if err != nil {
		logger.Error("preset parse failed", "preset", src, "err", err)
		return doc
	}
	doc.Data = data
	return doc
}

// Format guesses the encoding of src from its extension: "yaml", "toml"
// or "json". Unknown extensions are treated as YAML.
func Format(src string) string {
	p := src
	if fetch.IsURL(src) {
		if u, err := url.Parse(src); err == nil {
			p = u.Path
		}
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

// Decode parses raw in the given format. JSON goes through the YAML
// decoder, which accepts it as a subset.
func Decode(raw []byte, format string) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var out any
	switch format {
	case "toml":
		var m map[string]any
		if _, err := toml.Decode(string(raw), &m); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		out = m
	case "yaml", "json":
		if err := yaml.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", format, err)
		}
	default:
		return nil, fmt.Errorf("unknown preset format %q", format)
	}
	if out == nil {
		return map[string]any{}, nil
	}
	m, ok := normalize(out).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("preset root must be a mapping, got %T", out)
	}
	return m, nil
}

// Asset resolves ref relative to the document. URLs, data URIs and
// absolute paths are returned unchanged.
func (d *Document) Asset(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || d == nil || d.BaseDir == "" {
		return ref
	}
	if fetch.IsURL(ref) || strings.HasPrefix(ref, "data:") || filepath.IsAbs(ref) {
		return ref
	}
	if fetch.IsURL(d.BaseDir) {
		base, err := url.Parse(d.BaseDir)
		if err != nil {
			return ref
		}
		rel, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return base.ResolveReference(rel).String()
	}
	return filepath.Join(d.BaseDir, filepath.FromSlash(ref))
}

func baseDir(src string) string {
	if fetch.IsURL(src) {
		u, err := url.Parse(src)
		if err != nil {
			return ""
		}
		u.RawQuery = ""
		u.Fragment = ""
		dir := path.Dir(u.Path)
		if !strings.HasSuffix(dir, "/") {
			dir += "/"
		}
		u.Path = dir
		return u.String()
	}
	return filepath.Dir(src)
}

// normalize rewrites decoder-specific containers into map[string]any and
// []any so path lookups see one shape.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	case []map[string]any:
		l := make([]any, len(t))
		for i, val := range t {
			l[i] = normalize(val)
		}
		return l
	default:
		return v
	}
}
