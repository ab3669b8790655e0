// Package pipeline chains preset loading, data mapping, layout and
// rendering. The CLI, the watcher and the server all go through it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ByLCY/lyricard/card"
	"github.com/ByLCY/lyricard/config"
	"github.com/ByLCY/lyricard/fetch"
	"github.com/ByLCY/lyricard/fonts"
	"github.com/ByLCY/lyricard/layout"
	"github.com/ByLCY/lyricard/preset"
	"github.com/ByLCY/lyricard/renderer"
	canvasrenderer "github.com/ByLCY/lyricard/renderer/canvas"
)

// Options configures a Pipeline.
type Options struct {
	Config *config.Config
	// ConfigDir resolves relative font paths from the settings file.
	ConfigDir string
	Client    *retryablehttp.Client
	Fetcher   *fonts.Fetcher
	Logger    *slog.Logger
	Debug     layout.DebugOptions
}

// Pipeline turns preset references into rendered cards.
type Pipeline struct {
	cfg       *config.Config
	configDir string
	client    *retryablehttp.Client
	fetcher   *fonts.Fetcher
	logger    *slog.Logger
	debug     layout.DebugOptions
}

// New builds a pipeline; missing options take their defaults.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		cfg:       opts.Config,
		configDir: opts.ConfigDir,
		client:    opts.Client,
		fetcher:   opts.Fetcher,
		logger:    opts.Logger,
		debug:     opts.Debug,
	}
	if p.cfg == nil {
		p.cfg = config.Default()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.client == nil {
		p.client = fetch.NewClient(fetch.Options{Timeout: p.cfg.HTTP.Timeout, RetryMax: p.cfg.HTTP.Retries, Logger: p.logger})
	}
	if p.fetcher == nil {
		p.fetcher = fonts.NewFetcher(fonts.FetcherOptions{Client: p.client, CacheDir: p.cfg.Fonts.CacheDir, Logger: p.logger})
	}
	return p
}

// Job is a laid out card ready to be encoded.
type Job struct {
	Source string
	Card   card.Card
	Result *layout.Result

	r *canvasrenderer.Renderer
}

// File is one encoded output.
type File struct {
	Name string
	Data []byte
}

// Build loads the preset referenced by arg (path, URL or ?preset= form) and
// lays it out. Preset problems are logged and produce a default card; only
// layout configuration errors are returned.
func (p *Pipeline) Build(ctx context.Context, arg string) (*Job, error) {
	src := preset.Resolve(arg)
	doc := preset.Load(ctx, src, preset.Options{Client: p.client, Logger: p.logger})
	c := card.FromPreset(doc)

	sheet, err := p.cfg.SheetSize()
	if err != nil {
		return nil, err
	}
	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		Context: ctx,
		BaseDir: ".",
		Client:  p.client,
		Fetcher: p.fetcher,
		DPMM:    p.cfg.Output.DPMM,
		Logger:  p.logger,
	})
	result, err := layout.BuildCard(c, layout.BuildOptions{
		Typesetter: r,
		Sheet:      sheet,
		Fit:        p.cfg.FitOptions(),
		Fonts:      p.cfg.FontOverrides(p.configDir),
		Logger:     p.logger.With("preset", src),
		Debug:      p.debug,
	})
	if err != nil {
		return nil, fmt.Errorf("布局计算失败: %w", err)
	}
	if rep := result.Fit; rep != nil {
		p.logger.Info("card laid out", "preset", src, "fit", rep.Outcome,
			"font_pt", rep.FinalPt, "line_height", rep.FinalLH, "overflow_mm", rep.Overflow)
	}
	return &Job{Source: src, Card: c, Result: result, r: r}, nil
}

// PDF renders both faces into one PDF.
func (j *Job) PDF() ([]byte, error) {
	out, err := j.r.Render(j.Result)
	if err != nil {
		return nil, fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	return out, nil
}

// Face renders one face in format.
func (j *Job) Face(face string, format renderer.Format) ([]byte, error) {
	return j.r.RenderFace(j.Result, face, format)
}

// Files encodes the job as named outputs: name.pdf for PDF, or
// name-front.ext and name-back.ext for image formats.
func (j *Job) Files(name string, format renderer.Format) ([]File, error) {
	if format == renderer.FormatPDF || format == "" {
		data, err := j.PDF()
		if err != nil {
			return nil, err
		}
		return []File{{Name: name + ".pdf", Data: data}}, nil
	}
	var files []File
	for _, face := range []string{layout.FaceFront, layout.FaceBack} {
		data, err := j.Face(face, format)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: fmt.Sprintf("%s-%s.%s", name, face, format), Data: data})
	}
	return files, nil
}

// Name derives an output base name from a preset source, e.g.
// "presets/card_unconsciousness.yml" → "card_unconsciousness".
func Name(src string) string {
	base := src
	if fetch.IsURL(src) {
		base = path.Base(strings.SplitN(strings.SplitN(src, "?", 2)[0], "#", 2)[0])
	} else {
		base = filepath.Base(src)
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "card"
	}
	return base
}
