package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/pflag"
	"golang.org/x/term"
	"pkt.systems/version"

	"github.com/ByLCY/lyricard/atomicfile"
	"github.com/ByLCY/lyricard/config"
	"github.com/ByLCY/lyricard/fetch"
	"github.com/ByLCY/lyricard/layout"
	"github.com/ByLCY/lyricard/logger"
	"github.com/ByLCY/lyricard/pipeline"
	"github.com/ByLCY/lyricard/preset"
	"github.com/ByLCY/lyricard/preview"
	"github.com/ByLCY/lyricard/renderer"
	"github.com/ByLCY/lyricard/server"
	"github.com/ByLCY/lyricard/watch"
)

func init() {
	version.SetDefaultModule("github.com/ByLCY/lyricard")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath    string
	presets       []string
	output        string
	outDir        string
	format        string
	sheet         string
	debug         bool
	debugRawUnits bool
	guides        bool
	preview       bool
	watch         bool
	serve         string
	logLevel      string
	logFile       string
	noColor       bool
	showVersion   bool
}

// run 解析参数并串联加载、布局与渲染，返回进程退出码。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	flags := pflag.NewFlagSet("lyricard", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&o.configPath, "config", "c", "", "Settings file (TOML)")
	flags.StringArrayVarP(&o.presets, "preset", "p", nil, "Preset path, URL or ?preset= form (repeatable)")
	flags.StringVarP(&o.output, "output", "o", "", "Output file for a single preset (- for stdout)")
	flags.StringVarP(&o.outDir, "out-dir", "d", "", "Output directory (default from settings)")
	flags.StringVarP(&o.format, "format", "f", "", "Output format: pdf|svg|png")
	flags.StringVar(&o.sheet, "sheet", "", "Card size: cd|postcard|a6|square|business")
	flags.BoolVar(&o.debug, "debug", false, "Write the layout as <name>.layout.json next to the output")
	flags.BoolVar(&o.debugRawUnits, "debug-raw-units", false, "Include debug.rawUnits in the layout JSON")
	flags.BoolVar(&o.guides, "guides", false, "Draw column and available-height guides on the back")
	flags.BoolVar(&o.preview, "preview", false, "Print a text preview to stdout (stderr with -o -)")
	flags.BoolVarP(&o.watch, "watch", "w", false, "Re-render when local presets change")
	flags.StringVar(&o.serve, "serve", "", "Serve cards over HTTP on addr (e.g. 127.0.0.1:8080)")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error")
	flags.StringVar(&o.logFile, "log-file", "", "Also write JSON logs to this file (rotated)")
	flags.BoolVar(&o.noColor, "no-color", false, "Disable colored log output")
	flags.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	flags.SetInterspersed(true)
	flags.Usage = func() {
		fmt.Fprintln(stderr, version.Module(), version.Current())
		fmt.Fprintf(stderr, "Usage: lyricard [flags] [presets...]\n")
		fmt.Fprintf(stderr, "\nPresets may be paths, URLs, ?preset= query forms or globs such as 'presets/**/*.yml'.\n")
		fmt.Fprintf(stderr, "Without presets %s is rendered.\n", preset.DefaultPath)
		fmt.Fprintln(stderr, "\nFlags:")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.showVersion {
		fmt.Fprintln(stdout, version.Module(), version.Current())
		return 0
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load settings: %v\n", err)
		return 1
	}
	if err := o.apply(cfg); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	log, closer, err := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Log.Level),
		Console:   stderr,
		NoColor:   o.noColor || !isTerminal(stderr),
		File:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
	})
	if err != nil {
		fmt.Fprintf(stderr, "init logging: %v\n", err)
		return 1
	}
	defer closer.Close()

	configDir := ""
	if o.configPath != "" {
		configDir = filepath.Dir(o.configPath)
	}
	p := pipeline.New(pipeline.Options{
		Config:    cfg,
		ConfigDir: configDir,
		Client:    fetch.NewClient(fetch.Options{Timeout: cfg.HTTP.Timeout, RetryMax: cfg.HTTP.Retries, Logger: log}),
		Logger:    log,
		Debug:     layout.DebugOptions{RawUnits: o.debugRawUnits, Guides: o.guides},
	})

	if o.serve != "" {
		srv := server.New(server.Options{Addr: o.serve, PresetRoot: cfg.Server.PresetRoot, Pipeline: p, Logger: log})
		if err := srv.ListenAndServe(ctx); err != nil {
			log.Error("server stopped", "err", err)
			return 1
		}
		return 0
	}

	sources, err := expandPresets(append(o.presets, flags.Args()...))
	if err != nil {
		log.Error("invalid preset argument", "err", err)
		return 2
	}
	format, _ := renderer.ParseFormat(cfg.Output.Format)
	if o.output != "" && len(sources) > 1 {
		log.Error("--output needs exactly one preset", "presets", len(sources))
		return 2
	}
	if o.output == "-" && format == renderer.FormatPDF && isTerminal(stdout) {
		fmt.Fprintln(stderr, "refusing to write PDF to terminal; redirect stdout or use -o <file>")
		return 2
	}
	if o.output == "-" && format != renderer.FormatPDF {
		log.Error("stdout output supports pdf only", "format", format)
		return 2
	}

	r := &runner{p: p, cfg: cfg, opts: o, format: format, stdout: stdout, stderr: stderr, log: log}
	failed := 0
	for _, src := range sources {
		if err := r.render(ctx, src); err != nil {
			log.Error("render failed", "preset", src, "err", err)
			failed++
		}
	}

	if o.watch {
		return r.watch(ctx, sources)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// apply 将命令行覆盖写入配置并重新校验。
func (o options) apply(cfg *config.Config) error {
	if o.outDir != "" {
		cfg.Output.Dir = o.outDir
	}
	if o.format != "" {
		cfg.Output.Format = strings.ToLower(o.format)
	}
	if o.sheet != "" {
		cfg.Sheet.Size = o.sheet
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	return cfg.Validate()
}

type runner struct {
	p      *pipeline.Pipeline
	cfg    *config.Config
	opts   options
	format renderer.Format
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
}

func (r *runner) render(ctx context.Context, src string) error {
	job, err := r.p.Build(ctx, src)
	if err != nil {
		return err
	}
	name := pipeline.Name(job.Source)

	if r.opts.preview {
		// -o - 时 stdout 只能是 PDF 字节流
		w := r.stdout
		if r.opts.output == "-" {
			w = r.stderr
		}
		fmt.Fprintln(w, preview.Text(job.Card, job.Result, preview.TerminalWidth(w, preview.DefaultWidth)))
	}

	if r.opts.output == "-" {
		data, err := job.PDF()
		if err != nil {
			return err
		}
		_, err = r.stdout.Write(data)
		return err
	}

	dir, base := r.cfg.Output.Dir, name
	if r.opts.output != "" {
		dir = filepath.Dir(r.opts.output)
		base = strings.TrimSuffix(filepath.Base(r.opts.output), filepath.Ext(r.opts.output))
	}
	files, err := job.Files(base, r.format)
	if err != nil {
		return err
	}
	if r.opts.output != "" && r.format == renderer.FormatPDF {
		files[0].Name = filepath.Base(r.opts.output)
	}
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := atomicfile.Write(path, f.Data, 0o644); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", path, err)
		}
		r.log.Info("wrote card", "preset", job.Source, "path", path, "bytes", len(f.Data))
	}
	if r.opts.debug {
		path := filepath.Join(dir, base+".layout.json")
		if err := layout.WriteDebugJSON(job.Result, path); err != nil {
			return fmt.Errorf("输出调试 JSON 失败: %w", err)
		}
	}
	return nil
}

func (r *runner) watch(ctx context.Context, sources []string) int {
	var local []string
	for _, src := range sources {
		if !fetch.IsURL(src) {
			local = append(local, src)
		}
	}
	if len(local) == 0 {
		r.log.Error("--watch needs at least one local preset")
		return 2
	}
	w, err := watch.New(local, watch.Options{Logger: r.log})
	if err != nil {
		r.log.Error("watch failed", "err", err)
		return 1
	}
	r.log.Info("watching presets", "count", len(local), "polling", w.Polling())
	err = w.Run(ctx, func(path string) {
		if err := r.render(ctx, path); err != nil {
			r.log.Error("render failed", "preset", path, "err", err)
		}
	})
	if err != nil {
		r.log.Error("watch stopped", "err", err)
		return 1
	}
	return 0
}

// expandPresets resolves query forms and expands doublestar globs. URLs are
// kept as given. No arguments selects the default preset.
func expandPresets(args []string) ([]string, error) {
	if len(args) == 0 {
		return []string{preset.DefaultPath}, nil
	}
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, arg := range args {
		src := preset.Resolve(arg)
		if fetch.IsURL(src) || !strings.ContainsAny(src, "*?[{") {
			add(src)
			continue
		}
		matches, err := doublestar.FilepathGlob(src)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", src, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("glob %q matched no presets", src)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
