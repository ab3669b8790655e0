// Package config loads the lyricard settings file.
//
// Settings are read from a TOML file (--config). Every key is optional and
// falls back to [Default]; unknown keys are rejected so typos surface early.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ByLCY/lyricard/fit"
	"github.com/ByLCY/lyricard/layout"
	"github.com/ByLCY/lyricard/renderer"
)

// Config represents the top-level settings.
type Config struct {
	// Sheet selects the physical card size.
	Sheet SheetConfig `toml:"sheet"`
	// Fit tunes the back-face shrink loop.
	Fit FitConfig `toml:"fit"`
	// Output controls where and how cards are written.
	Output OutputConfig `toml:"output"`
	// Fonts overrides the built-in faces.
	Fonts FontsConfig `toml:"fonts"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
	// HTTP holds settings for preset, image and font downloads.
	HTTP HTTPConfig `toml:"http"`
	// Server holds settings for --serve.
	Server ServerConfig `toml:"server"`
}

// SheetConfig selects a named size and optionally overrides its dimensions.
type SheetConfig struct {
	// Size is one of layout.Sheets (cd, postcard, a6, square, business).
	Size string `toml:"size"`
	// WidthMM and HeightMM override the named size when positive.
	WidthMM  float64 `toml:"width_mm"`
	HeightMM float64 `toml:"height_mm"`
	// PaddingMM overrides the inner padding when set.
	PaddingMM *float64 `toml:"padding_mm,omitempty"`
}

// FitConfig holds the shrink loop steps and cap.
type FitConfig struct {
	// StepPt is the font size decrement per iteration.
	StepPt float64 `toml:"step_pt"`
	// LineHeightStep is the line height decrement once font size hits its floor.
	LineHeightStep float64 `toml:"line_height_step"`
	// MaxIterations caps the number of applies.
	MaxIterations int `toml:"max_iterations"`
	// ReservedMarginMM is kept free between the lyrics and the credits block.
	ReservedMarginMM float64 `toml:"reserved_margin_mm"`
}

// OutputConfig holds output settings.
type OutputConfig struct {
	// Format is pdf, svg or png. svg and png write one file per face.
	Format string `toml:"format"`
	// Dir is the output directory for batch rendering.
	Dir string `toml:"dir"`
	// DPMM is the PNG resolution in dots per millimetre.
	DPMM float64 `toml:"dpmm"`
}

// FontsConfig holds font source overrides (file paths or embed:go/* names).
type FontsConfig struct {
	Body    string `toml:"body,omitempty"`
	Heading string `toml:"heading,omitempty"`
	Alt     string `toml:"alt,omitempty"`
	Title   string `toml:"title,omitempty"`
	// CacheDir stores fonts downloaded through font_url.
	CacheDir string `toml:"cache_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// File enables a rotating JSON log file when set.
	File string `toml:"file,omitempty"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// HTTPConfig holds download settings.
type HTTPConfig struct {
	Timeout time.Duration `toml:"timeout"`
	Retries int           `toml:"retries"`
}

// ServerConfig holds settings for the preview server.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// PresetRoot is the only directory the server reads presets from.
	PresetRoot string `toml:"preset_root"`
}

// Default returns the built-in settings.
func Default() *Config {
	cacheDir := ""
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "lyricard", "fonts")
	}
	return &Config{
		Sheet: SheetConfig{Size: layout.DefaultSheet().Name},
		Fit: FitConfig{
			StepPt:           fit.DefaultStep,
			LineHeightStep:   fit.DefaultLineHeightStep,
			MaxIterations:    fit.DefaultMaxIterations,
			ReservedMarginMM: layout.DefaultReservedMargin,
		},
		Output: OutputConfig{Format: string(renderer.FormatPDF), Dir: "output", DPMM: 300 / 25.4},
		Fonts:  FontsConfig{CacheDir: cacheDir},
		Log:    LogConfig{Level: "info", MaxSizeMB: 10},
		HTTP:   HTTPConfig{Timeout: 15 * time.Second, Retries: 2},
		Server: ServerConfig{Addr: "127.0.0.1:8080", PresetRoot: "presets"},
	}
}

// Load reads the settings file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.SheetSize(); err != nil {
		errs = append(errs, err)
	}
	if c.Fit.StepPt < fit.MinStep {
		errs = append(errs, fmt.Errorf("fit.step_pt must be at least %g, got %g", fit.MinStep, c.Fit.StepPt))
	}
	if c.Fit.LineHeightStep < fit.MinStep {
		errs = append(errs, fmt.Errorf("fit.line_height_step must be at least %g, got %g", fit.MinStep, c.Fit.LineHeightStep))
	}
	if c.Fit.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("fit.max_iterations must be positive, got %d", c.Fit.MaxIterations))
	}
	if c.Fit.ReservedMarginMM < 0 {
		errs = append(errs, fmt.Errorf("fit.reserved_margin_mm must not be negative, got %g", c.Fit.ReservedMarginMM))
	}
	if _, err := renderer.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, fmt.Errorf("output.format: %w", err))
	}
	if c.Output.DPMM <= 0 {
		errs = append(errs, fmt.Errorf("output.dpmm must be positive, got %g", c.Output.DPMM))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error", c.Log.Level))
	}
	if c.HTTP.Timeout < 0 || c.HTTP.Retries < 0 {
		errs = append(errs, errors.New("http.timeout and http.retries must not be negative"))
	}
	return errors.Join(errs...)
}

// SheetSize resolves the named size plus overrides.
func (c *Config) SheetSize() (layout.Sheet, error) {
	name := strings.ToLower(strings.TrimSpace(c.Sheet.Size))
	if name == "" {
		name = layout.DefaultSheet().Name
	}
	sheet, ok := layout.Sheets[name]
	if !ok {
		return layout.Sheet{}, fmt.Errorf("sheet.size %q is unknown", c.Sheet.Size)
	}
	if c.Sheet.WidthMM > 0 {
		sheet.Width = c.Sheet.WidthMM
	}
	if c.Sheet.HeightMM > 0 {
		sheet.Height = c.Sheet.HeightMM
	}
	if c.Sheet.PaddingMM != nil {
		sheet.Padding = *c.Sheet.PaddingMM
	}
	if !sheet.Valid() {
		return layout.Sheet{}, fmt.Errorf("sheet %gx%gmm with padding %gmm leaves no inner area", sheet.Width, sheet.Height, sheet.Padding)
	}
	return sheet, nil
}

// FitOptions converts the fit section for layout.BuildOptions.
func (c *Config) FitOptions() layout.FitOptions {
	return layout.FitOptions{
		Step:           c.Fit.StepPt,
		LineHeightStep: c.Fit.LineHeightStep,
		MaxIterations:  c.Fit.MaxIterations,
		ReservedMargin: c.Fit.ReservedMarginMM,
	}
}

// FontOverrides returns the configured font sources keyed by layout font
// name. Relative paths resolve against baseDir.
func (c *Config) FontOverrides(baseDir string) map[string]layout.FontResource {
	out := map[string]layout.FontResource{}
	for name, src := range map[string]string{
		layout.FontBody:    c.Fonts.Body,
		layout.FontHeading: c.Fonts.Heading,
		layout.FontAlt:     c.Fonts.Alt,
		layout.FontTitle:   c.Fonts.Title,
	} {
		if src == "" {
			continue
		}
		if !strings.Contains(src, ":") && !filepath.IsAbs(src) && baseDir != "" {
			src = filepath.Join(baseDir, src)
		}
		out[name] = layout.FontResource{Name: name, Src: src}
	}
	return out
}
