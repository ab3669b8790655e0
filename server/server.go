// Package server serves rendered cards over HTTP for previewing presets
// in a browser.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ByLCY/lyricard/layout"
	"github.com/ByLCY/lyricard/pipeline"
	"github.com/ByLCY/lyricard/preset"
	"github.com/ByLCY/lyricard/renderer"
)

// ErrOutsideRoot is returned for preset names escaping the preset root.
var ErrOutsideRoot = errors.New("preset outside preset root")

// Options configures a Server.
type Options struct {
	Addr       string
	PresetRoot string
	Pipeline   *pipeline.Pipeline
	Logger     *slog.Logger
}

// Server renders presets from PresetRoot on request.
type Server struct {
	addr     string
	root     string
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// New returns a Server; a nil pipeline uses the defaults.
func New(opts Options) *Server {
	s := &Server{addr: opts.Addr, root: opts.PresetRoot, pipeline: opts.Pipeline, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.pipeline == nil {
		s.pipeline = pipeline.New(pipeline.Options{Logger: s.logger})
	}
	if s.root == "" {
		s.root = filepath.Dir(preset.DefaultPath)
	}
	return s
}

// Handler returns the routes:
//
//	GET /healthz
//	GET /card.pdf?preset=name
//	GET /card/{face}.{png|svg|pdf}?preset=name
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/card.pdf", s.handlePDF)
	r.Get("/card/{file}", s.handleFace)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving cards", "addr", s.addr, "preset_root", s.root)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	job, ok := s.build(w, r)
	if !ok {
		return
	}
	data, err := job.PDF()
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	s.write(w, job, renderer.FormatPDF, data)
}

func (s *Server) handleFace(w http.ResponseWriter, r *http.Request) {
	face, ext, found := strings.Cut(chi.URLParam(r, "file"), ".")
	if !found || (face != layout.FaceFront && face != layout.FaceBack) {
		http.Error(w, "want /card/front.<format> or /card/back.<format>", http.StatusNotFound)
		return
	}
	format, err := renderer.ParseFormat(ext)
	if err != nil || ext == "" {
		http.Error(w, "format must be png, svg or pdf", http.StatusNotFound)
		return
	}
	job, ok := s.build(w, r)
	if !ok {
		return
	}
	data, err := job.Face(face, format)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	s.write(w, job, format, data)
}

func (s *Server) build(w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	path, err := s.presetPath(r.URL.Query().Get("preset"))
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return nil, false
	}
	job, err := s.pipeline.Build(r.Context(), path)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return nil, false
	}
	return job, true
}

// presetPath maps a preset name onto a file under the preset root. Names
// without an extension get ".yml".
func (s *Server) presetPath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = filepath.Base(preset.DefaultPath)
	}
	if strings.Contains(name, "://") || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, name)
	}
	if filepath.Ext(clean) == "" {
		clean += ".yml"
	}
	return filepath.Join(s.root, clean), nil
}

func (s *Server) write(w http.ResponseWriter, job *pipeline.Job, format renderer.Format, data []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	if rep := job.Result.Fit; rep != nil {
		w.Header().Set("X-Lyricard-Fit", rep.Outcome)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "status", status, "err", err,
		"request_id", middleware.GetReqID(r.Context()))
	http.Error(w, err.Error(), status)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
