package fonts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tdewolff/font"

	"github.com/ByLCY/lyricard/atomicfile"
	"github.com/ByLCY/lyricard/fetch"
)

var (
	fontFaceRe   = regexp.MustCompile(`(?s)@font-face\s*\{(.*?)\}`)
	fontWeightRe = regexp.MustCompile(`font-weight:\s*(\d+)(?:\s+(\d+))?`)
	fontSrcRe    = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)
)

// Fetcher downloads web fonts referenced by a stylesheet (Google Fonts
// style), converts them to SFNT and caches them in memory and on disk.
type Fetcher struct {
	client   *retryablehttp.Client
	cacheDir string
	logger   *slog.Logger

	mu  sync.Mutex
	mem map[string][]byte
}

// FetcherOptions configures NewFetcher.
type FetcherOptions struct {
	Client   *retryablehttp.Client
	CacheDir string // empty disables the disk cache
	Logger   *slog.Logger
}

// NewFetcher returns a Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: opts.Client, cacheDir: opts.CacheDir, logger: logger, mem: map[string][]byte{}}
}

// FontFace is one @font-face rule of a stylesheet.
type FontFace struct {
	WeightMin, WeightMax int
	URL                  string
}

// ParseStylesheet extracts @font-face rules. Relative URLs are resolved
// against base.
func ParseStylesheet(css, base string) []FontFace {
	baseURL, _ := url.Parse(base)
	var out []FontFace
	for _, m := range fontFaceRe.FindAllStringSubmatch(css, -1) {
		body := m[1]
		src := fontSrcRe.FindStringSubmatch(body)
		if src == nil {
			continue
		}
		ff := FontFace{WeightMin: 400, WeightMax: 400, URL: src[1]}
		if w := fontWeightRe.FindStringSubmatch(body); w != nil {
			ff.WeightMin, _ = strconv.Atoi(w[1])
			ff.WeightMax = ff.WeightMin
			if w[2] != "" {
				ff.WeightMax, _ = strconv.Atoi(w[2])
			}
		}
		if baseURL != nil {
			if ref, err := url.Parse(ff.URL); err == nil {
				ff.URL = baseURL.ResolveReference(ref).String()
			}
		}
		out = append(out, ff)
	}
	return out
}

// pick returns the face covering weight, else the first one.
func pick(faces []FontFace, weight int) (FontFace, bool) {
	if len(faces) == 0 {
		return FontFace{}, false
	}
	for _, f := range faces {
		if weight >= f.WeightMin && weight <= f.WeightMax {
			return f, true
		}
	}
	return faces[0], true
}

// Fetch returns SFNT bytes for the face of cssURL closest to weight.
func (f *Fetcher) Fetch(ctx context.Context, cssURL string, weight int) ([]byte, error) {
	key := cacheKey(cssURL, weight)

	f.mu.Lock()
	if data, ok := f.mem[key]; ok {
		f.mu.Unlock()
		return data, nil
	}
	f.mu.Unlock()

	cacheFile := ""
	if f.cacheDir != "" {
		cacheFile = filepath.Join(f.cacheDir, key+".ttf")
		if data, err := os.ReadFile(cacheFile); err == nil {
			f.remember(key, data)
			return data, nil
		}
	}

	css, err := fetch.Get(ctx, f.client, cssURL)
	if err != nil {
		return nil, fmt.Errorf("fetching font stylesheet: %w", err)
	}
	face, ok := pick(ParseStylesheet(string(css), cssURL), weight)
	if !ok {
		return nil, fmt.Errorf("no @font-face in %s", cssURL)
	}
	data, err := fetch.Get(ctx, f.client, face.URL)
	if err != nil {
		return nil, fmt.Errorf("downloading font file: %w", err)
	}
	if !isSFNT(data) {
		sfnt, err := font.ToSFNT(data)
		if err != nil {
			return nil, fmt.Errorf("converting %s to SFNT: %w", face.URL, err)
		}
		data = sfnt
	}

	if cacheFile != "" {
		if err := atomicfile.Write(cacheFile, data, 0o644); err != nil {
			f.logger.Warn("failed to cache font", "path", cacheFile, "err", err)
		}
	}
	f.remember(key, data)
	f.logger.Debug("fetched web font", "css", cssURL, "weight", weight, "src", face.URL, "bytes", len(data))
	return data, nil
}

func (f *Fetcher) remember(key string, data []byte) {
	f.mu.Lock()
	f.mem[key] = data
	f.mu.Unlock()
}

func cacheKey(cssURL string, weight int) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(cssURL) + "|" + strconv.Itoa(weight)))
	return hex.EncodeToString(sum[:12])
}

// isSFNT reports whether data already is a TrueType/OpenType file.
func isSFNT(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	switch string(data[:4]) {
	case "\x00\x01\x00\x00", "OTTO", "true", "ttcf":
		return true
	}
	return false
}
