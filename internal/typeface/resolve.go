// resolve.go locates a font from a local path, falling back to a bundled Go
// font or a Google Fonts download.
//
// Fallback specs:
//
//	builtin:regular | builtin:italic | builtin:bold | builtin:bolditalic
//	google:FAMILY:WEIGHT          e.g. google:Inter:400
//	google:FAMILY:WEIGHTitalic    e.g. google:Inter:400italic
//
// Downloads are cached under the resolver's cache directory so they are only
// fetched once.

package typeface

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"tools.zach/dev/avatarcard/internal/atomicfile"
)

// ErrNoFont is returned when neither the local path nor the fallback yields a
// usable font.
var ErrNoFont = errors.New("no usable font")

// DefaultCSSURL is the Google Fonts CSS2 endpoint.
const DefaultCSSURL = "https://fonts.googleapis.com/css2"

const (
	maxCSSBytes  = 1 << 20
	maxFontBytes = 10 << 20
)

// fontURLRe extracts the first font file URL from a Google Fonts stylesheet.
var fontURLRe = regexp.MustCompile(`url\((https?://[^)]+)\)`)

var builtins = map[string][]byte{
	"regular":    goregular.TTF,
	"italic":     goitalic.TTF,
	"bold":       gobold.TTF,
	"bolditalic": gobolditalic.TTF,
}

// ///////////////////////////////////////////////
// Fallback specs
// ///////////////////////////////////////////////

// GoogleSpec is a parsed "google:FAMILY:WEIGHT" fallback.
type GoogleSpec struct {
	Family string
	Weight string
	Italic bool
}

// ParseGoogleSpec parses a google fallback spec. ok is false when spec does
// not use the google scheme or is missing a part.
func ParseGoogleSpec(spec string) (GoogleSpec, bool) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] != "google" || parts[1] == "" || parts[2] == "" {
		return GoogleSpec{}, false
	}
	g := GoogleSpec{Family: parts[1], Weight: parts[2]}
	if w, ok := strings.CutSuffix(g.Weight, "italic"); ok {
		g.Weight, g.Italic = w, true
	}
	if g.Weight == "" {
		return GoogleSpec{}, false
	}
	return g, true
}

// query renders the css2 family parameter, e.g. "Inter:ital,wght@1,400".
func (g GoogleSpec) query() string {
	if g.Italic {
		return g.Family + ":ital,wght@1," + g.Weight
	}
	return g.Family + ":wght@" + g.Weight
}

// cacheName is the file the converted font is cached under.
func (g GoogleSpec) cacheName() string {
	name := strings.ReplaceAll(g.Family, " ", "_") + "-" + g.Weight
	if g.Italic {
		name += "-italic"
	}
	return name + ".ttf"
}

// ValidFallback reports whether spec is empty or a recognised fallback.
func ValidFallback(spec string) bool {
	if spec == "" {
		return true
	}
	if name, ok := strings.CutPrefix(spec, "builtin:"); ok {
		_, found := builtins[name]
		return found
	}
	_, ok := ParseGoogleSpec(spec)
	return ok
}

// ///////////////////////////////////////////////
// Resolver
// ///////////////////////////////////////////////

// Resolver loads fonts. Client and CacheDir are only needed for google
// fallbacks.
type Resolver struct {
	Client    *retryablehttp.Client
	CacheDir  string
	CSSURL    string // defaults to DefaultCSSURL
	UserAgent string
}

// Resolve returns the font at path, or the fallback when path is empty or
// cannot be loaded. label names the font in logs.
func (r *Resolver) Resolve(ctx context.Context, label, path, fallback string) (*Typeface, error) {
	var errs []error
	if path != "" {
		tf, err := Load(path)
		if err == nil {
			slog.Debug("font loaded", "font", label, "path", path)
			return tf, nil
		}
		slog.Warn("local font unavailable, trying fallback", "font", label, "path", path, "error", err)
		errs = append(errs, err)
	}

	if fallback != "" {
		tf, err := r.fallback(ctx, fallback)
		if err == nil {
			slog.Debug("font loaded", "font", label, "fallback", fallback)
			return tf, nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%s: %w: set a path or a fallback", label, ErrNoFont)
	}
	return nil, fmt.Errorf("%s: %w: %w", label, ErrNoFont, errors.Join(errs...))
}

func (r *Resolver) fallback(ctx context.Context, spec string) (*Typeface, error) {
	if name, ok := strings.CutPrefix(spec, "builtin:"); ok {
		data, found := builtins[name]
		if !found {
			return nil, fmt.Errorf("unknown builtin font %q", name)
		}
		return Parse("go-"+name+".ttf", data)
	}

	g, ok := ParseGoogleSpec(spec)
	if !ok {
		return nil, fmt.Errorf("invalid font fallback %q: expected builtin:NAME or google:FAMILY:WEIGHT", spec)
	}
	data, err := r.fetchGoogle(ctx, g)
	if err != nil {
		return nil, err
	}
	return Parse(g.cacheName(), data)
}

// fetchGoogle returns SFNT bytes for g, from the cache when present.
func (r *Resolver) fetchGoogle(ctx context.Context, g GoogleSpec) ([]byte, error) {
	cacheFile := ""
	if r.CacheDir != "" {
		cacheFile = filepath.Join(r.CacheDir, g.cacheName())
		if data, err := os.ReadFile(cacheFile); err == nil {
			return data, nil
		}
	}
	if r.Client == nil {
		return nil, fmt.Errorf("google font %s: no http client configured", g.Family)
	}

	base := r.CSSURL
	if base == "" {
		base = DefaultCSSURL
	}
	css, err := r.get(ctx, base+"?family="+url.PathEscape(g.query()), maxCSSBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch google fonts css: %w", err)
	}
	m := fontURLRe.FindSubmatch(css)
	if m == nil {
		return nil, fmt.Errorf("no font URL in google fonts css for %s %s", g.Family, g.Weight)
	}
	fontURL := string(m[1])

	data, err := r.get(ctx, fontURL, maxFontBytes)
	if err != nil {
		return nil, fmt.Errorf("download font file: %w", err)
	}
	data, err = toSFNT(fontURL, data)
	if err != nil {
		return nil, err
	}

	if cacheFile != "" {
		if err := os.MkdirAll(r.CacheDir, 0o755); err != nil {
			slog.Warn("failed to create font cache dir", "error", err)
		} else if err := atomicfile.Write(cacheFile, data, 0o644); err != nil {
			slog.Warn("failed to cache font", "path", cacheFile, "error", err)
		}
	}
	return data, nil
}

func (r *Resolver) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if r.UserAgent != "" {
		// A modern agent makes Google serve WOFF2.
		req.Header.Set("User-Agent", r.UserAgent)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", rawURL, limit)
	}
	return body, nil
}
