// Package card renders quote cards and welcome banners.
//
// A [Renderer] wires an avatar [Fetcher], two fonts, and the layout and
// compositing packages into the two pipelines. Render methods return
// in-memory images; Write methods also encode a PNG into the output directory
// with an atomic rename.
package card

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"tools.zach/dev/avatarcard/internal/atomicfile"
	"tools.zach/dev/avatarcard/internal/fetch"
	"tools.zach/dev/avatarcard/internal/layout"
)

// ErrFeatureDisabled is returned by a pipeline switched off in the
// [features] config section.
var ErrFeatureDisabled = errors.New("feature disabled")

// maxNameBytes keeps generated file names under common filesystem limits.
const maxNameBytes = 200

// ///////////////////////////////////////////////
// Collaborators
// ///////////////////////////////////////////////

// Fetcher resolves an avatar or background source into a decoded image.
type Fetcher interface {
	Image(ctx context.Context, src fetch.Source) (image.Image, error)
}

// Font measures and draws text. *typeface.Typeface implements it.
type Font interface {
	Advance(r rune, s layout.Scale) float64
	DrawLine(dst draw.Image, x, y int, text string, s layout.Scale, c color.Color) error
}

// ///////////////////////////////////////////////
// Renderer
// ///////////////////////////////////////////////

// Renderer holds everything both pipelines need. It keeps no per-render
// state, so one Renderer may serve concurrent renders as long as its Fetcher
// and fonts are safe for concurrent use.
type Renderer struct {
	Fetcher Fetcher
	Regular Font
	Italic  Font

	Quote   QuoteLayout
	Welcome WelcomeLayout

	OutputDir string
	Naming    Naming

	QuoteEnabled   bool
	WelcomeEnabled bool
}

// ///////////////////////////////////////////////
// File naming
// ///////////////////////////////////////////////

// Naming selects how quote card files are named.
type Naming string

const (
	// NamingContent names the file after the quoted text: "<content>_phrase.png".
	NamingContent Naming = "content"
	// NamingHash uses the first 16 hex digits of the content's SHA-256.
	NamingHash Naming = "hash"
	// NamingID uses a caller-supplied identifier.
	NamingID Naming = "id"
)

// ParseNaming validates a naming mode name.
func ParseNaming(s string) (Naming, error) {
	switch n := Naming(strings.ToLower(strings.TrimSpace(s))); n {
	case NamingContent, NamingHash, NamingID:
		return n, nil
	default:
		return "", fmt.Errorf("invalid naming %q: must be content, hash, or id", s)
	}
}

// QuoteFileName returns the output file name for a quote card.
func QuoteFileName(n Naming, content, id string) (string, error) {
	switch n {
	case NamingHash:
		return shortHash(content) + "_phrase.png", nil
	case NamingID:
		if strings.TrimSpace(id) == "" {
			return "", fmt.Errorf("naming %q requires an id", n)
		}
		return sanitizeName(id) + "_phrase.png", nil
	case NamingContent, "":
		return sanitizeName(content) + "_phrase.png", nil
	default:
		return "", fmt.Errorf("invalid naming %q", n)
	}
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// sanitizeName keeps s inside one directory entry: separators and control
// characters become '_', and the result is cut to maxNameBytes on a rune
// boundary.
func sanitizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == 0:
			return '_'
		case r < 0x20 || r == 0x7f:
			return '_'
		}
		return r
	}, s)
	if len(s) <= maxNameBytes {
		return s
	}
	cut := maxNameBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ///////////////////////////////////////////////
// Colors
// ///////////////////////////////////////////////

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA" (the '#' is optional).
func ParseHexColor(hex string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: must be 6 or 8 hex digits", hex)
	}
	var ch [4]uint8
	ch[3] = 0xff
	for i := 0; i < len(h)/2; i++ {
		v, err := strconv.ParseUint(h[2*i:2*i+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
		}
		ch[i] = uint8(v)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

// ///////////////////////////////////////////////
// Output
// ///////////////////////////////////////////////

// writePNG encodes img to dir/name atomically and returns the full path.
func writePNG(dir, name string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	err := atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		return enc.Encode(w, img)
	})
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	slog.Info("image written", "path", path, "size", img.Bounds().Size())
	return path, nil
}
