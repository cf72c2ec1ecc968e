// Package typeface loads fonts and draws single lines of text.
//
// A [Typeface] answers two questions for the quote card: how wide a rune is
// at a given scale (used by the layout engine) and what a line looks like
// when drawn into a buffer. Fonts may be TTF, OTF, WOFF, or WOFF2; the web
// formats are converted to SFNT on load.
package typeface

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/font"
	"golang.org/x/image/draw"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"tools.zach/dev/avatarcard/internal/layout"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Typeface is a parsed font. It is read-only after [Parse] and safe for
// concurrent use.
type Typeface struct {
	name    string
	font    *opentype.Font
	buffers sync.Pool

	// emPerHeight converts a line height in pixels to pixels per em:
	// unitsPerEm / (hhea ascent - hhea descent).
	emPerHeight float64
}

// ///////////////////////////////////////////////
// Loading
// ///////////////////////////////////////////////

// Parse decodes font data. WOFF and WOFF2 data is converted to SFNT first.
// The name is only used in logs and errors.
func Parse(name string, data []byte) (*Typeface, error) {
	data, err := toSFNT(name, data)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", name, err)
	}
	tf := &Typeface{name: name, font: f, emPerHeight: 1}
	tf.buffers.New = func() any { return new(sfnt.Buffer) }

	// At ppem == unitsPerEm the metrics come back in font units.
	upem := f.UnitsPerEm()
	m, err := f.Metrics(new(sfnt.Buffer), fixed.Int26_6(upem), xfont.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("read metrics of %s: %w", name, err)
	}
	if h := m.Ascent + m.Descent; h > 0 {
		tf.emPerHeight = float64(upem) / float64(h)
	}
	return tf, nil
}

// Load reads and parses the font file at path.
func Load(path string) (*Typeface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return Parse(filepath.Base(path), data)
}

// toSFNT converts WOFF and WOFF2 data to SFNT and returns other data as is.
func toSFNT(name string, data []byte) ([]byte, error) {
	if !isWebFont(name, data) {
		return data, nil
	}
	converted, err := font.ToSFNT(data)
	if err != nil {
		return nil, fmt.Errorf("convert %s to sfnt: %w", name, err)
	}
	return converted, nil
}

// isWebFont reports whether data is WOFF or WOFF2, by extension or magic bytes.
func isWebFont(name string, data []byte) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".woff2") || strings.HasSuffix(lower, ".woff") {
		return true
	}
	if len(data) < 4 {
		return false
	}
	magic := string(data[:4])
	return magic == "wOF2" || magic == "wOFF"
}

// Name returns the name the typeface was loaded under.
func (t *Typeface) Name() string { return t.name }

// ///////////////////////////////////////////////
// Measurement
// ///////////////////////////////////////////////

// Advance returns the unhinted horizontal advance of r at scale s, in pixels.
// s is a line height, see [Typeface.Face]. Runes without a glyph in the font
// advance 0. It satisfies [layout.AdvanceFunc].
func (t *Typeface) Advance(r rune, s layout.Scale) float64 {
	if s.X <= 0 {
		return 0
	}
	buf := t.buffers.Get().(*sfnt.Buffer)
	defer t.buffers.Put(buf)

	gi, err := t.font.GlyphIndex(buf, r)
	if err != nil || gi == 0 {
		return 0
	}
	adv, err := t.font.GlyphAdvance(buf, gi, fixed.Int26_6(math.Round(t.ppem(s.X)*64)), xfont.HintingNone)
	if err != nil {
		return 0
	}
	return float64(adv) / 64
}

// ppem converts a line height in pixels to pixels per em.
func (t *Typeface) ppem(height float64) float64 {
	return height * t.emPerHeight
}

// ///////////////////////////////////////////////
// Rasterizing
// ///////////////////////////////////////////////

// Face returns a drawable face at scale s. The caller must close it.
//
// s is the pixel height of a line: the face's ascent plus descent equals
// s.X, so the em is smaller than s.X for fonts with tall or deep glyphs.
func (t *Typeface) Face(s layout.Scale) (xfont.Face, error) {
	if !s.Uniform() {
		return nil, fmt.Errorf("typeface %s: non-uniform scale %vx%v", t.name, s.X, s.Y)
	}
	face, err := opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    t.ppem(s.X),
		DPI:     72,
		Hinting: xfont.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

// DrawLine draws text into dst with the top of the line box at (x, y). The
// baseline sits one ascent below y. Glyph coverage falling outside dst is
// clipped.
func (t *Typeface) DrawLine(dst draw.Image, x, y int, text string, s layout.Scale, c color.Color) error {
	if text == "" {
		return nil
	}
	face, err := t.Face(s)
	if err != nil {
		return err
	}
	defer face.Close()

	d := &xfont.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y) + face.Metrics().Ascent},
	}
	d.DrawString(text)
	return nil
}
