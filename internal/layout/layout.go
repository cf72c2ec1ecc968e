// Package layout breaks quote text into lines that fit a pixel budget.
//
// Wrapping is greedy over whitespace-separated words. A word wider than the
// budget on its own is split rune by rune into as many sub-lines as needed.
// Widths come from an [AdvanceFunc], so the package has no dependency on a
// particular font implementation.
package layout

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"tools.zach/dev/avatarcard/internal/geom"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Scale is a text size given as the pixel height of a line, ascent plus
// descent. X and Y must match; a non-uniform scale would stretch glyphs.
type Scale struct {
	X float64
	Y float64
}

// Uniform returns a Scale with both axes set to px.
func Uniform(px float64) Scale {
	return Scale{X: px, Y: px}
}

// Uniform reports whether both axes are equal and positive.
func (s Scale) Uniform() bool {
	return s.X == s.Y && s.X > 0
}

// AdvanceFunc reports the horizontal advance of r at scale s, in pixels.
// Runes the font cannot render report 0.
type AdvanceFunc func(r rune, s Scale) float64

// PlacedLine is a wrapped line positioned for the rasterizer. X and Y are the
// top-left corner of the line box.
type PlacedLine struct {
	Text string
	X    int
	Y    int
}

// options holds the optional behavior switches for [Wrap].
type options struct {
	flushBeforeSplit bool
}

// Option configures [Wrap].
type Option func(*options)

// WithFlushBeforeSplit emits any pending line before an oversized word is
// split. Without it the pending line is replaced by the split remainder.
func WithFlushBeforeSplit() Option {
	return func(o *options) { o.flushBeforeSplit = true }
}

// ///////////////////////////////////////////////
// Measurement
// ///////////////////////////////////////////////

// Measure returns the summed advance of every rune in s.
func Measure(s string, advance AdvanceFunc, scale Scale) float64 {
	var w float64
	for _, r := range s {
		w += advance(r, scale)
	}
	return w
}

// ///////////////////////////////////////////////
// Wrapping
// ///////////////////////////////////////////////

// Wrap splits content into lines no wider than maxWidth. The last line is
// always emitted, so empty content yields a single empty line.
//
// Content is normalized to NFC before splitting, so returned lines hold
// composed runes even when content does not: "cafe\u0301" wraps to "café".
func Wrap(content string, advance AdvanceFunc, scale Scale, maxWidth float64, opts ...Option) []string {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var lines []string
	line := ""
	for _, word := range strings.Fields(norm.NFC.String(content)) {
		if Measure(word, advance, scale) > maxWidth {
			if o.flushBeforeSplit && line != "" {
				lines = append(lines, line)
			}
			var rest string
			lines, rest = splitWord(lines, word, advance, scale, maxWidth)
			line = rest
			continue
		}

		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if Measure(candidate, advance, scale) > maxWidth {
			lines = append(lines, line)
			line = word
		} else {
			line = candidate
		}
	}
	return append(lines, line)
}

// splitWord appends the full-width chunks of word to lines and returns the
// trailing chunk that still has room.
func splitWord(lines []string, word string, advance AdvanceFunc, scale Scale, maxWidth float64) ([]string, string) {
	var sub strings.Builder
	for _, r := range word {
		next := sub.String() + string(r)
		if Measure(next, advance, scale) > maxWidth {
			lines = append(lines, sub.String())
			sub.Reset()
		}
		sub.WriteRune(r)
	}
	return lines, sub.String()
}

// ///////////////////////////////////////////////
// Placement
// ///////////////////////////////////////////////

// Place positions lines from (x, y) downward, lineHeight pixels apart.
func Place(lines []string, x, y, lineHeight int) []PlacedLine {
	placed := make([]PlacedLine, 0, len(lines))
	for _, text := range lines {
		placed = append(placed, PlacedLine{Text: text, X: x, Y: y})
		y = geom.AddSat(y, lineHeight)
	}
	return placed
}
