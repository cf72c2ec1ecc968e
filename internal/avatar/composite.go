// Package avatar crops avatars into discs and composites them onto banners.
//
// Compositing runs two passes over the background. The first pass paints
// avatar pixels only into background pixels that are mostly transparent
// (alpha below the threshold). The second pass overlays the whole avatar with
// ordinary source-over blending, shrinking it first when it would run past the
// background edge.
package avatar

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"tools.zach/dev/avatarcard/internal/geom"
)

// ErrEmptyAvatar is returned when the requested avatar size is not positive.
var ErrEmptyAvatar = errors.New("avatar: target size must be positive")

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Options tunes the compositor. The zero value is not useful; start from
// [DefaultOptions].
type Options struct {
	// AnchorShift moves the requested anchor left and up, clamped at zero.
	AnchorShift int
	// AlphaThreshold is the background alpha below which the first pass paints.
	AlphaThreshold uint8
	// Filter resamples the avatar to the target size and on overflow.
	Filter Filter
}

// DefaultOptions returns a 10px anchor shift, a threshold of 127, and Lanczos
// resampling.
func DefaultOptions() Options {
	return Options{AnchorShift: 10, AlphaThreshold: 127, Filter: FilterLanczos}
}

// Request describes one compositing call. Background is mutated in place and
// stays owned by the caller; Avatar is only read.
type Request struct {
	Background draw.Image
	Avatar     image.Image
	// X and Y are the requested top-left anchor on the background.
	X, Y int
	// Size is the diameter the avatar is resized to before masking.
	Size int
}

// Placement reports where the overlay pass landed.
type Placement struct {
	// Anchor is the shifted, clamped top-left corner.
	Anchor image.Point
	// Size is the overlaid avatar size; zero when the overlay was skipped.
	Size image.Point
	// Scale is the downscale factor applied on overflow, or 1.
	Scale float64
	// Rescaled is true when the avatar was shrunk to fit.
	Rescaled bool
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Composite crops req.Avatar to a disc of req.Size and paints it onto
// req.Background using opts.
//
// Background pixels under the masked-out corners of the disc end up fully
// transparent with zero color on every background type, since both passes
// go through premultiplied color and a zero-alpha pixel has no color.
func Composite(req Request, opts Options) (Placement, error) {
	if req.Background == nil {
		return Placement{}, fmt.Errorf("avatar: nil background")
	}
	if req.Avatar == nil {
		return Placement{}, fmt.Errorf("avatar: nil avatar")
	}
	if req.Size <= 0 {
		return Placement{}, ErrEmptyAvatar
	}

	round := Round(req.Avatar, req.Size, opts.Filter)
	anchor := image.Pt(geom.SubClamp(req.X, opts.AnchorShift), geom.SubClamp(req.Y, opts.AnchorShift))

	thresholdPaint(req.Background, round, anchor, opts.AlphaThreshold)

	bg := req.Background.Bounds()
	w, h := round.Bounds().Dx(), round.Bounds().Dy()
	p := Placement{Anchor: anchor, Size: image.Pt(w, h), Scale: 1}

	overlay := round
	if geom.AddSat(anchor.X, w) > bg.Dx() || geom.AddSat(anchor.Y, h) > bg.Dy() {
		scaleX := float64(geom.SubClamp(bg.Dx(), anchor.X)) / float64(w)
		scaleY := float64(geom.SubClamp(bg.Dy(), anchor.Y)) / float64(h)
		p.Scale = math.Min(scaleX, scaleY)
		p.Size = image.Pt(geom.FloorInt(float64(w)*p.Scale), geom.FloorInt(float64(h)*p.Scale))
		p.Rescaled = true
		slog.Debug("avatar overflows background, rescaling",
			"anchor", anchor, "from", image.Pt(w, h), "to", p.Size, "scale", p.Scale)
		if p.Size.X == 0 || p.Size.Y == 0 {
			p.Size = image.Point{}
			return p, nil
		}
		overlay = Resize(round, p.Size.X, p.Size.Y, opts.Filter)
	}

	dst := image.Rectangle{Min: bg.Min.Add(anchor), Max: bg.Min.Add(anchor).Add(p.Size)}
	draw.Draw(req.Background, dst, overlay, image.Point{}, draw.Over)
	return p, nil
}

// ///////////////////////////////////////////////
// Internal helpers
// ///////////////////////////////////////////////

// thresholdPaint copies src onto dst at anchor, but only into destination
// pixels whose alpha is below threshold. Alpha is read in dst's own color
// model. Pixels falling outside dst are skipped.
func thresholdPaint(dst draw.Image, src *image.NRGBA, anchor image.Point, threshold uint8) {
	bg := dst.Bounds()
	sb := src.Bounds()
	for ay := 0; ay < sb.Dy(); ay++ {
		by := geom.AddSat(anchor.Y, ay)
		if by >= bg.Dy() {
			break
		}
		for ax := 0; ax < sb.Dx(); ax++ {
			bx := geom.AddSat(anchor.X, ax)
			if bx >= bg.Dx() {
				break
			}
			px, py := bg.Min.X+bx, bg.Min.Y+by
			if _, _, _, a := dst.At(px, py).RGBA(); a>>8 < uint32(threshold) {
				dst.Set(px, py, src.NRGBAAt(sb.Min.X+ax, sb.Min.Y+ay))
			}
		}
	}
}
