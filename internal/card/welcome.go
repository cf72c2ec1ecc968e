package card

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"
	"tools.zach/dev/avatarcard/internal/avatar"
	"tools.zach/dev/avatarcard/internal/fetch"
)

// WelcomeLayout holds the banner defaults.
type WelcomeLayout struct {
	AvatarSize int
	Options    avatar.Options
}

// DefaultWelcomeLayout returns a 256px avatar with the default compositor
// options.
func DefaultWelcomeLayout() WelcomeLayout {
	return WelcomeLayout{AvatarSize: 256, Options: avatar.DefaultOptions()}
}

// Welcome is one welcome banner request.
type Welcome struct {
	Background fetch.Source
	Avatar     fetch.Source
	X, Y       int
	// Size overrides the layout's avatar size when positive.
	Size int
	// Output is the file name written by WriteWelcome. When empty a name is
	// derived from the two sources.
	Output string
}

// WelcomeResult describes a composited banner.
type WelcomeResult struct {
	Image     *image.NRGBA
	Placement avatar.Placement
	Path      string // set by WriteWelcome
}

// Composite paints the avatar onto the caller's background in place.
func (r *Renderer) Composite(bg draw.Image, av image.Image, x, y, size int) (avatar.Placement, error) {
	if !r.WelcomeEnabled {
		return avatar.Placement{}, fmt.Errorf("welcome: %w", ErrFeatureDisabled)
	}
	if size <= 0 {
		size = r.Welcome.AvatarSize
	}
	p, err := avatar.Composite(avatar.Request{Background: bg, Avatar: av, X: x, Y: y, Size: size}, r.Welcome.Options)
	if err != nil {
		return avatar.Placement{}, fmt.Errorf("composite avatar: %w", err)
	}
	slog.Debug("avatar composited", "anchor", p.Anchor, "size", p.Size, "rescaled", p.Rescaled)
	return p, nil
}

// RenderWelcome fetches both images and composites them onto a copy of the
// background.
func (r *Renderer) RenderWelcome(ctx context.Context, w Welcome) (*WelcomeResult, error) {
	if !r.WelcomeEnabled {
		return nil, fmt.Errorf("welcome: %w", ErrFeatureDisabled)
	}
	if r.Fetcher == nil {
		return nil, fmt.Errorf("welcome: renderer has no fetcher")
	}
	bgSrc, err := r.Fetcher.Image(ctx, w.Background)
	if err != nil {
		return nil, fmt.Errorf("fetch background: %w", err)
	}
	av, err := r.Fetcher.Image(ctx, w.Avatar)
	if err != nil {
		return nil, fmt.Errorf("fetch avatar: %w", err)
	}

	b := bgSrc.Bounds()
	bg := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(bg, bg.Bounds(), bgSrc, b.Min, draw.Src)

	p, err := r.Composite(bg, av, w.X, w.Y, w.Size)
	if err != nil {
		return nil, err
	}
	return &WelcomeResult{Image: bg, Placement: p}, nil
}

// WriteWelcome renders the banner and writes it to the output directory.
func (r *Renderer) WriteWelcome(ctx context.Context, w Welcome) (*WelcomeResult, error) {
	res, err := r.RenderWelcome(ctx, w)
	if err != nil {
		return nil, err
	}
	name := w.Output
	if name == "" {
		name = "welcome_" + shortHash(w.Background.String()+"\x00"+w.Avatar.String()) + ".png"
	}
	res.Path, err = writePNG(r.OutputDir, sanitizeName(name), res.Image)
	if err != nil {
		return nil, err
	}
	return res, nil
}
