package card

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"golang.org/x/image/draw"
	"tools.zach/dev/avatarcard/internal/avatar"
	"tools.zach/dev/avatarcard/internal/fetch"
	"tools.zach/dev/avatarcard/internal/geom"
	"tools.zach/dev/avatarcard/internal/layout"
)

// QuoteLayout positions everything on a quote card. Offsets named "right"
// and "bottom" are measured from that canvas edge.
type QuoteLayout struct {
	Width      int
	Height     int
	Background color.NRGBA
	TextColor  color.NRGBA

	AvatarSize   int
	AvatarX      int
	AvatarFilter avatar.Filter

	TextRightOffset int
	TextTopOffset   int // below the avatar's top edge
	MaxTextWidth    float64
	FontSize        float64
	LineHeight      int

	NameRightOffset  int
	NameBottomOffset int

	FlushBeforeSplit bool
}

// DefaultQuoteLayout returns the classic 700x182 black card with a 150px
// avatar and 30px white text.
func DefaultQuoteLayout() QuoteLayout {
	return QuoteLayout{
		Width:            700,
		Height:           182,
		Background:       color.NRGBA{A: 0xff},
		TextColor:        color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		AvatarSize:       150,
		AvatarX:          100,
		AvatarFilter:     avatar.FilterNearest,
		TextRightOffset:  350,
		TextTopOffset:    25,
		MaxTextWidth:     300,
		FontSize:         30,
		LineHeight:       30,
		NameRightOffset:  300,
		NameBottomOffset: 50,
	}
}

// Quote is one quote card request.
type Quote struct {
	Avatar  fetch.Source
	Content string
	Name    string
	// ID names the output file when the renderer uses NamingID.
	ID string
}

// QuoteResult describes a rendered quote card.
type QuoteResult struct {
	Image  *image.RGBA
	Lines  []layout.PlacedLine
	Avatar image.Point // top-left corner of the avatar
	Path   string      // set by WriteQuote
}

// RenderQuote fetches the avatar and draws the card in memory.
func (r *Renderer) RenderQuote(ctx context.Context, q Quote) (*QuoteResult, error) {
	if !r.QuoteEnabled {
		return nil, fmt.Errorf("quote: %w", ErrFeatureDisabled)
	}
	if r.Fetcher == nil || r.Regular == nil || r.Italic == nil {
		return nil, fmt.Errorf("quote: renderer is missing a fetcher or font")
	}
	l := r.Quote

	src, err := r.Fetcher.Image(ctx, q.Avatar)
	if err != nil {
		return nil, fmt.Errorf("fetch avatar: %w", err)
	}
	av := avatar.Resize(src, l.AvatarSize, l.AvatarSize, l.AvatarFilter)

	canvas := image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(l.Background), image.Point{}, draw.Src)

	avatarY := geom.SubClamp(l.Height/2, av.Bounds().Dy()/2)
	at := image.Pt(l.AvatarX, avatarY)
	draw.Draw(canvas, av.Bounds().Add(at), av, av.Bounds().Min, draw.Over)

	scale := layout.Uniform(l.FontSize)
	var opts []layout.Option
	if l.FlushBeforeSplit {
		opts = append(opts, layout.WithFlushBeforeSplit())
	}
	lines := layout.Wrap(q.Content, r.Italic.Advance, scale, l.MaxTextWidth, opts...)
	textX := geom.SubClamp(l.Width, l.TextRightOffset)
	textY := geom.AddSat(avatarY, l.TextTopOffset)
	placed := layout.Place(lines, textX, textY, l.LineHeight)
	slog.Debug("quote laid out", "lines", len(placed), "text_x", textX, "text_y", textY)

	for _, pl := range placed {
		if err := r.Italic.DrawLine(canvas, pl.X, pl.Y, pl.Text, scale, l.TextColor); err != nil {
			return nil, fmt.Errorf("draw quote line: %w", err)
		}
	}

	nameX := geom.SubClamp(l.Width, l.NameRightOffset)
	nameY := geom.SubClamp(l.Height, l.NameBottomOffset)
	if err := r.Regular.DrawLine(canvas, nameX, nameY, q.Name, scale, l.TextColor); err != nil {
		return nil, fmt.Errorf("draw author name: %w", err)
	}

	return &QuoteResult{Image: canvas, Lines: placed, Avatar: at}, nil
}

// WriteQuote renders the card and writes it to the output directory. The
// file name follows the renderer's naming mode and an existing file with the
// same name is replaced.
func (r *Renderer) WriteQuote(ctx context.Context, q Quote) (*QuoteResult, error) {
	name, err := QuoteFileName(r.Naming, q.Content, q.ID)
	if err != nil {
		return nil, err
	}
	res, err := r.RenderQuote(ctx, q)
	if err != nil {
		return nil, err
	}
	res.Path, err = writePNG(r.OutputDir, name, res.Image)
	if err != nil {
		return nil, err
	}
	return res, nil
}
