package fetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode decodes PNG, JPEG, GIF, WebP, BMP, or TIFF data. It returns the
// image and the format name.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Image fetches src and decodes it.
func (f *Fetcher) Image(ctx context.Context, src Source) (image.Image, error) {
	data, err := f.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return img, nil
}
