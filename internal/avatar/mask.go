package avatar

import (
	"image"
)

// Mask is a per-pixel inclusion map. Values are 0 (excluded) or 255
// (included).
type Mask struct {
	width  int
	height int
	data   []uint8
}

// NewMask creates an all-excluded mask of the given size.
func NewMask(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{width: width, height: height, data: make([]uint8, width*height)}
}

// NewDiscMask returns a size×size mask whose included pixels approximate a
// disc of diameter size. Distances are measured from pixel centers.
func NewDiscMask(size int) *Mask {
	m := NewMask(size, size)
	radius := float64(size) / 2
	center := radius
	r2 := radius * radius
	for y := 0; y < size; y++ {
		dy := float64(y) - center + 0.5
		for x := 0; x < size; x++ {
			dx := float64(x) - center + 0.5
			if dx*dx+dy*dy <= r2 {
				m.data[y*size+x] = 255
			}
		}
	}
	return m
}

// Bounds returns the mask dimensions as an image.Rectangle.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// At returns the mask value at (x, y), or 0 outside the mask.
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return 0
	}
	return m.data[y*m.width+x]
}

// Set writes v at (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, v uint8) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return
	}
	m.data[y*m.width+x] = v
}

// Opaque counts the included pixels.
func (m *Mask) Opaque() int {
	n := 0
	for _, v := range m.data {
		if v > 0 {
			n++
		}
	}
	return n
}

// ApplyMask returns a copy of img where excluded pixels keep their color but
// have alpha forced to zero. Pixels outside the mask count as excluded.
func ApplyMask(img *image.NRGBA, m *Mask) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			if m.At(x, y) == 0 {
				c.A = 0
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// Round resizes src to size×size with filter f and crops it to a disc.
func Round(src image.Image, size int, f Filter) *image.NRGBA {
	resized := Resize(src, size, size, f)
	return ApplyMask(resized, NewDiscMask(size))
}
