package avatar

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// Filter names a resampling filter used when resizing avatars.
type Filter string

// Supported filters. Lanczos is the high-quality default for masked avatars;
// Nearest matches the blocky look of quote-card avatars.
const (
	FilterNearest    Filter = "nearest"
	FilterLinear     Filter = "linear"
	FilterCatmullRom Filter = "catmullrom"
	FilterLanczos    Filter = "lanczos"
)

// resampleFilters maps each [Filter] to its imaging implementation.
var resampleFilters = map[Filter]imaging.ResampleFilter{
	FilterNearest:    imaging.NearestNeighbor,
	FilterLinear:     imaging.Linear,
	FilterCatmullRom: imaging.CatmullRom,
	FilterLanczos:    imaging.Lanczos,
}

// ParseFilter converts a config string (case-insensitive) into a Filter.
func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := resampleFilters[f]; !ok {
		return "", fmt.Errorf("unknown resize filter %q: must be nearest, linear, catmullrom, or lanczos", s)
	}
	return f, nil
}

// Resize scales src to exactly w×h. Unknown filters fall back to Lanczos.
// A zero dimension yields an empty image rather than imaging's
// aspect-preserving behavior.
func Resize(src image.Image, w, h int, f Filter) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	rf, ok := resampleFilters[f]
	if !ok {
		rf = imaging.Lanczos
	}
	return imaging.Resize(src, w, h, rf)
}
