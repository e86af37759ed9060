package satimg

import (
	"math"
	"sort"
)

// Patch is the pixel data of one window, band-major ((bands, height, width)),
// held as float64 regardless of the storage type it was read from.
type Patch struct {
	Bands  int
	Height int
	Width  int
	Pix    []float64
}

func NewPatch(bands, height, width int) *Patch {
	return &Patch{Bands: bands, Height: height, Width: width, Pix: make([]float64, bands*height*width)}
}

// Band returns the pixel slice of one band (0-based).
func (p *Patch) Band(b int) []float64 {
	n := p.Height * p.Width
	return p.Pix[b*n : (b+1)*n]
}

// PadToSquare pads a patch to (bands, size, size) with padValue at the
// trailing (bottom/right) edges, keeping the data anchored at the top-left so
// window indices still address the true corner. Already-square patches are
// returned unchanged.
func PadToSquare(p *Patch, size int, padValue float64) *Patch {
	if p.Height == size && p.Width == size {
		return p
	}
	out := NewPatch(p.Bands, size, size)
	for i := range out.Pix {
		out.Pix[i] = padValue
	}
	for b := 0; b < p.Bands; b++ {
		src := p.Band(b)
		dst := out.Band(b)
		for i := 0; i < p.Height; i++ {
			copy(dst[i*size:i*size+p.Width], src[i*p.Width:(i+1)*p.Width])
		}
	}
	return out
}

// SarDecibel converts a calibrated intensity sample to decibels, flooring at
// LOG_EPS so zero intensity stays finite.
func SarDecibel(v, scale float64) float64 {
	return 20 * math.Log10(math.Max(v*scale, LOG_EPS))
}

// sarValidMask marks samples that may participate in radiometric statistics:
// finite, not nodata, positive, and above the log floor after calibration.
func sarValidMask(data []float64, nodata *float64, scale float64) []bool {
	valid := ValidMask(data, nodata)
	for i, v := range data {
		valid[i] = valid[i] && v > 0 && v*scale > LOG_EPS
	}
	return valid
}

// Percentiles returns the (lo, hi) percentile values of samples, percentiles
// given in [0,100].
func Percentiles(samples []float64, loPct, hiPct float64) (lo, hi float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	return quantileLerp(sorted, loPct), quantileLerp(sorted, hiPct)
}

// quantileLerp interpolates linearly between order statistics at rank
// h = (n-1)·pct/100, the Hyndman-Fan type 7 estimator the polarization
// percentile pairs were tuned under. Other interpolation conventions shift
// the stretch bounds on coarse overviews.
func quantileLerp(sorted []float64, pct float64) float64 {
	h := float64(len(sorted)-1) * pct / 100
	i := int(math.Floor(h))
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-float64(i))*(sorted[i+1]-sorted[i])
}

// Clip limits every sample to [lo, hi] in place and returns the slice.
// Idempotent: clipping an already-clipped array is a no-op.
func Clip(data []float64, lo, hi float64) []float64 {
	for i, v := range data {
		if v < lo {
			data[i] = lo
		} else if v > hi {
			data[i] = hi
		}
	}
	return data
}

// SarStretchBounds estimates the stretch range of a whole raster once, from a
// coarse overview: decibel values of the valid overview samples at the given
// percentile pair. Computing the pair per raster instead of per patch keeps
// the normalization globally consistent across all of its patches.
func SarStretchBounds(r *Raster, band int, nodata *float64, scale, loPct, hiPct float64) (lo, hi float64, err error) {
	buf, _, _, err := r.ReadOverview(band, OVERVIEW_TARGET_WIDTH)
	if err != nil {
		return
	}
	valid := sarValidMask(buf, nodata, scale)
	db := make([]float64, 0, len(buf))
	for i, ok := range valid {
		if ok {
			db = append(db, SarDecibel(buf[i], scale))
		}
	}
	lo, hi = Percentiles(db, loPct, hiPct)
	return
}

// SarStretchToUint8 maps raw intensity samples to [0,255]: calibrate, convert
// to decibels, clip to the precomputed (lo, hi) range and rescale linearly,
// truncating to whole numbers. Invalid samples map to 0 and never take part
// in the arithmetic. A window with no valid pixel comes back all zeros.
func SarStretchToUint8(p *Patch, nodata *float64, scale, lo, hi float64) *Patch {
	out := NewPatch(p.Bands, p.Height, p.Width)
	valid := sarValidMask(p.Pix, nodata, scale)
	span := hi - lo
	if span <= 0 {
		return out
	}
	for i, ok := range valid {
		if !ok {
			continue
		}
		db := SarDecibel(p.Pix[i], scale)
		if db < lo {
			db = lo
		} else if db > hi {
			db = hi
		}
		out.Pix[i] = math.Trunc((db - lo) / span * 255)
	}
	return out
}
