package satimg

import "math"

// LandMask is a binary occupancy grid aligned to a raster: 1 = land (target),
// 0 = water (background).
type LandMask struct {
	Height int
	Width  int
	Pix    []uint8
}

// ValidMask marks pixels that are finite and, when nodata is given, not equal
// to it.
func ValidMask(arr []float64, nodata *float64) []bool {
	valid := make([]bool, len(arr))
	for i, v := range arr {
		valid[i] = !math.IsNaN(v) && !math.IsInf(v, 0) && (nodata == nil || v != *nodata)
	}
	return valid
}

// FractionSatisfying is count(pred ∧ valid) / count(valid), and 0.0 when no
// pixel is valid. Never NaN, never an error.
func FractionSatisfying(pred, valid []bool) float64 {
	var hits, validCount int
	for i, ok := range valid {
		if !ok {
			continue
		}
		validCount++
		if pred[i] {
			hits++
		}
	}
	if validCount == 0 {
		return 0.0
	}
	return float64(hits) / float64(validCount)
}

// ThresholdCounts tallies valid pixels and those beyond filterValue, so
// block-wise callers can accumulate totals before dividing. greater selects
// > / >= versus < / <=; strict selects the exclusive comparison.
func ThresholdCounts(data []float64, filterValue float64, nodata *float64, greater, strict bool) (hits, valid int) {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) || (nodata != nil && v == *nodata) {
			continue
		}
		valid++
		var hit bool
		switch {
		case greater && strict:
			hit = v > filterValue
		case greater:
			hit = v >= filterValue
		case strict:
			hit = v < filterValue
		default:
			hit = v <= filterValue
		}
		if hit {
			hits++
		}
	}
	return
}

// ThresholdFraction is the fraction of valid pixels beyond filterValue.
// Downstream thresholds are tuned against the exact tie-break, so both
// comparison flags are caller-selectable.
func ThresholdFraction(data []float64, filterValue float64, nodata *float64, greater, strict bool) float64 {
	hits, valid := ThresholdCounts(data, filterValue, nodata, greater, strict)
	if valid == 0 {
		return 0.0
	}
	return float64(hits) / float64(valid)
}

// PatchValueFraction is the fraction of valid pixels exactly equal to
// filterValue.
func PatchValueFraction(data []float64, filterValue float64, nodata *float64) float64 {
	valid := ValidMask(data, nodata)
	pred := make([]bool, len(data))
	for i, v := range data {
		pred[i] = v == filterValue
	}
	return FractionSatisfying(pred, valid)
}

// RegionFraction is the fraction of valid patch pixels whose aligned mask
// pixel equals targetValue. The mask region at (row,col) is padded with
// backgroundValue where the patch extends past the mask edge. Validity comes
// from validPixels when given, otherwise from refPatch != refNodata. A nil
// mask short-circuits to defaultFraction so mask-free runs behave as
// "assume all target".
func RegionFraction(mask *LandMask, row, col, patchSize int, refPatch []float64, refNodata float64,
	targetValue, backgroundValue uint8, defaultFraction float64, validPixels []bool) (float64, error) {
	if mask == nil {
		return defaultFraction, nil
	}
	if validPixels == nil {
		if refPatch == nil {
			return 0, ErrNoValidityInput
		}
		validPixels = make([]bool, len(refPatch))
		for i, v := range refPatch {
			validPixels[i] = v != refNodata
		}
	}
	var hits, validCount int
	for i := 0; i < patchSize; i++ {
		for j := 0; j < patchSize; j++ {
			if !validPixels[i*patchSize+j] {
				continue
			}
			validCount++
			mv := backgroundValue
			if mr, mc := row+i, col+j; mr < mask.Height && mc < mask.Width {
				mv = mask.Pix[mr*mask.Width+mc]
			}
			if mv == targetValue {
				hits++
			}
		}
	}
	if validCount == 0 {
		return 0.0, nil
	}
	return float64(hits) / float64(validCount), nil
}

// LandFraction is RegionFraction specialized to land masks (land=1, water=0,
// absent mask counts as all land).
func LandFraction(mask *LandMask, row, col, patchSize int, refPatch []float64, refNodata float64) (float64, error) {
	return RegionFraction(mask, row, col, patchSize, refPatch, refNodata, 1, 0, 1.0, nil)
}
