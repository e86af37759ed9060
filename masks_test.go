package satimg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFractionSatisfyingAllNodata(t *testing.T) {
	nodata := 0.0
	data := make([]float64, 64)
	valid := ValidMask(data, &nodata)
	pred := make([]bool, len(data))
	for i := range pred {
		pred[i] = true
	}
	got := FractionSatisfying(pred, valid)
	assert.Equal(t, 0.0, got, "all-nodata array must yield exactly 0.0")
	assert.False(t, math.IsNaN(got))
}

func TestValidMask(t *testing.T) {
	nodata := -9999.0
	data := []float64{1, -9999, math.NaN(), math.Inf(1), 0}
	valid := ValidMask(data, &nodata)
	assert.Equal(t, []bool{true, false, false, false, true}, valid)

	// No nodata sentinel: only non-finite samples are invalid.
	valid = ValidMask(data, nil)
	assert.Equal(t, []bool{true, true, false, false, true}, valid)
}

func TestThresholdFractionTieBreak(t *testing.T) {
	data := []float64{0, 0, 5, 10}
	strict := ThresholdFraction(data, 0, nil, true, true)
	assert.Equal(t, 0.5, strict, "> must exclude the threshold value")
	inclusive := ThresholdFraction(data, 0, nil, true, false)
	assert.Equal(t, 1.0, inclusive, ">= must include the threshold value")

	below := ThresholdFraction(data, 5, nil, false, true)
	assert.Equal(t, 0.5, below)
}

func TestThresholdCountsBlockwiseEqualsWhole(t *testing.T) {
	nodata := 0.0
	data := make([]float64, 1000)
	for i := range data {
		data[i] = float64(i % 7)
	}
	want := ThresholdFraction(data, 3, &nodata, true, true)

	// Accumulating per-block counts must reproduce the whole-array fraction.
	var hits, valid int
	for start := 0; start < len(data); start += 137 {
		end := min(start+137, len(data))
		h, v := ThresholdCounts(data[start:end], 3, &nodata, true, true)
		hits += h
		valid += v
	}
	require.NotZero(t, valid)
	assert.InDelta(t, want, float64(hits)/float64(valid), 1e-9)
}

func TestPatchValueFraction(t *testing.T) {
	data := []float64{0, 0, 0, 1}
	assert.Equal(t, 0.75, PatchValueFraction(data, 0, nil))

	nodata := 1.0
	assert.Equal(t, 1.0, PatchValueFraction(data, 0, &nodata))
}

func TestRegionFraction(t *testing.T) {
	mask := &LandMask{Height: 4, Width: 4, Pix: []uint8{
		1, 1, 0, 0,
		1, 1, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}}
	ref := []float64{1, 1, 1, 1}

	frac, err := RegionFraction(mask, 0, 0, 2, ref, 0, 1, 0, 1.0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, frac)

	frac, err = RegionFraction(mask, 2, 2, 2, ref, 0, 1, 0, 1.0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, frac)

	// Region past the mask edge is padded with the background value.
	frac, err = RegionFraction(mask, 3, 3, 2, ref, 0, 1, 0, 1.0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, frac)
}

func TestRegionFractionNilMaskDefault(t *testing.T) {
	frac, err := LandFraction(nil, 0, 0, 2, []float64{1, 1, 1, 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, frac, "absent land mask must count as all land")
}

func TestRegionFractionNeitherValidityNorRef(t *testing.T) {
	mask := &LandMask{Height: 2, Width: 2, Pix: []uint8{1, 1, 1, 1}}
	_, err := RegionFraction(mask, 0, 0, 2, nil, 0, 1, 0, 1.0, nil)
	assert.ErrorIs(t, err, ErrNoValidityInput)
}

func TestRegionFractionAllRefNodata(t *testing.T) {
	mask := &LandMask{Height: 2, Width: 2, Pix: []uint8{1, 1, 1, 1}}
	frac, err := RegionFraction(mask, 0, 0, 2, []float64{0, 0, 0, 0}, 0, 1, 0, 1.0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, frac)
}
