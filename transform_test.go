package satimg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipIdempotent(t *testing.T) {
	data := []float64{-5, 0, 2.5, 7, 100}
	once := Clip(append([]float64(nil), data...), 0, 7)
	twice := Clip(append([]float64(nil), once...), 0, 7)
	assert.Equal(t, once, twice, "re-clipping to the same bounds must be a no-op")
	assert.Equal(t, []float64{0, 0, 2.5, 7, 7}, once)
}

func TestPadToSquare(t *testing.T) {
	p := NewPatch(1, 2, 3)
	copy(p.Pix, []float64{1, 2, 3, 4, 5, 6})

	out := PadToSquare(p, 4, -1)
	require.Equal(t, 4, out.Height)
	require.Equal(t, 4, out.Width)
	// Top-left region keeps the original data.
	assert.Equal(t, []float64{1, 2, 3}, out.Pix[0:3])
	assert.Equal(t, []float64{4, 5, 6}, out.Pix[4:7])
	// Everything else is the pad value.
	for _, i := range []int{3, 7, 8, 9, 10, 11, 12, 13, 14, 15} {
		assert.Equal(t, -1.0, out.Pix[i], "index %d", i)
	}
}

func TestPadToSquareNoopWhenSquare(t *testing.T) {
	p := NewPatch(2, 4, 4)
	assert.Same(t, p, PadToSquare(p, 4, 0))
}

func TestPadToSquareMultiBand(t *testing.T) {
	p := NewPatch(2, 1, 2)
	copy(p.Band(0), []float64{1, 2})
	copy(p.Band(1), []float64{3, 4})
	out := PadToSquare(p, 2, 9)
	assert.Equal(t, []float64{1, 2, 9, 9}, out.Band(0))
	assert.Equal(t, []float64{3, 4, 9, 9}, out.Band(1))
}

func TestSarDecibelFloor(t *testing.T) {
	assert.Equal(t, 20*math.Log10(LOG_EPS), SarDecibel(0, 1), "zero intensity must hit the log floor, not -Inf")
	assert.InDelta(t, 20.0, SarDecibel(10, 1), 1e-12)
	assert.InDelta(t, 40.0, SarDecibel(10, 10), 1e-12)
}

func TestPercentilesLinearInterp(t *testing.T) {
	samples := []float64{4, 1, 3, 2} // unsorted on purpose
	lo, hi := Percentiles(samples, 0, 100)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 4.0, hi)

	// Rank-scale interpolation on {1,2,3,4}: h = 3·pct/100.
	lo, hi = Percentiles(samples, 25, 75)
	assert.InDelta(t, 1.75, lo, 1e-12)
	assert.InDelta(t, 3.25, hi, 1e-12)

	lo, hi = Percentiles(samples, 50, 50)
	assert.InDelta(t, 2.5, lo, 1e-12)
	assert.InDelta(t, 2.5, hi, 1e-12)

	odd := []float64{5, 1, 3, 2, 4}
	lo, hi = Percentiles(odd, 50, 90)
	assert.InDelta(t, 3.0, lo, 1e-12)
	assert.InDelta(t, 4.6, hi, 1e-12)

	lo, hi = Percentiles(nil, 1, 99)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)
}

func TestSarStretchToUint8(t *testing.T) {
	nodata := 0.0
	p := NewPatch(1, 1, 4)
	copy(p.Pix, []float64{0, 1, 100, 1e6})

	lo, hi := 0.0, 120.0
	out := SarStretchToUint8(p, &nodata, 1, lo, hi)
	assert.Equal(t, 0.0, out.Pix[0], "nodata sample maps to 0")
	for _, v := range out.Pix {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 255.0)
		assert.Equal(t, math.Trunc(v), v, "stretched samples are whole numbers")
	}
	assert.Equal(t, 0.0, out.Pix[1], "0 dB at lo bound maps to 0")
	assert.Equal(t, 255.0, out.Pix[3], "hi bound maps to 255")
	assert.InDelta(t, math.Trunc(40.0/120.0*255), out.Pix[2], 1e-12)
}

func TestSarStretchToUint8DegenerateSpan(t *testing.T) {
	p := NewPatch(1, 1, 3)
	copy(p.Pix, []float64{1, 2, 3})
	out := SarStretchToUint8(p, nil, 1, 10, 10)
	assert.Equal(t, []float64{0, 0, 0}, out.Pix, "empty stretch range must yield all zeros")
}

func TestSarStretchToUint8NoValid(t *testing.T) {
	nodata := 0.0
	p := NewPatch(1, 2, 2)
	out := SarStretchToUint8(p, &nodata, 1, 0, 10)
	assert.Equal(t, []float64{0, 0, 0, 0}, out.Pix)
}
