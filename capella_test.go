package satimg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStretchPercentiles(t *testing.T) {
	lo, hi, err := StretchPercentiles("CAPELLA_C09_SP_GEO_HH_20240512190416")
	require.NoError(t, err)
	assert.Equal(t, LO_PCT_HH_VV, lo)
	assert.Equal(t, HI_PCT_HH_VV, hi)

	lo, hi, err = StretchPercentiles("CAPELLA_C11_SM_GEO_VH_20230101000000")
	require.NoError(t, err)
	assert.Equal(t, LO_PCT_HV_VH, lo)
	assert.Equal(t, HI_PCT_HV_VH, hi)

	_, _, err = StretchPercentiles("CAPELLA_C11_SM_GEO_XX_20230101000000")
	assert.ErrorIs(t, err, ErrUnknownPolarization)
}

func TestReadCapellaScaleFactor(t *testing.T) {
	sidecar := filepath.Join(t.TempDir(), "tile_extended.json")
	require.NoError(t, os.WriteFile(sidecar,
		[]byte(`{"collect":{"image":{"scale_factor":0.0421,"rows":40000}}}`), 0o644))

	scale, err := ReadCapellaScaleFactor(sidecar)
	require.NoError(t, err)
	assert.Equal(t, 0.0421, scale)

	_, err = ReadCapellaScaleFactor(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func zeroFilterCtx(t *testing.T, limit float64, extra Params) *Context {
	t.Helper()
	params := Params{"filter_value": 0.0, "nodata": nil, "fraction_value": limit}
	for k, v := range extra {
		params[k] = v
	}
	ctx, err := NewContext(testCfg(), map[string]any{
		CTX_ZERO_FILTER: params,
	}, PatchInfo{})
	require.NoError(t, err)
	return ctx
}

func TestZeroFractionFilter(t *testing.T) {
	p := NewPatch(1, 2, 2)
	copy(p.Pix, []float64{0, 0, 0, 5}) // 75% zeros

	assert.True(t, ZeroFractionFilter(p, zeroFilterCtx(t, 0.75, nil)), "at the limit is still accepted")
	assert.False(t, ZeroFractionFilter(p, zeroFilterCtx(t, 0.5, nil)), "over the limit is rejected")
}

func TestZeroFractionFilterLowerBound(t *testing.T) {
	p := NewPatch(1, 2, 2)
	copy(p.Pix, []float64{0, 0, 0, 5}) // 75% zeros

	assert.True(t, ZeroFractionFilter(p, zeroFilterCtx(t, 0.5, Params{"upper": false})),
		"inverted filter keeps value-dominated windows")
	assert.False(t, ZeroFractionFilter(p, zeroFilterCtx(t, 0.9, Params{"upper": false})))
	// A non-bool entry falls back to the upper-bound form.
	assert.False(t, ZeroFractionFilter(p, zeroFilterCtx(t, 0.5, Params{"upper": "yes"})))
}

func landFilterCtx(t *testing.T, mask *LandMask, rng func() float64) *Context {
	t.Helper()
	params := Params{
		"land_mask":          mask,
		"min_land_threshold": 0.5,
		"discard_prob":       0.98,
	}
	if rng != nil {
		params["rand"] = rng
	}
	ctx, err := NewContext(&PipelineConfig{PatchSize: 2, ImgName: "t"}, map[string]any{
		CTX_LAND_FILTER: params,
	}, PatchInfo{})
	require.NoError(t, err)
	return ctx
}

func TestLandFractionFilterRandom(t *testing.T) {
	land := &LandMask{Height: 2, Width: 2, Pix: []uint8{1, 1, 1, 1}}
	water := &LandMask{Height: 2, Width: 2, Pix: []uint8{0, 0, 0, 0}}
	p := NewPatch(1, 2, 2)
	copy(p.Pix, []float64{1, 1, 1, 1})

	assert.True(t, LandFractionFilterRandom(p, landFilterCtx(t, land, nil)),
		"enough land always passes, no draw involved")

	// Below the threshold the outcome is the injected draw against the
	// discard probability.
	assert.False(t, LandFractionFilterRandom(p, landFilterCtx(t, water, func() float64 { return 0.5 })))
	assert.True(t, LandFractionFilterRandom(p, landFilterCtx(t, water, func() float64 { return 0.99 })))

	assert.True(t, LandFractionFilterRandom(p, landFilterCtx(t, nil, nil)),
		"absent mask counts as all land")
}

func TestSarStretchTransformFromContext(t *testing.T) {
	nodata := 0.0
	cfg := &PipelineConfig{PatchSize: 2, ImgName: "t", Nodata: &nodata}
	ctx, err := NewContext(cfg, map[string]any{
		CTX_SAR_STRETCH: Params{
			"scale_factor":        1.0,
			"low_percentile_val":  0.0,
			"high_percentile_val": 120.0,
		},
	}, PatchInfo{})
	require.NoError(t, err)

	p := NewPatch(1, 1, 2)
	copy(p.Pix, []float64{0, 1e6})
	out := SarStretchTransform(p, ctx)
	require.NotNil(t, out)
	assert.Equal(t, []float64{0, 255}, out.Pix)
}

func TestSarStretchTransformMissingBounds(t *testing.T) {
	ctx, err := NewContext(testCfg(), map[string]any{
		CTX_SAR_STRETCH: Params{"scale_factor": 1.0},
	}, PatchInfo{})
	require.NoError(t, err)
	assert.Nil(t, SarStretchTransform(NewPatch(1, 1, 1), ctx), "unresolved bounds must reject the window")
}

func TestDefaultRandRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := defaultRand()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
