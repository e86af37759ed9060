package satimg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCfg() *PipelineConfig {
	nodata := 0.0
	return &PipelineConfig{
		PatchSize: 512,
		OutDir:    "/tmp/patches",
		ImgName:   "tile_a",
		CRS:       4326,
		Nodata:    &nodata,
		GCEvery:   1000,
	}
}

func TestNewContextRejectsReservedKey(t *testing.T) {
	_, err := NewContext(testCfg(), map[string]any{
		RESERVED_CTX_KEY: Params{"x": 1},
	}, PatchInfo{})
	assert.ErrorIs(t, err, ErrReservedCtxKey)
}

func TestNewContextRejectsScalarEntry(t *testing.T) {
	_, err := NewContext(testCfg(), map[string]any{
		"some_filter": 42,
	}, PatchInfo{})
	assert.ErrorIs(t, err, ErrScalarCtxEntry)
}

func TestContextComponentShadowsBase(t *testing.T) {
	ctx, err := NewContext(testCfg(), map[string]any{
		"stretch": Params{"patch_size": 256},
		"other":   map[string]any{"k": "v"},
	}, PatchInfo{})
	require.NoError(t, err)

	n, ok := ctx.Int("stretch", "patch_size")
	require.True(t, ok)
	assert.Equal(t, 256, n, "component entry must shadow the base config")

	n, ok = ctx.Int("other", "patch_size")
	require.True(t, ok)
	assert.Equal(t, 512, n, "missing component field falls back to base")

	s, ok := ctx.Str("other", "k")
	require.True(t, ok)
	assert.Equal(t, "v", s)

	_, ok = ctx.Value("other", "no_such_field")
	assert.False(t, ok)
}

func TestContextBool(t *testing.T) {
	ctx, err := NewContext(testCfg(), map[string]any{
		"f": Params{"upper": false, "not_a_bool": 1},
	}, PatchInfo{})
	require.NoError(t, err)

	b, ok := ctx.Bool("f", "upper")
	require.True(t, ok)
	assert.False(t, b)

	_, ok = ctx.Bool("f", "not_a_bool")
	assert.False(t, ok)
	_, ok = ctx.Bool("f", "absent")
	assert.False(t, ok)
}

func TestContextNodataFor(t *testing.T) {
	ctx, err := NewContext(testCfg(), map[string]any{
		"no_nodata":  Params{"nodata": nil},
		"own_nodata": Params{"nodata": -1.0},
		"inherits":   Params{},
	}, PatchInfo{})
	require.NoError(t, err)

	assert.Nil(t, ctx.NodataFor("no_nodata"), "explicit nil entry must mean no nodata")

	nd := ctx.NodataFor("own_nodata")
	require.NotNil(t, nd)
	assert.Equal(t, -1.0, *nd)

	nd = ctx.NodataFor("inherits")
	require.NotNil(t, nd)
	assert.Equal(t, 0.0, *nd)
}

func TestContextPatchInfo(t *testing.T) {
	info := PatchInfo{Name: "tile_a_patch_0_512.tif", Row: 0, Col: 512, LonCenter: 12.5, LatCenter: -3.25}
	ctx, err := NewContext(testCfg(), nil, info)
	require.NoError(t, err)
	assert.Equal(t, info, ctx.Patch)
}

func TestStepOrDefault(t *testing.T) {
	cfg := testCfg()
	assert.Equal(t, 512, cfg.StepOrDefault(), "zero step means patch size")
	cfg.Step = 256
	assert.Equal(t, 256, cfg.StepOrDefault())
}
