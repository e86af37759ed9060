package satimg

import (
	"fmt"
)

// Reserved namespace for per-window facts; not usable as a component name.
const RESERVED_CTX_KEY = "patch"

// Params holds one pipeline component's own parameters.
type Params map[string]any

// PipelineConfig holds the invariants of one extraction run. Immutable once
// handed to the engine; a fresh Context wraps it for every window.
type PipelineConfig struct {
	PatchSize int
	OutDir    string
	ImgName   string
	CRS       int      // EPSG code for metadata output
	Nodata    *float64 // nil when the raster has no nodata sentinel
	PadValue  float64
	Step      int   // 0 means PatchSize (no overlap)
	Bands     []int // 1-based band selection; nil means all bands
	GCEvery   int   // kept patches between forced reclamations
}

func (c *PipelineConfig) StepOrDefault() int {
	if c.Step > 0 {
		return c.Step
	}
	return c.PatchSize
}

// Base-namespace lookup by field name, mirroring the config fields.
func (c *PipelineConfig) field(name string) (any, bool) {
	switch name {
	case "patch_size":
		return c.PatchSize, true
	case "out_dir":
		return c.OutDir, true
	case "img_name":
		return c.ImgName, true
	case "crs":
		return c.CRS, true
	case "nodata":
		if c.Nodata == nil {
			return nil, true
		}
		return *c.Nodata, true
	case "pad_value":
		return c.PadValue, true
	case "step":
		return c.StepOrDefault(), true
	case "gc_every":
		return c.GCEvery, true
	}
	return nil, false
}

// PatchInfo carries the derived facts of one window: indices, extent, the
// window's affine transform and the geographic center.
type PatchInfo struct {
	Name      string
	Row       int
	Col       int
	Height    int
	Width     int
	Window    Window
	Transform []float64
	CRS       int
	LonCenter float64
	LatCenter float64
}

// Context is the two-level parameter overlay every filter and transform
// consumes: per-component entries in extra shadow the base configuration.
// Constructed fresh per window and never mutated afterwards.
type Context struct {
	Cfg   *PipelineConfig
	Patch PatchInfo
	extra map[string]Params
}

// NewContext validates the extra mapping and builds a per-window context.
// Every top-level extra value must itself be a params mapping; the reserved
// "patch" namespace is populated from the typed PatchInfo and cannot be
// supplied by callers. Both violations fail at construction time.
func NewContext(cfg *PipelineConfig, extra map[string]any, patch PatchInfo) (*Context, error) {
	ctx := &Context{
		Cfg:   cfg,
		Patch: patch,
		extra: make(map[string]Params, len(extra)),
	}
	for k, v := range extra {
		if k == RESERVED_CTX_KEY {
			return nil, fmt.Errorf("extra[%q]: %w", k, ErrReservedCtxKey)
		}
		switch p := v.(type) {
		case Params:
			ctx.extra[k] = p
		case map[string]any:
			ctx.extra[k] = Params(p)
		default:
			return nil, fmt.Errorf("extra[%q] is %T: %w", k, v, ErrScalarCtxEntry)
		}
	}
	return ctx, nil
}

// Value resolves a field for a component: the component's own params first,
// then the base configuration.
func (c *Context) Value(component, field string) (any, bool) {
	if p, ok := c.extra[component]; ok {
		if v, ok2 := p[field]; ok2 {
			return v, true
		}
	}
	return c.Cfg.field(field)
}

func (c *Context) Float(component, field string) (float64, bool) {
	v, ok := c.Value(component, field)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func (c *Context) Int(component, field string) (int, bool) {
	v, ok := c.Value(component, field)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func (c *Context) Bool(component, field string) (bool, bool) {
	v, ok := c.Value(component, field)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (c *Context) Str(component, field string) (string, bool) {
	v, ok := c.Value(component, field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// NodataFor resolves the nodata sentinel seen by a component. An explicit nil
// entry in the component params means "no nodata", overriding the base value.
func (c *Context) NodataFor(component string) *float64 {
	if p, ok := c.extra[component]; ok {
		if v, ok2 := p["nodata"]; ok2 {
			if v == nil {
				return nil
			}
			if f, fok := toFloat(v); fok {
				return &f
			}
			return nil
		}
	}
	return c.Cfg.Nodata
}

// Component returns a component's raw params mapping, for parameters that are
// not plain scalars (masks, callbacks).
func (c *Context) Component(name string) Params {
	return c.extra[name]
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
