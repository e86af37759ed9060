package satimg

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/GabeTsai/sat-img-utils/log"

	"go.uber.org/zap"
)

// TileSource is the raster surface the extraction engine walks. *Raster
// implements it; tests run the engine over synthetic in-memory grids.
type TileSource interface {
	BandReader
	Height() int
	Width() int
	Bands() int
	WindowTransform(w Window) []float64
	CenterLonLat(w Window) (lon, lat float64, err error)
}

// A filter decides whether a window's patch is kept. The first false in a
// chain skips the window outright.
type PatchFilter func(p *Patch, ctx *Context) bool

// A transform maps a patch to its output form; nil means "drop this window",
// equivalent to a filter rejection.
type PatchTransform func(p *Patch, ctx *Context) *Patch

// A writer persists one accepted patch.
type WriterFn func(p *Patch, ctx *Context) error

// A metadata function produces the record stored for one accepted patch.
type MetadataFn func(ctx *Context) Record

// PatchPipeline wires the pluggable stages around one extraction run.
type PatchPipeline struct {
	Cfg         *PipelineConfig
	PreFilters  []PatchFilter
	Transform   PatchTransform
	PostFilters []PatchFilter
	Writer      WriterFn
	Metadata    MetadataFn
	// Extra holds per-component parameter mappings merged into every
	// window's context.
	Extra map[string]any

	// Window-reader bounds; zero values fall back to the defaults.
	MaxWindowBytes int64
	ChunkHeight    int
}

// DefaultMetadata records the image id, patch name and geographic center.
func DefaultMetadata(ctx *Context) Record {
	return Record{
		ImgName:   ctx.Cfg.ImgName,
		PatchName: ctx.Patch.Name,
		Lon:       ctx.Patch.LonCenter,
		Lat:       ctx.Patch.LatCenter,
	}
}

// CutPatches tiles src into patch-size windows (row-major, stepped by
// cfg.Step), runs each window through the filter/transform/writer stages and
// returns the metadata records of the kept patches, one per written patch, in
// visitation order. Windows are processed strictly sequentially; transient
// buffers are reclaimed every cfg.GCEvery kept patches. A raster that fails
// mid-run must be restarted from the first window.
func CutPatches(src TileSource, pl *PatchPipeline) (records []Record, err error) {
	cfg := pl.Cfg
	if cfg.OutDir != "" {
		if err = os.MkdirAll(cfg.OutDir, os.ModePerm); err != nil {
			return
		}
	}
	bands := cfg.Bands
	if len(bands) == 0 {
		bands = make([]int, src.Bands())
		for i := range bands {
			bands[i] = i + 1
		}
	}
	var (
		step    = cfg.StepOrDefault()
		height  = src.Height()
		width   = src.Width()
		kept    = 0
		visited = 0
	)
	metaFn := pl.Metadata
	if metaFn == nil {
		metaFn = DefaultMetadata
	}
	log.Info("starting patches", zap.String("img", cfg.ImgName),
		zap.Int("height", height), zap.Int("width", width), zap.Int("step", step))

	for i := 0; i < height; i += step {
	window:
		for j := 0; j < width; j += step {
			visited++
			window := Window{Row: i, Col: j, Height: cfg.PatchSize, Width: cfg.PatchSize}.Clip(height, width)

			patch := NewPatch(len(bands), window.Height, window.Width)
			for bi, b := range bands {
				if err = ReadWindowChunkedInto(src, b, window, patch.Band(bi), pl.MaxWindowBytes, pl.ChunkHeight); err != nil {
					return
				}
			}
			patch = PadToSquare(patch, cfg.PatchSize, cfg.PadValue)

			var lon, lat float64
			if lon, lat, err = src.CenterLonLat(window); err != nil {
				return
			}
			info := PatchInfo{
				Name:      fmt.Sprintf(PATCH_NAME_TEMPLATE, cfg.ImgName, i, j),
				Row:       i,
				Col:       j,
				Height:    cfg.PatchSize,
				Width:     cfg.PatchSize,
				Window:    window,
				Transform: src.WindowTransform(window),
				CRS:       cfg.CRS,
				LonCenter: lon,
				LatCenter: lat,
			}
			var ctx *Context
			if ctx, err = NewContext(cfg, pl.Extra, info); err != nil {
				return
			}

			for _, f := range pl.PreFilters {
				if !f(patch, ctx) {
					continue window
				}
			}
			if pl.Transform != nil {
				if patch = pl.Transform(patch, ctx); patch == nil {
					continue
				}
			}
			for _, f := range pl.PostFilters {
				if !f(patch, ctx) {
					continue window
				}
			}

			if pl.Writer != nil {
				if err = pl.Writer(patch, ctx); err != nil {
					return
				}
			}
			records = append(records, metaFn(ctx))

			kept++
			// Rejected windows release their buffers at the short-circuit,
			// so only kept patches advance the reclamation cadence.
			if cfg.GCEvery > 0 && kept%cfg.GCEvery == 0 {
				debug.FreeOSMemory()
				log.Debug("reclaimed memory", zap.Int("kept", kept))
			}
		}
	}
	log.Info("finished patches", zap.String("img", cfg.ImgName),
		zap.Int("visited", visited), zap.Int("kept", kept))
	return
}
