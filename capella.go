package satimg

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/GabeTsai/sat-img-utils/log"
	"github.com/GabeTsai/sat-img-utils/utils"

	"github.com/lukeroth/gdal"
	"github.com/valyala/fastrand"
	"go.uber.org/zap"
)

// Polarization labels carried in Capella image names.
type Polarization string

const (
	POL_HH Polarization = "HH"
	POL_HV Polarization = "HV"
	POL_VH Polarization = "VH"
	POL_VV Polarization = "VV"
)

// Component namespaces of the Capella filter chain.
const (
	CTX_ZERO_FILTER = "zero_fraction_filter"
	CTX_LAND_FILTER = "land_fraction_filter"
	CTX_SAR_STRETCH = "sar_stretch"
)

// StretchPercentiles picks the stretch percentile pair from the polarization
// embedded in the image name. Co-pol and cross-pol backscatter distributions
// differ too much to share one pair.
func StretchPercentiles(imgName string) (loPct, hiPct float64, err error) {
	switch {
	case strings.Contains(imgName, string(POL_HH)), strings.Contains(imgName, string(POL_VV)):
		return LO_PCT_HH_VV, HI_PCT_HH_VV, nil
	case strings.Contains(imgName, string(POL_HV)), strings.Contains(imgName, string(POL_VH)):
		return LO_PCT_HV_VH, HI_PCT_HV_VH, nil
	}
	err = ErrUnknownPolarization
	return
}

// ReadCapellaScaleFactor pulls the radiometric scale factor out of a tile's
// extended metadata sidecar.
func ReadCapellaScaleFactor(path string) (scale float64, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var meta struct {
		Collect struct {
			Image struct {
				ScaleFactor float64 `json:"scale_factor"`
			} `json:"image"`
		} `json:"collect"`
	}
	if err = json.Unmarshal(raw, &meta); err != nil {
		return
	}
	scale = meta.Collect.Image.ScaleFactor
	return
}

// ZeroFractionFilter rejects a window when too much of it is exactly the
// filter value (dead SAR pixels read back as 0.0). With "upper" set to false
// the test inverts: only windows dominated by the value pass, which turns the
// same filter into a foreground selector.
func ZeroFractionFilter(p *Patch, ctx *Context) bool {
	filterValue, _ := ctx.Float(CTX_ZERO_FILTER, "filter_value")
	limit, ok := ctx.Float(CTX_ZERO_FILTER, "fraction_value")
	if !ok {
		limit = ZERO_FRACTION_LIMIT
	}
	upper, ok := ctx.Bool(CTX_ZERO_FILTER, "upper")
	if !ok {
		upper = true
	}
	nodata := ctx.NodataFor(CTX_ZERO_FILTER)
	frac := PatchValueFraction(p.Pix, filterValue, nodata)
	if upper {
		return frac <= limit
	}
	return frac >= limit
}

func defaultRand() float64 {
	return float64(fastrand.Uint32()) / (1 << 32)
}

// LandFractionFilterRandom keeps windows with enough land, and discards
// below-threshold ones with a configured probability instead of always, so
// open water still contributes a trickle of patches. The draw source is
// injectable through the "rand" param for reproducible runs.
func LandFractionFilterRandom(p *Patch, ctx *Context) bool {
	var mask *LandMask
	if m, ok := ctx.Component(CTX_LAND_FILTER)["land_mask"].(*LandMask); ok {
		mask = m
	}
	threshold, ok := ctx.Float(CTX_LAND_FILTER, "min_land_threshold")
	if !ok {
		threshold = MIN_LAND_THRESHOLD
	}
	var refNodata float64
	if nd := ctx.NodataFor(CTX_LAND_FILTER); nd != nil {
		refNodata = *nd
	}
	frac, err := LandFraction(mask, ctx.Patch.Row, ctx.Patch.Col, ctx.Cfg.PatchSize, p.Band(0), refNodata)
	if err != nil {
		log.Warn("land fraction failed", zap.String("patch", ctx.Patch.Name), zap.Error(err))
		return false
	}
	if frac >= threshold {
		return true
	}
	discardProb, ok := ctx.Float(CTX_LAND_FILTER, "discard_prob")
	if !ok {
		discardProb = LAND_DISCARD_PROB
	}
	draw := defaultRand
	if f, ok := ctx.Component(CTX_LAND_FILTER)["rand"].(func() float64); ok {
		draw = f
	}
	return draw() >= discardProb
}

// SarStretchTransform is the Capella patch transform: calibrated decibels
// clipped to the per-raster percentile values and rescaled to 8 bits. The
// percentile values must be resolved once per raster before extraction and
// passed through the context.
func SarStretchTransform(p *Patch, ctx *Context) *Patch {
	scale, ok := ctx.Float(CTX_SAR_STRETCH, "scale_factor")
	if !ok {
		scale = 1
	}
	lo, okLo := ctx.Float(CTX_SAR_STRETCH, "low_percentile_val")
	hi, okHi := ctx.Float(CTX_SAR_STRETCH, "high_percentile_val")
	if !okLo || !okHi {
		log.Warn("stretch bounds missing from context", zap.String("patch", ctx.Patch.Name))
		return nil
	}
	return SarStretchToUint8(p, ctx.NodataFor(CTX_SAR_STRETCH), scale, lo, hi)
}

// CapellaPatchWriter persists an 8-bit patch as a single-band GeoTIFF in the
// tile's CRS, carrying the window's transform and the run's nodata value.
func (g *Toolbox) CapellaPatchWriter(tile *Raster) WriterFn {
	return func(p *Patch, ctx *Context) error {
		driver, err := gdal.GetDriverByName(GTIFF_DRIVER_NAME)
		if err != nil {
			log.Error(g.logTag+"get gtiff driver failed", zap.Error(err))
			return ErrGdalDriverCreate
		}
		outPath := ctx.Cfg.OutDir + "/" + ctx.Patch.Name
		ds := driver.Create(outPath, p.Width, p.Height, 1, gdal.Byte, nil)
		defer ds.Close()
		ds.SetGeoTransform(ctx.Patch.Transform)
		ds.SetProjection(tile.Projection())
		band := ds.RasterBand(1)
		if nd := ctx.Cfg.Nodata; nd != nil {
			band.SetNoDataValue(*nd)
		}
		buf := make([]uint8, len(p.Band(0)))
		for i, v := range p.Band(0) {
			buf[i] = uint8(v)
		}
		if err = band.IO(gdal.Write, 0, 0, p.Width, p.Height, buf, p.Width, p.Height, 0, 0); err != nil {
			log.Error(g.logTag+"write patch failed", zap.String("patch", outPath), zap.Error(err))
			return ErrTifWriteFailed
		}
		return nil
	}
}

// CapellaOptions tunes one tile's extraction; zero values mean the package
// defaults.
type CapellaOptions struct {
	PatchSize int
	Nodata    float64 // Capella tiles mark missing data as 0
	GCEvery   int
	// Rand overrides the land filter's draw source.
	Rand func() float64
}

// GenCapellaTilePatches runs the full Capella chain over one open tile:
// per-raster stretch bounds from a coarse overview, then land and dead-pixel
// filters, decibel stretch, GeoTIFF writer and metadata accumulation.
// sidecarPath is the tile's extended metadata JSON; landMask may be nil to
// accept every window as land.
func (g *Toolbox) GenCapellaTilePatches(tile *Raster, sidecarPath, outDir string,
	landMask *LandMask, opt CapellaOptions) (records []Record, err error) {
	imgName := utils.GetFilenameWithoutExt(tile.Path())
	scale, err := ReadCapellaScaleFactor(sidecarPath)
	if err != nil {
		log.Error(g.logTag+"read scale factor failed", zap.String("sidecar", sidecarPath), zap.Error(err))
		return
	}
	loPct, hiPct, err := StretchPercentiles(imgName)
	if err != nil {
		log.Error(g.logTag+"unknown polarization", zap.String("img", imgName))
		return
	}
	if opt.PatchSize <= 0 {
		opt.PatchSize = DEFAULT_PATCH_SIZE
	}
	if opt.GCEvery <= 0 {
		opt.GCEvery = DEFAULT_GC_EVERY
	}
	nodata := opt.Nodata
	lo, hi, err := SarStretchBounds(tile, 1, &nodata, scale, loPct, hiPct)
	if err != nil {
		return
	}
	log.Info(g.logTag+"stretch bounds", zap.String("img", imgName),
		zap.Float64("lo", lo), zap.Float64("hi", hi), zap.Float64("scale", scale))

	cfg := &PipelineConfig{
		PatchSize: opt.PatchSize,
		OutDir:    outDir,
		ImgName:   imgName,
		CRS:       UNIVERSAL_SRID,
		Nodata:    &nodata,
		PadValue:  nodata,
		Bands:     []int{1},
		GCEvery:   opt.GCEvery,
	}
	landParams := Params{
		"land_mask":          landMask,
		"min_land_threshold": MIN_LAND_THRESHOLD,
		"discard_prob":       LAND_DISCARD_PROB,
	}
	if opt.Rand != nil {
		landParams["rand"] = opt.Rand
	}
	extra := map[string]any{
		CTX_ZERO_FILTER: Params{
			"filter_value":   0.0,
			"nodata":         nil,
			"fraction_value": ZERO_FRACTION_LIMIT,
		},
		CTX_LAND_FILTER: landParams,
		CTX_SAR_STRETCH: Params{
			"scale_factor":        scale,
			"low_percentile_val":  lo,
			"high_percentile_val": hi,
		},
	}
	pl := &PatchPipeline{
		Cfg:        cfg,
		PreFilters: []PatchFilter{LandFractionFilterRandom, ZeroFractionFilter},
		Transform:  SarStretchTransform,
		Writer:     g.CapellaPatchWriter(tile),
		Extra:      extra,
	}
	return CutPatches(tile, pl)
}
