package satimg

import (
	"math"

	"github.com/GabeTsai/sat-img-utils/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// OverlayOptions tunes one overlay-density computation. Zero values fall back
// to the package defaults.
type OverlayOptions struct {
	Threshold float64
	// Strict selects > over >= at the threshold.
	Strict         bool
	BlockSize      int
	MaxWindowBytes int64
	ChunkHeight    int
}

// OverlayDensity computes the fraction of secondary pixels beyond the
// threshold after nearest-neighbor reprojection onto the primary raster's
// grid, over the primary's full footprint. The secondary is read only within
// the primary's reprojected bounds, and the primary grid is resampled in
// square blocks so no full-resolution destination buffer is ever allocated.
// Returns 0.0 when no reprojected pixel is valid.
func (g *Toolbox) OverlayDensity(primary, secondary *Raster, opt OverlayOptions) (fraction float64, err error) {
	blockSize := opt.BlockSize
	if blockSize <= 0 {
		blockSize = DENSITY_BLOCK
	}
	pRef, err := g.refFromProjWkt(primary.Projection())
	if err != nil {
		return
	}
	defer pRef.Destroy()
	sRef, err := g.refFromProjWkt(secondary.Projection())
	if err != nil {
		return
	}
	defer sRef.Destroy()
	span, err := g.transformedSpan(primary.BoundsWkt(), pRef, sRef)
	if err != nil {
		return
	}
	sub := subWindowFromSpan(secondary.GeoTransform(), secondary.Height(), secondary.Width(), span)
	if sub.Height <= 0 || sub.Width <= 0 {
		log.Warn(g.logTag+"overlay footprints do not intersect",
			zap.String("primary", primary.Path()), zap.String("secondary", secondary.Path()))
		return
	}
	log.Info(g.logTag+"overlay sub-window", zap.String("secondary", secondary.Path()),
		zap.Int("rows", sub.Height), zap.Int("cols", sub.Width))

	buf := make([]float64, sub.Pixels())
	if err = ReadWindowChunkedInto(secondary, 1, sub, buf, opt.MaxWindowBytes, opt.ChunkHeight); err != nil {
		return
	}
	srcDs, err := g.memDataset(buf, sub.Height, sub.Width, secondary.WindowTransform(sub), secondary.Projection())
	if err != nil {
		return
	}
	defer srcDs.Close()
	buf = nil

	var (
		hits, valid int
		nodata      = secondary.Nodata()
		block       = make([]float64, min(blockSize, primary.Height())*min(blockSize, primary.Width()))
	)
	for i := 0; i < primary.Height(); i += blockSize {
		for j := 0; j < primary.Width(); j += blockSize {
			w := Window{Row: i, Col: j, Height: blockSize, Width: blockSize}.Clip(primary.Height(), primary.Width())
			dst := block[:w.Pixels()]
			if err = g.warpWindow(srcDs, primary.WindowTransform(w), primary.Projection(), w.Height, w.Width, dst); err != nil {
				return
			}
			h, v := ThresholdCounts(dst, opt.Threshold, nodata, true, opt.Strict)
			hits += h
			valid += v
		}
	}
	if valid == 0 {
		return 0.0, nil
	}
	fraction = float64(hits) / float64(valid)
	return
}

// OverlayDensityFull is the single-buffer reference form of OverlayDensity:
// one destination allocation of the primary's full shape. Kept for small
// rasters and as the ground truth the blocked accumulation is checked
// against.
func (g *Toolbox) OverlayDensityFull(primary, secondary *Raster, opt OverlayOptions) (fraction float64, err error) {
	full := opt
	full.BlockSize = max(primary.Height(), primary.Width())
	return g.OverlayDensity(primary, secondary, full)
}

// BuildingCoverage runs the density check with the building-layer defaults:
// strictly positive settlement values over the tile footprint.
func (g *Toolbox) BuildingCoverage(tile, buildings *Raster) (float64, error) {
	return g.OverlayDensity(tile, buildings, OverlayOptions{
		Threshold: BUILDINGS_THRESHOLD,
		Strict:    true,
	})
}

// warpWindow resamples src (nearest) into a dst grid of shape (h,w) with the
// given transform and projection, reading the result into out.
func (g *Toolbox) warpWindow(src gdal.Dataset, gt []float64, proj string, h, w int, out []float64) (err error) {
	dst, err := g.memDataset(nil, h, w, gt, proj)
	if err != nil {
		return
	}
	defer dst.Close()
	if _, err = gdal.Warp("", &dst, []gdal.Dataset{src}, []string{"-r", "near"}); err != nil {
		log.Error(g.logTag+"warp failed", zap.Error(err))
		return
	}
	if err = dst.RasterBand(1).IO(gdal.Read, 0, 0, w, h, out, w, h, 0, 0); err != nil {
		log.Error(g.logTag+"read warped block failed", zap.Error(err))
		err = ErrTifReadFailed
	}
	return
}

// memDataset allocates an in-memory single-band float64 dataset, optionally
// preloaded from buf (row-major, len h*w).
func (g *Toolbox) memDataset(buf []float64, h, w int, gt []float64, proj string) (ds gdal.Dataset, err error) {
	driver, err := gdal.GetDriverByName(MEM_DRIVER_NAME)
	if err != nil {
		log.Error(g.logTag+"get mem driver failed", zap.Error(err))
		err = ErrGdalDriverCreate
		return
	}
	ds = driver.Create("", w, h, 1, gdal.Float64, nil)
	ds.SetGeoTransform(gt)
	if proj != "" {
		ds.SetProjection(proj)
	}
	if buf != nil {
		if err = ds.RasterBand(1).IO(gdal.Write, 0, 0, w, h, buf, w, h, 0, 0); err != nil {
			log.Error(g.logTag+"load mem dataset failed", zap.Error(err))
			ds.Close()
			err = ErrTifWriteFailed
		}
	}
	return
}

// subWindowFromSpan maps a map-space span [minX, maxX, minY, maxY] onto the
// pixel window it covers in a north-up grid, clipped to the raster bounds.
func subWindowFromSpan(gt []float64, height, width int, span [4]float64) Window {
	col0 := (span[0] - gt[0]) / gt[1]
	col1 := (span[1] - gt[0]) / gt[1]
	row0 := (span[3] - gt[3]) / gt[5]
	row1 := (span[2] - gt[3]) / gt[5]
	if col1 < col0 {
		col0, col1 = col1, col0
	}
	if row1 < row0 {
		row0, row1 = row1, row0
	}
	r := int(math.Floor(row0))
	c := int(math.Floor(col0))
	if r < 0 {
		r = 0
	}
	if c < 0 {
		c = 0
	}
	rEnd := int(math.Ceil(row1))
	cEnd := int(math.Ceil(col1))
	if rEnd > height {
		rEnd = height
	}
	if cEnd > width {
		cEnd = width
	}
	return Window{Row: r, Col: c, Height: rEnd - r, Width: cEnd - c}
}
