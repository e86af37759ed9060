package satimg

import (
	"fmt"

	"github.com/GabeTsai/sat-img-utils/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// Raster is a read-only handle on a georeferenced grid: dimensions, affine
// transform, projection and nodata plus windowed band access. The caller owns
// the handle and must Close it.
type Raster struct {
	ds     gdal.Dataset
	tbx    *Toolbox
	path   string
	width  int
	height int
	bands  int
	gt     []float64
	proj   string
	nodata *float64
}

// OpenRaster opens a raster file for reading.
func (g *Toolbox) OpenRaster(path string) (r *Raster, err error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		log.Error(g.logTag+"open tif failed", zap.String("tif", path), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	r = &Raster{
		ds:     ds,
		tbx:    g,
		path:   path,
		width:  ds.RasterXSize(),
		height: ds.RasterYSize(),
		bands:  ds.RasterCount(),
		gt:     ds.GeoTransform(),
		proj:   ds.Projection(),
	}
	if r.width == 0 || r.height == 0 || r.bands == 0 {
		ds.Close()
		r = nil
		err = ErrWrongTif
		return
	}
	if nd, ok := ds.RasterBand(1).NoDataValue(); ok {
		r.nodata = &nd
	}
	log.Info(g.logTag+"opened raster", zap.String("tif", path),
		zap.Int("width", r.width), zap.Int("height", r.height), zap.Int("bands", r.bands))
	return
}

func (r *Raster) Close() {
	r.ds.Close()
}

func (r *Raster) Path() string            { return r.path }
func (r *Raster) Width() int              { return r.width }
func (r *Raster) Height() int             { return r.height }
func (r *Raster) Bands() int              { return r.bands }
func (r *Raster) Projection() string      { return r.proj }
func (r *Raster) Nodata() *float64        { return r.nodata }
func (r *Raster) GeoTransform() []float64 { return r.gt }

// Res returns the absolute pixel resolution (x, y) in map units.
func (r *Raster) Res() (float64, float64) {
	return abs(r.gt[1]), abs(r.gt[5])
}

// ReadBlock implements BandReader over a GDAL band. The window must lie
// inside the raster; read failures propagate as ErrTifReadFailed.
func (r *Raster) ReadBlock(band int, w Window, buf []float64) error {
	if band < 1 || band > r.bands {
		return ErrWrongBand
	}
	if !w.valid(r.height, r.width) || w.Row+w.Height > r.height || w.Col+w.Width > r.width {
		return ErrWrongWindow
	}
	rb := r.ds.RasterBand(band)
	if err := rb.IO(gdal.Read, w.Col, w.Row, w.Width, w.Height, buf, w.Width, w.Height, 0, 0); err != nil {
		log.Error("read tif band failed", zap.String("tif", r.path), zap.Int("band", band), zap.Error(err))
		return ErrTifReadFailed
	}
	return nil
}

// ReadOverview reads one band decimated to roughly targetWidth columns, for
// cheap whole-raster statistics. Returns the buffer and its height/width.
func (r *Raster) ReadOverview(band, targetWidth int) (buf []float64, h, w int, err error) {
	if band < 1 || band > r.bands {
		err = ErrWrongBand
		return
	}
	scale := 1
	if r.width > targetWidth {
		scale = (r.width + targetWidth - 1) / targetWidth
	}
	w = r.width / scale
	h = r.height / scale
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	buf = make([]float64, h*w)
	rb := r.ds.RasterBand(band)
	if err = rb.IO(gdal.Read, 0, 0, r.width, r.height, buf, w, h, 0, 0); err != nil {
		log.Error("read overview failed", zap.String("tif", r.path), zap.Int("scale", scale), zap.Error(err))
		err = ErrTifReadFailed
		buf = nil
	}
	return
}

// WindowTransform is the affine transform of a sub-window: same pixel scale
// and rotation, origin shifted to the window's top-left corner.
func (r *Raster) WindowTransform(w Window) []float64 {
	x0, y0 := applyGeoTransform(r.gt, float64(w.Row), float64(w.Col))
	return []float64{x0, r.gt[1], r.gt[2], y0, r.gt[4], r.gt[5]}
}

// BoundsWkt is the raster footprint as a polygon WKT in its native CRS.
func (r *Raster) BoundsWkt() string {
	if r.gt[2] == 0 && r.gt[4] == 0 {
		x1 := r.gt[0] + float64(r.width)*r.gt[1]
		y1 := r.gt[3] + float64(r.height)*r.gt[5]
		return SpanToWkt([4]float64{min(r.gt[0], x1), max(r.gt[0], x1), min(r.gt[3], y1), max(r.gt[3], y1)})
	}
	// Rotated grid: trace the four corners instead.
	x0, y0 := applyGeoTransform(r.gt, 0, 0)
	x1, y1 := applyGeoTransform(r.gt, 0, float64(r.width))
	x2, y2 := applyGeoTransform(r.gt, float64(r.height), float64(r.width))
	x3, y3 := applyGeoTransform(r.gt, float64(r.height), 0)
	return fmt.Sprintf("POLYGON((%f %f, %f %f, %f %f, %f %f, %f %f))",
		x0, y0, x1, y1, x2, y2, x3, y3, x0, y0)
}

// WindowCenterLonLat returns the geographic center of a window in EPSG:4326.
func (g *Toolbox) WindowCenterLonLat(r *Raster, w Window) (lon, lat float64, err error) {
	cRow := float64(w.Row) + float64(w.Height)/2
	cCol := float64(w.Col) + float64(w.Width)/2
	x, y := applyGeoTransform(r.gt, cRow, cCol)
	if r.proj == "" {
		return x, y, nil
	}
	sRef, err := g.refFromProjWkt(r.proj)
	if err != nil {
		return
	}
	defer sRef.Destroy()
	if srid, e := g.getSrid(sRef); e == nil && srid == UNIVERSAL_SRID {
		return x, y, nil
	}
	tRef, err := g.getSridRef(UNIVERSAL_SRID)
	if err != nil {
		return
	}
	pt, err := g.parseWKT(PointToWkt(x, y), sRef)
	if err != nil {
		return
	}
	defer pt.Destroy()
	trans := gdal.CreateCoordinateTransform(sRef, tRef)
	defer trans.Destroy()
	if err = pt.Transform(trans); err != nil {
		log.Error(g.logTag+"center transform failed", zap.Error(err))
		return
	}
	envelop := pt.Envelope()
	lon, lat = envelop.MinX(), envelop.MinY()
	return
}

// CenterLonLat satisfies the extraction engine's tile-source contract.
func (r *Raster) CenterLonLat(w Window) (lon, lat float64, err error) {
	return r.tbx.WindowCenterLonLat(r, w)
}

// Pixel (row,col) to map coordinates through an affine geotransform.
func applyGeoTransform(gt []float64, row, col float64) (x, y float64) {
	x = gt[0] + col*gt[1] + row*gt[2]
	y = gt[3] + col*gt[4] + row*gt[5]
	return
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
