package satimg

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/GabeTsai/sat-img-utils/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// Toolbox bundles the GDAL-backed operations of the patch pipeline: raster
// handles, land-mask rasterization, overlay statistics, AOI and metadata
// output. Spatial references are cached per srid and reused.
type Toolbox struct {
	refMap map[int]gdal.SpatialReference
	rLock  sync.Mutex
	tmpDir string
	logTag string
}

// Memory objects created by the GDAL C library need an explicit Destroy.
type destroyable interface {
	Destroy()
}

// NewToolbox creates a toolbox; tmpDir is an optional scratch directory for
// intermediate GeoJSON/raster artifacts (defaults to the current directory).
func NewToolbox(tmpDir ...string) *Toolbox {
	g := &Toolbox{
		refMap: map[int]gdal.SpatialReference{},
		logTag: "SatImgToolbox:",
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		g.tmpDir = tmpDir[0]
	}
	return g
}

// Spatial ref of the given srid (cached, so never destroyed by callers).
func (g *Toolbox) getSridRef(srid int) (ref gdal.SpatialReference, err error) {
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ref, ok := g.refMap[srid]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	if err = ref.FromEPSG(srid); err != nil {
		log.Error(g.logTag+"set ref srid failed", zap.Int("srid", srid), zap.Error(err))
		ref.Destroy()
		return
	}
	// Keep the data axis order fixed to (lon,lat) regardless of what the CRS
	// declares, so transformed coordinates never come back swapped.
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	g.refMap[srid] = ref
	return
}

func (g *Toolbox) getSrid(sp gdal.SpatialReference) (srid int, err error) {
	rawId, ok := sp.AttrValue("AUTHORITY", 1)
	if !ok {
		err = ErrVoidSrid
		return
	}
	srid, err = strconv.Atoi(rawId)
	return
}

// Spatial ref parsed from a projection WKT; caller destroys.
func (g *Toolbox) refFromProjWkt(wkt string) (ref gdal.SpatialReference, err error) {
	ref = gdal.CreateSpatialReference(wkt)
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	return
}

func (g *Toolbox) parseWKB(wkb GdalGeo, ref gdal.SpatialReference) (ret gdal.Geometry, err error) {
	ret, err = gdal.CreateFromWKB(wkb, ref, len(wkb))
	if err != nil {
		log.Error(g.logTag+"parse wkb failed", zap.Error(err))
	}
	return
}

func (g *Toolbox) parseWKT(wkt string, ref gdal.SpatialReference) (ret gdal.Geometry, err error) {
	ret, err = gdal.CreateFromWKT(wkt, ref)
	if err != nil {
		log.Error(g.logTag+"parse wkt failed", zap.Error(err))
		err = ErrInvalidWKT
	}
	return
}

// Reprojects a WKT geometry between two spatial refs and returns its envelope
// as [minX, maxX, minY, maxY] in the target ref.
func (g *Toolbox) transformedSpan(wkt string, sRef, tRef gdal.SpatialReference) (span [4]float64, err error) {
	geo, err := g.parseWKT(wkt, sRef)
	if err != nil {
		return
	}
	defer geo.Destroy()
	trans := gdal.CreateCoordinateTransform(sRef, tRef)
	defer trans.Destroy()
	if err = geo.Transform(trans); err != nil {
		log.Error(g.logTag+"geo transform failed", zap.Error(err))
		return
	}
	envelop := geo.Envelope()
	span[0] = envelop.MinX()
	span[1] = envelop.MaxX()
	span[2] = envelop.MinY()
	span[3] = envelop.MaxY()
	return
}

func PointsToWkt(lon1, lon2, lat1, lat2 float64) string {
	return fmt.Sprintf("POLYGON((%[1]f %[3]f, %[1]f %[4]f, %[2]f %[4]f, %[2]f %[3]f, %[1]f %[3]f))", lon1, lon2, lat1, lat2)
}

func SpanToWkt(span [4]float64) string {
	return PointsToWkt(span[0], span[1], span[2], span[3])
}

func PointToWkt(x, y float64) string {
	return fmt.Sprintf("POINT(%f %f)", x, y)
}
