package satimg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GabeTsai/sat-img-utils/log"
	"github.com/GabeTsai/sat-img-utils/utils"

	"github.com/google/uuid"
	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

const FILE_EXT_ZIP = ".zip"

// LandMaskForTile rasterizes land polygons onto a tile's grid: 1 = land,
// 0 = water. landPath is a shapefile or a zip archive holding one. A tile
// with no intersecting land yields an all-zero mask, not an error.
func (g *Toolbox) LandMaskForTile(landPath string, tile *Raster) (mask *LandMask, err error) {
	shp := landPath
	if strings.HasSuffix(landPath, FILE_EXT_ZIP) {
		var dir string
		if dir, err = utils.GetUniqSubDir(g.tmpDir); err != nil {
			return
		}
		defer os.RemoveAll(dir)
		var utf8 bool
		if shp, utf8, err = utils.GetShpInZip(landPath, dir); err != nil {
			log.Error(g.logTag+"unzip land shp failed", zap.String("zip", landPath), zap.Error(err))
			return
		}
		if shp, err = g.encodeShapefile(shp, utf8); err != nil {
			return
		}
	}
	tRef, err := g.refFromProjWkt(tile.Projection())
	if err != nil {
		return
	}
	defer tRef.Destroy()
	land, err := g.cleanedShpUnion(shp, tRef)
	if err != nil {
		return
	}
	defer land.Destroy()
	return g.landMaskOnGrid(land, tile, tRef)
}

// LandMaskForGeo is LandMaskForTile for callers that already hold the land
// polygons as a WKB geometry in EPSG:4326 (a database export rather than a
// shapefile).
func (g *Toolbox) LandMaskForGeo(geom GdalGeo, tile *Raster) (mask *LandMask, err error) {
	uRef, err := g.getSridRef(UNIVERSAL_SRID)
	if err != nil {
		return
	}
	tRef, err := g.refFromProjWkt(tile.Projection())
	if err != nil {
		return
	}
	defer tRef.Destroy()
	land, err := g.parseWKB(geom, uRef)
	if err != nil {
		return
	}
	defer land.Destroy()
	if err = land.TransformTo(tRef); err != nil {
		log.Error(g.logTag+"land transform failed", zap.Error(err))
		return
	}
	return g.landMaskOnGrid(land, tile, tRef)
}

// landMaskOnGrid burns a land geometry, already in the tile's CRS, onto the
// tile grid. Non-intersecting geometries yield an all-zero mask.
func (g *Toolbox) landMaskOnGrid(land gdal.Geometry, tile *Raster, tRef gdal.SpatialReference) (mask *LandMask, err error) {
	mask = &LandMask{
		Height: tile.Height(),
		Width:  tile.Width(),
		Pix:    make([]uint8, tile.Height()*tile.Width()),
	}
	bounds, err := g.parseWKT(tile.BoundsWkt(), tRef)
	if err != nil {
		return
	}
	defer bounds.Destroy()
	if land.IsEmpty() || !land.Intersects(bounds) {
		log.Warn(g.logTag+"no land within tile", zap.String("tif", tile.Path()))
		return
	}
	clipped := land.Intersection(bounds)
	defer clipped.Destroy()
	if clipped.IsEmpty() {
		return
	}
	err = g.rasterizeGeo(clipped, tile, mask.Pix)
	return
}

// encodeShapefile rewrites a shapefile whose attribute table is not UTF-8.
// Anything without a UTF-8 cpg marker is treated as GBK.
func (g *Toolbox) encodeShapefile(shp string, utf8 bool) (out string, err error) {
	if utf8 {
		out = shp
		return
	}
	sds, err := gdal.OpenEx(shp, gdal.OFVector, nil, []string{OO_ENCODING}, nil)
	if err != nil {
		log.Error(g.logTag+"open shp error", zap.Error(err))
		return
	}
	defer sds.Close()
	out = strings.TrimSuffix(shp, FILE_EXT_SHP) + "_" + SHAPE_ENCODING + FILE_EXT_SHP
	dds, err := gdal.VectorTranslate(out, []gdal.Dataset{sds}, []string{"-lco", ENCODING_OPTION})
	if err != nil {
		log.Error(g.logTag + "VectorTranslate failed")
		return
	}
	dds.Close()
	log.Info(g.logTag+"re-encoded shp", zap.String("shp", out))
	return
}

// cleanedShpUnion unions all polygon features of a shapefile after repairing
// them: zero-width buffer first, then null/empty/invalid features dropped.
// The result is reprojected into tRef.
func (g *Toolbox) cleanedShpUnion(shp string, tRef gdal.SpatialReference) (ret gdal.Geometry, err error) {
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, 0)
	if !ok {
		err = ErrGdalDriverOpen
		return
	}
	defer ds.Destroy()
	var (
		layer   = ds.LayerByIndex(0)
		sRef    = layer.SpatialReference()
		feature *gdal.Feature
		total   int
		kept    int
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	ret = gdal.Create(gdal.GT_Polygon)
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		total++
		geo := feature.Geometry().Buffer(0, 1)
		gc = append(gc, geo)
		if geo.IsEmpty() || !geo.IsValid() {
			continue
		}
		gc = append(gc, ret)
		ret = ret.Union(geo)
		kept++
	}
	trans := gdal.CreateCoordinateTransform(sRef, tRef)
	defer trans.Destroy()
	if err = ret.Transform(trans); err != nil {
		log.Error(g.logTag+"land transform failed", zap.Error(err))
		gc = append(gc, ret)
		return
	}
	// Reprojection can fold vertices onto each other; repair once more.
	gc = append(gc, ret)
	ret = ret.Buffer(0, 1)
	log.Info(g.logTag+"cleaned land polygons", zap.String("shp", shp),
		zap.Int("total", total), zap.Int("kept", kept))
	return
}

// rasterizeGeo burns a geometry (already in the tile's CRS) onto the tile's
// exact grid and reads the result into pix.
func (g *Toolbox) rasterizeGeo(geo gdal.Geometry, tile *Raster, pix []uint8) (err error) {
	tmpGeoJson := filepath.Join(g.tmpDir, fmt.Sprintf(TMP_GEOJSON, uuid.NewString()))
	tmpMask := filepath.Join(g.tmpDir, fmt.Sprintf(TMP_MASK_TIF, uuid.NewString()))
	defer func() {
		os.Remove(tmpGeoJson)
		os.Remove(tmpMask)
	}()
	if err = os.WriteFile(tmpGeoJson, utils.S2B(geo.ToJSON()), os.ModePerm); err != nil {
		return
	}
	sds, err := gdal.OpenEx(tmpGeoJson, gdal.OFVector, nil, nil, nil)
	if err != nil {
		log.Error(g.logTag+"open geojson failed", zap.Error(err))
		return
	}
	defer sds.Close()
	var (
		gt         = tile.GeoTransform()
		w, h       = tile.Width(), tile.Height()
		xMin, yMax = gt[0], gt[3]
		xMax       = gt[0] + float64(w)*gt[1]
		yMin       = gt[3] + float64(h)*gt[5]
	)
	dds, err := gdal.Rasterize(tmpMask, sds, []string{
		"-burn", "1", "-init", "0", "-ot", "Byte",
		"-ts", fmt.Sprint(w), fmt.Sprint(h),
		"-te", fmt.Sprint(xMin), fmt.Sprint(yMin), fmt.Sprint(xMax), fmt.Sprint(yMax),
	})
	if err != nil {
		log.Error(g.logTag+"rasterize land failed", zap.Error(err))
		return
	}
	defer dds.Close()
	if err = dds.RasterBand(1).IO(gdal.Read, 0, 0, w, h, pix, w, h, 0, 0); err != nil {
		log.Error(g.logTag+"read land mask failed", zap.Error(err))
		err = ErrTifReadFailed
	}
	return
}
