package satimg

import (
	"os"

	"github.com/GabeTsai/sat-img-utils/log"
	"github.com/GabeTsai/sat-img-utils/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// AoiFromTiles unions the footprints of the given tiles into one area of
// interest in lon/lat, returned as GeoJSON. Tiles that fail to open are
// logged and skipped; an AOI with no contributing tile is an error.
func (g *Toolbox) AoiFromTiles(tifs ...string) (ret AnyJson, err error) {
	tRef, err := g.getSridRef(GEOJSON_SRID)
	if err != nil {
		return
	}
	var (
		aoi = gdal.Create(gdal.GT_Polygon)
		cnt int
		gc  []destroyable
	)
	defer func() {
		gc = append(gc, aoi)
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for _, tif := range tifs {
		r, e := g.OpenRaster(tif)
		if e != nil {
			log.Warn(g.logTag+"skip unreadable tile for aoi", zap.String("tif", tif), zap.Error(e))
			continue
		}
		sRef, e := g.refFromProjWkt(r.Projection())
		if e != nil {
			r.Close()
			continue
		}
		geo, e := g.parseWKT(r.BoundsWkt(), sRef)
		if e != nil {
			sRef.Destroy()
			r.Close()
			continue
		}
		if e = geo.TransformTo(tRef); e != nil {
			log.Error(g.logTag+"footprint transform failed", zap.String("tif", tif), zap.Error(e))
			geo.Destroy()
			sRef.Destroy()
			r.Close()
			continue
		}
		gc = append(gc, aoi, geo)
		aoi = aoi.Union(geo)
		sRef.Destroy()
		r.Close()
		cnt++
	}
	if cnt == 0 || aoi.IsEmpty() {
		err = ErrEmptyAOI
		return
	}
	ret = utils.S2B(aoi.ToJSON())
	log.Info(g.logTag+"aoi built", zap.Int("tiles", cnt))
	return
}

// WriteAoiGeoJSON builds the AOI of the tiles and writes it to out.
func (g *Toolbox) WriteAoiGeoJSON(out string, tifs ...string) (err error) {
	aoi, err := g.AoiFromTiles(tifs...)
	if err != nil {
		return
	}
	if err = os.WriteFile(out, aoi, os.ModePerm); err != nil {
		return
	}
	log.Info(g.logTag+"aoi written", zap.String("out", out))
	return
}
