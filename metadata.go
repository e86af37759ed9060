package satimg

import (
	"fmt"
	"path/filepath"

	"github.com/GabeTsai/sat-img-utils/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

func (g *Toolbox) getMetaShpDriver(shp string, srid int) (ds gdal.DataSource, ref gdal.SpatialReference, layer gdal.Layer, err error) {
	log.Info(g.logTag+"output metadata shp", zap.String("shp", shp), zap.Int("srid", srid))
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Create(shp, nil)
	if !ok {
		err = ErrGdalDriverCreate
		return
	}
	if ref, err = g.getSridRef(srid); err != nil {
		return
	}
	layer = ds.CreateLayer("", ref, gdal.GT_Point, []string{ENCODING_OPTION})
	return
}

func (g *Toolbox) initMetaLayer(layer gdal.Layer) (err error) {
	for _, name := range []string{SHP_FIELD_IMG, SHP_FIELD_PATCH} {
		field := gdal.CreateFieldDefinition(name, gdal.FT_String)
		field.SetWidth(128)
		if err = layer.CreateField(field, false); err != nil {
			return
		}
	}
	return
}

// WritePatchMetadata writes one raster's metadata records as a point
// shapefile: one feature per kept patch at its geographic center, attributed
// with the image and patch names.
func (g *Toolbox) WritePatchMetadata(shp string, srid int, records []Record) (err error) {
	ds, ref, layer, err := g.getMetaShpDriver(shp, srid)
	if err != nil {
		return
	}
	defer ds.Destroy()
	if err = g.initMetaLayer(layer); err != nil {
		return
	}
	var (
		def      = layer.Definition()
		imgIdx   = def.FieldIndex(SHP_FIELD_IMG)
		patchIdx = def.FieldIndex(SHP_FIELD_PATCH)
		feature  gdal.Feature
		geo      gdal.Geometry
		cnt      int
		e        error
		gc       = make([]destroyable, 0, len(records))
	)
	for i, rec := range records {
		feature = def.Create()
		gc = append(gc, feature)
		if e = feature.SetFID(int64(i)); e != nil {
			log.Error(g.logTag+"err in set feature fid", zap.Error(e))
			continue
		}
		feature.SetFieldString(imgIdx, rec.ImgName)
		feature.SetFieldString(patchIdx, rec.PatchName)
		if geo, e = g.parseWKT(PointToWkt(rec.Lon, rec.Lat), ref); e != nil {
			continue
		}
		if e = feature.SetGeometryDirectly(geo); e != nil {
			log.Error(g.logTag+"err in set geom of feature", zap.Error(e))
			continue
		}
		if e = layer.Create(feature); e != nil {
			log.Error(g.logTag+"err in create feature of layer", zap.Error(e))
			continue
		}
		cnt++
	}
	for _, v := range gc {
		v.Destroy()
	}
	log.Info(g.logTag+"metadata shp created", zap.String("shp", shp),
		zap.Int("total", len(records)), zap.Int("valid", cnt))
	return
}

// ReadPatchMetadata loads the records back out of a metadata shapefile.
func (g *Toolbox) ReadPatchMetadata(shp string) (records []Record, err error) {
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, 0)
	if !ok {
		err = ErrGdalDriverOpen
		return
	}
	defer ds.Destroy()
	var (
		layer    = ds.LayerByIndex(0)
		def      = layer.Definition()
		imgIdx   = def.FieldIndex(SHP_FIELD_IMG)
		patchIdx = def.FieldIndex(SHP_FIELD_PATCH)
		feature  *gdal.Feature
		gc       []destroyable
	)
	if imgIdx < 0 || patchIdx < 0 {
		err = fmt.Errorf("%s: missing metadata fields", shp)
		return
	}
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		envelop := feature.Geometry().Envelope()
		records = append(records, Record{
			ImgName:   feature.FieldAsString(imgIdx),
			PatchName: feature.FieldAsString(patchIdx),
			Lon:       envelop.MinX(),
			Lat:       envelop.MinY(),
		})
	}
	log.Info(g.logTag+"metadata shp parsed", zap.String("shp", shp), zap.Int("cnt", len(records)))
	return
}

// MergePatchMetadata concatenates per-raster metadata shapefiles into one
// run-level table. Unreadable inputs are logged and skipped so one bad
// raster's table never loses the rest of the run.
func (g *Toolbox) MergePatchMetadata(outDir string, srid int, shps ...string) (out string, err error) {
	var all []Record
	for _, shp := range shps {
		records, e := g.ReadPatchMetadata(shp)
		if e != nil {
			log.Warn(g.logTag+"skip unreadable metadata shp", zap.String("shp", shp), zap.Error(e))
			continue
		}
		all = append(all, records...)
	}
	out = filepath.Join(outDir, MERGED_META_SHP)
	err = g.WritePatchMetadata(out, srid, all)
	return
}
