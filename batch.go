package satimg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/GabeTsai/sat-img-utils/log"
	"github.com/GabeTsai/sat-img-utils/utils"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	SIDECAR_SUFFIX = "_extended" + FILE_EXT_JSON
	PATCH_SUBDIR   = "sar_patches"
	META_SUBDIR    = "patch_metadata"
)

// Collection years scanned under a year-based tile layout.
var DefaultCapellaYears = []int{2020, 2021, 2022, 2023, 2024, 2025}

// BatchOptions configures one run over a directory of Capella tiles.
type BatchOptions struct {
	CapellaDir   string
	OutDir       string
	GhslPath     string // building-density raster; empty skips the coverage gate
	LandPolyPath string // land polygons (shp or zip); empty skips land masking
	PatchSize    int
	// Flat expects CapellaDir/NAME/NAME.tif; otherwise CapellaDir/YEAR/NAME/NAME.tif.
	Flat    bool
	Years   []int
	Workers int
	Rand    func() float64
}

// ListCapellaTiles walks the two supported layouts and returns the tile tif
// paths. Only directories whose names mention both the constellation and the
// geocoded product are taken.
func ListCapellaTiles(capellaDir string, flat bool, years []int) (tifs []string, err error) {
	roots := []string{capellaDir}
	if !flat {
		if len(years) == 0 {
			years = DefaultCapellaYears
		}
		roots = roots[:0]
		for _, year := range years {
			roots = append(roots, filepath.Join(capellaDir, strconv.Itoa(year)))
		}
	}
	for _, root := range roots {
		entries, e := os.ReadDir(root)
		if e != nil {
			if os.IsNotExist(e) {
				continue
			}
			return nil, e
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := strings.ToLower(entry.Name())
			if !strings.Contains(name, "capella") || !strings.Contains(name, "geo") {
				continue
			}
			tifs = append(tifs, filepath.Join(root, entry.Name(), entry.Name()+FILE_EXT_TIF))
		}
	}
	return
}

// TileResult is the outcome of one tile's extraction.
type TileResult struct {
	Tif        string
	NumPatches int
	MetaShp    string
	Skipped    bool
}

// processTile runs the full per-image chain: resolution gate, building
// coverage gate, land mask, patch extraction, metadata shapefile.
func (g *Toolbox) processTile(tif string, ghsl *Raster, patchDir, metaDir string, opt *BatchOptions) (res TileResult, err error) {
	res.Tif = tif
	r, err := g.OpenRaster(tif)
	if err != nil {
		err = errors.Wrapf(err, "open tile %s", tif)
		return
	}
	defer r.Close()

	if rx, ry := r.Res(); rx >= RES_THRESHOLD_M || ry >= RES_THRESHOLD_M {
		log.Info(g.logTag+"skipping low resolution tile", zap.String("tif", tif),
			zap.Float64("resX", rx), zap.Float64("resY", ry))
		res.Skipped = true
		return
	}
	if ghsl != nil {
		var cover float64
		if cover, err = g.BuildingCoverage(r, ghsl); err != nil {
			err = errors.Wrapf(err, "building coverage of %s", tif)
			return
		}
		log.Info(g.logTag+"building coverage", zap.String("tif", tif), zap.Float64("cover", cover))
		if cover < MIN_BUILDING_COVERAGE {
			res.Skipped = true
			return
		}
	}
	var landMask *LandMask
	if opt.LandPolyPath != "" {
		if landMask, err = g.LandMaskForTile(opt.LandPolyPath, r); err != nil {
			err = errors.Wrapf(err, "land mask of %s", tif)
			return
		}
	}
	sidecar := strings.TrimSuffix(tif, FILE_EXT_TIF) + SIDECAR_SUFFIX
	records, err := g.GenCapellaTilePatches(r, sidecar, patchDir, landMask, CapellaOptions{
		PatchSize: opt.PatchSize,
		Rand:      opt.Rand,
	})
	if err != nil {
		err = errors.Wrapf(err, "extract patches of %s", tif)
		return
	}
	res.NumPatches = len(records)
	if len(records) == 0 {
		return
	}
	imgName := utils.GetFilenameWithoutExt(tif)
	res.MetaShp = filepath.Join(metaDir, fmt.Sprintf(META_SHP_TEMPLATE, imgName))
	if err = g.WritePatchMetadata(res.MetaShp, UNIVERSAL_SRID, records); err != nil {
		err = errors.Wrapf(err, "metadata of %s", tif)
	}
	return
}

// ProcessCapellaBatch runs the extraction over every tile under the
// configured layout. One tile's failure is logged and skipped, never fatal
// to its siblings. With Workers > 1 the tiles are fanned out to that many
// goroutines, each owning its raster handles. Returns the per-tile results
// and the path of the merged run-level metadata table.
func (g *Toolbox) ProcessCapellaBatch(opt BatchOptions) (results []TileResult, mergedShp string, err error) {
	patchDir := filepath.Join(opt.OutDir, PATCH_SUBDIR)
	metaDir := filepath.Join(opt.OutDir, META_SUBDIR)
	for _, dir := range []string{patchDir, metaDir} {
		if err = os.MkdirAll(dir, os.ModePerm); err != nil {
			return
		}
	}
	// A broken building-raster path fails the whole run up front; workers
	// still open their own handles.
	if opt.GhslPath != "" {
		var probe *Raster
		if probe, err = g.OpenRaster(opt.GhslPath); err != nil {
			err = errors.Wrapf(err, "open building raster %s", opt.GhslPath)
			return
		}
		probe.Close()
	}
	tifs, err := ListCapellaTiles(opt.CapellaDir, opt.Flat, opt.Years)
	if err != nil {
		return
	}
	log.Info(g.logTag+"batch start", zap.String("dir", opt.CapellaDir), zap.Int("tiles", len(tifs)))

	workers := opt.Workers
	if workers <= 1 {
		workers = 1
	}
	var (
		jobs = make(chan string)
		mu   sync.Mutex
		wg   sync.WaitGroup
	)
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbx := NewToolbox(g.tmpDir)
			var ghsl *Raster
			if opt.GhslPath != "" {
				var e error
				if ghsl, e = tbx.OpenRaster(opt.GhslPath); e != nil {
					log.Error(tbx.logTag+"open building raster failed", zap.String("tif", opt.GhslPath), zap.Error(e))
					for range jobs {
					}
					return
				}
				defer ghsl.Close()
			}
			for tif := range jobs {
				res, e := tbx.processTile(tif, ghsl, patchDir, metaDir, &opt)
				if e != nil {
					log.Error(tbx.logTag+"tile failed", zap.String("tif", tif), zap.Error(e))
					continue
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}
	for _, tif := range tifs {
		jobs <- tif
	}
	close(jobs)
	wg.Wait()

	var (
		total    int
		metaShps []string
	)
	for _, res := range results {
		total += res.NumPatches
		if res.MetaShp != "" {
			metaShps = append(metaShps, res.MetaShp)
		}
	}
	log.Info(g.logTag+"batch done", zap.Int("tiles", len(results)), zap.Int("patches", total))
	if len(metaShps) > 0 {
		mergedShp, err = g.MergePatchMetadata(metaDir, UNIVERSAL_SRID, metaShps...)
	}
	return
}
