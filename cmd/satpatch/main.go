package main

import (
	"flag"
	"fmt"
	"os"

	satimg "github.com/GabeTsai/sat-img-utils"
	"github.com/GabeTsai/sat-img-utils/log"
	"github.com/GabeTsai/sat-img-utils/utils"
)

const usage = `usage: satpatch <command> [flags]

commands:
  generate   cut 8-bit SAR training patches from a directory of Capella tiles
  aoi        write the merged footprint of a set of tiles as GeoJSON
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	l := log.NewDevLogger()
	defer l.Sync()
	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(os.Args[2:])
	case "aoi":
		err = runAoi(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "satpatch:", err)
		os.Exit(1)
	}
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	var (
		dir       = fs.String("dir", "", "directory of Capella tiles")
		out       = fs.String("out", "", "output directory for patches and metadata")
		ghsl      = fs.String("ghsl", "", "building-density raster path (optional)")
		land      = fs.String("land", "", "land polygons shp/zip path (optional)")
		patchSize = fs.Int("patch-size", satimg.DEFAULT_PATCH_SIZE, "patch side length in pixels")
		flat      = fs.Bool("flat", false, "flat tile layout instead of per-year directories")
		workers   = fs.Int("workers", 1, "parallel tile workers")
		tmpDir    = fs.String("tmp", os.TempDir(), "scratch directory")
	)
	fs.Parse(args)
	if *dir == "" || *out == "" {
		return fmt.Errorf("generate: -dir and -out are required")
	}
	tbx := satimg.NewToolbox(*tmpDir)
	results, merged, err := tbx.ProcessCapellaBatch(satimg.BatchOptions{
		CapellaDir:   *dir,
		OutDir:       *out,
		GhslPath:     *ghsl,
		LandPolyPath: *land,
		PatchSize:    *patchSize,
		Flat:         *flat,
		Workers:      *workers,
	})
	if err != nil {
		return err
	}
	var total int
	for _, res := range results {
		total += res.NumPatches
	}
	fmt.Printf("%d tiles processed, %d patches saved\n", len(results), total)
	if merged != "" {
		fmt.Println("merged metadata:", merged)
	}
	return nil
}

func runAoi(args []string) error {
	fs := flag.NewFlagSet("aoi", flag.ExitOnError)
	var (
		out    = fs.String("out", "", "output GeoJSON path (default aoi_<timestamp>.json)")
		tmpDir = fs.String("tmp", os.TempDir(), "scratch directory")
	)
	fs.Parse(args)
	tifs := fs.Args()
	if len(tifs) == 0 {
		return fmt.Errorf("aoi: at least one tile tif is required")
	}
	if *out == "" {
		*out = fmt.Sprintf("aoi_%s.json", utils.GetNowTimeTag())
	}
	tbx := satimg.NewToolbox(*tmpDir)
	return tbx.WriteAoiGeoJSON(*out, tifs...)
}
