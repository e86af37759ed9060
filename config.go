package satimg

const (
	FILE_EXT_TIF      = ".tif"
	FILE_EXT_SHP      = ".shp"
	FILE_EXT_JSON     = ".json"
	SHAPE_ENCODING    = "UTF-8"
	ZH_ENC            = "GBK"
	SHP_DRIVER_NAME   = "ESRI Shapefile"
	MEM_DRIVER_NAME   = "MEM"
	GTIFF_DRIVER_NAME = "GTiff"
	ENCODING_OPTION   = "ENCODING=" + SHAPE_ENCODING
	OO_ENCODING       = "ENCODING=" + ZH_ENC

	UNIVERSAL_SRID = 4326
	GEOJSON_SRID   = 4326

	// Memory-bounded window reading.
	MAX_WINDOW_BYTES = 1 << 30 // 1GB before a window read is chunked
	CHUNK_HEIGHT     = 10000   // rows per chunk

	// Block edge for the chunked overlay-density accumulation.
	DENSITY_BLOCK = 4096

	// Floor applied before the decibel transform so zero-intensity samples
	// do not map to -Inf.
	LOG_EPS = 1e-10

	// Overlay gate defaults for the building-density check.
	BUILDINGS_THRESHOLD   = 0.0
	MIN_BUILDING_COVERAGE = 0.30

	// Tiles at or above this ground resolution (meters) are skipped.
	RES_THRESHOLD_M = 1.0

	// Reduced-resolution read target for per-raster percentile estimation.
	OVERVIEW_TARGET_WIDTH = 2048

	DEFAULT_PATCH_SIZE = 512
	DEFAULT_GC_EVERY   = 1000

	// Default per-component parameters of the Capella filter chain.
	ZERO_FRACTION_LIMIT = 0.75
	MIN_LAND_THRESHOLD  = 0.1
	LAND_DISCARD_PROB   = 0.98

	SHP_FIELD_IMG   = "img_name"
	SHP_FIELD_PATCH = "patch_name"

	PATCH_NAME_TEMPLATE = "%s_patch_%d_%d" + FILE_EXT_TIF
	META_SHP_TEMPLATE   = "patch_metadata_%s" + FILE_EXT_SHP
	MERGED_META_SHP     = "patch_metadata_all" + FILE_EXT_SHP
	TMP_GEOJSON         = "geo_%s.json"
	TMP_MASK_TIF        = "mask_%s.tif"
)

// Fixed stretch percentile pairs, keyed by polarization. Set from visual
// inspection of Capella tiles; co-pol and cross-pol need different pairs.
const (
	LO_PCT_HH_VV = 0.0009
	HI_PCT_HH_VV = 99.99999
	LO_PCT_HV_VH = 32.5
	HI_PCT_HV_VH = 75.0
)
