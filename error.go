package satimg

import "errors"

var (
	ErrGdalDriverCreate    = errors.New("gdal driver create err")
	ErrGdalDriverOpen      = errors.New("gdal driver open err")
	ErrVoidSrid            = errors.New("void srid in spatial ref")
	ErrInvalidWKT          = errors.New("invalid WKT")
	ErrInvalidTif          = errors.New("invalid tif")
	ErrWrongTif            = errors.New("tif is malformed")
	ErrTifReadFailed       = errors.New("tif band read failed")
	ErrTifWriteFailed      = errors.New("tif band write failed")
	ErrWrongWindow         = errors.New("window outside raster bounds")
	ErrWrongBand           = errors.New("band index out of range")
	ErrScalarCtxEntry      = errors.New("context extra entry must be a params mapping")
	ErrReservedCtxKey      = errors.New("context component name is reserved")
	ErrNoValidityInput     = errors.New("neither valid pixels nor reference patch given")
	ErrUnknownPolarization = errors.New("unknown polarization in image name")
	ErrEmptyAOI            = errors.New("no rasters found for AOI")
)
