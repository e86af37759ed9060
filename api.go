package satimg

import "encoding/json"

type AnyJson = json.RawMessage

type GdalGeo = []byte

// Metadata record of one kept patch.
type Record struct {
	ImgName   string  `json:"img_name"`
	PatchName string  `json:"patch_name"`
	Lon       float64 `json:"lon"`
	Lat       float64 `json:"lat"`
}
