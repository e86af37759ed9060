package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	FILE_EXT_SHP = ".shp"
	FILE_EXT_CPG = ".cpg"
	FILE_EXT_TIF = ".tif"

	UTF8  = "UTF8"
	UTF_8 = "UTF-8"
)

var (
	ErrNoShpInZip = errors.New("no shp in zip")
)

func GetUniqSubDir(parentPath string) (path string, err error) {
	path = filepath.Join(parentPath, uuid.NewString())
	err = os.Mkdir(path, os.ModePerm)
	return
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

// Extracts the shp from a zip archive; reports whether its attribute table is UTF-8 encoded.
func GetShpInZip(zipFile, dstDir string) (path string, utf8 bool, err error) {
	shpFiles, err := Unzip(zipFile, dstDir)
	if err != nil {
		return
	}
	for _, file := range shpFiles {
		if strings.HasSuffix(file, FILE_EXT_SHP) {
			path = file
			continue
		}
		if strings.HasSuffix(file, FILE_EXT_CPG) {
			enc, e := os.ReadFile(file)
			if e == nil && len(enc) > 0 {
				encStr := strings.ToUpper(strings.TrimSpace(string(enc)))
				utf8 = encStr == UTF_8 || encStr == UTF8
			}
		}
	}
	if path == "" {
		err = ErrNoShpInZip
	}
	return
}
