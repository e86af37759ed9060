package utils

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unzip extracts an archive into dstDir, flattening directories, and returns
// the extracted file paths. Entry names not flagged UTF-8 are treated as GBK,
// the legacy encoding of the upstream shapefile archives.
func Unzip(zipFile, dstDir string) (files []string, err error) {
	zr, err := zip.OpenReader(zipFile)
	if err != nil {
		return
	}
	defer zr.Close()
	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		if f.NonUTF8 {
			if dec, e := GbkStrToUtf8(name); e == nil {
				name = dec
			}
		}
		if f.FileInfo().IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		var (
			rc  io.ReadCloser
			out *os.File
		)
		if rc, err = f.Open(); err != nil {
			return
		}
		path := filepath.Join(dstDir, name)
		if out, err = os.Create(path); err != nil {
			rc.Close()
			return
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return
		}
		files = append(files, path)
	}
	return
}
