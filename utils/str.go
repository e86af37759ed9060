package utils

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func B2S(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

func S2B(s string) []byte {
	const MaxInt32 = 1<<31 - 1
	return (*[MaxInt32]byte)(unsafe.Pointer((*reflect.StringHeader)(
		unsafe.Pointer(&s)).Data))[: len(s)&MaxInt32 : len(s)&MaxInt32]
}

func GetNowTimeTag() string {
	const tf = "20060102150405.000"
	t := time.Now().Format(tf)
	return t[:len(tf)-4] + t[len(tf)-3:]
}

// GBK to UTF-8
func GbkToUtf8(s []byte) (d []byte, e error) {
	reader := transform.NewReader(bytes.NewReader(s), simplifiedchinese.GBK.NewDecoder())
	d, e = io.ReadAll(reader)
	return
}

// GBK string to UTF-8
func GbkStrToUtf8(s string) (d string, e error) {
	reader := transform.NewReader(strings.NewReader(s), simplifiedchinese.GBK.NewDecoder())
	t, e := io.ReadAll(reader)
	if e != nil {
		return
	}
	d = B2S(t)
	return
}
