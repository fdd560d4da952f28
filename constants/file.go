package constants

import "strings"

// AllowedImageExtensions holds the receipt image extensions accepted for
// uploads and batch runs.
var AllowedImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"webp": {},
}

// MaxUploadMBDefault caps a single receipt upload.
const MaxUploadMBDefault = 10

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsImageExt reports whether ext (with or without a dot) is an accepted image extension.
func IsImageExt(ext string) bool {
	_, ok := AllowedImageExtensions[NormalizeExt(ext)]
	return ok
}

// IsImageMIME reports whether a declared content type is an image/* type.
func IsImageMIME(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, "image/")
}
