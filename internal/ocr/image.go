package ocr

import (
	"bytes"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

// ImageInfo describes a decoded receipt image.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// InspectImage rejects empty or undecodable input and reports pixel size.
func InspectImage(data []byte) (ImageInfo, error) {
	img, format, err := decodeImage(data)
	if err != nil {
		return ImageInfo{}, err
	}
	b := img.Bounds()
	return ImageInfo{Width: b.Dx(), Height: b.Dy(), Format: format}, nil
}

func decodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", common.NewInputValidationError("no image bytes", nil)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", common.NewInputValidationError("unsupported or corrupt image", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", common.NewInputValidationError("decode image", err)
	}
	return img, format, nil
}

// writePNG re-encodes data as PNG; used for engines that only read files in a few formats.
func writePNG(w io.Writer, data []byte) error {
	img, _, err := decodeImage(data)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, imaging.PNG)
}
