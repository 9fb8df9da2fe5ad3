package storage

import (
	"errors"
	"image"
	"io"

	// decoders registered with image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when the uploaded bytes are not a supported
// raster image.
var ErrNotImage = errors.New("not a supported image")

// extensions maps decoder format names to file extensions.
var extensions = map[string]string{
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"bmp":  "bmp",
	"tiff": "tiff",
	"webp": "webp",
}

// DetectImage reads the image header from r and returns the file
// extension to store it under.  Only the header is consumed.
func DetectImage(r io.Reader) (string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return "", ErrNotImage
	}
	ext, ok := extensions[format]
	if !ok || cfg.Width <= 0 || cfg.Height <= 0 {
		return "", ErrNotImage
	}
	return ext, nil
}
