package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image exceeds size limit")
)

// MaxUploadBytes matches the marketplace's upload validator.
const MaxUploadBytes = 5 << 20

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Blob is an encoded image as it travels to the marketplace.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// CheckUpload applies the marketplace's validators: size and extension.
func CheckUpload(name string, size int64) error {
	if size > MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
	return nil
}

// Decode validates and decodes an uploaded image, applying EXIF orientation.
func Decode(name string, data []byte) (image.Image, error) {
	if err := CheckUpload(name, int64(len(data))); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return img, nil
}

// EncodeJPEG is the single target encoding of the pipeline.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// JPEGName swaps the extension of name for .jpg.
func JPEGName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "image"
	}
	return base + ".jpg"
}
