package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"buskalo-bff/internal/logger"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	Square = 1.0
	Banner = 16.0 / 9.0
)

// CropParams describes a crop the way the browser cropper reports it.
// CenterX and CenterY are fractions of the rotated image; both zero means
// the middle. Zoom below 1 is treated as 1. Rotation is clockwise degrees.
type CropParams struct {
	Aspect   float64 `json:"aspect"`
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
	Zoom     float64 `json:"zoom"`
	Rotation float64 `json:"rotation"`
}

// Crop rotates img, then cuts the largest region of the requested aspect,
// shrunk by Zoom and moved to the pan centre within the image.
func Crop(img image.Image, p CropParams) image.Image {
	if p.Rotation != 0 {
		img = imaging.Rotate(img, -p.Rotation, color.White)
	}
	if p.Aspect <= 0 {
		p.Aspect = Square
	}
	if p.Zoom < 1 {
		p.Zoom = 1
	}
	if p.CenterX == 0 && p.CenterY == 0 {
		p.CenterX, p.CenterY = 0.5, 0.5
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	cw, ch := w, w/p.Aspect
	if ch > h {
		cw, ch = h*p.Aspect, h
	}
	cw, ch = cw/p.Zoom, ch/p.Zoom

	x0 := clamp(p.CenterX*w-cw/2, 0, w-cw)
	y0 := clamp(p.CenterY*h-ch/2, 0, h-ch)

	rect := image.Rect(
		b.Min.X+int(math.Round(x0)),
		b.Min.Y+int(math.Round(y0)),
		b.Min.X+int(math.Round(x0+cw)),
		b.Min.Y+int(math.Round(y0+ch)),
	)
	return imaging.Crop(img, rect)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

type Options struct {
	MaxBytes     int64
	MaxDimension int
}

var DefaultOptions = Options{MaxBytes: 1 << 20, MaxDimension: 1200}

const (
	startQuality = 90
	minQuality   = 40
	qualityStep  = 10
	maxShrinks   = 4
)

// Compress fits img within MaxDimension and encodes it as JPEG at falling
// quality until it fits MaxBytes, shrinking further if it still does not.
func Compress(img image.Image, opts Options) ([]byte, error) {
	if opts.MaxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > opts.MaxDimension || b.Dy() > opts.MaxDimension {
			img = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
		}
	}

	var last []byte
	for shrink := 0; shrink <= maxShrinks; shrink++ {
		for q := startQuality; q >= minQuality; q -= qualityStep {
			data, err := EncodeJPEG(img, q)
			if err != nil {
				return nil, err
			}
			if opts.MaxBytes <= 0 || int64(len(data)) <= opts.MaxBytes {
				return data, nil
			}
			last = data
		}
		b := img.Bounds()
		if b.Dx() < 2 || b.Dy() < 2 {
			break
		}
		img = imaging.Resize(img, b.Dx()/2, 0, imaging.Lanczos)
	}
	return nil, fmt.Errorf("%w: %d bytes after compression", ErrTooLarge, len(last))
}

// CompressOrOriginal returns the compressed blob, or the original when
// anything in the pipeline fails.
func CompressOrOriginal(ctx context.Context, blob Blob, opts Options) Blob {
	img, err := Decode(blob.Name, blob.Data)
	if err == nil {
		var data []byte
		if data, err = Compress(img, opts); err == nil {
			return Blob{Name: JPEGName(blob.Name), ContentType: "image/jpeg", Data: data}
		}
	}
	logger.FromContext(ctx).Debug("Image compression failed, sending original",
		zap.String("name", blob.Name),
		zap.Error(err),
	)
	return blob
}
