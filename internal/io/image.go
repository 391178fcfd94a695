package ioutils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP decoder registration
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// Limits applied by Validate.
const (
	MinImageBytes = 100
	MaxImageBytes = 50 * 1024 * 1024
	MinDimension  = 10
	MaxDimension  = 10000
)

// ErrInvalidImage is returned when downloaded bytes are not a usable image.
var ErrInvalidImage = errors.New("invalid image")

// ImageService normalises card images into the dataset raster.
//
// ImageService is used to:
//   - Validate downloaded bytes before any processing
//   - Resize images to the exact target dimensions (aspect ratio is not kept)
//   - Encode images as JPEG at the configured quality
//
// Example usage:
//
//	svc := NewImageService(224, 312, 90)
//
//	jpegBytes, err := svc.Normalize(downloaded)
type ImageService struct {
	width   int
	height  int
	quality int
}

// NewImageService creates a new ImageService for the given raster.
func NewImageService(width, height, quality int) *ImageService {
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &ImageService{width: width, height: height, quality: quality}
}

// Width returns the target width in pixels.
func (s *ImageService) Width() int { return s.width }

// Height returns the target height in pixels.
func (s *ImageService) Height() int { return s.height }

// Validate checks that data looks like a usable image.
//
// The byte length must lie within [MinImageBytes, MaxImageBytes] and the
// decoded header must report dimensions within [MinDimension, MaxDimension].
func (s *ImageService) Validate(data []byte) error {
	if len(data) < MinImageBytes {
		return fmt.Errorf("%w: %d bytes is too small", ErrInvalidImage, len(data))
	}
	if len(data) > MaxImageBytes {
		return fmt.Errorf("%w: %d bytes is too large", ErrInvalidImage, len(data))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width < MinDimension || cfg.Height < MinDimension ||
		cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return fmt.Errorf("%w: %s of %dx%d is out of range", ErrInvalidImage, format, cfg.Width, cfg.Height)
	}
	return nil
}

// Decode decodes any registered image format.
func (s *ImageService) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// Resize stretches img to exactly the target dimensions using Lanczos
// resampling.
func (s *ImageService) Resize(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() == s.width && b.Dy() == s.height {
		return img
	}
	return imaging.Resize(img, s.width, s.height, imaging.Lanczos)
}

// EncodeJPEG encodes img as JPEG at the configured quality.
func (s *ImageService) EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Normalize validates, decodes, resizes and re-encodes downloaded bytes.
//
// Example:
//
//	// A 745x1040 PNG becomes a 224x312 JPEG
//	out, err := svc.Normalize(pngData)
func (s *ImageService) Normalize(data []byte) ([]byte, error) {
	if err := s.Validate(data); err != nil {
		return nil, err
	}
	img, err := s.Decode(data)
	if err != nil {
		return nil, err
	}
	return s.EncodeJPEG(s.Resize(img))
}

// Open decodes the image file at path.
func (s *ImageService) Open(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return img, nil
}

// Save encodes img as JPEG and writes it to path atomically.
func (s *ImageService) Save(path string, img image.Image) error {
	data, err := s.EncodeJPEG(img)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return WriteFileAtomic(path, data)
}

// Dimensions reads only the header of the image at path.
func (s *ImageService) Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Conforms reports whether the file at path decodes to the target raster.
func (s *ImageService) Conforms(path string) bool {
	w, h, err := s.Dimensions(path)
	return err == nil && w == s.width && h == s.height
}
