package analyzer

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for files outside the configured format list
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ImageAnalyzer loads images for annotation and reads their metadata
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			SupportedFormats: []string{"png", "jpg", "jpeg"},
			MinImageSize:     1,
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// ImageRef identifies the image being annotated and its actual pixel size
type ImageRef struct {
	Path   string
	Width  int
	Height int
	Format string
}

// Filename returns the base name of the image path
func (r ImageRef) Filename() string {
	return filepath.Base(r.Path)
}

// ReadImageRef reads the pixel dimensions of the image at path without decoding the raster
func ReadImageRef(path string) (ImageRef, error) {
	file, err := os.Open(path)
	if err != nil {
		return ImageRef{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return ImageRef{}, fmt.Errorf("failed to read image header: %w", err)
	}

	return ImageRef{Path: path, Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// LoadImage decodes an image and returns it with its reference
func (a *ImageAnalyzer) LoadImage(path string) (image.Image, ImageRef, error) {
	if !a.HasSupportedExtension(path) {
		return nil, ImageRef{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	img, err := decodeFile(path)
	if err != nil {
		return nil, ImageRef{}, err
	}

	bounds := img.Bounds()
	ref := ImageRef{
		Path:   path,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
	}
	if err := a.ValidateImage(img); err != nil {
		return nil, ImageRef{}, err
	}
	return img, ref, nil
}

func decodeFile(path string) (image.Image, error) {
	// EXIF orientation is not applied: boxes and the VOC size both use the stored pixel grid
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind image file: %w", err)
		}
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// HasSupportedExtension reports whether path passes the file picker's extension filter
func (a *ImageAnalyzer) HasSupportedExtension(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return ext != "" && a.isFormatSupported(ext)
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return nil
}
