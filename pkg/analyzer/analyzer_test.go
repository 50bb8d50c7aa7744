package analyzer

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}

	return img
}

func writePNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, createTestImage(width, height)); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

func TestNew(t *testing.T) {
	analyzer := New()
	if analyzer == nil {
		t.Fatal("New() returned nil")
	}

	if len(analyzer.config.SupportedFormats) != 3 {
		t.Errorf("Expected 3 default formats, got %v", analyzer.config.SupportedFormats)
	}
}

func TestReadImageRef(t *testing.T) {
	path := writePNG(t, t.TempDir(), "leaf.png", 64, 48)

	ref, err := ReadImageRef(path)
	if err != nil {
		t.Fatalf("ReadImageRef failed: %v", err)
	}

	if ref.Width != 64 || ref.Height != 48 {
		t.Errorf("Expected 64x48, got %dx%d", ref.Width, ref.Height)
	}
	if ref.Format != "png" {
		t.Errorf("Expected format png, got %s", ref.Format)
	}
	if ref.Filename() != "leaf.png" {
		t.Errorf("Expected filename leaf.png, got %s", ref.Filename())
	}
}

func TestReadImageRefMissingFile(t *testing.T) {
	_, err := ReadImageRef(filepath.Join(t.TempDir(), "missing.png"))
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReadImageRefCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadImageRef(path); err == nil {
		t.Error("Expected error for corrupt image header")
	}
}

func TestLoadImage(t *testing.T) {
	analyzer := New()
	path := writePNG(t, t.TempDir(), "sample.png", 120, 80)

	img, ref, err := analyzer.LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}

	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
		t.Errorf("Unexpected decoded size %v", img.Bounds())
	}
	if ref.Path != path || ref.Width != 120 || ref.Height != 80 {
		t.Errorf("Unexpected ref %+v", ref)
	}
}

func TestLoadImageRejectsExtension(t *testing.T) {
	analyzer := New()
	path := writePNG(t, t.TempDir(), "sample.gif", 10, 10)

	_, _, err := analyzer.LoadImage(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadImageDecodeFailure(t *testing.T) {
	analyzer := New()
	path := filepath.Join(t.TempDir(), "fake.jpg")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := analyzer.LoadImage(path)
	if err == nil {
		t.Fatal("Expected decode error")
	}
	if !strings.Contains(err.Error(), "decode") {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestValidateImage(t *testing.T) {
	analyzer := NewWithConfig(Config{SupportedFormats: []string{"png"}, MinImageSize: 100})

	if err := analyzer.ValidateImage(createTestImage(200, 200)); err != nil {
		t.Errorf("Valid image should pass validation: %v", err)
	}

	if err := analyzer.ValidateImage(createTestImage(50, 50)); err == nil {
		t.Error("Small image should fail validation")
	}
}

func TestHasSupportedExtension(t *testing.T) {
	analyzer := New()

	tests := []struct {
		path     string
		expected bool
	}{
		{"a.png", true},
		{"a.JPG", true},
		{"dir/a.jpeg", true},
		{"a.gif", false},
		{"a.webp", false},
		{"noext", false},
	}

	for _, tt := range tests {
		if got := analyzer.HasSupportedExtension(tt.path); got != tt.expected {
			t.Errorf("HasSupportedExtension(%q) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}
