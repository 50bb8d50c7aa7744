package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	formats := []string{"png", "jpg", "JPEG"}

	tests := []struct {
		name     string
		expected bool
	}{
		{"leaf.png", true},
		{"leaf.PNG", true},
		{"leaf.jpeg", true},
		{"leaf.gif", false},
		{"leaf", false},
	}

	for _, tt := range tests {
		if got := IsImageFile(tt.name, formats); got != tt.expected {
			t.Errorf("IsImageFile(%q) = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestOutputBase(t *testing.T) {
	tests := []struct {
		image, dir, suffix, expected string
	}{
		{"/data/images/leaf.png", "", "", "/data/images/leaf"},
		{"/data/images/leaf.png", "/out", "", "/out/leaf"},
		{"leaf.tar.jpg", "", "_labels", "leaf.tar_labels"},
		{"/data/a:b.png", "/out", "", "/out/a_b"},
	}

	for _, tt := range tests {
		got := OutputBase(tt.image, tt.dir, tt.suffix)
		if got != filepath.FromSlash(tt.expected) {
			t.Errorf("OutputBase(%q, %q, %q) = %q, expected %q", tt.image, tt.dir, tt.suffix, got, tt.expected)
		}
	}
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if FileExists(dir) {
		t.Error("FileExists should be false for directories")
	}

	file := filepath.Join(dir, "x.json")
	os.WriteFile(file, []byte("[]"), 0o644)
	if !FileExists(file) {
		t.Error("FileExists should be true for a written file")
	}
	if !strings.HasPrefix(DescribeFile(file), file+" (2 B)") {
		t.Errorf("Unexpected description %q", DescribeFile(file))
	}
	if EnsureDir("") != nil {
		t.Error("EnsureDir(\"\") should be a no-op")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(` a/b*c? `); got != "a_b_c_" {
		t.Errorf("Unexpected sanitized name %q", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.expected {
			t.Errorf("FormatFileSize(%d) = %q, expected %q", tt.size, got, tt.expected)
		}
	}
}
