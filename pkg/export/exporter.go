// Package export writes the boxes of an annotation session to disk.
//
// Two formats are available:
//
//   - JSON: an array of {"bbox": [x1, y1, x2, y2], "class": label} in drawing order
//   - VOC:  a Pascal VOC annotation document describing the image and one object per box
//
// Each format is an Exporter, so callers can offer them independently or run
// several of them behind a single export action with ExportAll.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/image-annotator/pkg/analyzer"
	"github.com/menta2k/image-annotator/pkg/types"
)

var (
	// ErrNoAnnotations is returned before anything is written when there are no boxes
	ErrNoAnnotations = errors.New("no annotations to save")
	// ErrUnknownFormat is returned by ParseFormat for unrecognized names
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrNoImage is returned by exporters that need the image reference
	ErrNoImage = errors.New("no image reference")
)

// Format names an export format
type Format string

const (
	FormatJSON Format = "json"
	FormatVOC  Format = "voc"
)

// Document is what gets exported: the boxes of one image
type Document struct {
	Image analyzer.ImageRef
	Boxes []types.BoundingBox
}

// Exporter writes a Document in one format
type Exporter interface {
	// Export writes doc to destination
	Export(doc Document, destination string) error
	// Format returns the format written
	Format() Format
	// Extension returns the default file extension, including the dot
	Extension() string
}

// ParseFormat maps a user-supplied name to the formats it selects
func ParseFormat(name string) ([]Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return []Format{FormatJSON}, nil
	case "voc", "xml", "pascal", "pascal-voc":
		return []Format{FormatVOC}, nil
	case "", "all", "both":
		return []Format{FormatJSON, FormatVOC}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}

// ForFormat returns the default exporter for a format
func ForFormat(f Format) (Exporter, error) {
	switch f {
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatVOC:
		return NewVOCExporter(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
}

// ExportAll runs each exporter, writing to base plus the exporter's extension.
// An image or export extension on base is dropped first. It returns the
// written paths; the first failure stops the run.
func ExportAll(doc Document, base string, exporters ...Exporter) ([]string, error) {
	if len(doc.Boxes) == 0 {
		return nil, ErrNoAnnotations
	}

	base = trimKnownExt(base)
	var written []string
	for _, e := range exporters {
		dest := base + e.Extension()
		if err := e.Export(doc, dest); err != nil {
			return written, fmt.Errorf("%s export failed: %w", e.Format(), err)
		}
		written = append(written, dest)
	}
	return written, nil
}

var knownExts = map[string]bool{
	".json": true, ".xml": true, ".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
}

// trimKnownExt drops the extension of base when it names an image or export file,
// so bases like "leaf.v2" keep their dot
func trimKnownExt(base string) string {
	ext := filepath.Ext(base)
	if knownExts[strings.ToLower(ext)] {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// writeFile creates destination and streams content into it, closing it on every path
func writeFile(destination string, write func(w io.Writer) error) (err error) {
	if dir := filepath.Dir(destination); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", destination, err)
	}
	return nil
}
