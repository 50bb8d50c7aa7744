package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/menta2k/image-annotator/pkg/analyzer"
)

// VOC constants written for every document
const (
	VOCFolder    = "images"
	VOCDepth     = 3
	VOCPose      = "Unspecified"
	VOCTruncated = 0
	VOCDifficult = 0
)

// VOCAnnotation is the root of a Pascal VOC document
type VOCAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Folder   string      `xml:"folder"`
	Filename string      `xml:"filename"`
	Path     string      `xml:"path"`
	Size     VOCSize     `xml:"size"`
	Objects  []VOCObject `xml:"object"`
}

// VOCSize holds the actual pixel dimensions of the annotated image
type VOCSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

// VOCObject is one labeled box
type VOCObject struct {
	Name      string    `xml:"name"`
	Pose      string    `xml:"pose"`
	Truncated int       `xml:"truncated"`
	Difficult int       `xml:"difficult"`
	BndBox    VOCBndBox `xml:"bndbox"`
}

// VOCBndBox holds box corners as drawn
type VOCBndBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

// VOCExporter writes boxes as a Pascal VOC XML document
type VOCExporter struct {
	Indent string
	// ReadImage re-reads the image header so the size reflects the file, not the zoomed view
	ReadImage func(path string) (analyzer.ImageRef, error)
}

// NewVOCExporter creates a VOC exporter that reads image sizes from disk
func NewVOCExporter() *VOCExporter {
	return &VOCExporter{Indent: "\t", ReadImage: analyzer.ReadImageRef}
}

// Format returns FormatVOC
func (e *VOCExporter) Format() Format { return FormatVOC }

// Extension returns ".xml"
func (e *VOCExporter) Extension() string { return ".xml" }

// Export writes the VOC document for doc to destination
func (e *VOCExporter) Export(doc Document, destination string) error {
	ann, err := e.Build(doc)
	if err != nil {
		return err
	}
	return writeFile(destination, func(w io.Writer) error {
		return e.Encode(w, ann)
	})
}

// Build assembles the document tree, reading the image size from the file
func (e *VOCExporter) Build(doc Document) (*VOCAnnotation, error) {
	if len(doc.Boxes) == 0 {
		return nil, ErrNoAnnotations
	}
	if doc.Image.Path == "" {
		return nil, ErrNoImage
	}

	read := e.ReadImage
	if read == nil {
		read = analyzer.ReadImageRef
	}
	ref, err := read(doc.Image.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata: %w", err)
	}

	ann := &VOCAnnotation{
		Folder:   VOCFolder,
		Filename: doc.Image.Filename(),
		Path:     doc.Image.Path,
		Size:     VOCSize{Width: ref.Width, Height: ref.Height, Depth: VOCDepth},
		Objects:  make([]VOCObject, 0, len(doc.Boxes)),
	}
	for _, b := range doc.Boxes {
		ann.Objects = append(ann.Objects, VOCObject{
			Name:      b.Class,
			Pose:      VOCPose,
			Truncated: VOCTruncated,
			Difficult: VOCDifficult,
			BndBox:    VOCBndBox{XMin: b.X1, YMin: b.Y1, XMax: b.X2, YMax: b.Y2},
		})
	}
	return ann, nil
}

// Encode writes ann as an indented UTF-8 XML document
func (e *VOCExporter) Encode(w io.Writer, ann *VOCAnnotation) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", e.Indent)
	if err := enc.Encode(ann); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// EncodeVOC returns the VOC export of doc as bytes
func EncodeVOC(doc Document) ([]byte, error) {
	e := NewVOCExporter()
	ann, err := e.Build(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := e.Encode(&buf, ann); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

