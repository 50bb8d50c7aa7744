package export

import (
	"bytes"
	"encoding/json"
	"io"
)

// JSONRecord is one element of the exported JSON array
type JSONRecord struct {
	BBox  [4]int `json:"bbox"`
	Class string `json:"class"`
}

// JSONExporter writes boxes as an indented JSON array
type JSONExporter struct {
	Indent string
}

// NewJSONExporter creates a JSON exporter indenting with four spaces
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{Indent: "    "}
}

// Format returns FormatJSON
func (e *JSONExporter) Format() Format { return FormatJSON }

// Extension returns ".json"
func (e *JSONExporter) Extension() string { return ".json" }

// Export writes the boxes of doc to destination
func (e *JSONExporter) Export(doc Document, destination string) error {
	if len(doc.Boxes) == 0 {
		return ErrNoAnnotations
	}
	return writeFile(destination, func(w io.Writer) error {
		return e.Encode(w, doc)
	})
}

// Encode writes the JSON array for doc to w
func (e *JSONExporter) Encode(w io.Writer, doc Document) error {
	records := make([]JSONRecord, 0, len(doc.Boxes))
	for _, b := range doc.Boxes {
		records = append(records, JSONRecord{BBox: b.Coords(), Class: b.Class})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", e.Indent)
	return enc.Encode(records)
}

// EncodeJSON returns the JSON export of doc as bytes
func EncodeJSON(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewJSONExporter().Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
