package detection

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"math"
	"strings"
	"testing"

	"github.com/menta2k/image-annotator/pkg/types"
)

// fakeClient returns a canned answer and records the last prompt
type fakeClient struct {
	answer string
	err    error
	prompt string
	image  string
}

func (f *fakeClient) Query(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.prompt = prompt
	f.image = imgB64
	return f.answer, f.err
}

var classes = []string{"Disease Class 1", "Disease Class 2", "Disease Class 3"}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSuggest(t *testing.T) {
	fc := &fakeClient{answer: "```json\n" + `{
  "objects": [
    {"label": "disease class 2", "confidence": 0.4, "box": {"x": 0.1, "y": 0.1, "w": 0.2, "h": 0.2}},
    {"label": "Disease Class 1", "confidence": 0.9, "box": {"x": 0.5, "y": 0.5, "w": 0.8, "h": 0.3}},
    {"label": "Disease Class 3", "confidence": 0.05, "box": {"x": 0.0, "y": 0.0, "w": 0.5, "h": 0.5}},
    {"label": "Disease Class 3", "confidence": 0.8, "box": {"x": 0.3, "y": 0.3, "w": 0.0, "h": 0.5}},
  ],
  // trailing notes
  "description": "two lesions"
}` + "\n```"}

	s := NewSuggester(fc, DefaultConfig())
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	got, err := s.Suggest(context.Background(), img, classes)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 suggestions after filtering, got %d: %+v", len(got), got)
	}
	if got[0].Label != "Disease Class 1" || got[1].Label != "Disease Class 2" {
		t.Errorf("Expected best-first with canonical labels, got %q, %q", got[0].Label, got[1].Label)
	}
	// w clamped so the box stays inside the image
	if !almostEqual(got[0].Box.W, 0.5) {
		t.Errorf("Expected width clamped to 0.5, got %f", got[0].Box.W)
	}
	if !strings.Contains(fc.prompt, `"Disease Class 3"`) {
		t.Errorf("Prompt should list the classes, got:\n%s", fc.prompt)
	}
}

func TestSuggestSendsDownsizedJPEG(t *testing.T) {
	fc := &fakeClient{answer: `{"objects": []}`}
	cfg := DefaultConfig()
	cfg.SendSize = 64
	s := NewSuggester(fc, cfg)

	if _, err := s.Suggest(context.Background(), image.NewRGBA(image.Rect(0, 0, 256, 128)), classes); err != nil {
		t.Fatal(err)
	}

	data, err := base64.StdEncoding.DecodeString(fc.image)
	if err != nil {
		t.Fatal(err)
	}
	cfgImg, err := jpeg.DecodeConfig(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("Expected JPEG payload: %v", err)
	}
	if cfgImg.Width != 64 || cfgImg.Height != 32 {
		t.Errorf("Expected 64x32 payload, got %dx%d", cfgImg.Width, cfgImg.Height)
	}
}

func TestSuggestPixelAnswerOnDownsizedImage(t *testing.T) {
	// right half of the 512x256 image the model receives
	fc := &fakeClient{answer: `{"objects": [
		{"label": "Disease Class 1", "confidence": 0.9, "box": {"x": 256, "y": 0, "w": 256, "h": 256}}
	]}`}
	cfg := DefaultConfig()
	cfg.SendSize = 512
	s := NewSuggester(fc, cfg)

	got, err := s.Suggest(context.Background(), image.NewRGBA(image.Rect(0, 0, 2048, 1024)), classes)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 suggestion, got %+v", got)
	}
	want := types.Box{X: 0.5, Y: 0, W: 0.5, H: 1}
	b := got[0].Box
	if !almostEqual(b.X, want.X) || !almostEqual(b.Y, want.Y) || !almostEqual(b.W, want.W) || !almostEqual(b.H, want.H) {
		t.Errorf("Expected %+v relative to the sent image, got %+v", want, b)
	}
}

func TestPrepareImageReportsSentSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, limit  int
		wantW, wantH int
	}{
		{"landscape", 300, 150, 100, 100, 50},
		{"portrait", 150, 300, 100, 50, 100},
		{"small", 40, 30, 100, 40, 30},
		{"no limit", 300, 150, 0, 300, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sent, err := PrepareImage(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), tt.limit, 80)
			if err != nil {
				t.Fatal(err)
			}
			if sent.X != tt.wantW || sent.Y != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, sent.X, sent.Y)
			}
		})
	}
}

func TestSuggestClientError(t *testing.T) {
	boom := errors.New("connection refused")
	s := NewSuggester(&fakeClient{err: boom}, DefaultConfig())

	_, err := s.Suggest(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), classes)
	if !errors.Is(err, boom) {
		t.Errorf("Expected client error, got %v", err)
	}
}

func TestSuggestMaxSuggestions(t *testing.T) {
	fc := &fakeClient{answer: `{"objects": [
		{"label": "a", "confidence": 0.5, "box": {"x": 0, "y": 0, "w": 0.1, "h": 0.1}},
		{"label": "b", "confidence": 0.6, "box": {"x": 0, "y": 0, "w": 0.1, "h": 0.1}},
		{"label": "c", "confidence": 0.7, "box": {"x": 0, "y": 0, "w": 0.1, "h": 0.1}}
	]}`}
	cfg := DefaultConfig()
	cfg.MaxSuggestions = 2
	s := NewSuggester(fc, cfg)

	got, err := s.Suggest(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), classes)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Label != "c" {
		t.Errorf("Expected top 2 by confidence, got %+v", got)
	}
}

func TestParseResultRejectsProse(t *testing.T) {
	if _, err := ParseResult("I see a leaf with spots."); err == nil {
		t.Error("Expected error for non-JSON answer")
	}
	if _, err := ParseResult(`{"objects": [}`); err == nil {
		t.Error("Expected error for broken JSON")
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{`Sure! {"a": [1, 2,]} done`, `{"a": [1, 2]}`},
		{"{\n/* c */\"a\": 1\n}", "{\n\"a\": 1\n}"},
	}

	for _, tt := range tests {
		if got := sanitizeModelJSON(tt.input); got != tt.expected {
			t.Errorf("sanitizeModelJSON(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeBox(t *testing.T) {
	tests := []struct {
		name     string
		in       types.Box
		expected types.Box
	}{
		{"normalized", types.Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}, types.Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}},
		{"pixels", types.Box{X: 50, Y: 25, W: 100, H: 50}, types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}},
		{"negative", types.Box{X: -0.2, Y: 0.5, W: 0.3, H: 0.9}, types.Box{X: 0, Y: 0.5, W: 0.3, H: 0.5}},
	}

	for _, tt := range tests {
		got := normalizeBox(tt.in, 200, 100)
		if !almostEqual(got.X, tt.expected.X) || !almostEqual(got.Y, tt.expected.Y) ||
			!almostEqual(got.W, tt.expected.W) || !almostEqual(got.H, tt.expected.H) {
			t.Errorf("%s: normalizeBox(%+v) = %+v, expected %+v", tt.name, tt.in, got, tt.expected)
		}
	}
}

func TestMatchClass(t *testing.T) {
	if got := matchClass(" disease CLASS 3 ", classes); got != "Disease Class 3" {
		t.Errorf("Expected canonical spelling, got %q", got)
	}
	if got := matchClass("healthy", classes); got != "healthy" {
		t.Errorf("Unknown labels should pass through, got %q", got)
	}
}
