package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"regexp"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/types"
)

// promptTemplate asks for normalized boxes; %s is replaced with the class list
const promptTemplate = `You are an object locator helping to label images for a detection dataset.

Allowed classes: %s

Return JSON only:
{
  "objects": [
    {"label": "one of the allowed classes", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (<= 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- Boxes should tightly include each visible object of an allowed class.
- If nothing of an allowed class is visible, return {"objects": [], "description": "none"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Config controls how images are sent and which answers are kept
type Config struct {
	Model          string
	SendSize       int // max long side sent to the model in px, 0 = original
	SendQuality    int
	MinConfidence  float64
	MaxSuggestions int
}

// DefaultConfig returns settings suited to small local vision models
func DefaultConfig() Config {
	return Config{
		Model:          "openbmb/minicpm-v4.5",
		SendSize:       1024,
		SendQuality:    85,
		MinConfidence:  0.2,
		MaxSuggestions: 10,
	}
}

// Suggester asks a vision model for candidate boxes on an image
type Suggester struct {
	client client.VisionClient
	config Config
}

// NewSuggester creates a suggester over a vision client
func NewSuggester(c client.VisionClient, config Config) *Suggester {
	return &Suggester{client: c, config: config}
}

// Prompt returns the prompt sent for the given classes
func Prompt(classes []string) string {
	quoted := make([]string, len(classes))
	for i, c := range classes {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(quoted, ", "))
}

// Suggest returns candidate boxes in normalized coordinates, best first.
// Labels matching a class case-insensitively are rewritten to the class spelling.
func (s *Suggester) Suggest(ctx context.Context, img image.Image, classes []string) ([]types.Suggestion, error) {
	imgB64, sent, err := PrepareImage(img, s.config.SendSize, s.config.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	raw, err := s.client.Query(ctx, s.config.Model, Prompt(classes), imgB64)
	if err != nil {
		return nil, err
	}

	result, err := ParseResult(raw)
	if err != nil {
		return nil, err
	}

	// pixel answers refer to the image the model saw, not the source
	out := make([]types.Suggestion, 0, len(result.Objects))
	for _, obj := range result.Objects {
		obj.Box = normalizeBox(obj.Box, sent.X, sent.Y)
		if obj.Box.W <= 0 || obj.Box.H <= 0 {
			continue
		}
		if obj.Confidence < s.config.MinConfidence {
			continue
		}
		obj.Label = matchClass(obj.Label, classes)
		out = append(out, obj)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if s.config.MaxSuggestions > 0 && len(out) > s.config.MaxSuggestions {
		out = out[:s.config.MaxSuggestions]
	}
	return out, nil
}

// PrepareImage downsizes img to maxDim on its long side and returns it as
// base64 JPEG together with the size that was encoded
func PrepareImage(img image.Image, maxDim, quality int) (string, image.Point, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", image.Point{}, err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), img.Bounds().Size(), nil
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseResult decodes a model answer, tolerating code fences, comments and trailing commas
func ParseResult(raw string) (*types.SuggestionResult, error) {
	cleaned := sanitizeModelJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, fmt.Errorf("model returned non-JSON response: %.80q", raw)
	}

	var result types.SuggestionResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	return &result, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from a JSON answer
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// matchClass returns the configured spelling of label, or label unchanged when no class matches
func matchClass(label string, classes []string) string {
	label = strings.TrimSpace(label)
	for _, c := range classes {
		if strings.EqualFold(c, label) {
			return c
		}
	}
	return label
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox clamps a box to [0,1], converting from pixels when the model answered in pixels
func normalizeBox(b types.Box, imgW, imgH int) types.Box {
	if imgW > 0 && imgH > 0 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = types.Box{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}

	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
