package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/menta2k/image-annotator/pkg/export"
)

// DefaultClasses is the label set offered when nothing else is configured
var DefaultClasses = []string{"Disease Class 1", "Disease Class 2", "Disease Class 3"}

// Config holds the application configuration
type Config struct {
	Annotation AnnotationConfig `json:"annotation"`
	Images     ImagesConfig     `json:"images"`
	Output     OutputConfig     `json:"output"`
	Assist     AssistConfig     `json:"assist"`
	LogDir     string           `json:"log_dir"`
}

// AnnotationConfig holds the label set and view behaviour
type AnnotationConfig struct {
	Classes  []string `json:"classes"`
	ZoomStep float64  `json:"zoom_step"`
}

// ImagesConfig holds the input filter
type ImagesConfig struct {
	SupportedFormats []string `json:"supported_formats"`
	MinImageSize     int      `json:"min_image_size"`
}

// OutputConfig holds configuration for export and previews
type OutputConfig struct {
	Formats        []string `json:"formats"`
	OutputDir      string   `json:"output_dir"`
	Suffix         string   `json:"suffix"`
	PreviewQuality int      `json:"preview_quality"`
}

// AssistConfig holds the optional vision model backend
type AssistConfig struct {
	Backend        string  `json:"backend"`
	URL            string  `json:"url"`
	Model          string  `json:"model"`
	SendSize       int     `json:"send_size"`
	MinConfidence  float64 `json:"min_confidence"`
	MaxSuggestions int     `json:"max_suggestions"`
}

// Default returns a configuration with default values
func Default() *Config {
	classes := make([]string, len(DefaultClasses))
	copy(classes, DefaultClasses)

	return &Config{
		Annotation: AnnotationConfig{
			Classes:  classes,
			ZoomStep: 1.2,
		},
		Images: ImagesConfig{
			SupportedFormats: []string{"png", "jpg", "jpeg"},
			MinImageSize:     1,
		},
		Output: OutputConfig{
			Formats:        []string{"json", "voc"},
			OutputDir:      "",
			Suffix:         "",
			PreviewQuality: 90,
		},
		Assist: AssistConfig{
			Backend:        "",
			Model:          "openbmb/minicpm-v4.5",
			SendSize:       1024,
			MinConfidence:  0.2,
			MaxSuggestions: 10,
		},
		LogDir: "",
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename when it exists (defaults otherwise), then applies the
// environment. A .env file in the working directory is read first if present.
func Load(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	config := Default()
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			loaded, err := LoadFromFile(filename)
			if err != nil {
				return nil, err
			}
			config = loaded
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from ANNOTATOR_* environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("ANNOTATOR_CLASSES"); v != "" {
		c.Annotation.Classes = ParseClasses(v)
	}
	if v := os.Getenv("ANNOTATOR_ZOOM_STEP"); v != "" {
		step, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ANNOTATOR_ZOOM_STEP: %w", err)
		}
		c.Annotation.ZoomStep = step
	}
	if v := os.Getenv("ANNOTATOR_OUTPUT_DIR"); v != "" {
		c.Output.OutputDir = v
	}
	if v := os.Getenv("ANNOTATOR_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("ANNOTATOR_ASSIST_BACKEND"); v != "" {
		c.Assist.Backend = v
	}
	if v := os.Getenv("ANNOTATOR_ASSIST_URL"); v != "" {
		c.Assist.URL = v
	}
	if v := os.Getenv("ANNOTATOR_ASSIST_MODEL"); v != "" {
		c.Assist.Model = v
	}
	return nil
}

// ParseClasses splits a comma-separated label list, dropping blanks and duplicates
func ParseClasses(list string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.Split(list, ",") {
		label := strings.TrimSpace(part)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Annotation.Classes) == 0 {
		return fmt.Errorf("annotation.classes cannot be empty")
	}

	seen := map[string]struct{}{}
	for _, label := range c.Annotation.Classes {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("annotation.classes cannot contain blank labels")
		}
		if _, ok := seen[label]; ok {
			return fmt.Errorf("annotation.classes contains duplicate label %q", label)
		}
		seen[label] = struct{}{}
	}

	if c.Annotation.ZoomStep <= 1 {
		return fmt.Errorf("annotation.zoom_step must be greater than 1")
	}

	if len(c.Images.SupportedFormats) == 0 {
		return fmt.Errorf("images.supported_formats cannot be empty")
	}

	if c.Images.MinImageSize < 1 {
		return fmt.Errorf("images.min_image_size must be positive")
	}

	for _, name := range c.Output.Formats {
		if _, err := export.ParseFormat(name); err != nil {
			return fmt.Errorf("output.formats: %w", err)
		}
	}

	if c.Output.PreviewQuality < 1 || c.Output.PreviewQuality > 100 {
		return fmt.Errorf("output.preview_quality must be between 1 and 100")
	}

	switch c.Assist.Backend {
	case "", "ollama", "llamacpp":
	default:
		return fmt.Errorf("assist.backend must be ollama or llamacpp, got %q", c.Assist.Backend)
	}

	if c.Assist.MinConfidence < 0 || c.Assist.MinConfidence > 1 {
		return fmt.Errorf("assist.min_confidence must be between 0 and 1")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-annotator", "config.json")
}
