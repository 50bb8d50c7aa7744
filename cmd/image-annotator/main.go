package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	imageannotator "github.com/menta2k/image-annotator"
	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/internal/console"
	"github.com/menta2k/image-annotator/internal/logger"
	"github.com/menta2k/image-annotator/pkg/analyzer"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/llamacpp"
	"github.com/menta2k/image-annotator/pkg/ollama"
)

func main() {
	var configPath, script, classes, backend, url, model, logDir, image string
	var showVersion bool

	flag.StringVar(&configPath, "config", config.GetConfigPath(), "configuration file (JSON); missing file means defaults")
	flag.StringVar(&script, "script", "", "read commands from this file instead of stdin")
	flag.StringVar(&image, "image", "", "image to open on start")
	flag.StringVar(&classes, "classes", "", "comma-separated class labels (overrides config)")
	flag.StringVar(&backend, "backend", "", "suggestion backend: ollama or llamacpp (empty disables suggest)")
	flag.StringVar(&url, "url", "", "suggestion server URL (defaults: ollama="+ollama.DefaultURL+", llamacpp="+llamacpp.DefaultURL+")")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&logDir, "log-dir", "", "also append logs to files in this directory")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("image-annotator %s\n", imageannotator.GetVersion())
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if classes != "" {
		cfg.Annotation.Classes = config.ParseClasses(classes)
	}
	if backend != "" {
		cfg.Assist.Backend = backend
	}
	if url != "" {
		cfg.Assist.URL = url
	}
	if model != "" {
		cfg.Assist.Model = model
	}
	if logDir != "" {
		cfg.LogDir = logDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg, err := logger.New(os.Stderr, os.Stderr, cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Close()

	// Create the suggestion client based on backend
	var suggester *detection.Suggester
	if cfg.Assist.Backend != "" {
		visionClient, err := newVisionClient(cfg.Assist.Backend, cfg.Assist.URL)
		if err != nil {
			log.Fatal(err)
		}
		suggester = detection.NewSuggester(visionClient, detection.Config{
			Model:          cfg.Assist.Model,
			SendSize:       cfg.Assist.SendSize,
			SendQuality:    85,
			MinConfidence:  cfg.Assist.MinConfidence,
			MaxSuggestions: cfg.Assist.MaxSuggestions,
		})
		lg.Info("suggestions via %s (%s)", cfg.Assist.Backend, cfg.Assist.Model)
	}

	a, err := imageannotator.NewWithConfig(imageannotator.Options{
		Classes:  cfg.Annotation.Classes,
		ZoomStep: cfg.Annotation.ZoomStep,
		Analyzer: analyzer.Config{
			SupportedFormats: cfg.Images.SupportedFormats,
			MinImageSize:     cfg.Images.MinImageSize,
		},
		Suggester: suggester,
	})
	if err != nil {
		log.Fatal(err)
	}

	c := console.New(a, lg, os.Stdout, console.Options{
		OutputDir:      cfg.Output.OutputDir,
		Suffix:         cfg.Output.Suffix,
		Formats:        cfg.Output.Formats,
		PreviewQuality: cfg.Output.PreviewQuality,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if image != "" {
		if _, err := c.Execute(ctx, "load "+image); err != nil {
			lg.Error("%v", err)
		}
	}

	var in io.Reader = os.Stdin
	if script != "" {
		f, err := os.Open(script)
		if err != nil {
			log.Fatalf("failed to open script: %v", err)
		}
		defer f.Close()
		in = f
	} else {
		fmt.Printf("%s: type help for commands\n", filepath.Base(os.Args[0]))
	}

	if err := c.Run(ctx, in); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("%v", err)
	}
}

func newVisionClient(backend, url string) (client.VisionClient, error) {
	switch backend {
	case "ollama":
		if url == "" {
			url = ollama.DefaultURL
		}
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		if url == "" {
			url = llamacpp.DefaultURL
		}
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
	}
}
