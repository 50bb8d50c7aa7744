// Package console drives an annotation session from line commands. Each
// command stands in for one UI event: opening an image, choosing a label,
// pressing, dragging and releasing the pointer, zooming and saving.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	imageannotator "github.com/menta2k/image-annotator"
	"github.com/menta2k/image-annotator/internal/logger"
	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/types"
)

const helpText = `Commands:
  load <path>                    open an image (boxes of the previous image are dropped)
  classes                        list labels, * marks the selected one
  class <label>                  select the label for new boxes
  press <x> <y>                  start a box at display coordinates
  drag <x> <y>                   move the free corner
  release <x> <y>                finish the box
  box <x1> <y1> <x2> <y2>        add a box in image coordinates
  undo                           remove the last box
  zoom in|out                    change the display zoom
  list                           show stored boxes
  save <json-path> [<xml-path>]  write JSON, then Pascal VOC if a path is given ("quote" paths with spaces)
  export [<base>] [json|voc|all] write the chosen formats next to base
  preview <path>                 render the view with boxes to png/jpg/webp
  suggest                        ask the vision model for boxes
  propose                        add boxes around salient regions (no model needed)
  crops <dir>                    write each box as its own image
  help                           show this text
  quit                           leave`

// Options holds console settings taken from the configuration
type Options struct {
	OutputDir      string
	Suffix         string
	Formats        []string
	PreviewQuality int
	SuggestTimeout time.Duration
}

// Console maps commands onto an Annotator
type Console struct {
	annotator *imageannotator.Annotator
	log       *logger.Logger
	out       io.Writer
	opts      Options
}

// New creates a console writing user-facing messages to out
func New(a *imageannotator.Annotator, log *logger.Logger, out io.Writer, opts Options) *Console {
	if log == nil {
		log = logger.Discard()
	}
	if opts.PreviewQuality <= 0 {
		opts.PreviewQuality = 90
	}
	if opts.SuggestTimeout <= 0 {
		opts.SuggestTimeout = 2 * time.Minute
	}
	return &Console{annotator: a, log: log, out: out, opts: opts}
}

// Run reads commands from in until quit or end of input. Command errors are
// reported and the loop continues; only read errors are returned.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		quit, err := c.Execute(ctx, scanner.Text())
		if err != nil {
			c.log.Error("%v", err)
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// Execute runs one command line and reports whether the console should stop
func (c *Console) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, nil
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)
	s := c.annotator.Session()

	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Fprintln(c.out, helpText)

	case "load":
		return false, c.load(rest)

	case "classes":
		for _, label := range s.Classes() {
			marker := " "
			if label == s.Class() {
				marker = "*"
			}
			fmt.Fprintf(c.out, "%s %s\n", marker, label)
		}

	case "class":
		if err := s.SelectClass(rest); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Selected class: %s\n", s.Class())

	case "press":
		x, y, err := parsePoint(args)
		if err != nil {
			return false, err
		}
		return false, s.Press(x, y)

	case "drag":
		x, y, err := parsePoint(args)
		if err != nil {
			return false, err
		}
		s.Drag(x, y)

	case "release":
		x, y, err := parsePoint(args)
		if err != nil {
			return false, err
		}
		if box, ok := s.Release(x, y); ok {
			fmt.Fprintf(c.out, "Added %s\n", describeBox(box))
		}

	case "box":
		coords, err := parseInts(args, 4)
		if err != nil {
			return false, err
		}
		box, err := s.AddBox(coords[0], coords[1], coords[2], coords[3])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Added %s\n", describeBox(box))

	case "undo":
		if box, ok := s.Undo(); ok {
			fmt.Fprintf(c.out, "Removed %s\n", describeBox(box))
		} else {
			fmt.Fprintln(c.out, "Nothing to undo.")
		}

	case "zoom":
		switch strings.ToLower(rest) {
		case "in", "+":
			s.ZoomIn()
		case "out", "-":
			s.ZoomOut()
		default:
			return false, fmt.Errorf("usage: zoom in|out")
		}
		fmt.Fprintf(c.out, "Zoom: %.2fx\n", s.Zoom())

	case "list":
		boxes := s.Boxes()
		if len(boxes) == 0 {
			fmt.Fprintln(c.out, "No annotations.")
		}
		for i, b := range boxes {
			fmt.Fprintf(c.out, "%d: %s\n", i+1, describeBox(b))
		}

	case "save":
		paths, err := splitArgs(rest)
		if err != nil {
			return false, err
		}
		return false, c.save(paths)

	case "export":
		fields, err := splitArgs(rest)
		if err != nil {
			return false, err
		}
		return false, c.export(fields)

	case "preview":
		return false, c.preview(rest)

	case "suggest":
		return false, c.suggest(ctx)

	case "propose":
		return false, c.propose()

	case "crops":
		return false, c.crops(rest)

	default:
		return false, fmt.Errorf("unknown command %q (type help)", cmd)
	}
	return false, nil
}

// load opens path; an empty path is a cancelled dialog
func (c *Console) load(path string) error {
	if path == "" {
		return nil
	}
	if err := c.annotator.LoadImage(path); err != nil {
		return err
	}
	ref, _ := c.annotator.Session().Image()
	c.log.Info("loaded %s (%dx%d)", ref.Path, ref.Width, ref.Height)
	fmt.Fprintf(c.out, "Loaded %s (%dx%d)\n", ref.Filename(), ref.Width, ref.Height)
	return nil
}

// save writes JSON to the first path and, when given, Pascal VOC to the second.
// An empty store is reported before the path is looked at.
func (c *Console) save(args []string) error {
	if c.annotator.Session().Len() == 0 {
		c.log.Warning("save skipped: no annotations")
		fmt.Fprintln(c.out, "No annotations to save.")
		return nil
	}
	if len(args) == 0 {
		return nil
	}

	if err := c.annotator.SaveJSON(args[0]); err != nil {
		return fmt.Errorf("failed to save JSON: %w", err)
	}
	c.reportWritten(args[0])

	if len(args) < 2 {
		return nil
	}
	if err := c.annotator.SaveVOC(args[1]); err != nil {
		return fmt.Errorf("failed to save Pascal VOC: %w", err)
	}
	c.reportWritten(args[1])
	return nil
}

// export writes the configured (or named) formats beside base
func (c *Console) export(args []string) error {
	base, formats := "", c.opts.Formats
	for _, arg := range args {
		if _, err := export.ParseFormat(arg); err == nil {
			formats = []string{arg}
		} else {
			base = arg
		}
	}

	if base == "" {
		ref, ok := c.annotator.Session().Image()
		if !ok {
			return fmt.Errorf("export needs a base path when no image is loaded")
		}
		if err := utils.EnsureDir(c.opts.OutputDir); err != nil {
			return err
		}
		base = utils.OutputBase(ref.Path, c.opts.OutputDir, c.opts.Suffix)
	}

	written, err := c.annotator.Export(base, formats...)
	for _, p := range written {
		c.reportWritten(p)
	}
	if errors.Is(err, export.ErrNoAnnotations) {
		c.log.Warning("export skipped: no annotations")
		fmt.Fprintln(c.out, "No annotations to save.")
		return nil
	}
	return err
}

func (c *Console) preview(path string) error {
	if path == "" {
		return nil
	}
	if err := c.annotator.SavePreview(path, c.opts.PreviewQuality); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	c.reportWritten(path)
	return nil
}

// suggest adds every box the vision model proposes
func (c *Console) suggest(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.SuggestTimeout)
	defer cancel()

	start := time.Now()
	suggestions, err := c.annotator.Suggest(ctx)
	if err != nil {
		return fmt.Errorf("suggestion failed: %w", err)
	}
	c.log.Info("model returned %d suggestions in %s", len(suggestions), time.Since(start).Round(time.Millisecond))

	s := c.annotator.Session()
	for _, sg := range suggestions {
		box, err := s.AddSuggestion(sg)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Suggested %s (%.2f)\n", describeBox(box), sg.Confidence)
	}
	if len(suggestions) == 0 {
		fmt.Fprintln(c.out, "No suggestions.")
	}
	return nil
}

// propose adds the salient regions of the image with the selected label
func (c *Console) propose() error {
	boxes, err := c.annotator.Propose()
	if err != nil {
		return err
	}

	s := c.annotator.Session()
	for _, b := range boxes {
		added, err := s.AddBox(b.X1, b.Y1, b.X2, b.Y2)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Proposed %s\n", describeBox(added))
	}
	if len(boxes) == 0 {
		fmt.Fprintln(c.out, "No salient regions found.")
	}
	return nil
}

func (c *Console) crops(dir string) error {
	if dir == "" {
		return nil
	}
	written, err := c.annotator.ExportCrops(dir)
	if errors.Is(err, export.ErrNoAnnotations) {
		fmt.Fprintln(c.out, "No annotations to save.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to export crops: %w", err)
	}
	for _, p := range written {
		c.reportWritten(p)
	}
	return nil
}

func (c *Console) reportWritten(path string) {
	c.log.Info("wrote %s", path)
	fmt.Fprintf(c.out, "Saved %s\n", utils.DescribeFile(path))
}

func describeBox(b types.BoundingBox) string {
	return fmt.Sprintf("[%d %d %d %d] %s", b.X1, b.Y1, b.X2, b.Y2, b.Class)
}

// splitArgs splits on whitespace; double quotes group a path holding spaces
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

func parsePoint(args []string) (int, int, error) {
	v, err := parseInts(args, 2)
	if err != nil {
		return 0, 0, err
	}
	return v[0], v[1], nil
}

func parseInts(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d coordinates, got %d", n, len(args))
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q", a)
		}
		out[i] = v
	}
	return out, nil
}
