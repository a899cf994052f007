// Command analyze interprets entry points of a Go module, or of an
// instruction listing, and prints the call tree of every run.
//
//	analyze [flags] <entry>...
//
// Entries without a dot name functions of the root package of the module.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/podhmo/go-analyzing"
	"github.com/podhmo/go-analyzing/asm"
	"github.com/podhmo/go-analyzing/machine"
	"github.com/podhmo/go-analyzing/methods"
	"github.com/podhmo/go-analyzing/object"
	"github.com/podhmo/go-analyzing/report"
)

// Options are the settings of one invocation. A config file fills them
// first; flags given on the command line win.
type Options struct {
	Dir          string   `yaml:"dir" toml:"dir"`
	Asm          string   `yaml:"asm" toml:"asm"`
	Entries      []string `yaml:"entries" toml:"entries"`
	Format       string   `yaml:"format" toml:"format"`
	Variables    bool     `yaml:"variables" toml:"variables"`
	Color        string   `yaml:"color" toml:"color"` // auto, always or never
	MaxCallDepth int      `yaml:"max_call_depth" toml:"max_call_depth"`
	MaxSteps     int      `yaml:"max_steps" toml:"max_steps"`
}

func main() {
	opts := Options{Dir: ".", Format: string(report.Text), Color: "auto"}
	var configPath string
	flag.StringVar(&configPath, "config", "", "config file (.yaml, .yml or .toml)")
	flag.StringVar(&opts.Dir, "dir", opts.Dir, "directory inside the module to analyze")
	flag.StringVar(&opts.Asm, "asm", "", "instruction listing to run instead of Go sources")
	flag.StringVar(&opts.Format, "format", opts.Format, "report format (text, yaml, cbor)")
	flag.BoolVar(&opts.Variables, "vars", false, "list frame variables and their edits")
	flag.StringVar(&opts.Color, "color", opts.Color, "decorate text reports (auto, always, never)")
	flag.IntVar(&opts.MaxCallDepth, "max-depth", 0, "maximum interpreted call depth")
	flag.IntVar(&opts.MaxSteps, "max-steps", 0, "maximum executed instructions per run")
	var logLevel = slog.LevelWarn
	flag.TextVar(&logLevel, "log-level", &logLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	if configPath != "" {
		var file Options
		if err := loadConfig(configPath, &file); err != nil {
			log.Fatalf("!! %+v", err)
		}
		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		opts = merge(file, opts, set)
	}
	opts.Entries = append(opts.Entries, flag.Args()...)
	if len(opts.Entries) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one entry is required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))
	color := opts.Color == "always" || (opts.Color == "auto" && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())))
	if err := run(context.Background(), os.Stdout, logger, opts, color); err != nil {
		log.Fatalf("!! %+v", err)
	}
}

// loadConfig decodes a config file, picking the decoder by extension.
func loadConfig(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, opts); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, opts); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// merge overlays the flags named in set onto the file settings.
func merge(file, flags Options, set map[string]bool) Options {
	out := file
	if set["dir"] || out.Dir == "" {
		out.Dir = flags.Dir
	}
	if set["asm"] {
		out.Asm = flags.Asm
	}
	if set["format"] || out.Format == "" {
		out.Format = flags.Format
	}
	if set["vars"] {
		out.Variables = flags.Variables
	}
	if set["color"] || out.Color == "" {
		out.Color = flags.Color
	}
	if set["max-depth"] {
		out.MaxCallDepth = flags.MaxCallDepth
	}
	if set["max-steps"] {
		out.MaxSteps = flags.MaxSteps
	}
	return out
}

func run(ctx context.Context, out io.Writer, logger *slog.Logger, opts Options, color bool) error {
	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	logger.Info("starting analyze", "dir", opts.Dir, "asm", opts.Asm, "entries", opts.Entries)

	var results []*machine.Result
	if opts.Asm != "" {
		results, err = runListing(ctx, logger, opts)
	} else {
		results, err = runModule(ctx, logger, opts)
	}
	if err != nil {
		return err
	}

	for _, res := range results {
		if err := report.Build(res).Write(out, format, report.TextOptions{Color: color, Variables: opts.Variables}); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func runModule(ctx context.Context, logger *slog.Logger, opts Options) ([]*machine.Result, error) {
	p, err := analyzing.Open(opts.Dir,
		analyzing.WithLogger(logger),
		analyzing.WithMaxCallDepth(opts.MaxCallDepth),
		analyzing.WithMaxSteps(opts.MaxSteps),
	)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	entries := make([]object.MethodID, len(opts.Entries))
	for i, e := range opts.Entries {
		if !strings.Contains(e, ".") {
			e = p.ModulePath() + "." + e
		}
		entries[i] = object.MethodID(e)
	}
	return p.AnalyzeAll(ctx, entries)
}

func runListing(ctx context.Context, logger *slog.Logger, opts Options) ([]*machine.Result, error) {
	text, err := os.ReadFile(opts.Asm)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	a, err := asm.Parse(opts.Asm, string(text), asm.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	mopts := []machine.Option{
		machine.WithLogger(logger),
		machine.WithResolver(methods.NewResolver(a.Types())),
		machine.WithDirectMethods(a.DirectMethods()),
	}
	if opts.MaxCallDepth > 0 {
		mopts = append(mopts, machine.WithMaxCallDepth(opts.MaxCallDepth))
	}
	if opts.MaxSteps > 0 {
		mopts = append(mopts, machine.WithMaxSteps(opts.MaxSteps))
	}

	// a listing has no package structure, so the runs share one cache and go in order
	cache := methods.NewCache(logger)
	var results []*machine.Result
	for _, e := range opts.Entries {
		res, err := machine.New(cache, a.Provide, mopts...).RunMethod(ctx, object.MethodID(e))
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", e, err)
		}
		results = append(results, res)
	}
	return results, nil
}
