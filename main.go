package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mattn/go-isatty"
	"gopkg.in/alecthomas/kingpin.v2"

	"pecleaner/common"
	"pecleaner/perw"
)

const versionString = "pecleaner, version 0.3"

// flags mirrors the command line. Empty strings and zero values mean the
// flag was not given, so the config file (or the default) wins.
type flags struct {
	configFile string
	input      string

	strategy  string
	padding   string
	suffix    string
	chunkSize string
	workers   int
	parser    string
	load      string

	verify           bool
	noProgress       bool
	fixHeaders       bool
	extractResources bool
	analyzeMetadata  bool
	verbose          bool
}

func newApp(f *flags) *kingpin.Application {
	app := kingpin.New(filepath.Base(os.Args[0]), "Remove overlay and padding bytes appended to Windows PE files.").UsageWriter(os.Stdout)
	app.Version(versionString)
	app.HelpFlag.Short('h')

	app.Flag("config.file", "YAML configuration file. Flags override its values.").StringVar(&f.configFile)
	app.Flag("strategy", "Boundary strategy: sections or image-size.").EnumVar(&f.strategy, common.Strategies...)
	app.Flag("padding", "Padding byte trimmed by the image-size strategy (default 0x30).").StringVar(&f.padding)
	app.Flag("suffix", "Suffix inserted before the output extension (default -cleaned).").StringVar(&f.suffix)
	app.Flag("chunk-size", "Size of each copied chunk, e.g. 1MiB or 64k.").StringVar(&f.chunkSize)
	app.Flag("workers", "Number of concurrent chunk workers (default: number of CPUs).").IntVar(&f.workers)
	app.Flag("parser", "PE parser backend: saferwall or stdlib.").EnumVar(&f.parser, common.ParserBackends...)
	app.Flag("load", "How the input is loaded: mmap or read.").EnumVar(&f.load, common.LoadModes...)
	app.Flag("verify", "Re-read the output and compare its digest with the input prefix.").BoolVar(&f.verify)
	app.Flag("no-progress", "Disable the progress spinner.").BoolVar(&f.noProgress)
	app.Flag("fix-headers", "Report section alignment against FileAlignment (read-only).").BoolVar(&f.fixHeaders)
	app.Flag("extract-resources", "Locate the resource directory and check it survives the cut.").BoolVar(&f.extractResources)
	app.Flag("analyze-metadata", "Print COFF, optional header and section metadata.").BoolVar(&f.analyzeMetadata)
	app.Flag("verbose", "Enable debug logging.").Short('v').BoolVar(&f.verbose)

	app.Arg("input", "PE file to clean.").Required().ExistingFileVar(&f.input)
	return app
}

// config builds the effective configuration: defaults, then the config
// file, then any flag that was given.
func (f *flags) config() (*common.Config, error) {
	cfg := common.DefaultConfig()
	if f.configFile != "" {
		if err := cfg.LoadFile(f.configFile); err != nil {
			return nil, err
		}
	}

	if f.strategy != "" {
		cfg.Strategy = common.Strategy(f.strategy)
	}
	if f.padding != "" {
		p, err := common.ParsePaddingByte(f.padding)
		if err != nil {
			return nil, common.Wrap(common.ErrInvalidConfig, err, "padding")
		}
		cfg.Padding = p
	}
	if f.suffix != "" {
		cfg.Suffix = f.suffix
	}
	if f.chunkSize != "" {
		size, err := common.ParseByteSize(f.chunkSize)
		if err != nil {
			return nil, common.Wrap(common.ErrInvalidConfig, err, "chunk-size")
		}
		cfg.ChunkSize = size
	}
	if f.workers != 0 {
		cfg.Workers = f.workers
	}
	if f.parser != "" {
		cfg.Parser = common.ParserBackend(f.parser)
	}
	if f.load != "" {
		cfg.Load = common.LoadMode(f.load)
	}
	cfg.Verify = cfg.Verify || f.verify
	cfg.NoProgress = cfg.NoProgress || f.noProgress
	cfg.FixHeaders = cfg.FixHeaders || f.fixHeaders
	cfg.ExtractResources = cfg.ExtractResources || f.extractResources
	cfg.AnalyzeMetadata = cfg.AnalyzeMetadata || f.analyzeMetadata
	cfg.Verbose = cfg.Verbose || f.verbose

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	if !verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	return logger
}

// newProgress returns a spinner-backed progress factory when stderr is a
// terminal, or nil otherwise.
func newProgress(cfg *common.Config) (func(total int64) perw.Progress, func()) {
	if cfg.NoProgress || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil, func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	factory := func(total int64) perw.Progress {
		s.Suffix = " writing " + humanize.IBytes(uint64(total))
		s.Start()
		return perw.NewCounter(total, func(written, total int64) {
			s.Lock()
			s.Suffix = fmt.Sprintf(" %s / %s", humanize.IBytes(uint64(written)), humanize.IBytes(uint64(total)))
			s.Unlock()
		})
	}
	return factory, s.Stop
}

func cleanOptions(cfg *common.Config, logger log.Logger, stdout io.Writer) perw.CleanOptions {
	opts := perw.CleanOptions{
		Read: perw.ReadOptions{
			Load:   cfg.Load,
			Parser: cfg.Parser,
			Logger: logger,
		},
		Boundary: perw.BoundaryOptions{
			Strategy: cfg.Strategy,
			Padding:  cfg.Padding,
		},
		Copy: perw.CopyOptions{
			ChunkSize: int(cfg.ChunkSize),
			Workers:   cfg.Workers,
			Verify:    cfg.Verify,
			Logger:    logger,
		},
		Suffix:           cfg.Suffix,
		FixHeaders:       cfg.FixHeaders,
		ExtractResources: cfg.ExtractResources,
	}
	if cfg.AnalyzeMetadata {
		opts.Metadata = stdout
	}
	return opts
}

// run cleans input according to cfg and prints the outcome to stdout.
func run(ctx context.Context, cfg *common.Config, input string, stdout io.Writer, logger log.Logger) error {
	start := time.Now()

	opts := cleanOptions(cfg, logger, stdout)
	progress, stop := newProgress(cfg)
	opts.NewProgress = progress

	fmt.Fprintf(stdout, "Processing %s\n", input)
	res, err := perw.CleanPE(ctx, input, opts)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(stdout, "❌ %s: cleaning failed\n", filepath.Base(input))
		return err
	}

	printResult(stdout, res)
	fmt.Fprintf(stdout, "Total execution time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func printResult(w io.Writer, res *perw.CleanResult) {
	b := res.Boundary
	fmt.Fprintf(w, "Boundary: 0x%X (%s strategy)\n", b.Offset, b.Strategy)
	if b.Clamped {
		fmt.Fprintf(w, "⚠️  Boundary 0x%X exceeds file size, clamped to 0x%X\n", b.Candidate, b.Offset)
	}
	for _, o := range b.Overlaps {
		fmt.Fprintf(w, "⚠️  %s\n", o)
	}

	if res.Overlay.Present() {
		fmt.Fprintf(w, "Overlay: %s removed from offset 0x%X\n", humanize.IBytes(res.Overlay.Size), res.Overlay.Offset)
	} else {
		fmt.Fprintln(w, "Overlay: none")
	}

	saved := res.InputSize - res.Copy.Written
	percentage := 0.0
	if res.InputSize > 0 {
		percentage = float64(saved) / float64(res.InputSize) * 100
	}
	color.New(color.FgGreen).Fprintf(w, "✅ %s", filepath.Base(res.Output))
	fmt.Fprintf(w, ": %s -> %s (%.1f%% reduction, %d chunks)\n",
		humanize.IBytes(uint64(res.InputSize)), humanize.IBytes(uint64(res.Copy.Written)), percentage, res.Copy.Chunks)
	fmt.Fprintf(w, "Output: %s\n", res.Output)
	fmt.Fprintf(w, "Digest: xxh64:%016x\n", res.Copy.Digest)

	if res.Headers != nil {
		fmt.Fprintln(w, common.FormatOperationResult("Header report", res.Headers))
	}
	if res.Resources != nil {
		fmt.Fprintln(w, common.FormatOperationResult("Resource report", res.Resources))
	}
}

func checkError(err error, verbose bool) int {
	if err == nil {
		return 0
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return 1
}

func main() {
	var f flags
	app := newApp(&f)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := f.config()
	if err != nil {
		os.Exit(checkError(err, f.verbose))
	}
	logger := newLogger(os.Stderr, cfg.Verbose)
	level.Debug(logger).Log("msg", "configuration", "strategy", cfg.Strategy, "padding", cfg.Padding,
		"chunk_size", cfg.ChunkSize, "workers", cfg.Workers, "parser", cfg.Parser, "load", cfg.Load)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := checkError(run(ctx, cfg, f.input, os.Stdout, logger), cfg.Verbose)
	cancel()
	os.Exit(code)
}
