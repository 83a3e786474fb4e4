package perw

import (
	"context"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"pecleaner/common"
)

// CleanOptions configures CleanPE.
type CleanOptions struct {
	Read     ReadOptions
	Boundary BoundaryOptions
	Copy     CopyOptions
	Suffix   string
	// NewProgress, when set, builds the progress sink once the number of
	// bytes to write is known. It overrides Copy.Progress.
	NewProgress func(total int64) Progress

	FixHeaders       bool
	ExtractResources bool
	// Metadata receives the metadata report when non-nil.
	Metadata io.Writer
}

// CleanResult describes a finished run.
type CleanResult struct {
	Input     string
	Output    string
	InputSize int64
	Boundary  *Boundary
	Overlay   Overlay
	Copy      *CopyResult

	Headers   *common.OperationResult
	Resources *common.OperationResult
}

// CleanPE reads the PE at path, resolves its boundary and writes the cleaned
// copy next to it. Parsing and resolution happen before anything is written,
// so format errors never leave an output file behind.
func CleanPE(ctx context.Context, path string, opts CleanOptions) (*CleanResult, error) {
	logger := opts.Read.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	peFile, err := ReadPE(path, opts.Read)
	if err != nil {
		return nil, err
	}
	defer func(peFile *PEFile) {
		_ = peFile.Close()
	}(peFile)

	boundary, err := peFile.ResolveBoundary(opts.Boundary)
	if err != nil {
		return nil, err
	}
	if boundary.Clamped {
		level.Warn(logger).Log("msg", "boundary exceeds file size, clamped", "candidate", boundary.Candidate, "size", len(peFile.RawData))
	}
	for _, o := range boundary.Overlaps {
		level.Warn(logger).Log("msg", "overlapping sections", "detail", o.String())
	}

	suffix := opts.Suffix
	if suffix == "" {
		suffix = common.DefaultSuffix
	}
	result := &CleanResult{
		Input:     path,
		Output:    OutputPath(path, suffix),
		InputSize: peFile.FileSize(),
		Boundary:  boundary,
		Overlay:   peFile.Overlay(boundary),
	}

	copyOpts := opts.Copy
	if copyOpts.Logger == nil {
		copyOpts.Logger = logger
	}
	if opts.NewProgress != nil {
		copyOpts.Progress = opts.NewProgress(int64(boundary.Offset))
	}
	if copyOpts.Mode == 0 && copyOpts.Fs == nil {
		if info, err := os.Stat(path); err == nil {
			copyOpts.Mode = info.Mode().Perm()
		}
	}

	level.Info(logger).Log("msg", "writing cleaned copy", "output", result.Output, "boundary", boundary.Offset, "strategy", boundary.Strategy)
	result.Copy, err = Copy(ctx, peFile.RawData, boundary.Offset, result.Output, copyOpts)
	if err != nil {
		return nil, err
	}

	if opts.FixHeaders {
		result.Headers = peFile.HeaderReport()
	}
	if opts.ExtractResources {
		result.Resources = peFile.ResourceReport(boundary)
	}
	if opts.Metadata != nil {
		if err := peFile.WriteMetadata(opts.Metadata); err != nil {
			return result, common.Wrap(common.ErrIO, err, "write metadata report")
		}
	}
	return result, nil
}
