package perw

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"pecleaner/common"
)

const DefaultChunkSize = 1 << 20

// CopyOptions tunes the copy pipeline. The zero value writes to the OS
// filesystem with 1 MiB chunks, a single worker and mode 0644.
type CopyOptions struct {
	Fs        afero.Fs
	ChunkSize int
	Workers   int
	Progress  Progress
	Verify    bool
	Mode      os.FileMode
	Logger    log.Logger
}

// CopyResult summarizes a finished copy.
type CopyResult struct {
	Path    string
	Written int64
	Chunks  int
	Digest  uint64
}

// chunkWriter is the single owner of the destination handle. Writes are
// positioned, so the order in which workers reach it does not matter.
type chunkWriter struct {
	mu sync.Mutex
	f  io.WriterAt
}

func (w *chunkWriter) writeAt(p []byte, off int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.f.WriteAt(p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// Copy writes raw[:end] to outputPath. Data goes to a temporary file in the
// same directory which replaces outputPath only once every chunk has been
// written (and verified, if requested). On failure or cancellation the
// temporary file is removed and any previous outputPath is left untouched.
func Copy(ctx context.Context, raw []byte, end uint64, outputPath string, opts CopyOptions) (*CopyResult, error) {
	if end > uint64(len(raw)) {
		return nil, common.Wrap(common.ErrIO, fmt.Errorf("boundary %d exceeds input length %d", end, len(raw)), "copy")
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	workers := max(opts.Workers, 1)
	mode := opts.Mode
	if mode == 0 {
		mode = 0o644
	}

	dir, base := filepath.Split(outputPath)
	if dir == "" {
		dir = "."
	}
	tmp, err := afero.TempFile(fs, dir, "."+base+".tmp-*")
	if err != nil {
		return nil, common.Wrapf(common.ErrIO, err, "create temporary file for %s", outputPath)
	}
	tmpName := tmp.Name()

	fail := func(cause error) (*CopyResult, error) {
		var cleanup *multierror.Error
		if err := tmp.Close(); err != nil {
			cleanup = multierror.Append(cleanup, err)
		}
		if err := fs.Remove(tmpName); err != nil {
			cleanup = multierror.Append(cleanup, err)
		}
		level.Debug(logger).Log("msg", "copy aborted", "tmp", tmpName, "err", cause)
		if cleanup != nil {
			return nil, multierror.Append(cleanup, cause)
		}
		return nil, cause
	}

	if err := tmp.Truncate(int64(end)); err != nil {
		return fail(common.Wrapf(common.ErrIO, err, "size %s", tmpName))
	}

	data := raw[:end]
	// keeps the round-up below from overflowing for huge chunk sizes
	chunkSize = min(chunkSize, max(len(data), 1))
	chunks := (len(data) + chunkSize - 1) / chunkSize
	w := &chunkWriter{f: tmp}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < chunks; i++ {
		if gctx.Err() != nil {
			break
		}
		off := i * chunkSize
		chunk := data[off:min(off+chunkSize, len(data))]
		idx := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := w.writeAt(chunk, int64(off)); err != nil {
				return common.Wrapf(common.ErrIO, err, "write chunk %d at 0x%X", idx, off)
			}
			if opts.Progress != nil {
				opts.Progress.Add(int64(len(chunk)))
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return fail(err)
	}

	if err := tmp.Sync(); err != nil {
		return fail(common.Wrapf(common.ErrIO, err, "sync %s", tmpName))
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return nil, common.Wrapf(common.ErrIO, err, "close %s", tmpName)
	}

	digest := xxhash.Sum64(data)
	if opts.Verify {
		if err := verifyFile(fs, tmpName, int64(end), digest); err != nil {
			_ = fs.Remove(tmpName)
			return nil, err
		}
	}

	if err := fs.Chmod(tmpName, mode); err != nil {
		_ = fs.Remove(tmpName)
		return nil, common.Wrapf(common.ErrIO, err, "chmod %s", tmpName)
	}
	if err := fs.Rename(tmpName, outputPath); err != nil {
		_ = fs.Remove(tmpName)
		return nil, common.Wrapf(common.ErrIO, err, "rename %s to %s", tmpName, outputPath)
	}

	level.Debug(logger).Log("msg", "copy finished", "path", outputPath, "bytes", end, "chunks", chunks, "workers", workers)
	return &CopyResult{
		Path:    outputPath,
		Written: int64(end),
		Chunks:  chunks,
		Digest:  digest,
	}, nil
}

// verifyFile re-reads path and compares its length and digest.
func verifyFile(fs afero.Fs, path string, size int64, digest uint64) error {
	f, err := fs.Open(path)
	if err != nil {
		return common.Wrapf(common.ErrIO, err, "open %s for verification", path)
	}
	defer func() {
		_ = f.Close()
	}()

	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return common.Wrapf(common.ErrIO, err, "read %s for verification", path)
	}
	if n != size {
		return common.Wrap(common.ErrVerifyMismatch, fmt.Errorf("wrote %d bytes, expected %d", n, size), "verify")
	}
	if got := h.Sum64(); got != digest {
		return common.Wrap(common.ErrVerifyMismatch, fmt.Errorf("digest %016x, expected %016x", got, digest), "verify")
	}
	return nil
}
