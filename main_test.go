package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pecleaner/common"
	"pecleaner/perw/petest"
)

func testImage() []byte {
	return petest.Image{
		SizeOfImage: 0x3000,
		Sections: []petest.Section{
			{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x200, Offset: 0x400, Size: 0x200},
			{Name: ".data", VirtualAddress: 0x2000, VirtualSize: 0x1000, Offset: 0x600, Size: 0x1000},
		},
		Size: 0x2000,
	}.Bytes()
}

func writeInput(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.exe")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func parseFlags(t *testing.T, args ...string) (*common.Config, error) {
	t.Helper()
	var f flags
	_, err := newApp(&f).Parse(args)
	require.NoError(t, err)
	return f.config()
}

func TestConfigDefaults(t *testing.T) {
	input := writeInput(t, testImage())
	cfg, err := parseFlags(t, input)
	require.NoError(t, err)

	want := common.DefaultConfig()
	assert.Equal(t, want, cfg)
}

func TestConfigPrecedence(t *testing.T) {
	input := writeInput(t, testImage())
	cfgFile := filepath.Join(t.TempDir(), "pecleaner.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
strategy: image-size
workers: 3
suffix: -trimmed
chunk_size: 64KiB
verify: true
`), 0o644))

	cfg, err := parseFlags(t, "--config.file", cfgFile, "--workers", "5", "--padding", "0x00", "--fix-headers", input)
	require.NoError(t, err)

	assert.Equal(t, common.StrategyImageSize, cfg.Strategy)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, common.PaddingByte(0), cfg.Padding)
	assert.Equal(t, "-trimmed", cfg.Suffix)
	assert.Equal(t, common.ByteSize(64<<10), cfg.ChunkSize)
	assert.True(t, cfg.Verify)
	assert.True(t, cfg.FixHeaders)
	assert.Equal(t, common.ParserSaferwall, cfg.Parser)
}

func TestConfigInvalid(t *testing.T) {
	input := writeInput(t, testImage())

	for name, args := range map[string][]string{
		"chunk size":      {"--chunk-size", "lots", input},
		"zero chunk size": {"--chunk-size", "0", input},
		"padding":         {"--padding", "0x300", input},
		"workers":         {"--workers=-1", input},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseFlags(t, args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidConfig), "got %v", err)
		})
	}

	t.Run("unknown strategy", func(t *testing.T) {
		var f flags
		_, err := newApp(&f).Parse([]string{"--strategy", "tail", input})
		assert.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := parseFlags(t, "--config.file", filepath.Join(t.TempDir(), "nope.yaml"), input)
		assert.True(t, errors.Is(err, common.ErrIO))
	})
}

func TestRun(t *testing.T) {
	data := testImage()
	input := writeInput(t, data)

	cfg := common.DefaultConfig()
	cfg.NoProgress = true
	cfg.ChunkSize = 0x100
	cfg.Workers = 4
	cfg.Verify = true
	cfg.FixHeaders = true
	cfg.AnalyzeMetadata = true

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, input, &stdout, log.NewNopLogger()))

	out, err := os.ReadFile(filepath.Join(filepath.Dir(input), "app-cleaned.exe"))
	require.NoError(t, err)
	assert.Equal(t, data[:0x1600], out)

	got := stdout.String()
	assert.Contains(t, got, "Boundary: 0x1600 (sections strategy)")
	assert.Contains(t, got, "Overlay: 2.5 KiB removed from offset 0x1600")
	assert.Contains(t, got, "Machine: i386")
	assert.Contains(t, got, "Header report: APPLIED")
	assert.Contains(t, got, "Total execution time")
}

func TestRunFailure(t *testing.T) {
	input := writeInput(t, append([]byte("MZ"), make([]byte, 0x80)...))
	cfg := common.DefaultConfig()
	cfg.NoProgress = true

	var stdout bytes.Buffer
	err := run(context.Background(), cfg, input, &stdout, log.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotAPEFile))
	assert.Equal(t, 1, checkError(err, false))

	entries, err := os.ReadDir(filepath.Dir(input))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
