package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StrategySections, cfg.Strategy)
	assert.Equal(t, PaddingByte(0x30), cfg.Padding)
	assert.Equal(t, ByteSize(1<<20), cfg.ChunkSize)
	assert.Equal(t, "-cleaned", cfg.Suffix)
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadYAML([]byte(`
strategy: image-size
padding: "0x00"
chunk_size: 64KiB
suffix: -trimmed
verify: true
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StrategyImageSize, cfg.Strategy)
	assert.Equal(t, PaddingByte(0), cfg.Padding)
	assert.Equal(t, ByteSize(64*1024), cfg.ChunkSize)
	assert.Equal(t, "-trimmed", cfg.Suffix)
	assert.True(t, cfg.Verify)
	// untouched keys keep their defaults
	assert.Equal(t, ParserSaferwall, cfg.Parser)
	assert.Equal(t, LoadMmap, cfg.Load)
}

func TestLoadYAMLEmptyDocument(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadYAML(nil))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadYAML([]byte("stratgy: sections\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pecleaner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\npadding: 255\n"), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, PaddingByte(0xFF), cfg.Padding)

	err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.Strategy = "tail" }},
		{"unknown parser", func(c *Config) { c.Parser = "goblin" }},
		{"unknown load mode", func(c *Config) { c.Load = "stream" }},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }},
		{"huge chunk", func(c *Config) { c.ChunkSize = 2 << 30 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"empty suffix", func(c *Config) { c.Suffix = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestParsePaddingByte(t *testing.T) {
	for in, want := range map[string]PaddingByte{"0x30": 0x30, "48": 0x30, "0": 0, " 0xff ": 0xFF} {
		got, err := ParsePaddingByte(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"0x100", "-1", "zero", ""} {
		_, err := ParsePaddingByte(in)
		assert.Error(t, err, in)
	}
	assert.Equal(t, "0x30", DefaultPaddingByte.String())
}

func TestParseByteSize(t *testing.T) {
	got, err := ParseByteSize("1MiB")
	require.NoError(t, err)
	assert.Equal(t, ByteSize(1<<20), got)

	got, err = ParseByteSize("4096")
	require.NoError(t, err)
	assert.Equal(t, ByteSize(4096), got)

	_, err = ParseByteSize("lots")
	assert.Error(t, err)
}
