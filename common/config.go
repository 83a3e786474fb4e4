package common

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSuffix    = "-cleaned"
	DefaultChunkSize = ByteSize(1 << 20)
	maxChunkSize     = ByteSize(1 << 30)
)

// Config holds every knob of a cleaning run
type Config struct {
	Strategy  Strategy      `yaml:"strategy"`
	Padding   PaddingByte   `yaml:"padding"`
	Suffix    string        `yaml:"suffix"`
	ChunkSize ByteSize      `yaml:"chunk_size"`
	Workers   int           `yaml:"workers"`
	Parser    ParserBackend `yaml:"parser"`
	Load      LoadMode      `yaml:"load"`
	Verify    bool          `yaml:"verify"`

	NoProgress       bool `yaml:"no_progress"`
	FixHeaders       bool `yaml:"fix_headers"`
	ExtractResources bool `yaml:"extract_resources"`
	AnalyzeMetadata  bool `yaml:"analyze_metadata"`
	Verbose          bool `yaml:"verbose"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		Strategy:  StrategySections,
		Padding:   DefaultPaddingByte,
		Suffix:    DefaultSuffix,
		ChunkSize: DefaultChunkSize,
		Workers:   runtime.NumCPU(),
		Parser:    ParserSaferwall,
		Load:      LoadMmap,
	}
}

// LoadFile overlays the YAML document at path onto c. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return Wrapf(ErrIO, err, "read config %s", path)
	}
	return c.LoadYAML(data)
}

func (c *Config) LoadYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return Wrap(ErrInvalidConfig, err, "decode config")
	}
	return nil
}

// Validate checks that every field holds a usable value
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategySections, StrategyImageSize:
	default:
		return Wrap(ErrInvalidConfig, fmt.Errorf("unknown strategy %q", c.Strategy), "strategy")
	}
	switch c.Parser {
	case ParserSaferwall, ParserStdlib:
	default:
		return Wrap(ErrInvalidConfig, fmt.Errorf("unknown parser %q", c.Parser), "parser")
	}
	switch c.Load {
	case LoadMmap, LoadRead:
	default:
		return Wrap(ErrInvalidConfig, fmt.Errorf("unknown load mode %q", c.Load), "load")
	}
	if c.ChunkSize == 0 || c.ChunkSize > maxChunkSize {
		return Wrap(ErrInvalidConfig, fmt.Errorf("chunk size %s out of range (1B..%s)", c.ChunkSize, maxChunkSize), "chunk_size")
	}
	if c.Workers < 1 {
		return Wrap(ErrInvalidConfig, fmt.Errorf("workers must be at least 1, got %d", c.Workers), "workers")
	}
	if c.Suffix == "" {
		return Wrap(ErrInvalidConfig, fmt.Errorf("suffix must not be empty"), "suffix")
	}
	return nil
}
