package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Strategy selects how the end of meaningful content is determined.
type Strategy string

const (
	// StrategySections ends the file at the furthest section raw data.
	StrategySections Strategy = "sections"
	// StrategyImageSize ends the file at min(SizeOfImage, last non-padding byte).
	StrategyImageSize Strategy = "image-size"
)

// Strategies lists the accepted strategy names.
var Strategies = []string{string(StrategySections), string(StrategyImageSize)}

// ParserBackend selects the PE parser implementation.
type ParserBackend string

const (
	ParserSaferwall ParserBackend = "saferwall"
	ParserStdlib    ParserBackend = "stdlib"
)

var ParserBackends = []string{string(ParserSaferwall), string(ParserStdlib)}

// LoadMode selects how the input is brought into memory.
type LoadMode string

const (
	LoadMmap LoadMode = "mmap"
	LoadRead LoadMode = "read"
)

var LoadModes = []string{string(LoadMmap), string(LoadRead)}

// PaddingByte is the filler value trimmed by the image-size strategy.
// It accepts decimal, hex (0x30) or octal notation.
type PaddingByte uint8

// DefaultPaddingByte matches the ASCII '0' filler seen in padded samples.
const DefaultPaddingByte PaddingByte = 0x30

func ParsePaddingByte(s string) (PaddingByte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid padding byte %q: %w", s, err)
	}
	return PaddingByte(v), nil
}

func (p PaddingByte) String() string {
	return fmt.Sprintf("0x%02X", uint8(p))
}

func (p *PaddingByte) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParsePaddingByte(value.Value)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ByteSize is a size in bytes that reads human forms like "1MiB" or "512k".
type ByteSize uint64

func ParseByteSize(s string) (ByteSize, error) {
	v, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return ByteSize(v), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseByteSize(value.Value)
	if err != nil {
		return err
	}
	*b = v
	return nil
}
