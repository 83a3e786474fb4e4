package perw

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"pecleaner/common"
)

const (
	dosHeaderSize = 0x40
	lfanewOffset  = 0x3C
	peSignature   = "PE\x00\x00"
)

// ReadOptions controls how ReadPE brings a file into memory and parses it.
type ReadOptions struct {
	Load   common.LoadMode
	Parser common.ParserBackend
	Logger log.Logger
}

// ReadPE loads path and parses it as a PE image. The returned file must be
// closed by the caller. Format problems are reported as ErrNotAPEFile or
// ErrMalformedHeader; nothing is ever written.
func ReadPE(path string, opts ReadOptions) (*PEFile, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	data, mapping, err := readFileData(path, opts.Load)
	if err != nil {
		return nil, err
	}
	pf := &PEFile{
		FileName: path,
		RawData:  data,
		Parser:   opts.Parser,
		mapping:  mapping,
	}

	if err := validatePESignature(data); err != nil {
		_ = pf.Close()
		return nil, common.Wrapf(common.ErrNotAPEFile, err, "parse %s", path)
	}

	parser, err := NewParser(opts.Parser, logger)
	if err != nil {
		_ = pf.Close()
		return nil, err
	}
	layout, err := parser.Parse(data)
	if err != nil {
		_ = pf.Close()
		return nil, common.Wrapf(common.ErrMalformedHeader, err, "parse %s", path)
	}
	pf.Layout = *layout

	level.Debug(logger).Log(
		"msg", "parsed input",
		"path", path,
		"parser", opts.Parser,
		"size", len(data),
		"sections", len(pf.Sections),
		"optional_header", pf.Optional != nil,
	)
	return pf, nil
}

// readFileData returns the file content either mapped read-only or read in
// one go. Empty files are never mapped.
func readFileData(path string, mode common.LoadMode) ([]byte, mmap.MMap, error) {
	if mode != common.LoadMmap {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, common.Wrapf(common.ErrIO, err, "read %s", path)
		}
		return data, nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, common.Wrapf(common.ErrIO, err, "open %s", path)
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	info, err := file.Stat()
	if err != nil {
		return nil, nil, common.Wrapf(common.ErrIO, err, "stat %s", path)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, common.Wrapf(common.ErrIO, fmt.Errorf("not a regular file"), "open %s", path)
	}
	if info.Size() == 0 {
		return []byte{}, nil, nil
	}

	m, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, nil, common.Wrapf(common.ErrIO, err, "mmap %s", path)
	}
	return m, m, nil
}

// validatePESignature checks the MZ stub and the PE signature it points to.
func validatePESignature(data []byte) error {
	if len(data) < dosHeaderSize {
		return fmt.Errorf("file too small to be a valid PE file (%d bytes)", len(data))
	}
	if data[0] != 'M' || data[1] != 'Z' {
		return fmt.Errorf("invalid DOS header signature")
	}
	lfanew := uint64(binary.LittleEndian.Uint32(data[lfanewOffset : lfanewOffset+4]))
	if lfanew+uint64(len(peSignature)) > uint64(len(data)) {
		return fmt.Errorf("e_lfanew 0x%X points outside the file", lfanew)
	}
	if string(data[lfanew:lfanew+4]) != peSignature {
		return fmt.Errorf("PE signature not found at 0x%X", lfanew)
	}
	return nil
}
