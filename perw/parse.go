package perw

import (
	"bytes"
	stdpe "debug/pe"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/saferwall/pe"
	pelog "github.com/saferwall/pe/log"

	"pecleaner/common"
)

const resourceDirectoryIndex = 2

// Parser turns raw bytes into a Layout. Implementations must not retain or
// modify data.
type Parser interface {
	Parse(data []byte) (*Layout, error)
}

// NewParser returns the parser for backend
func NewParser(backend common.ParserBackend, logger log.Logger) (Parser, error) {
	switch backend {
	case common.ParserSaferwall, "":
		return &saferwallParser{logger: logger}, nil
	case common.ParserStdlib:
		return stdlibParser{}, nil
	default:
		return nil, common.Wrap(common.ErrInvalidConfig, fmt.Errorf("unknown parser %q", backend), "parser")
	}
}

// saferwallParser adapts github.com/saferwall/pe. It parses headers and the
// section table only; data directories are skipped.
type saferwallParser struct {
	logger log.Logger
}

func (s *saferwallParser) Parse(data []byte) (*Layout, error) {
	f, err := pe.NewBytes(data, &pe.Options{
		Fast:   true,
		Logger: saferwallLogger{logger: s.logger},
	})
	if err != nil {
		return nil, err
	}
	// f is backed by data, which the caller owns; f.Close would unmap it.
	if err := f.Parse(); err != nil {
		return nil, err
	}

	fh := f.NtHeader.FileHeader
	layout := &Layout{
		COFF: COFFHeader{
			Machine:          uint16(fh.Machine),
			NumberOfSections: fh.NumberOfSections,
			TimeDateStamp:    fh.TimeDateStamp,
			Characteristics:  uint16(fh.Characteristics),
		},
	}

	switch oh := f.NtHeader.OptionalHeader.(type) {
	case pe.ImageOptionalHeader32:
		layout.Optional = fromSaferwall32(&oh)
	case *pe.ImageOptionalHeader32:
		layout.Optional = fromSaferwall32(oh)
	case pe.ImageOptionalHeader64:
		layout.Optional = fromSaferwall64(&oh)
	case *pe.ImageOptionalHeader64:
		layout.Optional = fromSaferwall64(oh)
	}

	layout.Sections = make([]Section, 0, len(f.Sections))
	for i, s := range f.Sections {
		h := s.Header
		layout.Sections = append(layout.Sections, Section{
			Name:            bytes.Clone(bytes.TrimRight(h.Name[:], "\x00")),
			FileOffset:      h.PointerToRawData,
			RawSize:         h.SizeOfRawData,
			VirtualAddress:  h.VirtualAddress,
			VirtualSize:     h.VirtualSize,
			Characteristics: uint32(h.Characteristics),
			Index:           i,
		})
	}
	return layout, nil
}

func fromSaferwall32(oh *pe.ImageOptionalHeader32) *OptionalHeader {
	res := oh.DataDirectory[resourceDirectoryIndex]
	return &OptionalHeader{
		Magic:            oh.Magic,
		Subsystem:        uint16(oh.Subsystem),
		ImageBase:        uint64(oh.ImageBase),
		SizeOfImage:      oh.SizeOfImage,
		SizeOfHeaders:    oh.SizeOfHeaders,
		FileAlignment:    oh.FileAlignment,
		SectionAlignment: oh.SectionAlignment,
		ResourceRVA:      res.VirtualAddress,
		ResourceSize:     res.Size,
	}
}

func fromSaferwall64(oh *pe.ImageOptionalHeader64) *OptionalHeader {
	res := oh.DataDirectory[resourceDirectoryIndex]
	return &OptionalHeader{
		Magic:            oh.Magic,
		Subsystem:        uint16(oh.Subsystem),
		ImageBase:        oh.ImageBase,
		SizeOfImage:      oh.SizeOfImage,
		SizeOfHeaders:    oh.SizeOfHeaders,
		FileAlignment:    oh.FileAlignment,
		SectionAlignment: oh.SectionAlignment,
		ResourceRVA:      res.VirtualAddress,
		ResourceSize:     res.Size,
	}
}

// saferwallLogger forwards the parser's anomaly logging to go-kit.
type saferwallLogger struct {
	logger log.Logger
}

func (l saferwallLogger) Log(lvl pelog.Level, keyvals ...interface{}) error {
	if l.logger == nil {
		return nil
	}
	logger := log.With(l.logger, "component", "saferwall")
	switch lvl {
	case pelog.LevelDebug:
		return level.Debug(logger).Log(keyvals...)
	case pelog.LevelInfo:
		return level.Info(logger).Log(keyvals...)
	case pelog.LevelWarn:
		return level.Warn(logger).Log(keyvals...)
	default:
		return level.Error(logger).Log(keyvals...)
	}
}

// stdlibParser adapts debug/pe. Unlike saferwall it accepts images whose
// SizeOfOptionalHeader is zero and reports them with a nil Optional.
type stdlibParser struct{}

func (stdlibParser) Parse(data []byte) (*Layout, error) {
	f, err := stdpe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	layout := &Layout{
		COFF: COFFHeader{
			Machine:          f.FileHeader.Machine,
			NumberOfSections: f.FileHeader.NumberOfSections,
			TimeDateStamp:    f.FileHeader.TimeDateStamp,
			Characteristics:  f.FileHeader.Characteristics,
		},
	}

	switch oh := f.OptionalHeader.(type) {
	case *stdpe.OptionalHeader32:
		res := oh.DataDirectory[resourceDirectoryIndex]
		layout.Optional = &OptionalHeader{
			Magic:            oh.Magic,
			Subsystem:        oh.Subsystem,
			ImageBase:        uint64(oh.ImageBase),
			SizeOfImage:      oh.SizeOfImage,
			SizeOfHeaders:    oh.SizeOfHeaders,
			FileAlignment:    oh.FileAlignment,
			SectionAlignment: oh.SectionAlignment,
			ResourceRVA:      res.VirtualAddress,
			ResourceSize:     res.Size,
		}
	case *stdpe.OptionalHeader64:
		res := oh.DataDirectory[resourceDirectoryIndex]
		layout.Optional = &OptionalHeader{
			Magic:            oh.Magic,
			Subsystem:        oh.Subsystem,
			ImageBase:        oh.ImageBase,
			SizeOfImage:      oh.SizeOfImage,
			SizeOfHeaders:    oh.SizeOfHeaders,
			FileAlignment:    oh.FileAlignment,
			SectionAlignment: oh.SectionAlignment,
			ResourceRVA:      res.VirtualAddress,
			ResourceSize:     res.Size,
		}
	}

	layout.Sections = make([]Section, 0, len(f.Sections))
	for i, s := range f.Sections {
		layout.Sections = append(layout.Sections, Section{
			Name:            []byte(s.Name),
			FileOffset:      s.Offset,
			RawSize:         s.Size,
			VirtualAddress:  s.VirtualAddress,
			VirtualSize:     s.VirtualSize,
			Characteristics: s.Characteristics,
			Index:           i,
		})
	}
	return layout, nil
}
