package perw

import (
	"strings"

	"github.com/edsrzf/mmap-go"

	"pecleaner/common"
)

// Section is one entry of the section table as seen on disk.
// FileOffset+RawSize is not guaranteed to stay inside the file.
type Section struct {
	Name            []byte
	FileOffset      uint32
	RawSize         uint32
	VirtualAddress  uint32
	VirtualSize     uint32
	Characteristics uint32
	Index           int
}

// DisplayName returns the section name without trailing NUL padding
func (s Section) DisplayName() string {
	name := strings.TrimRight(string(s.Name), "\x00")
	if name == "" {
		return "<unnamed>"
	}
	return name
}

// End returns FileOffset+RawSize without overflow
func (s Section) End() uint64 {
	return uint64(s.FileOffset) + uint64(s.RawSize)
}

type COFFHeader struct {
	Machine          uint16
	NumberOfSections uint16
	TimeDateStamp    uint32
	Characteristics  uint16
}

// OptionalHeader carries the fields of the PE32/PE32+ optional header the
// cleaner and its reports need.
type OptionalHeader struct {
	Magic            uint16
	Subsystem        uint16
	ImageBase        uint64
	SizeOfImage      uint32
	SizeOfHeaders    uint32
	FileAlignment    uint32
	SectionAlignment uint32
	ResourceRVA      uint32
	ResourceSize     uint32
}

func (o *OptionalHeader) Is64Bit() bool {
	return o != nil && o.Magic == 0x20b
}

// Layout is the parser-independent view over a PE image. Optional is nil
// when the image has no optional header.
type Layout struct {
	COFF     COFFHeader
	Optional *OptionalHeader
	Sections []Section
}

// PEFile is a loaded input: its raw bytes plus the parsed layout.
// RawData must not be modified; it may be a read-only mapping.
type PEFile struct {
	FileName string
	RawData  []byte
	Layout
	Parser common.ParserBackend

	mapping mmap.MMap
}

// Close releases the input mapping, if any
func (p *PEFile) Close() error {
	if p.mapping == nil {
		return nil
	}
	m := p.mapping
	p.mapping = nil
	p.RawData = nil
	if err := m.Unmap(); err != nil {
		return common.Wrapf(common.ErrIO, err, "unmap %s", p.FileName)
	}
	return nil
}

func (p *PEFile) FileSize() int64 {
	return int64(len(p.RawData))
}
