// Package petest builds small synthetic PE images for tests.
package petest

import (
	"encoding/binary"
)

const (
	dosHeaderSize       = 0x40
	peSignatureSize     = 4
	coffFileHeaderSize  = 20
	optionalHeader32Sz  = 0xE0
	optionalHeader64Sz  = 0xF0
	sectionHeaderSize   = 40
	numberOfDirectories = 16

	MachineI386  = 0x014c
	MachineAMD64 = 0x8664

	pe32Magic     = 0x10b
	pe32PlusMagic = 0x20b
)

// Section describes one section table entry. Offset/Size may point past the
// end of the image.
type Section struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32
	Offset          uint32
	Size            uint32
	Characteristics uint32
}

// Image describes a PE file to synthesize. Zero values pick sane defaults.
type Image struct {
	Is64             bool
	NoOptionalHeader bool
	Machine          uint16
	TimeDateStamp    uint32
	ImageBase        uint64
	SizeOfImage      uint32
	SizeOfHeaders    uint32
	FileAlignment    uint32
	SectionAlignment uint32
	Subsystem        uint16
	ResourceRVA      uint32
	ResourceSize     uint32
	Sections         []Section

	// Size is the file length. When zero the file ends at the furthest of
	// SizeOfHeaders and every section end. It never shrinks below the
	// header table.
	Size int
}

// Bytes renders the image. Bytes past the header table hold a repeating
// non-constant pattern so truncation mistakes are visible.
func (img Image) Bytes() []byte {
	optSize := optionalHeader32Sz
	if img.Is64 {
		optSize = optionalHeader64Sz
	}
	if img.NoOptionalHeader {
		optSize = 0
	}
	coffOff := dosHeaderSize + peSignatureSize
	optOff := coffOff + coffFileHeaderSize
	secOff := optOff + optSize
	headersEnd := secOff + sectionHeaderSize*len(img.Sections)

	sizeOfHeaders := img.SizeOfHeaders
	if sizeOfHeaders == 0 && !img.NoOptionalHeader {
		sizeOfHeaders = 0x400
	}

	size := img.Size
	if size == 0 {
		size = int(sizeOfHeaders)
		for _, s := range img.Sections {
			size = max(size, int(s.Offset)+int(s.Size))
		}
	}
	size = max(size, headersEnd)

	data := make([]byte, size)
	for i := headersEnd; i < size; i++ {
		data[i] = byte(i%251) + 1
	}

	// DOS header
	data[0], data[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(data[0x3C:], dosHeaderSize)

	// PE signature
	copy(data[dosHeaderSize:], "PE\x00\x00")

	// COFF header
	machine := img.Machine
	if machine == 0 {
		machine = MachineI386
		if img.Is64 {
			machine = MachineAMD64
		}
	}
	binary.LittleEndian.PutUint16(data[coffOff:], machine)
	binary.LittleEndian.PutUint16(data[coffOff+2:], uint16(len(img.Sections)))
	binary.LittleEndian.PutUint32(data[coffOff+4:], img.TimeDateStamp)
	binary.LittleEndian.PutUint16(data[coffOff+16:], uint16(optSize))
	binary.LittleEndian.PutUint16(data[coffOff+18:], 0x0102) // EXECUTABLE_IMAGE | 32BIT_MACHINE

	if !img.NoOptionalHeader {
		img.putOptionalHeader(data[optOff:optOff+optSize], sizeOfHeaders)
	}

	for i, s := range img.Sections {
		h := data[secOff+i*sectionHeaderSize:]
		copy(h[:8], s.Name)
		binary.LittleEndian.PutUint32(h[8:], s.VirtualSize)
		binary.LittleEndian.PutUint32(h[12:], s.VirtualAddress)
		binary.LittleEndian.PutUint32(h[16:], s.Size)
		binary.LittleEndian.PutUint32(h[20:], s.Offset)
		binary.LittleEndian.PutUint32(h[36:], s.Characteristics)
	}
	return data
}

func (img Image) putOptionalHeader(oh []byte, sizeOfHeaders uint32) {
	fileAlign := img.FileAlignment
	if fileAlign == 0 {
		fileAlign = 0x200
	}
	sectAlign := img.SectionAlignment
	if sectAlign == 0 {
		sectAlign = 0x1000
	}
	subsystem := img.Subsystem
	if subsystem == 0 {
		subsystem = 3
	}
	var entry uint32
	if len(img.Sections) > 0 {
		entry = img.Sections[0].VirtualAddress
	}

	binary.LittleEndian.PutUint32(oh[16:], entry)
	binary.LittleEndian.PutUint32(oh[32:], sectAlign)
	binary.LittleEndian.PutUint32(oh[36:], fileAlign)
	binary.LittleEndian.PutUint16(oh[40:], 6) // MajorOperatingSystemVersion
	binary.LittleEndian.PutUint16(oh[48:], 6) // MajorSubsystemVersion
	binary.LittleEndian.PutUint32(oh[56:], img.SizeOfImage)
	binary.LittleEndian.PutUint32(oh[60:], sizeOfHeaders)
	binary.LittleEndian.PutUint16(oh[68:], subsystem)

	dirOff := 96
	if img.Is64 {
		imageBase := img.ImageBase
		if imageBase == 0 {
			imageBase = 0x140000000
		}
		binary.LittleEndian.PutUint16(oh[0:], pe32PlusMagic)
		binary.LittleEndian.PutUint64(oh[24:], imageBase)
		binary.LittleEndian.PutUint32(oh[108:], numberOfDirectories)
		dirOff = 112
	} else {
		imageBase := img.ImageBase
		if imageBase == 0 {
			imageBase = 0x400000
		}
		binary.LittleEndian.PutUint16(oh[0:], pe32Magic)
		binary.LittleEndian.PutUint32(oh[28:], uint32(imageBase))
		binary.LittleEndian.PutUint32(oh[92:], numberOfDirectories)
	}

	// resource directory is entry 2
	binary.LittleEndian.PutUint32(oh[dirOff+2*8:], img.ResourceRVA)
	binary.LittleEndian.PutUint32(oh[dirOff+2*8+4:], img.ResourceSize)
}
