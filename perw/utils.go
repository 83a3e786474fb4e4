package perw

import (
	"fmt"
	"strings"
)

const (
	scnCntCode              = 0x00000020
	scnCntInitializedData   = 0x00000040
	scnCntUninitializedData = 0x00000080
	scnMemDiscardable       = 0x02000000
	scnMemShared            = 0x10000000
	scnMemExecute           = 0x20000000
	scnMemRead              = 0x40000000
	scnMemWrite             = 0x80000000
)

// decodeSectionFlags returns human-readable section flags
func decodeSectionFlags(flags uint32) string {
	var out []string
	if flags&scnCntCode != 0 {
		out = append(out, "CODE")
	}
	if flags&scnCntInitializedData != 0 {
		out = append(out, "INITIALIZED_DATA")
	}
	if flags&scnCntUninitializedData != 0 {
		out = append(out, "UNINITIALIZED_DATA")
	}
	if flags&scnMemExecute != 0 {
		out = append(out, "EXECUTABLE")
	}
	if flags&scnMemRead != 0 {
		out = append(out, "READABLE")
	}
	if flags&scnMemWrite != 0 {
		out = append(out, "WRITABLE")
	}
	if flags&scnMemShared != 0 {
		out = append(out, "SHARED")
	}
	if flags&scnMemDiscardable != 0 {
		out = append(out, "DISCARDABLE")
	}
	if len(out) == 0 {
		return "None"
	}
	return strings.Join(out, ", ")
}

func getMachineName(machine uint16) string {
	switch machine {
	case 0x0000:
		return "Unknown"
	case 0x014c:
		return "i386"
	case 0x0166:
		return "R4000"
	case 0x01c0:
		return "ARM"
	case 0x01c4:
		return "ARMv7 Thumb-2"
	case 0x0200:
		return "IA64"
	case 0x5032:
		return "RISC-V 32"
	case 0x5064:
		return "RISC-V 64"
	case 0x8664:
		return "AMD64"
	case 0xaa64:
		return "ARM64"
	default:
		return fmt.Sprintf("0x%04X", machine)
	}
}

func getSubsystemName(subsystem uint16) string {
	switch subsystem {
	case 1:
		return "Native"
	case 2:
		return "Windows GUI"
	case 3:
		return "Windows Console"
	case 5:
		return "OS/2 Console"
	case 7:
		return "POSIX Console"
	case 8:
		return "Native Win9x Driver"
	case 9:
		return "Windows CE GUI"
	case 10:
		return "EFI Application"
	case 11:
		return "EFI Boot Service Driver"
	case 12:
		return "EFI Runtime Driver"
	case 13:
		return "EFI ROM"
	case 14:
		return "Xbox"
	case 16:
		return "Windows Boot Application"
	default:
		return "Unknown"
	}
}

// sectionForRVA returns the section whose virtual range holds rva
func (l *Layout) sectionForRVA(rva uint32) (Section, bool) {
	for _, s := range l.Sections {
		size := max(s.VirtualSize, s.RawSize)
		if rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(size) {
			return s, true
		}
	}
	return Section{}, false
}
