package perw

import (
	"pecleaner/common"
)

// HeaderReport checks section raw offsets and sizes against FileAlignment
// and totals the raw data. It never modifies the file.
func (p *PEFile) HeaderReport() *common.OperationResult {
	oh := p.Optional
	if oh == nil {
		return common.NewSkipped("no optional header, alignment unknown")
	}
	if len(p.Sections) == 0 {
		return common.NewSkipped("no sections to inspect")
	}

	align := oh.FileAlignment
	var details []common.OperationDetail
	details = append(details, common.Detailf("file alignment 0x%X, section alignment 0x%X", align, oh.SectionAlignment))

	validAlign := align >= 0x200 && align&(align-1) == 0
	if !validAlign {
		details = append(details, common.Riskyf("file alignment 0x%X is not a power of two >= 0x200", align))
	}

	var total uint64
	misaligned := 0
	for _, s := range p.Sections {
		total += uint64(s.RawSize)
		if align == 0 || s.RawSize == 0 {
			details = append(details, common.Detailf("section %s: %d raw bytes at 0x%X", s.DisplayName(), s.RawSize, s.FileOffset))
			continue
		}
		offOK := s.FileOffset%align == 0
		sizeOK := s.RawSize%align == 0
		switch {
		case offOK && sizeOK:
			details = append(details, common.Detailf("section %s aligned (0x%X, %d bytes)", s.DisplayName(), s.FileOffset, s.RawSize))
		case !offOK:
			misaligned++
			details = append(details, common.Riskyf("section %s raw offset 0x%X not aligned to 0x%X", s.DisplayName(), s.FileOffset, align))
		default:
			misaligned++
			details = append(details, common.Riskyf("section %s raw size %d not a multiple of 0x%X", s.DisplayName(), s.RawSize, align))
		}
	}
	if uint64(oh.SizeOfHeaders) > uint64(len(p.RawData)) {
		details = append(details, common.Riskyf("size of headers 0x%X exceeds file size", oh.SizeOfHeaders))
	}
	details = append(details, common.Detailf("raw data total %d bytes", total))

	msg := "all sections aligned"
	if misaligned > 0 {
		msg = "misaligned sections found, headers left unchanged"
	}
	return common.NewApplied(msg, len(p.Sections)).WithDetails(details...)
}
