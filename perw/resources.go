package perw

import (
	"pecleaner/common"
)

// ResourceReport locates the resource data directory in the file and says
// whether cutting at b keeps it. Resources are not extracted.
func (p *PEFile) ResourceReport(b *Boundary) *common.OperationResult {
	oh := p.Optional
	if oh == nil || oh.ResourceRVA == 0 || oh.ResourceSize == 0 {
		return common.NewSkipped("no resource directory")
	}

	s, ok := p.sectionForRVA(oh.ResourceRVA)
	if !ok {
		return common.NewApplied("resource directory outside every section", 1).WithDetails(
			common.Riskyf("resource directory RVA 0x%X (%d bytes) is not mapped by any section", oh.ResourceRVA, oh.ResourceSize),
		)
	}

	fileOff := uint64(s.FileOffset) + uint64(oh.ResourceRVA-s.VirtualAddress)
	end := fileOff + uint64(oh.ResourceSize)
	details := []common.OperationDetail{
		common.Detailf("resource directory RVA 0x%X, %d bytes", oh.ResourceRVA, oh.ResourceSize),
		common.Detailf("section %s holds resources at file offset 0x%X", s.DisplayName(), fileOff),
	}
	if b != nil && end > b.Offset {
		details = append(details, common.Riskyf("resource data ends at 0x%X, past the cut at 0x%X", end, b.Offset))
	} else {
		details = append(details, common.Detailf("resource data kept by the cleaned copy"))
	}
	return common.NewApplied("resource directory located", 1).WithDetails(details...)
}
