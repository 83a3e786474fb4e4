package perw

import (
	"fmt"
	"sort"

	"pecleaner/common"
)

// BoundaryOptions selects the strategy used by Resolve.
type BoundaryOptions struct {
	Strategy common.Strategy
	Padding  common.PaddingByte
}

// Boundary is the resolved cut point and how it was reached.
type Boundary struct {
	Offset   uint64
	Strategy common.Strategy

	// Candidate is the value before clamping to the input length.
	Candidate uint64
	Clamped   bool

	// Set by the image-size strategy.
	SizeOfImage uint64
	ScanEnd     uint64

	// FromHeaders is true when the section table was empty.
	FromHeaders bool

	Overlaps []SectionOverlap
}

// SectionOverlap reports two sections whose raw ranges intersect.
type SectionOverlap struct {
	First, Second Section
}

func (o SectionOverlap) String() string {
	return fmt.Sprintf("section %s [0x%X,0x%X) overlaps %s [0x%X,0x%X)",
		o.First.DisplayName(), o.First.FileOffset, o.First.End(),
		o.Second.DisplayName(), o.Second.FileOffset, o.Second.End())
}

// Resolve computes where meaningful content in raw ends. The returned offset
// is always within [0, len(raw)]. Only the image-size strategy can fail, and
// only when the layout has no optional header.
func Resolve(layout *Layout, raw []byte, opts BoundaryOptions) (*Boundary, error) {
	rawLen := uint64(len(raw))
	b := &Boundary{Strategy: opts.Strategy}

	switch opts.Strategy {
	case common.StrategySections, "":
		b.Strategy = common.StrategySections
		b.Candidate, b.FromHeaders = lastSectionEnd(layout)
	case common.StrategyImageSize:
		if layout.Optional == nil {
			return nil, common.Wrap(common.ErrMissingOptionalHeader, nil, "image-size strategy")
		}
		b.SizeOfImage = uint64(layout.Optional.SizeOfImage)
		b.ScanEnd = lastNonPadding(raw, byte(opts.Padding))
		b.Candidate = min(b.SizeOfImage, b.ScanEnd)
	default:
		return nil, common.Wrap(common.ErrInvalidConfig, fmt.Errorf("unknown strategy %q", opts.Strategy), "resolve")
	}

	b.Offset = b.Candidate
	if b.Offset > rawLen {
		b.Offset = rawLen
		b.Clamped = true
	}
	b.Overlaps = findOverlaps(layout.Sections)
	return b, nil
}

// lastSectionEnd returns the furthest raw end claimed by the section table,
// falling back to SizeOfHeaders (or 0) when there are no sections.
func lastSectionEnd(layout *Layout) (uint64, bool) {
	if len(layout.Sections) == 0 {
		if layout.Optional == nil {
			return 0, true
		}
		return uint64(layout.Optional.SizeOfHeaders), true
	}
	var end uint64
	for _, s := range layout.Sections {
		end = max(end, s.End())
	}
	return end, false
}

// lastNonPadding scans backward and returns the index just past the last byte
// that differs from padding; 0 if every byte is padding.
func lastNonPadding(raw []byte, padding byte) uint64 {
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] != padding {
			return uint64(i) + 1
		}
	}
	return 0
}

// findOverlaps lists intersecting raw ranges. Zero-sized sections never overlap.
func findOverlaps(sections []Section) []SectionOverlap {
	sized := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.RawSize > 0 {
			sized = append(sized, s)
		}
	}
	sort.SliceStable(sized, func(i, j int) bool {
		return sized[i].FileOffset < sized[j].FileOffset
	})

	var overlaps []SectionOverlap
	for i := 0; i < len(sized); i++ {
		for j := i + 1; j < len(sized) && uint64(sized[j].FileOffset) < sized[i].End(); j++ {
			overlaps = append(overlaps, SectionOverlap{First: sized[i], Second: sized[j]})
		}
	}
	return overlaps
}

// ResolveBoundary resolves the cut point of the loaded file
func (p *PEFile) ResolveBoundary(opts BoundaryOptions) (*Boundary, error) {
	return Resolve(&p.Layout, p.RawData, opts)
}
