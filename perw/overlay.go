package perw

// Overlay describes the bytes that fall past the boundary.
type Overlay struct {
	Offset uint64
	Size   uint64
}

func (o Overlay) Present() bool {
	return o.Size > 0
}

// Overlay returns the region removed by cutting at b
func (p *PEFile) Overlay(b *Boundary) Overlay {
	size := uint64(len(p.RawData))
	if b == nil || b.Offset >= size {
		return Overlay{Offset: size}
	}
	return Overlay{Offset: b.Offset, Size: size - b.Offset}
}
