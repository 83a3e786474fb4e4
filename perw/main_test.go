package perw

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"pecleaner/perw/petest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// twoSectionImage has .text at [0x400,0x600) and .data at [0x600,0x1600),
// followed by 0xA00 bytes of overlay.
func twoSectionImage() petest.Image {
	return petest.Image{
		SizeOfImage: 0x3000,
		Sections: []petest.Section{
			{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x200, Offset: 0x400, Size: 0x200, Characteristics: 0x60000020},
			{Name: ".data", VirtualAddress: 0x2000, VirtualSize: 0x1000, Offset: 0x600, Size: 0x1000, Characteristics: 0xC0000040},
		},
		Size: 0x2000,
	}
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
