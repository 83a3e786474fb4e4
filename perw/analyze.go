package perw

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// WriteMetadata prints the COFF/optional header summary and the section
// table of the loaded file.
func (p *PEFile) WriteMetadata(w io.Writer) error {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "Analyzing metadata...")
	fmt.Fprintf(&buf, "Machine: %s\n", getMachineName(p.COFF.Machine))
	fmt.Fprintf(&buf, "Number of sections: %d\n", p.COFF.NumberOfSections)
	fmt.Fprintf(&buf, "Timestamp: %d (%s)\n", p.COFF.TimeDateStamp,
		time.Unix(int64(p.COFF.TimeDateStamp), 0).UTC().Format(time.RFC3339))

	if oh := p.Optional; oh != nil {
		format := "PE32"
		if oh.Is64Bit() {
			format = "PE32+"
		}
		fmt.Fprintf(&buf, "Format: %s\n", format)
		fmt.Fprintf(&buf, "Subsystem: %s (%d)\n", getSubsystemName(oh.Subsystem), oh.Subsystem)
		fmt.Fprintf(&buf, "Image base: 0x%X\n", oh.ImageBase)
		fmt.Fprintf(&buf, "Size of image: 0x%X\n", oh.SizeOfImage)
		fmt.Fprintf(&buf, "Size of headers: 0x%X\n", oh.SizeOfHeaders)
	} else {
		fmt.Fprintln(&buf, "⚠️  Optional header not present")
	}

	fmt.Fprintln(&buf, "Sections:")
	if len(p.Sections) == 0 {
		fmt.Fprintln(&buf, "  (none)")
	} else {
		table := tablewriter.NewWriter(&buf)
		table.SetHeader([]string{"#", "Name", "Raw offset", "Raw size", "Size", "Flags"})
		table.SetAutoWrapText(false)
		for _, s := range p.Sections {
			table.Append([]string{
				fmt.Sprintf("%d", s.Index),
				s.DisplayName(),
				fmt.Sprintf("0x%08X", s.FileOffset),
				fmt.Sprintf("%d bytes", s.RawSize),
				humanize.IBytes(uint64(s.RawSize)),
				decodeSectionFlags(s.Characteristics),
			})
		}
		table.Render()
	}
	fmt.Fprintln(&buf, "Metadata analysis complete")

	_, err := w.Write(buf.Bytes())
	return err
}
