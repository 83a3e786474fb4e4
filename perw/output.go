package perw

import (
	"path/filepath"
	"strings"
)

// OutputPath derives the cleaned file name by inserting suffix before the
// extension: dir/app.exe -> dir/app-cleaned.exe. Files without an extension
// get the suffix appended.
func OutputPath(input, suffix string) string {
	dir, base := filepath.Split(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// dotfiles such as ".exe" have no stem, keep the whole name
		stem, ext = base, ""
	}
	return filepath.Join(dir, stem+suffix+ext)
}
