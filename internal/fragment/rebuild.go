package fragment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// writeRebuildNotes drops a REBUILD.md beside the manifest so a
// fragment set found on a bare USB stick explains itself.
func writeRebuildNotes(outDir string, m *Manifest) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Rebuild instructions\n\n")
	fmt.Fprintf(&b, "Original file: %s\n", m.OriginalFile)
	fmt.Fprintf(&b, "Total size: %s (%d bytes)\n", humanize.IBytes(uint64(m.FileSize)), m.FileSize)
	fmt.Fprintf(&b, "Fragments: %d of up to %s each\n\n", m.FragmentCount, humanize.IBytes(uint64(m.FragmentSize)))
	fmt.Fprintf(&b, "To verify and reassemble, run:\n\n")
	fmt.Fprintf(&b, "    secbak rebuild .\n\n")
	fmt.Fprintf(&b, "Fragments in order:\n\n")

	for _, name := range m.Names() {
		info := m.Fragments[name]
		fmt.Fprintf(&b, "  %3d. %s  %d bytes  md5 %s\n", info.Index, name, info.Size, info.Checksum)
	}

	path := filepath.Join(outDir, "REBUILD.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}

	return nil
}
