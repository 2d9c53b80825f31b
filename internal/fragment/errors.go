package fragment

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// InsufficientSpaceError reports that the destination cannot hold the
// fragment set. It is raised before any fragment is written.
type InsufficientSpaceError struct {
	Required  uint64
	Available uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient space: need %s, have %s",
		humanize.IBytes(e.Required), humanize.IBytes(e.Available))
}

// MissingFragmentsError lists every fragment named in the manifest
// that is absent from the fragments directory.
type MissingFragmentsError struct {
	Names []string
}

func (e *MissingFragmentsError) Error() string {
	return fmt.Sprintf("missing fragments: %s", strings.Join(e.Names, ", "))
}

// CorruptFragmentError reports a checksum mismatch for one fragment.
// Reassembly joins one per mismatching fragment before giving up.
type CorruptFragmentError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *CorruptFragmentError) Error() string {
	return fmt.Sprintf("fragment %s corrupt: checksum %s, expected %s", e.Name, e.Actual, e.Expected)
}

// SizeMismatchError reports that the reassembled output does not match
// the manifest's recorded size. It is surfaced as a warning alongside
// the assembled output rather than aborting.
type SizeMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("reassembled size %d does not match manifest size %d", e.Actual, e.Expected)
}
