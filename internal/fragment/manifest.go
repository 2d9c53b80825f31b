package fragment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/secbak/secbak/internal/fileutil"
)

// ManifestSuffix is appended to the source stem to name the manifest file.
const ManifestSuffix = ".metadata.json"

const createdBy = "secbak"

// Info describes one fragment within a manifest.
type Info struct {
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Index    int    `json:"index"`
}

// Manifest describes one fragmented file. It is written once at
// fragmentation time and never mutated afterwards.
type Manifest struct {
	OriginalFile  string          `json:"original_file"`
	FileSize      int64           `json:"file_size"`
	FragmentSize  int64           `json:"fragment_size"`
	FragmentCount int             `json:"num_fragments"`
	CreatedBy     string          `json:"created_by"`
	Fragments     map[string]Info `json:"fragments"`
}

// Name returns the deterministic fragment file name for index.
func Name(stem string, index int) string {
	return fmt.Sprintf("%s.part%03d", stem, index)
}

// Stem returns the fragment naming stem for a source path, the base
// name with its final extension removed.
func Stem(sourcePath string) string {
	base := filepath.Base(sourcePath)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Names returns the fragment names in ascending index order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Fragments))
	for name := range m.Fragments {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return m.Fragments[names[i]].Index < m.Fragments[names[j]].Index
	})

	return names
}

// validate checks that the manifest is internally consistent: the
// fragment count matches the map and the indices form a contiguous
// range starting at zero.
func (m *Manifest) validate() error {
	if len(m.Fragments) != m.FragmentCount {
		return fmt.Errorf("manifest lists %d fragments but declares %d", len(m.Fragments), m.FragmentCount)
	}

	seen := make(map[int]string, len(m.Fragments))

	for name, info := range m.Fragments {
		if info.Index < 0 || info.Index >= m.FragmentCount {
			return fmt.Errorf("fragment %s has index %d outside [0,%d)", name, info.Index, m.FragmentCount)
		}

		if other, ok := seen[info.Index]; ok {
			return fmt.Errorf("fragments %s and %s share index %d", other, name, info.Index)
		}

		seen[info.Index] = name
	}

	return nil
}

// WriteFile atomically writes the manifest as indented JSON.
func (m *Manifest) WriteFile(path string) (err error) {
	tc, err := fileutil.NewTempContext(path)
	if err != nil {
		return fmt.Errorf("preparing manifest write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	encoder := json.NewEncoder(tc.TmpFile)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	return tc.Commit(path)
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading manifest %q: %w", path, err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", path, err)
	}

	if err := manifest.validate(); err != nil {
		return nil, fmt.Errorf("manifest %q: %w", path, err)
	}

	return &manifest, nil
}

// FindManifest locates the single *.metadata.json file in dir.
func FindManifest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ManifestSuffix))
	if err != nil {
		return "", fmt.Errorf("globbing %q: %w", dir, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no manifest (*%s) found in %q", ManifestSuffix, dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("multiple manifests found in %q: %v", dir, matches)
	}
}
