package fragment

import (
	"context"
	"crypto/md5" //nolint:gosec // corruption detection only, format-mandated
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultFragmentSize is the nominal fragment size when the caller
// does not choose one.
const DefaultFragmentSize int64 = 64 << 20

// Fragmenter splits a file into fixed-size fragments with a manifest.
type Fragmenter struct {
	// FragmentSize is the nominal fragment size in bytes.
	FragmentSize int64

	// Workers caps the number of fragments written concurrently.
	Workers int

	// Logger receives progress messages.
	Logger *logrus.Logger
}

func (f *Fragmenter) fragmentSize() int64 {
	if f.FragmentSize <= 0 {
		return DefaultFragmentSize
	}

	return f.FragmentSize
}

func (f *Fragmenter) workers() int {
	if f.Workers <= 0 {
		return runtime.NumCPU()
	}

	return f.Workers
}

func (f *Fragmenter) logger() *logrus.Logger {
	if f.Logger == nil {
		return logrus.New()
	}

	return f.Logger
}

// Fragment splits the file at sourcePath into fragments under outDir
// and writes the manifest beside them. Fragments cover disjoint,
// contiguous byte ranges; every fragment holds exactly fragmentSize
// bytes except the last, which holds the remainder. The destination's
// free space is checked before any fragment is written.
func (f *Fragmenter) Fragment(ctx context.Context, sourcePath, outDir string) (*Manifest, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("stat source %q: %w", sourcePath, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	size := info.Size()
	fragSize := f.fragmentSize()
	count := int((size + fragSize - 1) / fragSize)

	usage, err := disk.Usage(outDir)
	if err != nil {
		return nil, fmt.Errorf("checking free space on %q: %w", outDir, err)
	}

	if uint64(size) > usage.Free {
		return nil, &InsufficientSpaceError{Required: uint64(size), Available: usage.Free}
	}

	f.logger().WithFields(logrus.Fields{
		"source":    sourcePath,
		"fragments": count,
		"size":      fragSize,
	}).Info("fragmenting file")

	stem := Stem(sourcePath)
	infos := make([]Info, count)
	names := make([]string, count)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(f.workers())

	for i := 0; i < count; i++ {
		i := i
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			start := int64(i) * fragSize
			length := min(fragSize, size-start)
			name := Name(stem, i)

			written, err := writeFragment(sourcePath, filepath.Join(outDir, name), start, length)
			if err != nil {
				return fmt.Errorf("fragment %s: %w", name, err)
			}

			written.Index = i
			names[i] = name
			infos[i] = written

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		removeParts(outDir, names)

		return nil, err
	}

	manifest := &Manifest{
		OriginalFile:  filepath.Base(sourcePath),
		FileSize:      size,
		FragmentSize:  fragSize,
		FragmentCount: count,
		CreatedBy:     createdBy,
		Fragments:     make(map[string]Info, count),
	}

	for i, name := range names {
		manifest.Fragments[name] = infos[i]
	}

	manifestPath := filepath.Join(outDir, stem+ManifestSuffix)
	if err := manifest.WriteFile(manifestPath); err != nil {
		removeParts(outDir, names)

		return nil, err
	}

	if err := writeRebuildNotes(outDir, manifest); err != nil {
		f.logger().WithError(err).Warn("could not write rebuild notes")
	}

	f.logger().WithFields(logrus.Fields{
		"dir":      outDir,
		"manifest": manifestPath,
	}).Info("fragmentation complete")

	return manifest, nil
}

// writeFragment copies length bytes starting at start from sourcePath
// into destPath, hashing as it goes. The fragment is staged in a temp
// file and renamed into place so a cancelled run leaves no
// valid-looking partial fragment.
func writeFragment(sourcePath, destPath string, start, length int64) (info Info, err error) {
	in, err := os.Open(filepath.Clean(sourcePath))
	if err != nil {
		return Info{}, fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	if _, err := in.Seek(start, io.SeekStart); err != nil {
		return Info{}, fmt.Errorf("seeking to offset %d: %w", start, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".part-*")
	if err != nil {
		return Info{}, fmt.Errorf("creating temporary fragment: %w", err)
	}

	defer func() {
		tmp.Close()

		if err != nil {
			os.Remove(tmp.Name()) //nolint:gosec // best-effort cleanup
		}
	}()

	hash := md5.New() //nolint:gosec // corruption detection only

	written, err := io.CopyN(io.MultiWriter(tmp, hash), in, length)
	if err != nil {
		return Info{}, fmt.Errorf("copying %d bytes: %w", length, err)
	}

	if err := tmp.Close(); err != nil {
		return Info{}, fmt.Errorf("closing temporary fragment: %w", err)
	}

	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return Info{}, fmt.Errorf("renaming fragment: %w", err)
	}

	return Info{Size: written, Checksum: hex.EncodeToString(hash.Sum(nil))}, nil
}

// removeParts best-effort deletes any fragments written before a failure.
func removeParts(outDir string, names []string) {
	for _, name := range names {
		if name == "" {
			continue
		}

		os.Remove(filepath.Join(outDir, name)) //nolint:gosec // best-effort cleanup
	}
}
