package fragment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/secbak/secbak/internal/fileutil"
)

// Reassembler validates a fragment set against its manifest and
// concatenates the fragments back into the original stream.
type Reassembler struct {
	// Workers caps the number of fragments verified concurrently.
	Workers int

	// Logger receives progress and warning messages.
	Logger *logrus.Logger
}

// Result describes a completed reassembly. Warning carries a
// SizeMismatchError when the output size disagrees with the manifest;
// the assembled output is kept either way.
type Result struct {
	OutputPath   string
	BytesWritten int64
	Manifest     *Manifest
	Warning      error
}

func (r *Reassembler) workers() int {
	if r.Workers <= 0 {
		return runtime.NumCPU()
	}

	return r.Workers
}

func (r *Reassembler) logger() *logrus.Logger {
	if r.Logger == nil {
		return logrus.New()
	}

	return r.Logger
}

// Reassemble loads the manifest from fragmentsDir, verifies presence
// and checksums of every fragment, and concatenates them in ascending
// index order into outPath. Presence and integrity failures each list
// every offending fragment, not just the first.
func (r *Reassembler) Reassemble(ctx context.Context, fragmentsDir, outPath string) (*Result, error) {
	manifestPath, err := FindManifest(fragmentsDir)
	if err != nil {
		return nil, err
	}

	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	names := manifest.Names()

	if missing := missingFragments(fragmentsDir, names); len(missing) > 0 {
		return nil, &MissingFragmentsError{Names: missing}
	}

	if err := r.verifyChecksums(ctx, fragmentsDir, manifest, names); err != nil {
		return nil, err
	}

	r.logger().WithFields(logrus.Fields{
		"dir":       fragmentsDir,
		"fragments": len(names),
	}).Info("reassembling fragments")

	written, err := concatenate(ctx, fragmentsDir, names, outPath)
	if err != nil {
		return nil, err
	}

	result := &Result{
		OutputPath:   outPath,
		BytesWritten: written,
		Manifest:     manifest,
	}

	if written != manifest.FileSize {
		result.Warning = &SizeMismatchError{Expected: manifest.FileSize, Actual: written}

		r.logger().WithFields(logrus.Fields{
			"expected": manifest.FileSize,
			"actual":   written,
		}).Warn("reassembled size does not match manifest")
	}

	return result, nil
}

// missingFragments returns the manifest names absent from dir, in
// manifest index order.
func missingFragments(dir string, names []string) []string {
	var missing []string

	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing = append(missing, name)
		}
	}

	return missing
}

// verifyChecksums recomputes every fragment's checksum concurrently
// and joins one CorruptFragmentError per mismatch.
func (r *Reassembler) verifyChecksums(ctx context.Context, dir string, manifest *Manifest, names []string) error {
	errs := make([]error, len(names))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers())

	for i, name := range names {
		i, name := i, name
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			actual, err := fileutil.FileMD5(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("fragment %s: %w", name, err)
			}

			if expected := manifest.Fragments[name].Checksum; actual != expected {
				errs[i] = &CorruptFragmentError{Name: name, Expected: expected, Actual: actual}
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	return errors.Join(errs...)
}

// concatenate streams the fragments in index order into outPath via a
// temp file, renaming only on full success.
func concatenate(ctx context.Context, dir string, names []string, outPath string) (written int64, err error) {
	tc, err := fileutil.NewTempContext(outPath)
	if err != nil {
		return 0, fmt.Errorf("preparing output: %w", err)
	}

	defer tc.CleanupOnError(&err)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, err := appendFile(tc.TmpFile, filepath.Join(dir, name))
		if err != nil {
			return 0, fmt.Errorf("fragment %s: %w", name, err)
		}

		written += n
	}

	if err := tc.Commit(outPath); err != nil {
		return 0, err
	}

	return written, nil
}

func appendFile(dst io.Writer, path string) (int64, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("opening: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(dst, file)
	if err != nil {
		return 0, fmt.Errorf("copying: %w", err)
	}

	return n, nil
}
