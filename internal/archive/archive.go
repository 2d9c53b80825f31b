// Package archive packs file sets into a single artifact before
// encryption and unpacks them on restore. Supported formats: zip,
// tar.gz, tar.zst and tar.xz.
package archive

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"github.com/secbak/secbak/internal/fileutil"
)

// Algorithm selects the archive/compression format.
type Algorithm string

const (
	Zip  Algorithm = "zip"
	Gzip Algorithm = "gzip"
	Zstd Algorithm = "zstd"
	Xz   Algorithm = "xz"
)

// ParseAlgorithm validates a user-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case Zip, Gzip, Zstd, Xz:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unsupported archive algorithm %q (want zip, gzip, zstd or xz)", s)
	}
}

// Extension returns the output file extension for the algorithm.
func (a Algorithm) Extension() string {
	switch a {
	case Zip:
		return ".zip"
	case Gzip:
		return ".tar.gz"
	case Zstd:
		return ".tar.zst"
	case Xz:
		return ".tar.xz"
	default:
		return ""
	}
}

// Archiver creates and extracts archives.
type Archiver struct {
	Logger *logrus.Logger
}

func (a *Archiver) logger() *logrus.Logger {
	if a.Logger == nil {
		return logrus.New()
	}

	return a.Logger
}

// Create packs files into an archive at outPath using algo. Entry
// names are the given paths with separators normalized to slashes.
// The archive is staged in a temp file and renamed on success.
func (a *Archiver) Create(ctx context.Context, files []string, outPath string, algo Algorithm) (err error) {
	a.logger().WithFields(logrus.Fields{
		"files":     len(files),
		"algorithm": algo,
		"output":    outPath,
	}).Info("creating archive")

	tc, err := fileutil.NewTempContext(outPath)
	if err != nil {
		return fmt.Errorf("preparing archive: %w", err)
	}

	defer tc.CleanupOnError(&err)

	if algo == Zip {
		err = writeZip(ctx, tc.TmpFile, files)
	} else {
		err = writeTar(ctx, tc.TmpFile, files, algo)
	}

	if err != nil {
		return err
	}

	return tc.Commit(outPath)
}

func writeZip(ctx context.Context, w io.Writer, files []string) error {
	zw := zip.NewWriter(w)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := addZipEntry(zw, file); err != nil {
			return fmt.Errorf("adding %q: %w", file, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing zip: %w", err)
	}

	return nil
}

func addZipEntry(zw *zip.Writer, file string) error {
	in, err := os.Open(filepath.Clean(file))
	if err != nil {
		return err
	}
	defer in.Close()

	entry, err := zw.Create(filepath.ToSlash(file))
	if err != nil {
		return err
	}

	if _, err := io.Copy(entry, in); err != nil {
		return err
	}

	return nil
}

func writeTar(ctx context.Context, w io.Writer, files []string, algo Algorithm) error {
	compressor, err := newCompressor(w, algo)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(compressor)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := addTarEntry(tw, file); err != nil {
			return fmt.Errorf("adding %q: %w", file, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar: %w", err)
	}

	if err := compressor.Close(); err != nil {
		return fmt.Errorf("finalizing %s stream: %w", algo, err)
	}

	return nil
}

func newCompressor(w io.Writer, algo Algorithm) (io.WriteCloser, error) {
	switch algo {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}

		return zw, nil
	case Xz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating xz writer: %w", err)
		}

		return xw, nil
	default:
		return nil, fmt.Errorf("unsupported tar compression %q", algo)
	}
}

func addTarEntry(tw *tar.Writer, file string) error {
	info, err := os.Stat(file)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}

	header.Name = filepath.ToSlash(file)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	in, err := os.Open(filepath.Clean(file))
	if err != nil {
		return err
	}
	defer in.Close()

	if _, err := io.Copy(tw, in); err != nil {
		return err
	}

	return nil
}
