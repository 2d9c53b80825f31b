package archive

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

// Detect returns the algorithm implied by the archive file name, or an
// error naming the unsupported extension.
func Detect(path string) (Algorithm, error) {
	name := strings.ToLower(filepath.Base(path))

	switch {
	case strings.HasSuffix(name, ".zip"):
		return Zip, nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return Gzip, nil
	case strings.HasSuffix(name, ".tar.zst"):
		return Zstd, nil
	case strings.HasSuffix(name, ".tar.xz"):
		return Xz, nil
	default:
		return "", fmt.Errorf("unsupported archive format %q", filepath.Ext(name))
	}
}

// Extract unpacks the archive at path into outDir, detecting the
// format from the file name. Entry paths escaping outDir are rejected.
func (a *Archiver) Extract(ctx context.Context, path, outDir string) error {
	algo, err := Detect(path)
	if err != nil {
		return err
	}

	a.logger().WithFields(logrus.Fields{
		"archive":   path,
		"algorithm": algo,
		"output":    outDir,
	}).Info("extracting archive")

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if algo == Zip {
		return extractZip(ctx, path, outDir)
	}

	return extractTar(ctx, path, outDir, algo)
}

func extractZip(ctx context.Context, path, outDir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening zip %q: %w", path, err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := extractZipEntry(entry, outDir); err != nil {
			return fmt.Errorf("extracting %q: %w", entry.Name, err)
		}
	}

	return nil
}

func extractZipEntry(entry *zip.File, outDir string) error {
	dest, err := sanitizePath(outDir, entry.Name)
	if err != nil {
		return err
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	return writeEntry(dest, in, entry.Mode())
}

func extractTar(ctx context.Context, path, outDir string, algo Algorithm) error {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("opening archive %q: %w", path, err)
	}
	defer file.Close()

	decompressor, closeFn, err := newDecompressor(file, algo)
	if err != nil {
		return err
	}
	defer closeFn()

	tr := tar.NewReader(decompressor)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		if err := extractTarEntry(tr, header, outDir); err != nil {
			return fmt.Errorf("extracting %q: %w", header.Name, err)
		}
	}
}

func newDecompressor(r io.Reader, algo Algorithm) (io.Reader, func(), error) {
	switch algo {
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
		}

		return gr, func() { gr.Close() }, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd reader: %w", err)
		}

		return zr, zr.Close, nil
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating xz reader: %w", err)
		}

		return xr, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported tar compression %q", algo)
	}
}

func extractTarEntry(tr *tar.Reader, header *tar.Header, outDir string) error {
	dest, err := sanitizePath(outDir, header.Name)
	if err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(dest, 0o755)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		return writeEntry(dest, tr, header.FileInfo().Mode())
	default:
		// Symlinks and specials are not produced by Create; skip them.
		return nil
	}
}

// sanitizePath joins name under outDir, rejecting entries that would
// escape it.
func sanitizePath(outDir, name string) (string, error) {
	dest := filepath.Join(outDir, filepath.FromSlash(name))

	if !strings.HasPrefix(dest, filepath.Clean(outDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry path %q escapes output directory", name)
	}

	return dest, nil
}

func writeEntry(dest string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(filepath.Clean(dest), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()

		return err
	}

	return out.Close()
}
