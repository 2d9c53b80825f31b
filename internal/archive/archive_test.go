package archive_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secbak/secbak/internal/archive"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

// writeTree creates a small directory tree and returns the file paths.
func writeTree(t *testing.T) (string, []string) {
	t.Helper()

	dir := t.TempDir()

	contents := map[string]string{
		"notes.txt":        "some notes",
		"sub/config.yml":   "key: value",
		"sub/deep/data.db": "binary-ish \x00\x01\x02 payload",
	}

	var files []string

	for name, body := range contents {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		files = append(files, path)
	}

	return dir, files
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"zip", "gzip", "zstd", "xz"} {
		algo, err := archive.ParseAlgorithm(name)

		require.NoError(t, err)
		assert.NotEmpty(t, algo.Extension())
	}

	_, err := archive.ParseAlgorithm("rar")
	require.Error(t, err)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := map[string]archive.Algorithm{
		"backup.zip":     archive.Zip,
		"backup.tar.gz":  archive.Gzip,
		"backup.tgz":     archive.Gzip,
		"backup.tar.zst": archive.Zstd,
		"backup.tar.xz":  archive.Xz,
	}

	for name, want := range tests {
		algo, err := archive.Detect(name)

		require.NoError(t, err, name)
		assert.Equal(t, want, algo, name)
	}

	_, err := archive.Detect("backup.7z")
	require.Error(t, err)
}

func TestArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	for _, algo := range []archive.Algorithm{archive.Zip, archive.Gzip, archive.Zstd, archive.Xz} {
		algo := algo
		t.Run(string(algo), func(t *testing.T) {
			t.Parallel()

			_, files := writeTree(t)

			archiver := &archive.Archiver{Logger: quietLogger()}

			outPath := filepath.Join(t.TempDir(), "backup"+algo.Extension())
			require.NoError(t, archiver.Create(context.Background(), files, outPath, algo))

			extractDir := t.TempDir()
			require.NoError(t, archiver.Extract(context.Background(), outPath, extractDir))

			for _, file := range files {
				original, err := os.ReadFile(file)
				require.NoError(t, err)

				extracted, err := os.ReadFile(filepath.Join(extractDir, file))
				require.NoError(t, err)

				assert.Equal(t, original, extracted, file)
			}
		})
	}
}

func TestExtractUnknownFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not-an-archive.bin")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	archiver := &archive.Archiver{Logger: quietLogger()}

	err := archiver.Extract(context.Background(), path, t.TempDir())

	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported archive format")
}

func TestCreateLeavesNoPartialOutputOnMissingFile(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "backup.zip")

	archiver := &archive.Archiver{Logger: quietLogger()}

	err := archiver.Create(context.Background(), []string{"/does/not/exist"}, outPath, archive.Zip)
	require.Error(t, err)

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr), "failed archive must not appear at the output path")
}
