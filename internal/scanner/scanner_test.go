package scanner_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secbak/secbak/internal/scanner"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

func writeTree(t *testing.T, names ...string) string {
	t.Helper()

	dir := t.TempDir()

	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	}

	return dir
}

func baseNames(paths []string) []string {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}

	return names
}

func TestScanMatchesAllByDefault(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, "a.txt", "b.log", "sub/c.txt")

	scan := &scanner.Scanner{Logger: quietLogger()}

	files, scanned, err := scan.Scan([]string{dir})

	require.NoError(t, err)
	assert.Equal(t, 3, scanned)
	assert.Len(t, files, 3)
}

func TestScanIncludePatterns(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, "a.txt", "b.log", "sub/c.txt")

	scan := &scanner.Scanner{Includes: []string{"*.txt"}, Logger: quietLogger()}

	files, scanned, err := scan.Scan([]string{dir})

	require.NoError(t, err)
	assert.Equal(t, 3, scanned)
	assert.ElementsMatch(t, []string{"a.txt", "c.txt"}, baseNames(files),
		"* crosses directory separators")
}

func TestScanExcludeWins(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, "a.txt", "b.txt", "c.log")

	scan := &scanner.Scanner{
		Includes: []string{"*.txt"},
		Excludes: []string{"*b.txt"},
		Logger:   quietLogger(),
	}

	files, _, err := scan.Scan([]string{dir})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt"}, baseNames(files))
}

func TestScanExplicitFileBypassesFilters(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, "a.log")
	path := filepath.Join(dir, "a.log")

	scan := &scanner.Scanner{Includes: []string{"*.txt"}, Logger: quietLogger()}

	files, _, err := scan.Scan([]string{path})

	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestScanDeduplicates(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, "a.txt")
	path := filepath.Join(dir, "a.txt")

	scan := &scanner.Scanner{Logger: quietLogger()}

	files, _, err := scan.Scan([]string{path, path, dir})

	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestScanMissingRoot(t *testing.T) {
	t.Parallel()

	scan := &scanner.Scanner{Logger: quietLogger()}

	_, _, err := scan.Scan([]string{"/does/not/exist"})

	require.Error(t, err)
}

func TestScanBadPattern(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, "a.txt")

	scan := &scanner.Scanner{Includes: []string{"[unclosed"}, Logger: quietLogger()}

	_, _, err := scan.Scan([]string{dir})

	require.Error(t, err)
	assert.ErrorContains(t, err, "compiling include patterns")
}
