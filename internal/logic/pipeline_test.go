package logic_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secbak/secbak/internal/config"
	"github.com/secbak/secbak/internal/container"
	"github.com/secbak/secbak/internal/fragment"
	"github.com/secbak/secbak/internal/logic"
)

func baseConfig() *config.Config {
	return &config.Config{
		Password:     "correct-horse-battery",
		Parallel:     runtime.NumCPU(),
		Quiet:        true,
		LogLevel:     "error",
		ChunkSize:    256 << 10,
		Suffix:       ".enc",
		FragmentSize: 300_000,
		Algorithm:    "zip",
	}
}

func writeSource(t *testing.T, name string, size int) string {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 253)
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func TestCryptRoundTrip(t *testing.T) {
	t.Parallel()

	source := writeSource(t, "data.bin", 1_000_000)

	original, err := os.ReadFile(source)
	require.NoError(t, err)

	cfg := baseConfig()
	cfg.Files = []string{source}

	require.NoError(t, logic.RunCrypt(context.Background(), cfg))

	encPath := source + ".enc"
	require.FileExists(t, encPath)

	// Remove the plaintext so decryption demonstrably recreates it.
	require.NoError(t, os.Remove(source))

	cfg = baseConfig()
	cfg.Decrypt = true
	cfg.Files = []string{encPath}

	require.NoError(t, logic.RunCrypt(context.Background(), cfg))

	restored, err := os.ReadFile(source)
	require.NoError(t, err)

	assert.Equal(t, original, restored)
}

func TestCryptWrongPassword(t *testing.T) {
	t.Parallel()

	source := writeSource(t, "data.bin", 100_000)

	cfg := baseConfig()
	cfg.Files = []string{source}

	require.NoError(t, logic.RunCrypt(context.Background(), cfg))
	require.NoError(t, os.Remove(source))

	cfg = baseConfig()
	cfg.Decrypt = true
	cfg.Password = "not-the-password"
	cfg.Files = []string{source + ".enc"}

	err := logic.RunCrypt(context.Background(), cfg)

	require.Error(t, err)

	_, statErr := os.Stat(source)
	assert.True(t, os.IsNotExist(statErr), "failed decryption must not leave output behind")
}

func TestFragmentRebuildRoundTrip(t *testing.T) {
	t.Parallel()

	source := writeSource(t, "data.bin", 1_000_000)

	original, err := os.ReadFile(source)
	require.NoError(t, err)

	fragDir := filepath.Join(t.TempDir(), "fragments")

	cfg := baseConfig()
	cfg.Files = []string{source}
	cfg.Output = fragDir

	require.NoError(t, logic.RunFragment(context.Background(), cfg))

	manifestPath, err := fragment.FindManifest(fragDir)
	require.NoError(t, err)

	manifest, err := fragment.LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, 4, manifest.FragmentCount, "1000000 bytes at 300000-byte fragments")

	outPath := filepath.Join(t.TempDir(), "rebuilt.bin")

	cfg = baseConfig()
	cfg.Files = []string{fragDir}
	cfg.Output = outPath

	require.NoError(t, logic.RunRebuild(context.Background(), cfg))

	rebuilt, err := os.ReadFile(outPath)
	require.NoError(t, err)

	assert.Equal(t, original, rebuilt)
}

func TestEncryptFragmentRebuildDecrypt10MiB(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("10 MiB end-to-end scenario")
	}

	const (
		plainSize = 10 << 20
		fragSize  = 3 << 20
	)

	dir := t.TempDir()
	source := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(source, make([]byte, plainSize), 0o644))

	cfg := baseConfig()
	cfg.ChunkSize = 1 << 20
	cfg.Files = []string{source}

	require.NoError(t, logic.RunCrypt(context.Background(), cfg))
	require.NoError(t, os.Remove(source))

	encPath := source + ".enc"

	encInfo, err := os.Stat(encPath)
	require.NoError(t, err)

	fragDir := filepath.Join(dir, "fragments")

	cfg = baseConfig()
	cfg.Files = []string{encPath}
	cfg.FragmentSize = fragSize
	cfg.Output = fragDir

	require.NoError(t, logic.RunFragment(context.Background(), cfg))
	require.NoError(t, os.Remove(encPath))

	manifestPath, err := fragment.FindManifest(fragDir)
	require.NoError(t, err)

	manifest, err := fragment.LoadManifest(manifestPath)
	require.NoError(t, err)
	require.Equal(t, 4, manifest.FragmentCount, "three full fragments plus the remainder")

	names := manifest.Names()
	for _, name := range names[:3] {
		assert.Equal(t, int64(fragSize), manifest.Fragments[name].Size)
	}

	assert.Equal(t, encInfo.Size()-3*fragSize, manifest.Fragments[names[3]].Size)

	// Rebuild without an explicit output: the manifest's original name
	// places the container back beside the fragment directory.
	cfg = baseConfig()
	cfg.Files = []string{fragDir}

	require.NoError(t, logic.RunRebuild(context.Background(), cfg))
	require.FileExists(t, encPath)

	cfg = baseConfig()
	cfg.Decrypt = true
	cfg.ChunkSize = 1 << 20
	cfg.Files = []string{encPath}

	require.NoError(t, logic.RunCrypt(context.Background(), cfg))

	restored, err := os.ReadFile(source)
	require.NoError(t, err)

	assert.Equal(t, make([]byte, plainSize), restored)
}

func TestBackupRestorePipeline(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()

	contents := map[string][]byte{
		"docs/report.txt": []byte("quarterly numbers"),
		"db/dump.bin":     make([]byte, 700_000),
	}

	for name, body := range contents {
		path := filepath.Join(srcDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, body, 0o644))
	}

	workDir := t.TempDir()
	archivePath := filepath.Join(workDir, "backup.zip")

	cfg := baseConfig()
	cfg.Files = []string{srcDir}
	cfg.Output = archivePath
	cfg.Fragment = true

	require.NoError(t, logic.RunBackup(context.Background(), cfg))

	encPath := archivePath + ".enc"
	fragDir := encPath + ".fragments"

	require.FileExists(t, encPath)
	require.DirExists(t, fragDir)

	_, err := os.Stat(archivePath)
	assert.True(t, os.IsNotExist(err), "plaintext archive must be removed after encryption")

	restoreDir := t.TempDir()

	cfg = baseConfig()
	cfg.Files = []string{fragDir}
	cfg.Output = restoreDir

	require.NoError(t, logic.RunRestore(context.Background(), cfg))

	// Archive entries carry the source paths, so the files reappear
	// under restoreDir at their original absolute locations.
	for name, body := range contents {
		restored, err := os.ReadFile(filepath.Join(restoreDir, srcDir, filepath.FromSlash(name)))
		require.NoError(t, err, name)

		assert.Equal(t, body, restored, name)
	}
}

func TestBackupWithoutFragmentation(t *testing.T) {
	t.Parallel()

	source := writeSource(t, "single.txt", 10_000)
	archivePath := filepath.Join(t.TempDir(), "backup.zip")

	cfg := baseConfig()
	cfg.Files = []string{source}
	cfg.Output = archivePath

	require.NoError(t, logic.RunBackup(context.Background(), cfg))

	encPath := archivePath + ".enc"
	require.FileExists(t, encPath)

	// A container this small still carries the salt header plus at
	// least one unit.
	info, err := os.Stat(encPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(container.SaltSize))
}
