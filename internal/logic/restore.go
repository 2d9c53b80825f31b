package logic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/secbak/secbak/internal/archive"
	"github.com/secbak/secbak/internal/config"
	"github.com/secbak/secbak/internal/container"
	"github.com/secbak/secbak/internal/fileutil"
	"github.com/secbak/secbak/internal/fragment"
)

// RunRestore reverses the backup pipeline for each input: fragment
// directories are reassembled, encrypted containers decrypted, and
// archives extracted, chaining stages as the input allows.
func RunRestore(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger()

	for _, input := range cfg.Files {
		if err := restoreOne(ctx, cfg, logger, input); err != nil {
			return fmt.Errorf("restoring %q: %w", input, err)
		}
	}

	return nil
}

// restoreOne dispatches on what input is and recurses on the
// intermediate artifact each stage produces.
func restoreOne(ctx context.Context, cfg *config.Config, logger *logrus.Logger, input string) error {
	info, err := os.Stat(input)
	if err != nil {
		return err
	}

	switch {
	case info.IsDir():
		return restoreFragments(ctx, cfg, logger, input)
	case strings.HasSuffix(input, cfg.Suffix):
		return restoreContainer(ctx, cfg, logger, input)
	default:
		if _, err := archive.Detect(input); err != nil {
			return fmt.Errorf("cannot restore: not a fragment directory, %s container or known archive", cfg.Suffix)
		}

		return restoreArchive(ctx, cfg, logger, input)
	}
}

func restoreFragments(ctx context.Context, cfg *config.Config, logger *logrus.Logger, dir string) error {
	reassembler := &fragment.Reassembler{
		Workers: cfg.Parallel,
		Logger:  logger,
	}

	manifestPath, err := fragment.FindManifest(dir)
	if err != nil {
		return err
	}

	manifest, err := fragment.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	outPath := filepath.Join(filepath.Dir(dir), manifest.OriginalFile)

	result, err := reassembler.Reassemble(ctx, dir, outPath)
	if err != nil {
		return err
	}

	if result.Warning != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", result.Warning)
	}

	if !cfg.Quiet {
		fmt.Printf("Reassembled %q\n", result.OutputPath) //nolint:forbidigo
	}

	return restoreOne(ctx, cfg, logger, result.OutputPath)
}

func restoreContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger, input string) (err error) {
	outPath := strings.TrimSuffix(input, cfg.Suffix)

	codec := &container.Codec{
		ChunkSize: cfg.ChunkSize,
		Workers:   cfg.Parallel,
		Logger:    logger,
	}

	tc, err := fileutil.NewTempContext(outPath)
	if err != nil {
		return fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	in, err := os.Open(filepath.Clean(input))
	if err != nil {
		return err
	}
	defer in.Close()

	if _, err := codec.Decrypt(ctx, in, tc.TmpFile, []byte(cfg.Password)); err != nil {
		return err
	}

	if err := tc.Commit(outPath); err != nil {
		return err
	}

	if !cfg.Quiet {
		fmt.Printf("Decrypted %q\n", outPath) //nolint:forbidigo
	}

	if _, detectErr := archive.Detect(outPath); detectErr != nil {
		// Decrypted payload is not an archive we know; leave it as is.
		return nil
	}

	if err := restoreArchive(ctx, cfg, logger, outPath); err != nil {
		return err
	}

	os.Remove(outPath) //nolint:gosec // intermediate archive extracted

	return nil
}

func restoreArchive(ctx context.Context, cfg *config.Config, logger *logrus.Logger, input string) error {
	outDir := cfg.Output
	if outDir == "" {
		outDir = "."
	}

	archiver := &archive.Archiver{Logger: logger}
	if err := archiver.Extract(ctx, input, outDir); err != nil {
		return err
	}

	if !cfg.Quiet {
		fmt.Printf("Extracted %q into %q\n", input, outDir) //nolint:forbidigo
	}

	return nil
}
