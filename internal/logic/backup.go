package logic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/secbak/secbak/internal/archive"
	"github.com/secbak/secbak/internal/config"
	"github.com/secbak/secbak/internal/container"
	"github.com/secbak/secbak/internal/fileutil"
	"github.com/secbak/secbak/internal/fragment"
	"github.com/secbak/secbak/internal/scanner"
	"github.com/secbak/secbak/internal/storage"
)

// RunBackup runs the full pipeline: scan, archive, encrypt, then
// optionally fragment, store locally and upload. Intermediate
// artifacts are removed as each stage hands over to the next.
func RunBackup(ctx context.Context, cfg *config.Config) error {
	start := time.Now()
	logger := cfg.NewLogger()

	warnEmptyPassword(cfg, logger)

	algo, err := archive.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return err
	}

	scan := &scanner.Scanner{
		Includes: cfg.Include,
		Excludes: cfg.Exclude,
		Logger:   logger,
	}

	files, scanned, err := scan.Scan(cfg.Files)
	if err != nil {
		return fmt.Errorf("scanning sources: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("no files matched: %v", cfg.Files)
	}

	archivePath := backupName(cfg.Output, algo)

	archiver := &archive.Archiver{Logger: logger}
	if err := archiver.Create(ctx, files, archivePath, algo); err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	encPath := archivePath + cfg.Suffix

	codec := &container.Codec{
		ChunkSize: cfg.ChunkSize,
		Workers:   cfg.Parallel,
		Logger:    logger,
	}

	if err := encryptFile(ctx, codec, cfg.Password, archivePath, encPath); err != nil {
		return fmt.Errorf("encrypting archive: %w", err)
	}

	os.Remove(archivePath) //nolint:gosec // plaintext archive superseded

	artifact := encPath

	if cfg.Fragment {
		fragDir := encPath + ".fragments"

		fragmenter := &fragment.Fragmenter{
			FragmentSize: cfg.FragmentSize,
			Workers:      cfg.Parallel,
			Logger:       logger,
		}

		if _, err := fragmenter.Fragment(ctx, encPath, fragDir); err != nil {
			return fmt.Errorf("fragmenting backup: %w", err)
		}

		artifact = fragDir
	}

	if cfg.Store != "" {
		if cfg.Fragment {
			logger.Warn("--store copies the whole container, not the fragments")
		}

		local := &storage.Local{Logger: logger}

		stored, err := local.Store(encPath, cfg.Store)
		if err != nil {
			return fmt.Errorf("storing backup: %w", err)
		}

		logger.WithField("path", stored).Info("backup stored")
	}

	if cfg.Cloud != "" {
		uploader, err := storage.NewUploader(cfg.Cloud, logger)
		if err != nil {
			return err
		}

		remote, err := uploader.Upload(ctx, encPath)
		if err != nil {
			return fmt.Errorf("uploading to %s: %w", uploader.Name(), err)
		}

		logger.WithField("remote", remote).Info("backup uploaded")
	}

	if !cfg.Quiet {
		fmt.Printf("Backup complete: %s\n", artifact) //nolint:forbidigo
	}

	if cfg.Stats {
		size, err := fileutil.OutputSize(encPath)
		if err != nil {
			size = 0
		}

		printStats(scanned, scanned-len(files), len(files), 0, size, time.Since(start))
	}

	return nil
}

// encryptFile encrypts a single file atomically without going through
// the batch machinery of RunCrypt.
func encryptFile(ctx context.Context, codec *container.Codec, password, src, outPath string) (err error) {
	tc, err := fileutil.NewTempContext(outPath)
	if err != nil {
		return fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("opening %q: %w", src, err)
	}
	defer in.Close()

	if _, err := codec.Encrypt(ctx, in, tc.TmpFile, []byte(password)); err != nil {
		return err
	}

	return tc.Commit(outPath)
}

// backupName returns the archive path for this run: the explicit
// output if given, otherwise a timestamped name in the working
// directory.
func backupName(output string, algo archive.Algorithm) string {
	if output != "" {
		return output
	}

	return "backup-" + time.Now().Format("20060102-150405") + algo.Extension()
}
