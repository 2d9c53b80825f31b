// Package logic implements the orchestration behind the CLI commands:
// it wires the scanner, archive, container and fragment subsystems
// together and handles batch processing, stats and atomic output.
package logic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/secbak/secbak/internal/config"
	"github.com/secbak/secbak/internal/container"
	"github.com/secbak/secbak/internal/fileutil"
	"github.com/secbak/secbak/internal/scanner"
)

// RunCrypt encrypts or decrypts cfg.Files concurrently, one worker
// pool across files with each file written atomically.
func RunCrypt(ctx context.Context, cfg *config.Config) error {
	start := time.Now()
	logger := cfg.NewLogger()

	warnEmptyPassword(cfg, logger)

	scanned, err := resolveFiles(cfg, logger)
	if err != nil {
		return fmt.Errorf("resolving files: %w", err)
	}

	excluded := scanned - len(cfg.Files)

	codec := &container.Codec{
		ChunkSize: cfg.ChunkSize,
		Workers:   cfg.Parallel,
		Logger:    logger,
	}

	type result struct {
		input      string
		output     string
		outputSize int64
		err        error
	}

	results := make(chan result, len(cfg.Files))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Parallel)

	printed := make(chan struct{})

	var processed, errored int

	var totalSize int64

	go func() {
		defer close(printed)

		for res := range results {
			if res.err != nil {
				errored++

				fmt.Fprintf(os.Stderr, "Error processing %q: %v\n", res.input, res.err)
			} else {
				processed++

				totalSize += res.outputSize

				if !cfg.Quiet {
					fmt.Printf("Processed %q -> %q\n", res.input, res.output) //nolint:forbidigo
				}
			}
		}
	}()

	for _, file := range cfg.Files {
		file := file
		group.Go(func() error {
			outPath := outputPath(file, cfg)

			size, err := cryptFile(gctx, codec, cfg, file, outPath)
			if err != nil {
				results <- result{input: file, err: err}

				return err
			}

			results <- result{input: file, output: outPath, outputSize: size}

			return nil
		})
	}

	err = group.Wait()

	close(results)

	<-printed

	if cfg.Stats {
		printStats(scanned, excluded, processed, errored, totalSize, time.Since(start))
	}

	if err != nil {
		return fmt.Errorf("processing files: %w", err)
	}

	return nil
}

// cryptFile runs one container operation with temp-file + rename
// discipline so failures and cancellations leave no partial output.
func cryptFile(ctx context.Context, codec *container.Codec, cfg *config.Config, filename, outPath string) (size int64, err error) {
	tc, err := fileutil.NewTempContext(outPath)
	if err != nil {
		return 0, fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	inFile, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return 0, fmt.Errorf("opening input file: %w", err)
	}
	defer inFile.Close()

	password := []byte(cfg.Password)

	if cfg.Decrypt {
		_, err = codec.Decrypt(ctx, inFile, tc.TmpFile, password)
	} else {
		_, err = codec.Encrypt(ctx, inFile, tc.TmpFile, password)
	}

	if err != nil {
		return 0, err
	}

	if err := tc.Commit(outPath); err != nil {
		return 0, err
	}

	return fileutil.OutputSize(outPath)
}

// resolveFiles expands cfg.Files through the scanner with the
// configured include/exclude patterns. When decrypting without
// explicit includes, only files carrying the encrypt suffix match.
func resolveFiles(cfg *config.Config, logger *logrus.Logger) (scanned int, err error) {
	includes := append([]string{}, cfg.Include...)

	if cfg.Decrypt && len(includes) == 0 {
		includes = append(includes, "*"+cfg.Suffix)
	}

	scan := &scanner.Scanner{
		Includes: includes,
		Excludes: cfg.Exclude,
		Logger:   logger,
	}

	files, scanned, err := scan.Scan(cfg.Files)
	if err != nil {
		return scanned, err
	}

	if len(files) == 0 {
		return scanned, fmt.Errorf("no files matched: %v", cfg.Files)
	}

	cfg.Files = files

	return scanned, nil
}

// outputPath generates the output file path from the input filename
// and the configured suffix.
func outputPath(filename string, cfg *config.Config) string {
	if cfg.Decrypt {
		filename = strings.TrimSuffix(filename, cfg.Suffix)

		return filename
	}

	return filename + cfg.Suffix
}

// warnEmptyPassword flags an empty password without rejecting it; the
// key deriver accepts it for legacy parity.
func warnEmptyPassword(cfg *config.Config, logger *logrus.Logger) {
	if cfg.Password == "" {
		logger.Warn("empty password: the container offers no real protection")
	}
}

// printStats writes the summary block to stderr so it survives piping
// of the results output.
func printStats(scanned, excluded, processed, errored int, totalSize int64, duration time.Duration) {
	fmt.Fprintf(os.Stderr, "\nStats\n")
	fmt.Fprintf(os.Stderr, "  Scanned:   %d\n", scanned)
	fmt.Fprintf(os.Stderr, "  Excluded:  %d\n", excluded)
	fmt.Fprintf(os.Stderr, "  Processed: %d\n", processed)
	fmt.Fprintf(os.Stderr, "  Errors:    %d\n", errored)
	//nolint:gosec // totalSize is always non-negative (sum of file sizes)
	fmt.Fprintf(os.Stderr, "  Size:      %s\n", humanize.IBytes(uint64(max(0, totalSize))))
	fmt.Fprintf(os.Stderr, "  Duration:  %s\n", duration.Round(time.Millisecond))
}
