package logic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/secbak/secbak/internal/config"
	"github.com/secbak/secbak/internal/fragment"
)

// RunFragment splits each input file into fragments plus a manifest.
func RunFragment(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger()

	fragmenter := &fragment.Fragmenter{
		FragmentSize: cfg.FragmentSize,
		Workers:      cfg.Parallel,
		Logger:       logger,
	}

	for _, file := range cfg.Files {
		outDir := cfg.Output
		if outDir == "" {
			outDir = strings.TrimSuffix(file, filepath.Ext(file)) + "_fragments"
		}

		manifest, err := fragmenter.Fragment(ctx, file, outDir)
		if err != nil {
			return fmt.Errorf("fragmenting %q: %w", file, err)
		}

		if !cfg.Quiet {
			fmt.Printf("Fragmented %q into %d fragments under %q\n", //nolint:forbidigo
				file, manifest.FragmentCount, outDir)
		}
	}

	return nil
}

// RunRebuild reassembles each fragment directory. The output path
// defaults to the manifest's original file name, written beside the
// fragment directory.
func RunRebuild(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger()

	reassembler := &fragment.Reassembler{
		Workers: cfg.Parallel,
		Logger:  logger,
	}

	for _, dir := range cfg.Files {
		outPath := cfg.Output

		if outPath == "" {
			manifestPath, err := fragment.FindManifest(dir)
			if err != nil {
				return err
			}

			manifest, err := fragment.LoadManifest(manifestPath)
			if err != nil {
				return err
			}

			outPath = filepath.Join(filepath.Dir(filepath.Clean(dir)), manifest.OriginalFile)
		}

		result, err := reassembler.Reassemble(ctx, dir, outPath)
		if err != nil {
			return fmt.Errorf("rebuilding %q: %w", dir, err)
		}

		if result.Warning != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", result.Warning)
		}

		if !cfg.Quiet {
			fmt.Printf("Rebuilt %q (%s)\n", //nolint:forbidigo
				result.OutputPath, humanize.IBytes(uint64(result.BytesWritten)))
		}
	}

	return nil
}

// RunInfo prints a summary of each fragment directory's manifest,
// marking which fragments are present on disk.
func RunInfo(_ context.Context, cfg *config.Config) error {
	for _, dir := range cfg.Files {
		manifestPath, err := fragment.FindManifest(dir)
		if err != nil {
			return err
		}

		manifest, err := fragment.LoadManifest(manifestPath)
		if err != nil {
			return err
		}

		fmt.Printf("Original file: %s\n", manifest.OriginalFile)                      //nolint:forbidigo
		fmt.Printf("Size: %s\n", humanize.IBytes(uint64(manifest.FileSize)))          //nolint:forbidigo
		fmt.Printf("Fragment size: %s\n", humanize.IBytes(uint64(manifest.FragmentSize))) //nolint:forbidigo
		fmt.Printf("Fragments: %d\n", manifest.FragmentCount)                         //nolint:forbidigo
		fmt.Printf("Created by: %s\n", manifest.CreatedBy)                            //nolint:forbidigo

		for _, name := range manifest.Names() {
			mark := "ok"
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				mark = "MISSING"
			}

			info := manifest.Fragments[name]
			fmt.Printf("  [%3d] %-40s %10s  %s\n", //nolint:forbidigo
				info.Index, name, humanize.IBytes(uint64(info.Size)), mark)
		}
	}

	return nil
}
