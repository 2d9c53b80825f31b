package commands

import (
	"github.com/spf13/cobra"

	"github.com/secbak/secbak/internal/container"
	"github.com/secbak/secbak/internal/fragment"
	"github.com/secbak/secbak/internal/logic"
)

// NewBackupCommand creates the backup subcommand, the full
// archive-encrypt-fragment pipeline.
func NewBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup [flags] paths...",
		Short: "Archive, encrypt and optionally fragment files",
		Args:  cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args)
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return logic.RunBackup(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringP("output", "o", "", "Archive path, defaults to backup-<timestamp> in the working directory")
	cmd.Flags().String("algorithm", "zip", "Archive format (zip, gzip, zstd, xz)")
	cmd.Flags().StringSlice("include", nil, "Glob patterns selecting files under the given paths")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns excluding files under the given paths")
	cmd.Flags().Int("chunk-size", container.DefaultChunkSize, "Plaintext chunk size in bytes")
	cmd.Flags().String("suffix", ".enc", "Suffix appended to the encrypted container")
	cmd.Flags().Bool("fragment", false, "Split the encrypted container into fragments")
	cmd.Flags().Int64("fragment-size", fragment.DefaultFragmentSize, "Fragment size in bytes")
	cmd.Flags().String("store", "", "Directory to copy the finished backup to, with verification")
	cmd.Flags().String("cloud", "", "Cloud service to upload the backup to (gdrive, dropbox)")

	return cmd
}
