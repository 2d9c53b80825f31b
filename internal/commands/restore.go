package commands

import (
	"github.com/spf13/cobra"

	"github.com/secbak/secbak/internal/container"
	"github.com/secbak/secbak/internal/logic"
)

// NewRestoreCommand creates the restore subcommand, the inverse of
// backup: reassemble, decrypt and extract as the input requires.
func NewRestoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore [flags] inputs...",
		Short: "Restore backups from fragments, containers or archives",
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

			return logic.RunRestore(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringP("output", "o", "", "Directory to extract into, defaults to the working directory")
	cmd.Flags().Int("chunk-size", container.DefaultChunkSize, "Plaintext chunk size in bytes")
	cmd.Flags().String("suffix", ".enc", "Suffix identifying encrypted containers")

	return cmd
}
