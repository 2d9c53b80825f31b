package commands

import (
	"github.com/spf13/cobra"

	"github.com/secbak/secbak/internal/fragment"
	"github.com/secbak/secbak/internal/logic"
)

// NewFragmentCommand creates the fragment subcommand.
func NewFragmentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fragment [flags] files...",
		Short: "Split files into checksummed fragments with a manifest",
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

			return logic.RunFragment(cmd.Context(), cfg)
		},
	}

	cmd.Flags().Int64("fragment-size", fragment.DefaultFragmentSize, "Fragment size in bytes")
	cmd.Flags().StringP("output", "o", "", "Fragment directory, defaults to <stem>_fragments beside the file")

	return cmd
}

// NewRebuildCommand creates the rebuild subcommand.
func NewRebuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild [flags] directories...",
		Short: "Reassemble fragmented files after verifying checksums",
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

			return logic.RunRebuild(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output path, defaults to the original file name from the manifest")

	return cmd
}

// NewInfoCommand creates the info subcommand.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info directories...",
		Short: "Show manifest details and fragment presence",
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

			return logic.RunInfo(cmd.Context(), cfg)
		},
	}
}
