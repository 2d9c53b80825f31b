package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/secbak/secbak/internal/container"
	"github.com/secbak/secbak/internal/logic"
)

// bindFlags merges a subcommand's flags and the root's persistent
// flags into viper.
func bindFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}

	return viper.BindPFlags(cmd.Flags())
}

// addCryptFlags registers the flags shared by encrypt and decrypt.
func addCryptFlags(cmd *cobra.Command) {
	cmd.Flags().Int("chunk-size", container.DefaultChunkSize, "Plaintext chunk size in bytes")
	cmd.Flags().String("suffix", ".enc", "Suffix appended to encrypted files, stripped on decryption")
	cmd.Flags().StringSlice("include", nil, "Glob patterns selecting files when inputs are directories")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns excluding files when inputs are directories")
}

// NewEncryptCommand creates the encrypt subcommand.
func NewEncryptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "encrypt [flags] files...",
		Aliases: []string{"enc"},
		Short:   "Encrypt files into chunked containers",
		Args:    cobra.MinimumNArgs(1),
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

			return logic.RunCrypt(cmd.Context(), cfg)
		},
	}

	addCryptFlags(cmd)

	return cmd
}

// NewDecryptCommand creates the decrypt subcommand.
func NewDecryptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decrypt [flags] files...",
		Aliases: []string{"dec"},
		Short:   "Decrypt chunked containers",
		Args:    cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args)
			if err != nil {
				return err
			}

			cfg.Decrypt = true

			if err := cfg.Validate(); err != nil {
				return err
			}

			return logic.RunCrypt(cmd.Context(), cfg)
		},
	}

	addCryptFlags(cmd)

	return cmd
}
