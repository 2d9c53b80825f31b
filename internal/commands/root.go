package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/secbak/secbak/internal/config"
	"github.com/secbak/secbak/internal/container"
	"github.com/secbak/secbak/internal/fragment"
)

// NewRootCommand creates the root command with the flags shared by
// every subcommand and SECBAK_* environment variable binding.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "secbak [flags] command [flags]",
		Short:         "Encrypted, fragmented file backups",
		Long: `secbak archives files, encrypts the archive into a chunked
AES-256-CBC container, and optionally splits the result into
checksummed fragments suitable for size-limited storage.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return viper.BindPFlags(cmd.Root().PersistentFlags())
		},
	}

	root.PersistentFlags().StringP("password", "p", "", "Password for encryption and decryption (env: SECBAK_PASSWORD)")
	root.PersistentFlags().IntP("parallel", "j", runtime.NumCPU(), "Number of parallel workers, defaults to number of CPUs")
	root.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-error output")
	root.PersistentFlags().Bool("stats", false, "Print processing statistics at the end")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	viper.SetEnvPrefix("SECBAK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Defaults for settings whose flags only some subcommands expose.
	viper.SetDefault("chunk-size", container.DefaultChunkSize)
	viper.SetDefault("suffix", ".enc")
	viper.SetDefault("fragment-size", fragment.DefaultFragmentSize)
	viper.SetDefault("algorithm", "zip")

	root.AddCommand(
		NewBackupCommand(),
		NewRestoreCommand(),
		NewEncryptCommand(),
		NewDecryptCommand(),
		NewFragmentCommand(),
		NewRebuildCommand(),
		NewInfoCommand(),
	)

	return root
}

// loadConfig unmarshals the merged flag and environment settings and
// stores the positional arguments.
func loadConfig(args []string) (*config.Config, error) {
	cfg := &config.Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Files = args

	return cfg, nil
}
