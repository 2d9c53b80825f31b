// Package commands defines the CLI surface: backup, restore, encrypt,
// decrypt, fragment, rebuild and info. Flags are merged with SECBAK_*
// environment variables through viper before each run.
package commands
