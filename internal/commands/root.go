package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/absfs/sealzip"
	"github.com/absfs/sealzip/internal/config"
)

// EnvPrefix prefixes every environment variable read by the command
const EnvPrefix = "SEALZIP"

// NewRootCommand creates the root command with the enc, dec and info
// subcommands.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "sealzip [flags] command [flags]",
		Short: "Password based file encryption into a zip archive",
		Long: `sealzip encrypts a single file with a password. The key is derived with
Argon2id and the data is sealed with AES-GCM. The result is written as a zip
archive holding a short notice, with the encrypted payload hidden in its
extra data.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Show info messages")
	root.PersistentFlags().Bool("debug", false, "Show debug messages")
	root.PersistentFlags().Bool("stream", false, "Process the file in chunks instead of loading it into memory")
	root.PersistentFlags().Int("chunk-size", sealzip.DefaultChunkSize, "Read size in bytes when streaming")

	root.AddCommand(NewEncryptCommand(), NewDecryptCommand(), NewInfoCommand(), NewRekeyCommand())

	return root
}

// load gathers flags and environment into a validated Config. The first
// positional argument is the file, the optional second one the password and
// the third, for rekey, the new password.
func load(cmd *cobra.Command, args []string) (config.Config, error) {
	var cfg config.Config

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return cfg, fmt.Errorf("binding flags: %w", err)
	}
	for _, key := range []string{"password", "new-password"} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("binding environment: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if len(args) > 0 {
		cfg.File = args[0]
	}
	if len(args) > 1 {
		cfg.Password = args[1]
	}
	if len(args) > 2 {
		cfg.NewPassword = args[2]
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func addCostFlags(cmd *cobra.Command, defaults sealzip.KDFParams) {
	cmd.Flags().Uint32("memory", defaults.Memory, "Argon2id memory in KiB")
	cmd.Flags().Uint16("iterations", defaults.Iterations, "Argon2id passes")
	cmd.Flags().Uint8("parallelism", defaults.Parallelism, "Argon2id lanes")
}
