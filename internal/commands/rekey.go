package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/absfs/sealzip"
)

// NewRekeyCommand creates the rekey subcommand
func NewRekeyCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "rekey [flags] archive [old-password [new-password]]",
		Short: "Seal an archive again under a new password",
		Long: `rekey decrypts the archive with the old password and writes it again under
the new one with a fresh salt. Cost flags left at zero keep the parameters
recorded in the archive.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, args)
			if err != nil {
				return err
			}
			log := newLogger(cmd, cfg)

			oldPass, err := password(cfg.Password, "Old password", false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer clear(oldPass)

			opts := sealzip.RekeyOptions{Params: cfg.KDFParams(), DryRun: dryRun}
			if !dryRun {
				opts.NewPassword, err = password(cfg.NewPassword, "New password", true, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer clear(opts.NewPassword)
			}

			// Params are validated by Rekey; the sealer keeps its defaults
			sealer, err := sealzip.New(&sealzip.Config{
				KDF:       timedKDF(log),
				ChunkSize: cfg.ChunkSize,
				Stream:    cfg.Stream,
			})
			if err != nil {
				return err
			}

			h, err := sealer.Rekey(cmd.Context(), sealzip.NewOSFS(""), cfg.File, oldPass, opts)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Password opens %s (%s)\n", color.GreenString("✓"), cfg.File, h.Params)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Rekeyed %s (%s)\n", color.GreenString("✓"), cfg.File, h.Params)
			return nil
		},
	}

	addCostFlags(cmd, sealzip.KDFParams{})
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only check that the old password opens the archive")

	return cmd
}
