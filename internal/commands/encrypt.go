package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/absfs/sealzip"
	"github.com/absfs/sealzip/internal/config"
	"github.com/absfs/sealzip/internal/logging"
)

// ArchiveSuffix is appended to the file name by enc and expected by dec
const ArchiveSuffix = ".zip"

// NewEncryptCommand creates the enc subcommand
func NewEncryptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "enc [flags] file [password]",
		Aliases: []string{"encrypt"},
		Short:   "Encrypt file into file.zip",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, args)
			if err != nil {
				return err
			}
			log := newLogger(cmd, cfg)

			pass, err := password(cfg.Password, "Password", true, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer clear(pass)

			sealer, err := sealzip.New(cfg.Sealer(timedKDF(log)))
			if err != nil {
				return err
			}

			fsys := sealzip.NewOSFS("")
			dst := cfg.File + ArchiveSuffix
			log.Debugf("encrypting %s to %s (%s, stream=%t)", cfg.File, dst, cfg.KDFParams(), cfg.Stream)

			if err := sealer.SealFile(cmd.Context(), fsys, cfg.File, dst, pass); err != nil {
				return err
			}

			report(cmd, fsys, "Encrypted", cfg.File, dst)
			return nil
		},
	}

	addCostFlags(cmd, sealzip.DefaultKDFParams)

	return cmd
}

func newLogger(cmd *cobra.Command, cfg config.Config) logging.Logger {
	return logging.Logger{
		Verbose: cfg.Verbose,
		Debug:   cfg.Debug,
		Out:     cmd.ErrOrStderr(),
		Err:     cmd.ErrOrStderr(),
	}
}

// timedKDF wraps Argon2id with timing logs and, on a terminal, a spinner
func timedKDF(log logging.Logger) sealzip.KDFFunc {
	return func(ctx context.Context, password, salt []byte, params sealzip.KDFParams) ([]byte, error) {
		log.Infof("argon2id started (%s)", params)
		start := time.Now()

		if term.IsTerminal(int(os.Stderr.Fd())) {
			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Suffix = " Deriving key..."
			s.Start()
			defer s.Stop()
		}

		key, err := sealzip.Argon2idKDF(ctx, password, salt, params)
		if err != nil {
			return nil, err
		}
		log.Infof("argon2id finished: %.2fs", time.Since(start).Seconds())
		return key, nil
	}
}

// report prints the one line summary of a finished enc or dec
func report(cmd *cobra.Command, fsys *sealzip.OSFS, verb, src, dst string) {
	size := "?"
	if info, err := fsys.Stat(dst); err == nil {
		size = humanize.IBytes(uint64(info.Size()))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s %s\n",
		color.GreenString("✓"), verb, src, color.CyanString("→"), dst+" ("+size+")")
}
