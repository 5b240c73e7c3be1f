package commands

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/absfs/sealzip"
)

// NewDecryptCommand creates the dec subcommand
func NewDecryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "dec [flags] file [password]",
		Aliases: []string{"decrypt"},
		Short:   "Decrypt file.zip into file",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, args)
			if err != nil {
				return err
			}
			log := newLogger(cmd, cfg)

			pass, err := password(cfg.Password, "Password", false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer clear(pass)

			sealer, err := sealzip.New(cfg.Sealer(timedKDF(log)))
			if err != nil {
				return err
			}

			fsys := sealzip.NewOSFS("")
			src := cfg.File + ArchiveSuffix
			log.Debugf("decrypting %s to %s (stream=%t)", src, cfg.File, cfg.Stream)

			h, err := sealer.OpenFile(cmd.Context(), fsys, src, cfg.File, pass)
			if err != nil {
				return err
			}
			log.Debugf("archive parameters: %s, %d byte salt", h.Params, h.SaltLength)

			report(cmd, fsys, "Decrypted", src, cfg.File)
			return nil
		},
	}
}

// NewInfoCommand creates the info subcommand
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info [flags] archive",
		Short: "Show the entry and envelope header of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, args)
			if err != nil {
				return err
			}

			entry, h, err := sealzip.InspectFile(sealzip.NewOSFS(""), cfg.File)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "archive:     %s\n", filepath.Base(cfg.File))
			fmt.Fprintf(w, "entry:       %s (%s, crc32 %08x)\n", entry.Name, humanize.IBytes(uint64(entry.Size)), entry.CRC32)
			fmt.Fprintf(w, "modified:    %s\n", entry.Modified.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "payload:     %s at offset %d\n", humanize.IBytes(uint64(entry.ExtraSize)), entry.ExtraOffset)
			fmt.Fprintf(w, "memory:      %s\n", humanize.IBytes(uint64(h.Params.Memory)*1024))
			fmt.Fprintf(w, "iterations:  %d\n", h.Params.Iterations)
			fmt.Fprintf(w, "parallelism: %d\n", h.Params.Parallelism)
			fmt.Fprintf(w, "salt:        %d bytes\n", h.SaltLength)
			return nil
		},
	}
}
