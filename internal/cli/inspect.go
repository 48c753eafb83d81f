package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/store"
)

func init() {
	validateCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Verify a snapshot's version, checksum and entries",
		Args:  cobra.MaximumNArgs(1),
		Run:   runValidate,
	}

	infoCmd := &cobra.Command{
		Use:   "info [path]",
		Short: "Show snapshot file metadata",
		Args:  cobra.MaximumNArgs(1),
		Run:   runInfo,
	}

	RootCmd.AddCommand(validateCmd, infoCmd)
}

func targetPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Memory.Snapshot
}

func runValidate(cmd *cobra.Command, args []string) {
	r := store.ValidateFile(targetPath(args))
	emit(r, func(w io.Writer) {
		if r.Valid {
			fmt.Fprintf(w, "%s: valid (version %s, %d entries)\n", r.Path, r.Version, r.EntryCount)
			return
		}
		fmt.Fprintf(w, "%s: invalid\n", r.Path)
		if r.Error != "" {
			fmt.Fprintf(w, "  %s\n", r.Error)
		}
		for _, e := range r.EntryErrors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	})
	if !r.Valid {
		os.Exit(1)
	}
}

func runInfo(cmd *cobra.Command, args []string) {
	info, err := store.FileInfo(targetPath(args))
	if err != nil {
		exitErr("info", err)
	}
	emit(info, func(w io.Writer) {
		fmt.Fprintf(w, "path:     %s\n", info.Path)
		fmt.Fprintf(w, "size:     %d bytes\n", info.Size)
		fmt.Fprintf(w, "modified: %s\n", info.ModTime.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "version:  %s\n", info.Version)
		fmt.Fprintf(w, "entries:  %d/%d\n", info.EntryCount, info.MaxEntries)
		if info.Checksum != "" {
			fmt.Fprintf(w, "checksum: %s\n", info.Checksum)
		}
	})
}
