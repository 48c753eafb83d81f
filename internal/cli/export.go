package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/bank"
	"github.com/rcliao/remem/internal/store"
)

func init() {
	exportCmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Write the memory bank to a snapshot file",
		Args:  cobra.ExactArgs(1),
		Run:   runExport,
	}

	importCmd := &cobra.Command{
		Use:   "import [path]",
		Short: "Import entries from a snapshot file",
		Long:  "Import entries from a snapshot file. Entries whose IDs already exist are skipped unless --replace is set.",
		Args:  cobra.ExactArgs(1),
		Run:   runImport,
	}
	importCmd.Flags().Bool("replace", false, "Replace the bank with the file's entries")

	RootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	_, b := loadBank()
	if err := store.ExportToFile(b, args[0]); err != nil {
		exitErr("export", err)
	}
	result := map[string]any{"path": args[0], "entries": b.Len()}
	emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "exported %d entries to %s\n", b.Len(), args[0])
	})
}

func runImport(cmd *cobra.Command, args []string) {
	replace, _ := cmd.Flags().GetBool("replace")

	st, b := loadBank()
	var stats store.ImportStats
	var err error
	if replace {
		var imported *bank.Bank
		imported, stats, err = store.ImportFromFile(args[0], nil)
		if err == nil {
			b.Replace(imported.Entries())
		}
	} else {
		_, stats, err = store.ImportFromFile(args[0], b)
	}
	if err != nil {
		exitErr("import", err)
	}
	saveBank(st, b)

	result := map[string]any{"path": args[0], "imported": stats.Added, "skipped": stats.Skipped, "memory_size": b.Len(), "replaced": replace}
	emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "imported %d entries from %s (skipped %d, memory size %d)\n", stats.Added, args[0], stats.Skipped, b.Len())
	})
}
