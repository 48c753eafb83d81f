package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/store"
)

func init() {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the current snapshot",
		Run:   runBackup,
	}

	backupsCmd := &cobra.Command{
		Use:   "backups",
		Short: "List snapshot backups, newest first",
		Run:   runBackups,
	}

	RootCmd.AddCommand(backupCmd, backupsCmd)
}

func runBackup(cmd *cobra.Command, args []string) {
	st, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	path, err := st.Backup()
	if err != nil {
		exitErr("backup", err)
	}
	emit(map[string]string{"backup": path}, func(w io.Writer) {
		fmt.Fprintln(w, path)
	})
}

func runBackups(cmd *cobra.Command, args []string) {
	st, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	backups, err := st.ListBackups()
	if err != nil {
		exitErr("list backups", err)
	}
	if backups == nil {
		backups = []store.BackupInfo{}
	}
	emit(backups, func(w io.Writer) {
		for _, bk := range backups {
			fmt.Fprintf(w, "%s  %8d  %s\n", bk.CreatedAt.Format("2006-01-02 15:04:05"), bk.Size, bk.Path)
		}
	})
}
