package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memory entries",
		Run:   runList,
	}

	cmd.Flags().StringP("tag", "t", "", "Only entries with this tag")
	cmd.Flags().IntP("limit", "l", 0, "Max entries, most recent last (0 = all)")

	RootCmd.AddCommand(cmd)
}

type listedEntry struct {
	Index int          `json:"index"`
	Entry *model.Entry `json:"entry"`
}

func runList(cmd *cobra.Command, args []string) {
	tag, _ := cmd.Flags().GetString("tag")
	limit, _ := cmd.Flags().GetInt("limit")

	_, b := loadBank()

	listed := []listedEntry{}
	for i, e := range b.Entries() {
		if tag != "" && e.Tag != tag {
			continue
		}
		listed = append(listed, listedEntry{Index: i, Entry: e})
	}
	if limit > 0 && len(listed) > limit {
		listed = listed[len(listed)-limit:]
	}

	emit(listed, func(w io.Writer) {
		for _, l := range listed {
			fmt.Fprintf(w, "%d. [%s] %s -> %s\n", l.Index, l.Entry.Tag, oneLine(l.Entry.X, 60), oneLine(l.Entry.Y, 60))
		}
	})
}
