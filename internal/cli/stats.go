package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/bank"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory bank statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	Snapshot string `json:"snapshot"`
	bank.Statistics
}

func runStats(cmd *cobra.Command, args []string) {
	st, b := loadBank()
	o := statsOutput{Snapshot: st.Path(), Statistics: b.Statistics()}

	emit(o, func(w io.Writer) {
		fmt.Fprintf(w, "snapshot: %s\n", o.Snapshot)
		fmt.Fprintf(w, "entries:  %d/%d\n", o.TotalEntries, o.MaxEntries)
		if o.OldestTimestamp != nil {
			fmt.Fprintf(w, "range:    %s .. %s\n", o.OldestTimestamp.Format("2006-01-02 15:04"), o.NewestTimestamp.Format("2006-01-02 15:04"))
		}
		for tag, n := range o.TagDistribution {
			fmt.Fprintf(w, "  %-20s %d\n", tag, n)
		}
	})
}
