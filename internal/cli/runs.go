package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/journal"
)

func init() {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List or search journaled task runs",
		Run:   runRuns,
	}

	cmd.Flags().String("search", "", "Substring to match against task and action")
	cmd.Flags().String("status", "", "Filter by status (completed, forced)")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("stats", false, "Show journal statistics instead of runs")

	RootCmd.AddCommand(cmd)
}

func runRuns(cmd *cobra.Command, args []string) {
	j := openJournal()
	if j == nil {
		exitErr("runs", fmt.Errorf("journal is disabled"))
	}
	defer j.Close()

	ctx := cmd.Context()
	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		s, err := j.Stats(ctx)
		if err != nil {
			exitErr("journal stats", err)
		}
		emit(s, func(w io.Writer) {
			fmt.Fprintf(w, "db:        %s (%d bytes)\n", s.DBPath, s.DBSizeBytes)
			fmt.Fprintf(w, "runs:      %d (completed %d, forced %d)\n", s.TotalRuns, s.CompletedRuns, s.ForcedRuns)
			fmt.Fprintf(w, "avg iters: %.2f\n", s.AvgIterations)
			for _, r := range s.Reasons {
				fmt.Fprintf(w, "  %-16s %d\n", r.Reason, r.Count)
			}
		})
		return
	}

	query, _ := cmd.Flags().GetString("search")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	var runs []journal.Run
	var err error
	if query != "" {
		runs, err = j.Search(ctx, query, limit)
	} else {
		runs, err = j.List(ctx, journal.ListParams{Status: status, Limit: limit})
	}
	if err != nil {
		exitErr("runs", err)
	}
	if runs == nil {
		runs = []journal.Run{}
	}

	emit(runs, func(w io.Writer) {
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %-9s %2d  %s -> %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.Status, r.Iterations, oneLine(r.Task, 40), oneLine(r.Action, 40))
		}
	})
}
