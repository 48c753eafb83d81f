package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Retrieve the memories most relevant to a query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRetrieve,
	}

	cmd.Flags().Int("k", 5, "Number of memories to return")
	cmd.Flags().Bool("explain", false, "Include per-criterion scores and explanations")

	RootCmd.AddCommand(cmd)
}

func runRetrieve(cmd *cobra.Command, args []string) {
	query := strings.Join(args, " ")
	k, _ := cmd.Flags().GetInt("k")
	explain, _ := cmd.Flags().GetBool("explain")

	_, b := loadBank()
	results, err := b.Retrieve(cmd.Context(), newRanker(newClient()), query, k, explain)
	if err != nil {
		exitErr("retrieve", err)
	}

	emit(results, func(w io.Writer) {
		for _, r := range results {
			fmt.Fprintf(w, "%d. (%.2f) [%s] %s -> %s\n", r.Index, r.Score, r.Entry.Tag, oneLine(r.Entry.X, 50), oneLine(r.Entry.Y, 50))
			if explain && r.Explanation != "" {
				fmt.Fprintf(w, "   %s\n", oneLine(r.Explanation, 100))
			}
		}
	})
}
