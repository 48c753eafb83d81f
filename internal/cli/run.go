package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/agent"
	"github.com/rcliao/remem/internal/llm"
	"github.com/rcliao/remem/internal/metrics"
)

func init() {
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run a task through the Think/Refine/Act loop",
		Long:  "Run a task. The result is recorded as a new memory, the snapshot is saved and the run is journaled.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRun,
	}

	cmd.Flags().Int("max-iterations", 0, "Override loop.max_iterations")
	cmd.Flags().Int("k", 0, "Override loop.retrieval_k")
	cmd.Flags().Bool("metrics", false, "Include process metrics in the output")

	RootCmd.AddCommand(cmd)
}

type runOutput struct {
	*agent.TaskResult
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

func runRun(cmd *cobra.Command, args []string) {
	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		exitErr("run", fmt.Errorf("task is required"))
	}
	if n, _ := cmd.Flags().GetInt("max-iterations"); n > 0 {
		cfg.Loop.MaxIterations = n
	}
	if k, _ := cmd.Flags().GetInt("k"); k > 0 {
		cfg.Loop.RetrievalK = k
	}
	withMetrics, _ := cmd.Flags().GetBool("metrics")

	res, err := executeRun(cmd.Context(), task, newClient())
	if err != nil {
		exitErr("run", err)
	}

	o := runOutput{TaskResult: res}
	if withMetrics {
		o.Metrics, _ = metrics.Gather()
	}
	emit(o, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", res.Action)
		fmt.Fprintf(w, "status=%s iterations=%d retrieved=%d memory=%d", res.Status, res.Iterations, res.Retrieved, res.MemorySize)
		if res.ForcedReason != "" {
			fmt.Fprintf(w, " reason=%s", res.ForcedReason)
		}
		fmt.Fprintln(w)
	})
}

// executeRun runs task against the configured bank. The journal is closed
// before it returns so callers may exit on error.
func executeRun(ctx context.Context, task string, client llm.Client) (*agent.TaskResult, error) {
	st, b := loadBank()

	opts := []agent.Option{
		agent.WithRanker(newRanker(client)),
		agent.WithSaver(st),
		agent.WithLogger(slog.Default()),
		agent.WithConfig(agent.Config{
			MaxIterations: cfg.Loop.MaxIterations,
			Timeout:       cfg.Loop.Timeout,
			StuckWindow:   cfg.Loop.StuckWindow,
			RetrievalK:    cfg.Loop.RetrievalK,
			ContextBudget: cfg.Loop.ContextBudget,
		}),
	}
	if cfg.Loop.Policy == "stats" {
		opts = append(opts, agent.WithAgentPolicy(agent.NewStatsPolicy()))
	}
	if j := openJournal(); j != nil {
		defer j.Close()
		opts = append(opts, agent.WithJournal(j))
	}

	return agent.New(b, client, opts...).RunTask(ctx, task)
}
