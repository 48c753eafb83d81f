package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/bank"
)

func init() {
	cmd := &cobra.Command{
		Use:   "batch [ops.json|-]",
		Short: "Apply a JSON array of operations, best effort",
		Long: "Apply operations in order. Each is {\"type\": add|delete|merge|relabel, \"args\": {...}}.\n" +
			"A failed operation is reported and the rest still run. Indices see the effect of earlier operations.",
		Args: cobra.ExactArgs(1),
		Run:  runBatch,
	}

	cmd.Flags().Bool("dry-run", false, "Apply without saving")

	RootCmd.AddCommand(cmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		exitErr("read operations", err)
	}

	var ops []bank.Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		exitErr("decode operations", err)
	}

	st, b := loadBank()
	res := b.BatchOperations(ops)
	if !dryRun && res.Successful > 0 {
		saveBank(st, b)
	}

	emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "applied %d/%d\n", res.Successful, res.Total)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %d %s: %s\n", e.OperationIndex, e.Operation, e.Error)
		}
	})
}
