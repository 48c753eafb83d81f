package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/bank"
	"github.com/rcliao/remem/internal/editor"
)

func init() {
	editCmd := &cobra.Command{
		Use:   "edit [command]",
		Short: "Apply an edit command to the memory bank",
		Long: "Apply an edit command such as 'DELETE 1,3; ADD{note}; MERGE 0&2; RELABEL 4 tidy'.\n" +
			"Indices refer to the bank before the edit.",
		Args: cobra.MinimumNArgs(1),
		Run:  runEdit,
	}
	editCmd.Flags().Bool("dry-run", false, "Parse and apply without saving")

	checkCmd := &cobra.Command{
		Use:   "check [command]",
		Short: "Parse an edit command and show its canonical form",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCheck,
	}

	RootCmd.AddCommand(editCmd, checkCmd)
}

type editOutput struct {
	Command string `json:"command"`
	bank.BatchResult
	Size   int  `json:"memory_size"`
	DryRun bool `json:"dry_run,omitempty"`
}

func runEdit(cmd *cobra.Command, args []string) {
	command := strings.Join(args, " ")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	delta, err := editor.Parse(command)
	if err != nil {
		exitErr("parse edit", err)
	}

	st, b := loadBank()
	res := b.ApplyDelta(delta)
	if !dryRun && res.Successful > 0 {
		saveBank(st, b)
	}

	o := editOutput{Command: editor.Format(delta), BatchResult: res, Size: b.Len(), DryRun: dryRun}
	emit(o, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", o.Command)
		fmt.Fprintf(w, "applied %d/%d, memory size %d\n", res.Successful, res.Total, o.Size)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %d %s: %s\n", e.OperationIndex, e.Operation, e.Error)
		}
	})
}

type checkOutput struct {
	editor.Summary
	Canonical string `json:"canonical,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) {
	command := strings.Join(args, " ")
	var o checkOutput
	if d, err := editor.Parse(command); err != nil {
		o.Summary = editor.Summary{Error: err.Error(), Operations: []string{}}
	} else {
		o.Summary = editor.SummarizeDelta(d)
		o.Canonical = editor.Format(d)
	}

	emit(o, func(w io.Writer) {
		if !o.Valid {
			fmt.Fprintf(w, "invalid: %s\n", o.Error)
			return
		}
		fmt.Fprintf(w, "%s\n", o.Canonical)
		fmt.Fprintf(w, "delete=%d add=%d merge=%d relabel=%d\n", o.DeleteCount, o.AddCount, o.MergeCount, o.RelabelCount)
	})
	if !o.Valid {
		os.Exit(1)
	}
}
