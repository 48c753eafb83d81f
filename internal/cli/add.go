package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a memory entry directly",
		Run:   runAdd,
	}

	cmd.Flags().String("x", "", "Situation or task input (required)")
	cmd.Flags().String("y", "", "Action or answer")
	cmd.Flags().String("feedback", "", "Outcome feedback")
	cmd.Flags().StringP("tag", "t", "manual", "Tag")
	cmd.MarkFlagRequired("x")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	x, _ := cmd.Flags().GetString("x")
	y, _ := cmd.Flags().GetString("y")
	feedback, _ := cmd.Flags().GetString("feedback")
	tag, _ := cmd.Flags().GetString("tag")

	st, b := loadBank()
	e := model.NewEntry(x, y, feedback, tag)
	if err := b.Add(e); err != nil {
		exitErr("add", err)
	}
	saveBank(st, b)

	emit(e, func(w io.Writer) {
		fmt.Fprintf(w, "added %s (memory size %d)\n", e.ID, b.Len())
	})
}
