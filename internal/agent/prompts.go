package agent

import (
	"fmt"
	"strings"

	"github.com/rcliao/remem/internal/model"
)

const noneText = "(none)"

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return noneText
	}
	return s
}

func tracesText(traces []string) string {
	return orNone(strings.Join(traces, "\n"))
}

func selectPrompt(task, memories string, traces []string, hint Action) string {
	var b strings.Builder
	b.WriteString("Choose the next step: Think / Refine / Act\n\n")
	fmt.Fprintf(&b, "Task: %s\n\nRelevant memories:\n%s\n\nReasoning so far:\n%s\n\n", task, orNone(memories), tracesText(traces))
	b.WriteString("- Think: more internal reasoning is needed.\n")
	b.WriteString("- Refine: the memory bank should be edited (remove redundancy, add knowledge, merge similar entries, fix tags).\n")
	b.WriteString("- Act: a final answer or action can be given now.\n")
	if hint != "" {
		fmt.Fprintf(&b, "\nPast runs suggest: %s\n", hint)
	}
	b.WriteString("\nOutput only the action name.")
	return b.String()
}

func thinkPrompt(task, memories string, traces []string) string {
	return fmt.Sprintf(`Think: reason internally about the task.

Task: %s

Relevant experience:
%s

Reasoning so far:
%s

Start your answer with "Think:". Relate the task to the experience above, consider possible solutions and weigh them.`,
		task, orNone(memories), tracesText(traces))
}

func refinePrompt(task string, entries []*model.Entry, traces []string) string {
	var list strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&list, "%d. %s\n", i, e.Text())
	}
	return fmt.Sprintf(`Refine: edit the memory bank with these operations:
1. DELETE <index>[,<index>...] - remove entries
2. ADD{text} - add a new memory
3. MERGE <index1>&<index2> - merge two entries
4. RELABEL <index> <tag> - change an entry's tag

Current memory bank:
%s
Task: %s

Reasoning so far:
%s

Output one command line. Separate operations with semicolons, for example:
DELETE 1,3; ADD{new experience}; MERGE 0&2; RELABEL 4 new-tag`,
		orNone(list.String()), task, tracesText(traces))
}

func actPrompt(task, memories string, traces []string) string {
	return fmt.Sprintf(`Act: give the final answer or action.

Task: %s

Relevant experience:
%s

Reasoning:
%s

Start your answer with "Act:". Base it on the experience and reasoning above and address the task directly.`,
		task, orNone(memories), tracesText(traces))
}

func ensurePrefix(prefix, s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix)) {
		return s
	}
	return prefix + " " + s
}
