package orchestrator

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// renderUnifiedDiff renders a line-based unified diff between a task file's
// pre-patch and post-patch content, for the failure log's record of what a
// fix attempt actually changed.
//
// Grounded on the teacher's internal/ui/diff_preview.go's generateDiff,
// stripped of the viewport/lipgloss rendering it builds on top of.
func renderUnifiedDiff(path, oldContent, newContent string) string {
	if oldContent == newContent {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", path, path)

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		for i, line := range lines {
			if i == len(lines)-1 && line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				fmt.Fprintf(&sb, " %s\n", line)
			case diffmatchpatch.DiffDelete:
				fmt.Fprintf(&sb, "-%s\n", line)
			case diffmatchpatch.DiffInsert:
				fmt.Fprintf(&sb, "+%s\n", line)
			}
		}
	}

	return sb.String()
}
