package thinking

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Render draws rec as a box for diagnostic logs:
//
//	┌──────────────────────┐
//	│ Thought 1/3          │
//	├──────────────────────┤
//	│ the thought text     │
//	└──────────────────────┘
//
// The header reads "Revision" or "Branch" for revising and branching thoughts.
func Render(rec Record) string {
	var header string
	switch {
	case rec.IsRevision:
		header = fmt.Sprintf("Revision %d/%d (revising thought %d)", rec.ThoughtNumber, rec.TotalThoughts, rec.RevisesThought)
	case rec.BranchFromThought > 0:
		header = fmt.Sprintf("Branch %d/%d (from thought %d, ID: %s)", rec.ThoughtNumber, rec.TotalThoughts, rec.BranchFromThought, rec.BranchID)
	default:
		header = fmt.Sprintf("Thought %d/%d", rec.ThoughtNumber, rec.TotalThoughts)
	}

	width := max(utf8.RuneCountInString(header), utf8.RuneCountInString(rec.Thought)) + 2
	border := strings.Repeat("─", width)

	var b strings.Builder
	fmt.Fprintf(&b, "┌%s┐\n", border)
	fmt.Fprintf(&b, "│ %s │\n", pad(header, width-2))
	fmt.Fprintf(&b, "├%s┤\n", border)
	fmt.Fprintf(&b, "│ %s │\n", pad(rec.Thought, width-2))
	fmt.Fprintf(&b, "└%s┘", border)
	return b.String()
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
