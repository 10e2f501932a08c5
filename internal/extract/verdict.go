package extract

import (
	"errors"
	"strings"

	"github.com/antzucaro/matchr"
)

// Labels of the answer-grading reply. The model is asked to answer with one
// line per label.
const (
	LabelExtracted = "extracted answer"
	LabelMatch     = "complete match"
	LabelReason    = "mismatch reason"
	LabelVerdict   = "final verdict"
)

// maxLabelDistance is how many edits a label may be off and still count.
const maxLabelDistance = 2

// ErrIncompleteVerdict is returned when the match or verdict line is missing.
var ErrIncompleteVerdict = errors.New("extract: verdict lines missing")

// Verdict is the parsed grading reply. Correct is true only when the reply
// reports a full match and a correct final verdict.
type Verdict struct {
	Extracted      string
	FullMatch      bool
	MismatchReason string
	Correct        bool
	Raw            string
}

// ParseVerdict reads the labelled lines of a grading reply. Labels are matched
// case-insensitively and tolerate small typos. On error the returned Verdict
// is still filled as far as possible and Correct is false.
func ParseVerdict(text string) (Verdict, error) {
	v := Verdict{Raw: text}
	fields := labelledLines(text)

	v.Extracted = fields[LabelExtracted]
	v.MismatchReason = fields[LabelReason]

	match, hasMatch := fields[LabelMatch]
	verdict, hasVerdict := fields[LabelVerdict]
	if !hasMatch || !hasVerdict {
		return v, ErrIncompleteVerdict
	}

	v.FullMatch = isFullMatch(match)
	v.Correct = v.FullMatch && isCorrect(verdict)
	return v, nil
}

// labelledLines maps each recognised label to the value after its colon. The
// first occurrence of a label wins.
func labelledLines(text string) map[string]string {
	labels := []string{LabelExtracted, LabelMatch, LabelReason, LabelVerdict}
	out := make(map[string]string, len(labels))
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.Trim(key, " \t-*#>"))
		for _, label := range labels {
			if _, seen := out[label]; seen {
				continue
			}
			if matchr.Levenshtein(key, label) <= maxLabelDistance {
				out[label] = strings.Trim(strings.TrimSpace(value), "*[]")
				break
			}
		}
	}
	return out
}

// isFullMatch accepts only the bare "full match" token, ignoring case,
// brackets and trailing punctuation.
func isFullMatch(s string) bool {
	s = strings.ToLower(strings.Trim(strings.TrimSpace(s), "*[]()\"'.!"))
	return strings.Join(strings.Fields(s), " ") == "full match"
}

func isCorrect(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "correct") && !strings.Contains(s, "incorrect") && !strings.Contains(s, "not correct")
}
