package conversation

import (
	"strings"

	"github.com/MrWong99/odab/internal/catalogue"
)

const summaryHeader = `Answer according to the rules below.
1. Summarise the conversation so far.
2. Replace every [[...]] placeholder with your own content.
3. "question" is the problem statement.
4. "steps" are the steps you took to solve it. Use at most 10 steps.
5. "concept" lists the mathematical concepts used. Pick at most 5 of the concepts below that fit best and return their ids. Return an empty array if none fit.
`

const summaryTemplate = `6. Reply with exactly the following JSON object and nothing else.

{
  "question": "[[problem statement]]",
  "steps": [
    "[[step 1]]",
    "[[step 2]]",
    "[[step 3]]"
  ],
  "answer": "[[final answer]]",
  "concept": [
    "[[concept id, e.g. 1]]",
    "[[concept id, e.g. 2]]"
  ]
}
`

// SummaryInstruction is the user turn that ends the tool phase and asks for
// the structured result. The catalogue is listed as "N. <name> = <id>" lines.
func SummaryInstruction(concepts []catalogue.Concept) string {
	var b strings.Builder
	b.WriteString(summaryHeader)
	if len(concepts) == 0 {
		b.WriteString("No concepts are available; return an empty array.\n")
	} else {
		b.WriteString(catalogue.Render(concepts))
	}
	b.WriteString(summaryTemplate)
	return b.String()
}
