package audit

import (
	"fmt"
	"strings"

	"github.com/poiesic/evidentia/core"
)

// promptEvidenceLimit caps how many evidence lines go into the synthesis
// prompt.
const promptEvidenceLimit = 10

// BuildSynthesisPrompt renders the audit goal and top evidence into the
// prompt given to the language model.
func BuildSynthesisPrompt(goal string, evidence []core.EvidenceItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an audit assistant. Audit goal: %q\n\n", goal)
	b.WriteString("Evidence collected from the document store:\n")

	if len(evidence) == 0 {
		b.WriteString("(no evidence found)\n")
	}
	for i, item := range evidence {
		if i >= promptEvidenceLimit {
			break
		}
		fmt.Fprintf(&b, "- %s: %s (score: %.2f)\n", item.Title, item.Snippet, item.Score)
	}

	b.WriteString("\nWrite a concise audit summary of the findings above. ")
	b.WriteString("Note gaps in the evidence and anything that needs human review.")
	return b.String()
}
