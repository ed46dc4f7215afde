package classify

import (
	"fmt"
	"strings"

	"github.com/scamlens/scamlens/internal/domain/retrieval"
)

const promptHeader = `Decide whether the message below is a scam.

Known labeled examples, most similar first:`

const promptInstructions = `Respond ONLY with strict JSON in this exact shape, no markdown fences:
{"label": "scam" | "legitimate" | "uncertain", "confidence": <number 0..1>, "rationale": "<one or two sentences>"}`

// BuildPrompt assembles the classification prompt from the query and its
// retrieved examples. Assembly is deterministic: the same inputs produce the
// same bytes. When the prompt would exceed budgetBytes, lowest-ranked
// examples are dropped first; the query and instructions are never cut.
//
// Returns the prompt and the hits that made it in, in rank order. Their
// document IDs become the verdict's provenance.
func BuildPrompt(message string, result retrieval.Result, budgetBytes int) (string, []retrieval.Hit) {
	hits := result.Hits()

	for n := len(hits); n >= 0; n-- {
		prompt := render(message, hits[:n])
		if budgetBytes <= 0 || len(prompt) <= budgetBytes || n == 0 {
			return prompt, hits[:n]
		}
	}

	// unreachable, render with zero examples always returns above
	return render(message, nil), nil
}

func render(message string, hits []retrieval.Hit) string {
	var b strings.Builder

	b.WriteString(promptHeader)
	b.WriteString("\n\n")

	if len(hits) == 0 {
		b.WriteString("(no similar examples found)\n")
	}
	for i := range hits {
		hit := &hits[i]
		doc := hit.Document()
		fmt.Fprintf(&b, "%d. [%s] (similarity %.2f) %s\n",
			hit.Rank(), doc.Label(), hit.Score(), doc.Text())
	}

	b.WriteString("\nMessage to classify:\n")
	b.WriteString(message)
	b.WriteString("\n\n")
	b.WriteString(promptInstructions)

	return b.String()
}
