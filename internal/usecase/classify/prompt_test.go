package classify

import (
	"strings"
	"testing"

	"github.com/scamlens/scamlens/internal/domain/document"
	"github.com/scamlens/scamlens/internal/domain/retrieval"
)

func rankedResult(texts ...string) retrieval.Result {
	hits := make([]retrieval.Hit, len(texts))
	score := 0.9
	for i, text := range texts {
		doc := document.Reconstruct(text+"-id", text, document.LabelScam, "")
		hits[i] = retrieval.NewHit(doc, score)
		score -= 0.1
	}
	return retrieval.Ranked(hits, len(hits))
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	result := rankedResult("won a prize", "account locked")

	p1, _ := BuildPrompt("is this a scam?", result, 0)
	p2, _ := BuildPrompt("is this a scam?", result, 0)
	if p1 != p2 {
		t.Error("same inputs produced different prompts")
	}
}

func TestBuildPrompt_ContainsExamplesAndQuery(t *testing.T) {
	result := rankedResult("won a prize")

	prompt, included := BuildPrompt("click here now", result, 0)
	if !strings.Contains(prompt, "won a prize") {
		t.Error("prompt missing example text")
	}
	if !strings.Contains(prompt, "click here now") {
		t.Error("prompt missing the query message")
	}
	if !strings.Contains(prompt, "strict JSON") {
		t.Error("prompt missing the JSON instruction")
	}
	if len(included) != 1 {
		t.Errorf("included = %d, want 1", len(included))
	}
}

func TestBuildPrompt_BudgetDropsLowestRankedFirst(t *testing.T) {
	result := rankedResult("first example", "second example", "third example")

	full, _ := BuildPrompt("msg", result, 0)
	budget := len(full) - 1

	prompt, included := BuildPrompt("msg", result, budget)
	if len(prompt) > budget {
		t.Errorf("prompt %d bytes exceeds budget %d", len(prompt), budget)
	}
	if len(included) != 2 {
		t.Fatalf("included = %d, want 2", len(included))
	}
	if included[0].Document().Text() != "first example" {
		t.Error("highest-ranked example should survive truncation")
	}
	if strings.Contains(prompt, "third example") {
		t.Error("lowest-ranked example should be dropped first")
	}
}

func TestBuildPrompt_QueryNeverCut(t *testing.T) {
	result := rankedResult("example one", "example two")

	prompt, included := BuildPrompt("the message", result, 10)
	if len(included) != 0 {
		t.Errorf("included = %d, want 0 under a tiny budget", len(included))
	}
	if !strings.Contains(prompt, "the message") {
		t.Error("query must survive any budget")
	}
	if !strings.Contains(prompt, "strict JSON") {
		t.Error("instructions must survive any budget")
	}
}

func TestBuildPrompt_NoExamples(t *testing.T) {
	prompt, included := BuildPrompt("msg", retrieval.Result{}, 0)
	if len(included) != 0 {
		t.Errorf("included = %d, want 0", len(included))
	}
	if !strings.Contains(prompt, "no similar examples") {
		t.Error("prompt should note the empty example set")
	}
}
