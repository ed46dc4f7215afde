// Package verdict defines the structured classification output and the
// schema check applied to raw model output before a backend attempt is
// accepted.
package verdict

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/scamlens/scamlens/internal/domain"
)

// Label is the classification outcome of a query.
type Label string

// Verdict labels. Unlike corpus labels, a model may answer "uncertain".
const (
	LabelScam       Label = "scam"
	LabelLegitimate Label = "legitimate"
	LabelUncertain  Label = "uncertain"
)

// Verdict is the structured classification result for one query. It is
// request-scoped and never persisted by this core.
type Verdict struct {
	ID                    string
	Label                 Label
	Confidence            float64
	Rationale             string
	SupportingDocumentIDs []string
	Backend               string
	AttemptCount          int
	Elapsed               time.Duration
}

// modelOutput is the JSON schema the model is instructed to produce.
type modelOutput struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// Parse validates raw model output against the verdict schema. It tolerates
// prose around the JSON object but requires a label from the fixed set, a
// confidence in [0,1], and a non-empty rationale. Any violation returns
// domain.ErrMalformedModelOutput so the orchestrator treats the attempt as a
// backend failure.
func Parse(raw string) (Label, float64, string, error) {
	var out modelOutput
	if err := json.Unmarshal([]byte(extractFirstJSON(raw)), &out); err != nil {
		return "", 0, "", fmt.Errorf("decode model output: %w: %w", err, domain.ErrMalformedModelOutput)
	}

	label := Label(strings.ToLower(strings.TrimSpace(out.Label)))
	switch label {
	case LabelScam, LabelLegitimate, LabelUncertain:
	default:
		return "", 0, "", fmt.Errorf("label %q outside expected set: %w", out.Label, domain.ErrMalformedModelOutput)
	}

	if out.Confidence == nil {
		return "", 0, "", fmt.Errorf("missing confidence: %w", domain.ErrMalformedModelOutput)
	}
	if *out.Confidence < 0 || *out.Confidence > 1 {
		return "", 0, "", fmt.Errorf("confidence %f outside [0,1]: %w", *out.Confidence, domain.ErrMalformedModelOutput)
	}

	if strings.TrimSpace(out.Rationale) == "" {
		return "", 0, "", fmt.Errorf("missing rationale: %w", domain.ErrMalformedModelOutput)
	}

	return label, *out.Confidence, strings.TrimSpace(out.Rationale), nil
}

// Validate is the acceptance check handed to the orchestrator: parse and
// discard.
func Validate(raw string) error {
	_, _, _, err := Parse(raw)
	return err
}

// extractFirstJSON returns the first balanced {...} block in s, or s itself
// when none is found. Models wrap JSON in prose or code fences often enough
// that strict decoding alone rejects usable answers.
func extractFirstJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return s
}
