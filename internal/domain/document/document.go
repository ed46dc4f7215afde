// Package document defines the labeled example aggregate stored in the
// vector index. Document identity is derived from normalized content, so
// re-ingesting the same text always yields the same ID.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxTextSize is the maximum document text size in bytes.
const MaxTextSize = 65536 // 64KB

// Label classifies a corpus example.
type Label string

// Corpus labels.
const (
	LabelScam       Label = "scam"
	LabelLegitimate Label = "legitimate"
	LabelUnknown    Label = "unknown"
)

// ParseLabel validates a corpus label string.
func ParseLabel(s string) (Label, error) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case LabelScam:
		return LabelScam, nil
	case LabelLegitimate:
		return LabelLegitimate, nil
	case LabelUnknown, Label(""):
		return LabelUnknown, nil
	}
	return "", fmt.Errorf("unknown label %q", s)
}

// Document is a labeled corpus example (immutable value object).
type Document struct {
	id     string
	text   string
	label  Label
	source string
}

// New validates and creates a Document, deriving its ID from normalized text.
func New(text string, label Label, source string) (Document, error) {
	if strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("text is required")
	}
	if len(text) > MaxTextSize {
		return Document{}, fmt.Errorf("text too large (max %d bytes)", MaxTextSize)
	}
	switch label {
	case LabelScam, LabelLegitimate, LabelUnknown:
	default:
		return Document{}, fmt.Errorf("invalid label %q", label)
	}

	return Document{
		id:     ContentID(text),
		text:   text,
		label:  label,
		source: source,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, text string, label Label, source string) Document {
	return Document{id: id, text: text, label: label, source: source}
}

// ID returns the content-derived document identifier.
func (d Document) ID() string { return d.id }

// Text returns the example text.
func (d Document) Text() string { return d.text }

// Label returns the corpus label.
func (d Document) Label() Label { return d.label }

// Source returns the ingestion source tag.
func (d Document) Source() string { return d.source }

// ContentID derives the stable document ID: hex of the first 16 bytes of
// SHA-256 over the normalized text.
func ContentID(text string) string {
	h := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(h[:16])
}

// Normalize lowercases text and collapses runs of whitespace to single
// spaces. Two messages differing only in casing or spacing are the same
// corpus example.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
