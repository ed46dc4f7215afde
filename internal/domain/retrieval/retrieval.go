// Package retrieval defines the ranked nearest-neighbor result returned by
// the retriever.
package retrieval

import (
	"sort"

	"github.com/scamlens/scamlens/internal/domain/document"
)

// Hit is a single retrieved example with its normalized similarity score.
type Hit struct {
	doc   document.Document
	score float64
	rank  int
}

// NewHit creates a hit. Rank is assigned later by Ranked.
func NewHit(doc document.Document, score float64) Hit {
	return Hit{doc: doc, score: score}
}

// Document returns the retrieved example.
func (h *Hit) Document() document.Document { return h.doc }

// Score returns the similarity score in [0,1].
func (h *Hit) Score() float64 { return h.score }

// Rank returns the 1-based position within the result.
func (h *Hit) Rank() int { return h.rank }

// Result is an ordered retrieval result. Scores are non-increasing by rank;
// ties break by ascending document ID.
type Result struct {
	hits []Hit
}

// Ranked sorts hits by descending score (ties by document ID), truncates to
// k, and assigns ranks 1..n.
func Ranked(hits []Hit, k int) Result {
	sorted := make([]Hit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].score != sorted[j].score {
			return sorted[i].score > sorted[j].score
		}
		return sorted[i].doc.ID() < sorted[j].doc.ID()
	})

	if k >= 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	for i := range sorted {
		sorted[i].rank = i + 1
	}
	return Result{hits: sorted}
}

// Hits returns the ordered hits.
func (r *Result) Hits() []Hit { return r.hits }

// Len returns the number of hits.
func (r *Result) Len() int { return len(r.hits) }

// DocumentIDs returns the hit document IDs in rank order.
func (r *Result) DocumentIDs() []string {
	ids := make([]string, len(r.hits))
	for i := range r.hits {
		ids[i] = r.hits[i].doc.ID()
	}
	return ids
}
