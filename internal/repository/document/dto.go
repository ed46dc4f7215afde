package document

import (
	"encoding/binary"
	"math"

	domdoc "github.com/scamlens/scamlens/internal/domain/document"
)

// Hash field names. Underscored names are service-owned; the FT index schema
// references __vector and label.
const (
	fieldText   = "__text"
	fieldVector = "__vector"
	fieldLabel  = "label"
	fieldSource = "source"
)

// buildHashFields converts a Document plus its embedding into a flat
// map[string]string for HSET.
func buildHashFields(doc *domdoc.Document, vector []float32) map[string]string {
	return map[string]string{
		fieldText:   doc.Text(),
		fieldVector: vectorToBytes(vector),
		fieldLabel:  string(doc.Label()),
		fieldSource: doc.Source(),
	}
}

// parseHashFields converts a flat hash map back into a Document.
func parseHashFields(id string, m map[string]string) domdoc.Document {
	label, err := domdoc.ParseLabel(m[fieldLabel])
	if err != nil {
		label = domdoc.LabelUnknown
	}
	return domdoc.Reconstruct(id, m[fieldText], label, m[fieldSource])
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float,
// little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
