// Package seed ingests the labeled example corpus into the vector store:
// read, embed, upsert, checkpoint.
package seed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/scamlens/scamlens/internal/domain/document"
)

// record is one corpus line: a labeled example message.
type record struct {
	Text   string `json:"text"`
	Label  string `json:"label"`
	Source string `json:"source"`
}

// readCorpus parses a JSON-lines corpus file into documents. Lines that fail
// to parse or validate are collected, not fatal; line numbers are 1-based.
func readCorpus(path string) ([]document.Document, []LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	docs, lineErrs, err := parseCorpus(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return docs, lineErrs, nil
}

// LineError records a corpus line that could not be turned into a document.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func parseCorpus(r io.Reader) ([]document.Document, []LineError, error) {
	var (
		docs     []document.Document
		lineErrs []LineError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), document.MaxTextSize+4096)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			lineErrs = append(lineErrs, LineError{Line: line, Err: fmt.Errorf("decode: %w", err)})
			continue
		}

		label, err := document.ParseLabel(rec.Label)
		if err != nil {
			lineErrs = append(lineErrs, LineError{Line: line, Err: err})
			continue
		}
		doc, err := document.New(rec.Text, label, rec.Source)
		if err != nil {
			lineErrs = append(lineErrs, LineError{Line: line, Err: err})
			continue
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan: %w", err)
	}

	return docs, lineErrs, nil
}
