package indexer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"vaultScope/internal/model"
)

const maxLineSize = 10 * 1024 * 1024

// Source yields typed event records in delivery order. Next returns io.EOF
// once the input is exhausted; errors wrapping model.ErrMalformedEvent concern
// a single record and the caller may continue.
type Source interface {
	Next() (model.TypedEventRecord, error)
}

// JSONLSource reads one TypedEventRecord per line.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
}

func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)
	return &JSONLSource{scanner: scanner}
}

func (s *JSONLSource) Next() (model.TypedEventRecord, error) {
	for s.scanner.Scan() {
		s.line++
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return model.TypedEventRecord{}, fmt.Errorf("line %d: %w: %v", s.line, model.ErrMalformedEvent, err)
		}
		return record, nil
	}
	if err := s.scanner.Err(); err != nil {
		return model.TypedEventRecord{}, fmt.Errorf("scan input: %w", err)
	}
	return model.TypedEventRecord{}, io.EOF
}

// Line returns the number of the last line read.
func (s *JSONLSource) Line() int {
	return s.line
}
