package indexer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
)

const maxLineSize = 16 << 20

// Record is one line of a JSONL input file:
//
//	{"id": 1, "text": "africa trade", "data": {"title": "..."}, "values": {"1": 0.5}}
//
// id may be omitted to take the next free id. A data string is stored
// unquoted; any other JSON value is stored as is.
type Record struct {
	ID     uint32             `json:"id"`
	Text   string             `json:"text"`
	Data   json.RawMessage    `json:"data"`
	Values map[uint32]float64 `json:"values"`
}

// Input converts the record into an index input.
func (r Record) Input() (index.Input, error) {
	in := index.Input{ID: r.ID, Text: r.Text, Values: r.Values}
	data := bytes.TrimSpace(r.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return index.Input{}, fmt.Errorf("decoding data: %w", err)
		}
		in.Data = []byte(s)
	default:
		in.Data = append([]byte(nil), data...)
	}
	return in, nil
}

// ReadJSONL decodes records from r and passes each to fn. Blank lines are
// skipped. It returns the number of records passed to fn.
func ReadJSONL(ctx context.Context, r io.Reader, fn func(index.Input) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n, line := 0, 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		in, err := rec.Input()
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(in); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading input: %w", err)
	}
	return n, nil
}
