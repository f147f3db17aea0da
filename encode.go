package cryptobasis

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// DecodeEntries reads canonical entries from a JSONL stream, one entry per
// line. Entries get their Seq from their line order.
//
// An unknown class does not stop the decoding: the entry is kept with an
// invalid class so that the reconciler reports it.
func DecodeEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	err := scanLines(r, func(lineNum int, line []byte) error {
		var temp struct {
			Entry
			Class string `json:"class"`
		}
		if err := json.Unmarshal(line, &temp); err != nil {
			return fmt.Errorf("line %d: could not decode entry %q: %w", lineNum, string(line), err)
		}
		e := temp.Entry
		e.Class, e.classErr = ParseTxClass(temp.Class)
		entries = append(entries, e)
		return nil
	})
	Sequence(entries, 0)
	return entries, err
}

// EncodeEntries writes entries as JSONL, one entry per line.
func EncodeEntries(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("could not encode entry %v: %w", e, err)
		}
	}
	return nil
}

// DecodeRecords reads raw exchange records from a JSONL stream.
func DecodeRecords(r io.Reader) ([]Record, error) {
	var records []Record
	err := scanLines(r, func(lineNum int, line []byte) error {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("line %d: could not decode record %q: %w", lineNum, string(line), err)
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// scanLines calls f for each non empty line of r.
func scanLines(r io.Reader, f func(lineNum int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue // Skip empty lines
		}
		if err := f(lineNum, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}
