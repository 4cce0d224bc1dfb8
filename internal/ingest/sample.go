package ingest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"ledger/internal/core"
)

//go:embed sample/transactions_td_demo.json
var sampleFeed []byte

// SampleRecords returns the built-in mock feed of TD and PayPal style transactions.
func SampleRecords() ([]core.RawRecord, error) {
	var recs []core.RawRecord
	if err := json.Unmarshal(sampleFeed, &recs); err != nil {
		return nil, fmt.Errorf("decode sample feed: %w", err)
	}
	return recs, nil
}

// LoadRecords reads a JSON array of raw records from path.
func LoadRecords(path string) ([]core.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()
	return DecodeRecords(f)
}

// DecodeRecords reads a JSON array of raw records. Amounts may be JSON numbers
// or strings.
func DecodeRecords(r io.Reader) ([]core.RawRecord, error) {
	var recs []core.RawRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, core.Invalidf("decode feed: %v", err)
	}
	return recs, nil
}
