package market

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
)

// BarRecord is the on-disk Parquet schema for bars.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// LoadParquet reads bars for symbol from a Parquet file. Records for other
// symbols are ignored; an empty symbol keeps every record. Records are sorted
// by timestamp, but duplicates still surface as a DataError.
func LoadParquet(path, symbol string, iv Interval) (*Series, error) {
	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, &DataError{Symbol: symbol, Index: -1, Reason: fmt.Sprintf("read %s: %v", path, err)}
	}

	var recs []BarRecord
	for _, r := range rows {
		if symbol == "" || r.Symbol == symbol {
			recs = append(recs, r)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp < recs[j].Timestamp })

	bars := make([]Bar, 0, len(recs))
	for _, r := range recs {
		bars = append(bars, Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return NewSeries(symbol, iv, bars)
}

// WriteParquet stores a series in the BarRecord schema.
func WriteParquet(path string, s *Series) error {
	recs := make([]BarRecord, 0, s.Len())
	for _, b := range s.bars {
		recs = append(recs, BarRecord{
			Symbol:    s.Symbol,
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, recs)
}

// Load picks the loader by file extension.
func Load(path, symbol string, iv Interval) (*Series, error) {
	switch filepath.Ext(path) {
	case ".parquet", ".pq":
		return LoadParquet(path, symbol, iv)
	default:
		return LoadCSV(path, symbol, iv)
	}
}

// Save picks the writer by file extension.
func Save(path string, s *Series) error {
	switch filepath.Ext(path) {
	case ".parquet", ".pq":
		return WriteParquet(path, s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
