package market

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// HistData exports stamp bars in EST without daylight saving.
var (
	estNoDST       = time.FixedZone("EST", -5*60*60)
	histDataLayout = "20060102 150405"
)

// csvColumns maps bar fields to column positions.
type csvColumns struct {
	time, open, high, low, close, volume int
}

var defaultColumns = csvColumns{0, 1, 2, 3, 4, 5}

// ReadCSV reads bars from rows of
//
//	time,open,high,low,close,volume
//
// A header row is optional; when present its names pick the columns, so
// "Date,Open,High,Low,Close,Volume" exports work as well. Rows with an empty
// field are dropped. Row order is preserved so that NewSeries can reject a
// non-monotonic feed. Semicolon-separated HistData files are detected from
// the first line.
func ReadCSV(r io.Reader) (bars []Bar, dropped int, err error) {
	br := bufio.NewReader(r)
	cr := csv.NewReader(br)
	if head, _ := br.Peek(256); semicolonSeparated(head) {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	cols := defaultColumns
	first := true
	line := 0

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, dropped, err
		}
		line++
		if len(row) == 0 {
			continue
		}

		if first {
			first = false
			if _, terr := parseTime(row[0]); terr != nil {
				c, herr := headerColumns(row)
				if herr != nil {
					return nil, dropped, herr
				}
				cols = c
				continue
			}
		}

		b, ok, err := parseBarRow(row, cols)
		if err != nil {
			return nil, dropped, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			dropped++
			continue
		}
		bars = append(bars, b)
	}
	return bars, dropped, nil
}

// LoadCSV reads a bar CSV file into a validated Series.
func LoadCSV(path, symbol string, iv Interval) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, _, err := ReadCSV(f)
	if err != nil {
		return nil, &DataError{Symbol: symbol, Index: -1, Reason: err.Error()}
	}
	return NewSeries(symbol, iv, bars)
}

func headerColumns(row []string) (csvColumns, error) {
	c := csvColumns{-1, -1, -1, -1, -1, -1}
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "time", "timestamp", "date", "datetime":
			c.time = i
		case "open", "o":
			c.open = i
		case "high", "h":
			c.high = i
		case "low", "l":
			c.low = i
		case "close", "c":
			c.close = i
		case "volume", "vol", "v":
			c.volume = i
		}
	}
	if c.time < 0 || c.open < 0 || c.high < 0 || c.low < 0 || c.close < 0 {
		return c, fmt.Errorf("bar csv header missing columns: %v", row)
	}
	return c, nil
}

func parseBarRow(row []string, c csvColumns) (Bar, bool, error) {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	fields := []string{get(c.time), get(c.open), get(c.high), get(c.low), get(c.close)}
	for _, f := range fields {
		if f == "" || strings.EqualFold(f, "nan") || strings.EqualFold(f, "null") {
			return Bar{}, false, nil
		}
	}

	t, err := parseTime(fields[0])
	if err != nil {
		return Bar{}, false, err
	}

	var px [4]float64
	for i := 0; i < 4; i++ {
		px[i], err = strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return Bar{}, false, fmt.Errorf("bad price %q: %w", fields[i+1], err)
		}
	}

	vol := 0.0
	if v := get(c.volume); v != "" && !strings.EqualFold(v, "nan") {
		vol, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return Bar{}, false, fmt.Errorf("bad volume %q: %w", v, err)
		}
	}

	return Bar{Time: t, Open: px[0], High: px[1], Low: px[2], Close: px[3], Volume: vol}, true, nil
}

func semicolonSeparated(head []byte) bool {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	return bytes.IndexByte(head, ';') >= 0 && bytes.IndexByte(head, ',') < 0
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.ParseInLocation(histDataLayout, s, estNoDST); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// WriteCSV writes a series with a header row, times in RFC3339.
func WriteCSV(w io.Writer, s *Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range s.bars {
		if err := cw.Write([]string{
			b.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
