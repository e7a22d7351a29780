package market

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func bar(n int, c float64) Bar {
	return Bar{Time: day(n), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
}

func TestNewSeries(t *testing.T) {
	tests := []struct {
		name    string
		bars    []Bar
		wantErr string
	}{
		{name: "valid", bars: []Bar{bar(0, 10), bar(1, 11), bar(2, 12)}},
		{name: "empty", bars: nil, wantErr: "no bars"},
		{name: "duplicate", bars: []Bar{bar(0, 10), bar(0, 11)}, wantErr: "duplicate timestamp"},
		{name: "out of order", bars: []Bar{bar(1, 10), bar(0, 11)}, wantErr: "out of order"},
		{name: "high below low", bars: []Bar{{Time: day(0), Open: 10, High: 9, Low: 11, Close: 10}}, wantErr: "below low"},
		{name: "zero close", bars: []Bar{{Time: day(0), Open: 10, High: 11, Low: 9, Close: 0}}, wantErr: "non-positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSeries("TSLA", Daily, tt.bars)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, len(tt.bars), s.Len())
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrData))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSeriesIsImmutable(t *testing.T) {
	in := []Bar{bar(0, 10), bar(1, 11)}
	s, err := NewSeries("MSFT", Daily, in)
	require.NoError(t, err)

	in[0].Close = 999
	assert.Equal(t, 10.0, s.At(0).Close)

	out := s.Bars()
	out[1].Close = 999
	assert.Equal(t, 11.0, s.At(1).Close)
}

func TestSeriesSlice(t *testing.T) {
	s, err := NewSeries("MSFT", Daily, []Bar{bar(0, 10), bar(1, 11), bar(2, 12), bar(3, 13)})
	require.NoError(t, err)

	sub, err := s.Slice(day(1), day(3))
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, 11.0, sub.First().Close)
	assert.Equal(t, 12.0, sub.Last().Close)

	_, err = s.Slice(day(10), time.Time{})
	assert.ErrorIs(t, err, ErrData)
}

func TestReadCSV(t *testing.T) {
	in := `Date,Open,High,Low,Close,Volume
2024-01-02,100,105,99,104,1500
2024-01-03,104,106,,105,1200
2024-01-04,105,107,103,106,
`
	bars, dropped, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, bars, 2)
	assert.Equal(t, 104.0, bars[0].Close)
	assert.Equal(t, 0.0, bars[1].Volume)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Time)
}

func TestReadCSVNoHeader(t *testing.T) {
	in := "2024-01-02T14:30:00Z,1,2,0.5,1.5,10\n2024-01-02T15:30:00Z,1.5,2,1,1.8,12\n"
	bars, dropped, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.8, bars[1].Close)
}

func TestReadCSVHistData(t *testing.T) {
	in := "20240102 170000;1.104270;1.104290;1.104150;1.104220;0\n" +
		"20240102 170100;1.104220;1.104300;1.104200;1.104250;0\n"
	bars, dropped, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 22, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 1.10425, bars[1].Close)
}

func TestReadCSVBadPrice(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("2024-01-02,abc,2,1,1,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestParquetRoundTrip(t *testing.T) {
	s, err := NewSeries("PLTR", Daily, []Bar{bar(0, 20), bar(1, 21), bar(2, 22)})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bars", "pltr.parquet")
	require.NoError(t, WriteParquet(path, s))

	got, err := Load(path, "PLTR", Daily)
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, s.Bars(), got.Bars())
}

func TestCSVSaveRoundTrip(t *testing.T) {
	s, err := NewSeries("PLTR", Daily, []Bar{bar(0, 20.25), bar(1, 21), bar(2, 22.5)})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "csv", "pltr.csv")
	require.NoError(t, Save(path, s))

	got, err := Load(path, "PLTR", Daily)
	require.NoError(t, err)
	assert.Equal(t, s.Bars(), got.Bars())
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"1D", 24 * time.Hour, false},
		{"D1", 24 * time.Hour, false},
		{"H4", 4 * time.Hour, false},
		{"M15", 15 * time.Minute, false},
		{"90m", 90 * time.Minute, false},
		{"", 0, true},
		{"-1h", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			iv, err := ParseInterval(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, iv.Duration())
		})
	}
	assert.Equal(t, "D1", Daily.String())
	assert.Equal(t, 2.5, Daily.Bars(60*time.Hour))
}
