package journal

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, fixtureTrades()))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 4)
	assert.Equal(t, tradeHeader, rows[0])

	assert.Equal(t, []string{
		"AAA-000001", "AAA", "2024-01-02T00:00:00Z", "100.000000", "2024-01-05T00:00:00Z", "110.000000",
		"10.000000", "closed", "100.000000", "97.900000", "2.100000", "3.000000", "take_profit",
	}, rows[1])

	open := rows[3]
	assert.Equal(t, "AAA-000002", open[0])
	assert.Equal(t, "", open[4])
	assert.Equal(t, "", open[5])
	assert.Equal(t, "open", open[7])
}

func TestWriteSymbolsCSV(t *testing.T) {
	r := fixtureRun(t, "csv")

	var buf bytes.Buffer
	require.NoError(t, WriteSymbolsCSV(&buf, r.Symbols))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 4)
	assert.Equal(t, symbolHeader, rows[0])
	assert.Equal(t, "AAA", rows[1][0])
	assert.Equal(t, "inf", rows[1][11])
	assert.Equal(t, "data_error", rows[3][1])
	assert.Contains(t, rows[3][2], "duplicate timestamp")
}

func TestCSVJournal(t *testing.T) {
	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	r := fixtureRun(t, "run1")
	require.NoError(t, j.RecordRun(context.Background(), r))
	require.NoError(t, j.Close())

	for _, name := range []string{"trades.csv", "symbols.csv", "equity.csv"} {
		b, err := os.ReadFile(filepath.Join(j.RunDir("run1"), name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, b, name)
	}

	b, err := os.ReadFile(filepath.Join(dir, "run1", "equity.csv"))
	require.NoError(t, err)
	rows := readCSV(t, b)
	require.Len(t, rows, 3, "header plus one point per closed trade")
	assert.Equal(t, "100097.900000", rows[1][2])
	assert.Equal(t, "99993.800000", rows[2][2])
}
