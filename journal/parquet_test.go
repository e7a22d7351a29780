package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradesParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "trades.parquet")
	want := fixtureTrades()

	require.NoError(t, WriteTradesParquet(path, "run", want))

	rows, err := ReadTradesParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, len(want))

	for i, row := range rows {
		assert.Equal(t, "run", row.RunID)
		got := row.Trade()
		assert.Equal(t, want[i].TradeID, got.TradeID)
		assert.True(t, got.EntryTime.Equal(want[i].EntryTime))
		assert.Equal(t, want[i].Size, got.Size)
		assert.Equal(t, want[i].PnLAfterCost, got.PnLAfterCost)
		assert.Equal(t, want[i].Status, got.Status)
		if want[i].ExitTime == nil {
			assert.Nil(t, got.ExitTime)
			assert.Nil(t, got.ExitPrice)
			continue
		}
		require.NotNil(t, got.ExitTime)
		assert.True(t, got.ExitTime.Equal(*want[i].ExitTime))
		assert.Equal(t, *want[i].ExitPrice, *got.ExitPrice)
	}
}

func TestParquetJournal(t *testing.T) {
	j := NewParquet(t.TempDir())
	require.NoError(t, j.RecordRun(context.Background(), fixtureRun(t, "pq")))
	require.NoError(t, j.Close())

	rows, err := ReadTradesParquet(j.Path("pq"))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
