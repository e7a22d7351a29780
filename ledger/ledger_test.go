package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func openFill(id string, seq int, at time.Time, price, size float64) Fill {
	return Fill{TradeID: id, Seq: seq, Symbol: "TSLA", Time: at, Price: price, Size: size, Opening: true, Side: 1}
}

func TestRecordFillCreatesOpenTrade(t *testing.T) {
	l := New(market.Daily)

	applied, err := l.RecordFill(openFill("TSLA-1", 1, t0, 100, 10))
	require.NoError(t, err)
	assert.True(t, applied)

	tr, ok := l.Get("TSLA-1")
	require.True(t, ok)
	assert.Equal(t, StatusOpen, tr.Status)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 10.0, tr.Size)
	assert.Nil(t, tr.ExitTime)
	assert.Nil(t, tr.ExitPrice)
	assert.Zero(t, tr.Duration)
}

func TestRecordFillIsIdempotent(t *testing.T) {
	l := New(market.Daily)
	f := openFill("TSLA-1", 1, t0, 100, 10)

	for i := 0; i < 3; i++ {
		_, err := l.RecordFill(f)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, l.Len())

	exit := Fill{TradeID: "TSLA-1", Seq: 2, Symbol: "TSLA", Time: t0.AddDate(0, 0, 2), Price: 110, Size: 10}
	applied, err := l.RecordFill(exit)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = l.RecordFill(exit)
	require.NoError(t, err)
	assert.False(t, applied)

	tr, _ := l.Get("TSLA-1")
	assert.Equal(t, 10.0, tr.Size)
	require.NotNil(t, tr.ExitPrice)
	assert.Equal(t, 110.0, *tr.ExitPrice)
	assert.Equal(t, 1, l.Len())
}

func TestRecordFillScalesIn(t *testing.T) {
	l := New(market.Daily)
	_, err := l.RecordFill(openFill("A", 1, t0, 100, 10))
	require.NoError(t, err)
	_, err = l.RecordFill(openFill("A", 2, t0.AddDate(0, 0, 1), 110, 30))
	require.NoError(t, err)

	tr, _ := l.Get("A")
	assert.Equal(t, 40.0, tr.Size)
	assert.InDelta(t, 107.5, tr.EntryPrice, 1e-9)
	assert.Equal(t, t0, tr.EntryTime)
}

func TestPartialExitsAverage(t *testing.T) {
	l := New(market.Daily)
	_, err := l.RecordFill(openFill("A", 1, t0, 100, 20))
	require.NoError(t, err)
	_, err = l.RecordFill(Fill{TradeID: "A", Seq: 2, Time: t0.AddDate(0, 0, 1), Price: 110, Size: 10})
	require.NoError(t, err)
	_, err = l.RecordFill(Fill{TradeID: "A", Seq: 3, Time: t0.AddDate(0, 0, 2), Price: 120, Size: 10})
	require.NoError(t, err)

	tr, _ := l.Get("A")
	assert.Equal(t, StatusOpen, tr.Status)
	require.NotNil(t, tr.ExitPrice)
	assert.InDelta(t, 115.0, *tr.ExitPrice, 1e-9)
}

func TestCloseFreezesTrade(t *testing.T) {
	l := New(market.Daily)
	_, err := l.RecordFill(openFill("A", 1, t0, 100, 10))
	require.NoError(t, err)

	exitAt := t0.Add(36 * time.Hour)
	require.NoError(t, l.Close("A", exitAt, 116, 160, 157.84))

	tr, _ := l.Get("A")
	assert.Equal(t, StatusClosed, tr.Status)
	assert.Equal(t, 1.5, tr.Duration)
	assert.Equal(t, 157.84, tr.PnLAfterCost)
	require.NotNil(t, tr.ExitTime)
	assert.Equal(t, exitAt, *tr.ExitTime)

	err = l.Close("A", exitAt, 1, 1, 1)
	assert.ErrorIs(t, err, ErrTradeClosed)

	_, err = l.RecordFill(Fill{TradeID: "A", Seq: 9, Time: exitAt, Price: 1, Size: 1})
	assert.ErrorIs(t, err, ErrTradeClosed)

	assert.ErrorIs(t, l.Close("missing", exitAt, 1, 1, 1), ErrUnknownTrade)
}

func TestCloseRejectsExitBeforeEntry(t *testing.T) {
	l := New(market.Daily)
	_, err := l.RecordFill(openFill("A", 1, t0, 100, 10))
	require.NoError(t, err)
	assert.Error(t, l.Close("A", t0.Add(-time.Hour), 100, 0, 0))
}

func TestRecordFillValidation(t *testing.T) {
	l := New(market.Daily)
	_, err := l.RecordFill(Fill{Seq: 1, Price: 1, Size: 1, Opening: true})
	assert.Error(t, err)

	_, err = l.RecordFill(Fill{TradeID: "A", Seq: 1, Price: 1, Size: 0, Opening: true})
	assert.Error(t, err)

	_, err = l.RecordFill(Fill{TradeID: "B", Seq: 1, Price: 1, Size: 1})
	assert.ErrorIs(t, err, ErrUnknownTrade)
}

func TestSnapshotIsOrderedCopy(t *testing.T) {
	l := New(market.Daily)
	_, err := l.RecordFill(openFill("B", 1, t0.AddDate(0, 0, 5), 100, 1))
	require.NoError(t, err)
	_, err = l.RecordFill(openFill("A", 1, t0, 100, 1))
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "A", snap[0].TradeID)
	assert.Equal(t, "B", snap[1].TradeID)

	require.NoError(t, l.Close("A", t0.AddDate(0, 0, 1), 101, 1, 1))
	assert.Equal(t, StatusOpen, snap[0].Status, "snapshot must not observe later writes")
	assert.Len(t, Closed(l.Snapshot()), 1)
}

func TestSnapshotConcurrentWithWriter(t *testing.T) {
	l := New(market.Daily)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			id := string(rune('a'+i%26)) + time.Duration(i).String()
			_, _ = l.RecordFill(openFill(id, 1, t0.Add(time.Duration(i)*time.Hour), 100, 1))
			_ = l.Close(id, t0.Add(time.Duration(i+1)*time.Hour), 101, 1, 1)
		}
	}()
	for i := 0; i < 50; i++ {
		for _, tr := range l.Snapshot() {
			if tr.Status == StatusClosed {
				assert.NotNil(t, tr.ExitTime)
			}
		}
	}
	wg.Wait()
	assert.Equal(t, 200, l.Len())
}

func TestMerge(t *testing.T) {
	a := []Trade{{TradeID: "A-1", Symbol: "A", EntryTime: t0.AddDate(0, 0, 2)}}
	b := []Trade{{TradeID: "B-1", Symbol: "B", EntryTime: t0}, {TradeID: "B-2", Symbol: "B", EntryTime: t0.AddDate(0, 0, 3)}}

	got := Merge(a, b)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"B-1", "A-1", "B-2"}, []string{got[0].TradeID, got[1].TradeID, got[2].TradeID})
}
