package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRecordAndRecent(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "data", "events.db"))
	require.NoError(t, err)
	defer j.Close()

	base := time.Date(2026, 10, 18, 9, 15, 0, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	ctx := context.Background()
	for _, ev := range []struct{ name, payload string }{
		{"order", `{"AppOrderID":1}`},
		{"trade", `{"ExecutionID":"E1"}`},
		{"order", `{"AppOrderID":2}`},
	} {
		_, err := j.Record(ctx, ev.name, ev.payload)
		require.NoError(t, err)
	}

	all, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, `{"AppOrderID":2}`, all[0].Payload)
	assert.Equal(t, "trade", all[1].Event)
	assert.Equal(t, base.Add(3*time.Second), all[0].ReceivedAt)

	orders, err := j.RecentByEvent(ctx, "order", 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Greater(t, orders[0].ID, orders[1].ID)
}

func TestJournalReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.Record(context.Background(), "position", `{}`)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestJournalOpenErrors(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)

	var nilJournal *Journal
	assert.NoError(t, nilJournal.Close())
}
