package s3blob

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/revival/internal/domain"
)

type fakeWriter struct {
	puts map[string]string
}

func (f *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[path] = string(b)
	return nil
}

func (f *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "")
}

func TestArchiveValues(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w)

	samples := []domain.ValueSample{
		{RunID: "r1", Seq: 0, Timestamp: time.Unix(1, 0).UTC(), Value: 1000},
		{RunID: "r1", Seq: 1, Timestamp: time.Unix(2, 0).UTC(), Value: 1010.5},
	}
	n, err := a.ArchiveValues(context.Background(), "r1", samples)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	body, ok := w.puts["runs/r1/values.jsonl"]
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"seq":0`)
	assert.Contains(t, lines[1], `"value":1010.5`)
}

func TestArchiveEvents(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w)

	events := []domain.OrderEvent{
		{RunID: "r1", Timestamp: time.Unix(3, 0).UTC(), State: domain.StatePending, Kind: domain.ActionLimit, Side: domain.SideBuy, Quantity: 2, Price: 90, OrderID: 1},
		{RunID: "r1", Timestamp: time.Unix(4, 0).UTC(), State: domain.StateError, Kind: domain.ActionMarket, Side: domain.SideSell, Quantity: 5, Reason: "insufficient quantity"},
	}
	n, err := a.ArchiveEvents(context.Background(), "r1", events)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	body, ok := w.puts["runs/r1/audit.jsonl"]
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"state":"pending"`)
	assert.Contains(t, lines[1], `"reason":"insufficient quantity"`)
}
