package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/revival/internal/domain"
)

func at(sec int) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

func tradesAt(secs ...int) []domain.Trade {
	out := make([]domain.Trade, len(secs))
	for i, s := range secs {
		out[i] = domain.Trade{ID: int64(i + 1), Price: 100 + float64(i), Quantity: 1, Timestamp: at(s)}
	}
	return out
}

func booksAt(secs ...int) []domain.BookSnapshot {
	out := make([]domain.BookSnapshot, len(secs))
	for i, s := range secs {
		out[i] = domain.BookSnapshot{SequenceID: int64(i + 1), Timestamp: at(s)}
	}
	return out
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"both", "order_book_driven", "market_driven"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}

	_, err := ParseMode("hybrid")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
}

func TestBuildBothMerge(t *testing.T) {
	trades := tradesAt(4, 8, 11, 12)
	books := booksAt(6, 9)

	steps, err := Build(trades, books, ModeBoth)
	require.NoError(t, err)
	require.Len(t, steps, 6)

	wantTimes := []int{4, 6, 8, 9, 11, 12}
	wantPrefix := []int{1, 1, 2, 2, 3, 4}
	wantSeq := []int64{0, 1, 1, 2, 2, 2} // 0 is the initial empty book
	for i, step := range steps {
		assert.Equal(t, at(wantTimes[i]), step.Timestamp, "timestep %d", i)
		assert.Equal(t, wantPrefix[i], step.History.Len(), "timestep %d", i)
		assert.Equal(t, wantSeq[i], step.Book.SequenceID, "timestep %d", i)
	}
	assert.True(t, steps[0].Book.IsInitial())
}

func TestBuildBothTradeWinsTie(t *testing.T) {
	trades := tradesAt(5)
	books := booksAt(5)

	steps, err := Build(trades, books, ModeBoth)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	// Trade first: the trade timestep still sees the initial book.
	assert.True(t, steps[0].Book.IsInitial())
	assert.Equal(t, 1, steps[0].History.Len())
	assert.Equal(t, int64(1), steps[1].Book.SequenceID)
	assert.Equal(t, 1, steps[1].History.Len())
}

func TestBuildOrderBookDriven(t *testing.T) {
	trades := tradesAt(4, 8, 11, 12)
	books := booksAt(6, 9)

	steps, err := Build(trades, books, ModeOrderBookDriven)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, at(6), steps[0].Timestamp)
	assert.Equal(t, 1, steps[0].History.Len())
	assert.Equal(t, int64(1), steps[0].Book.SequenceID)

	assert.Equal(t, at(9), steps[1].Timestamp)
	assert.Equal(t, 2, steps[1].History.Len())
	assert.Equal(t, int64(2), steps[1].Book.SequenceID)
}

func TestBuildOrderBookDrivenPrefixMonotonic(t *testing.T) {
	trades := tradesAt(1, 2, 3, 10, 20, 21)
	books := booksAt(2, 5, 15, 30)

	steps, err := Build(trades, books, ModeOrderBookDriven)
	require.NoError(t, err)
	require.Len(t, steps, len(books))

	prev := 0
	for i, step := range steps {
		assert.GreaterOrEqual(t, step.History.Len(), prev, "timestep %d", i)
		prev = step.History.Len()
	}
	assert.Equal(t, len(trades), steps[len(steps)-1].History.Len())
}

func TestBuildMarketDriven(t *testing.T) {
	trades := tradesAt(4, 8, 11)
	books := booksAt(6, 9)

	steps, err := Build(trades, books, ModeMarketDriven)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	// Each timestep is stamped one tick after its trade and carries the
	// book known before the cursor caught up to that tick.
	assert.Equal(t, at(4).Add(time.Millisecond), steps[0].Timestamp)
	assert.Equal(t, 1, steps[0].History.Len())
	assert.True(t, steps[0].Book.IsInitial())

	assert.Equal(t, at(8).Add(time.Millisecond), steps[1].Timestamp)
	assert.Equal(t, 2, steps[1].History.Len())
	assert.True(t, steps[1].Book.IsInitial())

	assert.Equal(t, at(11).Add(time.Millisecond), steps[2].Timestamp)
	assert.Equal(t, 3, steps[2].History.Len())
	assert.Equal(t, int64(1), steps[2].Book.SequenceID)
}

func TestBuildMarketDrivenNoTrades(t *testing.T) {
	steps, err := Build(nil, booksAt(6, 9), ModeMarketDriven)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.True(t, steps[0].History.Empty())
	assert.True(t, steps[0].Book.IsInitial())
}

func TestBuildEmptyInputs(t *testing.T) {
	steps, err := Build(nil, nil, ModeBoth)
	require.NoError(t, err)
	assert.Empty(t, steps)

	steps, err = Build(nil, nil, ModeOrderBookDriven)
	require.NoError(t, err)
	assert.Empty(t, steps)
}
