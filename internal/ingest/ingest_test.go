package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/revival/internal/domain"
)

func TestLoadTrades(t *testing.T) {
	in := strings.Join([]string{
		"1001,45000.5,0.25,500,501,1600000000000000,true",
		"1002,45010.0,1.5,502,502,1600000001000000,false",
	}, "\n")

	trades, err := LoadTrades(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, int64(1001), trades[0].ID)
	assert.Equal(t, 45000.5, trades[0].Price)
	assert.Equal(t, 0.25, trades[0].Quantity)
	assert.Equal(t, time.UnixMicro(1600000000000000).UTC(), trades[0].Timestamp)
	assert.Equal(t, int64(1002), trades[1].ID)
}

func TestLoadTradesSkipsHeader(t *testing.T) {
	in := strings.Join([]string{
		"agg_trade_id,price,quantity,first_trade_id,last_trade_id,transact_time,is_buyer_maker",
		"1,100,2,1,1,1600000000000000,true",
	}, "\n")

	trades, err := LoadTrades(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(1), trades[0].ID)
}

func TestLoadTradesRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"short row":        "1,100,2\n",
		"bad price":        "1,abc,2,1,1,1600000000000000\n",
		"negative price":   "1,-5,2,1,1,1600000000000000\n",
		"out of order":     "1,100,2,1,1,2000000\n2,100,2,2,2,1000000\n",
		"bad id midstream": "1,100,2,1,1,1000000\nxx,100,2,2,2,2000000\n",
	}
	for name, in := range cases {
		_, err := LoadTrades(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestLoadBooks(t *testing.T) {
	in := strings.Join([]string{
		`7000,1600000000000,"[[""101.0"",""5""],[""102.0"",""3""]]","[[""99.0"",""4""],[""98.0"",""6""]]"`,
		`7001,1600000001000,"[[103.0,1]]","[[97.5,2]]"`,
	}, "\n")

	books, err := LoadBooks(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, books, 2)

	b := books[0]
	assert.Equal(t, int64(7000), b.SequenceID)
	assert.Equal(t, time.UnixMilli(1600000000000).UTC(), b.Timestamp)
	// Asks descending, bids ascending.
	require.Len(t, b.Asks, 2)
	assert.Equal(t, domain.BookLevel{Price: 102, Quantity: 3}, b.Asks[0])
	assert.Equal(t, domain.BookLevel{Price: 101, Quantity: 5}, b.Asks[1])
	require.Len(t, b.Bids, 2)
	assert.Equal(t, domain.BookLevel{Price: 98, Quantity: 6}, b.Bids[0])
	assert.Equal(t, domain.BookLevel{Price: 99, Quantity: 4}, b.Bids[1])

	assert.Equal(t, domain.BookLevel{Price: 103, Quantity: 1}, books[1].Asks[0])
	assert.False(t, books[1].IsInitial())
}

func TestLoadBooksRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"short row":    `7000,1600000000000,"[]"` + "\n",
		"bad json":     `7000,1600000000000,"[[",""` + "\n",
		"bad pair":     `7000,1600000000000,"[[1,2,3]]","[]"` + "\n",
		"out of order": `7000,2000,"[]","[]"` + "\n" + `7001,1000,"[]","[]"` + "\n",
	}
	for name, in := range cases {
		_, err := LoadBooks(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestLoadBooksEmptySides(t *testing.T) {
	in := `7000,1600000000000,"[]","[]"` + "\n"
	books, err := LoadBooks(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Empty(t, books[0].Asks)
	assert.Empty(t, books[0].Bids)
}
