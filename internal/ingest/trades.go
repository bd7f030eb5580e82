// Package ingest parses historical market data files into the immutable
// ascending sequences the timeline builder consumes. Malformed or
// unordered input is rejected here, before it can reach the replay core.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantfall/revival/internal/domain"
)

// LoadTrades reads an aggregate-trades CSV. Expected columns:
//
//	tradeId, price, quantity, firstTradeId, lastTradeId, timestampMicros, ...
//
// Extra trailing columns are ignored. A non-numeric first row is treated
// as a header and skipped.
func LoadTrades(r io.Reader) ([]domain.Trade, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var trades []domain.Trade
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: trades row %d: %w", line+1, err)
		}
		line++
		if len(rec) < 6 {
			return nil, fmt.Errorf("ingest: trades row %d: got %d columns, want at least 6", line, len(rec))
		}

		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("ingest: trades row %d: trade id: %w", line, err)
		}
		price, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: trades row %d: price: %w", line, err)
		}
		qty, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: trades row %d: quantity: %w", line, err)
		}
		micros, err := strconv.ParseInt(rec[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: trades row %d: timestamp: %w", line, err)
		}
		if price <= 0 || qty < 0 {
			return nil, fmt.Errorf("ingest: trades row %d: price %v, quantity %v out of range", line, price, qty)
		}

		tr := domain.Trade{
			ID:        id,
			Price:     price,
			Quantity:  qty,
			Timestamp: time.UnixMicro(micros).UTC(),
		}
		if n := len(trades); n > 0 && tr.Timestamp.Before(trades[n-1].Timestamp) {
			return nil, fmt.Errorf("ingest: trades row %d: timestamp not ascending", line)
		}
		trades = append(trades, tr)
	}
	return trades, nil
}

// LoadTradesFile opens and reads an aggregate-trades CSV from disk.
func LoadTradesFile(path string) ([]domain.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open trades: %w", err)
	}
	defer f.Close()
	return LoadTrades(f)
}
