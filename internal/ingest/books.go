package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/quantfall/revival/internal/domain"
)

// LoadBooks reads a depth-snapshot CSV. Expected columns:
//
//	lastUpdateId, timestampMillis, asksJSON, bidsJSON
//
// where the JSON columns hold [[price, qty], ...] arrays with string or
// numeric entries. Asks are normalized to descending price order and bids
// to ascending, so index 0 is always the level farthest from the spread.
func LoadBooks(r io.Reader) ([]domain.BookSnapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var books []domain.BookSnapshot
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: books row %d: %w", line+1, err)
		}
		line++
		if len(rec) < 4 {
			return nil, fmt.Errorf("ingest: books row %d: got %d columns, want at least 4", line, len(rec))
		}

		seq, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("ingest: books row %d: sequence id: %w", line, err)
		}
		millis, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: books row %d: timestamp: %w", line, err)
		}
		asks, err := parseLevels(rec[2])
		if err != nil {
			return nil, fmt.Errorf("ingest: books row %d: asks: %w", line, err)
		}
		bids, err := parseLevels(rec[3])
		if err != nil {
			return nil, fmt.Errorf("ingest: books row %d: bids: %w", line, err)
		}
		sort.Slice(asks, func(i, j int) bool { return asks[i].Price > asks[j].Price })
		sort.Slice(bids, func(i, j int) bool { return bids[i].Price < bids[j].Price })

		book := domain.BookSnapshot{
			SequenceID: seq,
			Timestamp:  time.UnixMilli(millis).UTC(),
			Bids:       bids,
			Asks:       asks,
		}
		if n := len(books); n > 0 && book.Timestamp.Before(books[n-1].Timestamp) {
			return nil, fmt.Errorf("ingest: books row %d: timestamp not ascending", line)
		}
		books = append(books, book)
	}
	return books, nil
}

// LoadBooksFile opens and reads a depth-snapshot CSV from disk.
func LoadBooksFile(path string) ([]domain.BookSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open books: %w", err)
	}
	defer f.Close()
	return LoadBooks(f)
}

// parseLevels decodes a [[price, qty], ...] JSON array. Exchange dumps
// quote the numbers, hand-made fixtures usually do not, so both forms are
// accepted.
func parseLevels(s string) ([]domain.BookLevel, error) {
	if s == "" {
		return nil, nil
	}
	var raw [][]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	levels := make([]domain.BookLevel, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("level %d: got %d values, want 2", i, len(pair))
		}
		price, err := toFloat(pair[0])
		if err != nil {
			return nil, fmt.Errorf("level %d: price: %w", i, err)
		}
		qty, err := toFloat(pair[1])
		if err != nil {
			return nil, fmt.Errorf("level %d: quantity: %w", i, err)
		}
		if price < 0 || qty < 0 {
			return nil, fmt.Errorf("level %d: negative price or quantity", i)
		}
		levels = append(levels, domain.BookLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
