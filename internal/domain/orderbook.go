package domain

import "time"

// BookLevel is a single price+quantity entry in an order-book snapshot.
type BookLevel struct {
	Price    float64
	Quantity float64
}

// BookSnapshot is a full snapshot of bids and asks at a point in time.
// Snapshots are immutable once loaded and ascending by timestamp.
type BookSnapshot struct {
	SequenceID int64
	Timestamp  time.Time
	Bids       []BookLevel // ascending by price, as loaded
	Asks       []BookLevel // descending by price, as loaded
}

// IsInitial reports whether this is the sentinel pre-data snapshot.
func (b *BookSnapshot) IsInitial() bool {
	return b.SequenceID == 0 && len(b.Bids) == 0 && len(b.Asks) == 0
}

// initialBook is the sentinel snapshot used before any real snapshot has
// arrived: sequence 0, epoch timestamp, empty books.
var initialBook = BookSnapshot{SequenceID: 0, Timestamp: time.Unix(0, 0).UTC()}

// InitialBook returns the shared sentinel snapshot. Callers must treat it as
// read-only.
func InitialBook() *BookSnapshot {
	return &initialBook
}

// Timestep is one decision point on the merged timeline: a timestamp, the
// trade history known at that moment, and the most recent book snapshot.
// Timesteps are produced once by the timeline builder and never mutated.
type Timestep struct {
	Timestamp time.Time
	History   MarketHistory
	Book      *BookSnapshot
}
