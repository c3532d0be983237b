package price

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hashezusa/aleo-GUI-wallet/internal/event"
)

// historyWindow how far back quotes are retained.
const historyWindow = 24 * time.Hour

// Source is the quote provider. CoinGeckoClient implements it; tests use a
// fake.
type Source interface {
	USDPrice(ctx context.Context) (float64, error)
}

// Quote is one observed price point.
type Quote struct {
	USD float64   `json:"usd"`
	At  time.Time `json:"at"`
}

// Tracker polls a Source and keeps a rolling day of quotes. A failed fetch
// leaves the last good quote in place.
type Tracker struct {
	source Source
	bus    *event.Bus

	mu      sync.RWMutex
	history []Quote
}

// NewTracker creates a tracker on top of src.
func NewTracker(src Source, bus *event.Bus) *Tracker {
	return &Tracker{source: src, bus: bus}
}

// Refresh fetches one quote and appends it to the history.
func (t *Tracker) Refresh(ctx context.Context) error {
	usd, err := t.source.USDPrice(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	t.mu.Lock()
	t.history = append(t.history, Quote{USD: usd, At: now})
	cutoff := now.Add(-historyWindow)
	for len(t.history) > 0 && t.history[0].At.Before(cutoff) {
		t.history = t.history[1:]
	}
	t.mu.Unlock()

	event.Publish(t.bus, event.PriceUpdated{PriceUSD: usd, FetchedAt: now})
	return nil
}

// Latest returns the newest quote, or false when no fetch has succeeded yet.
func (t *Tracker) Latest() (Quote, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.history) == 0 {
		return Quote{}, false
	}
	return t.history[len(t.history)-1], true
}

// History returns the retained quotes, oldest first.
func (t *Tracker) History() []Quote {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Quote(nil), t.history...)
}

// FormatUSD renders a quote for API responses.
func FormatUSD(usd float64) string {
	return strconv.FormatFloat(usd, 'f', 4, 64)
}

// ValueUSD converts a microcredit balance into a USD string at the given
// quote.
func ValueUSD(balanceMicro uint64, usd float64) string {
	credits := float64(balanceMicro) / 1e6
	return strconv.FormatFloat(credits*usd, 'f', 2, 64)
}
