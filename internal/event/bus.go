// Package event is a small in-process pub/sub bus. Components publish typed
// events; subscribers receive them synchronously on the publisher's
// goroutine, so handlers must be quick and must not call back into the
// publisher.
package event

import (
	"sync"
	"time"
)

// ConnectivityChanged fires when the chain client's reachability flips.
// Edge-triggered: one event per transition, not per probe.
type ConnectivityChanged struct {
	Connected bool
	At        time.Time
}

// BalanceChanged fires after a sync or send changes an account's confirmed
// balance.
type BalanceChanged struct {
	AccountID    string
	BalanceMicro uint64
}

// TransactionObserved fires when sync ingests a transaction not seen before.
type TransactionObserved struct {
	AccountID     string
	TransactionID string
}

// TransactionSettled fires when a pending transaction reaches a terminal
// status.
type TransactionSettled struct {
	AccountID     string
	TransactionID string
	Confirmed     bool
}

// PriceUpdated fires on each successful market price refresh.
type PriceUpdated struct {
	PriceUSD  float64
	FetchedAt time.Time
}

// Bus routes published values to the subscribers registered for their type.
type Bus struct {
	mu   sync.RWMutex
	subs map[any][]func(any)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[any][]func(any))}
}

type key[T any] struct{}

// Subscribe registers fn for events of type T. There is no unsubscribe; the
// bus lives for the process lifetime.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key[T]{}
	b.subs[k] = append(b.subs[k], func(v any) { fn(v.(T)) })
}

// Publish delivers ev to every subscriber of its type, in subscription
// order, on the calling goroutine.
func Publish[T any](b *Bus, ev T) {
	b.mu.RLock()
	handlers := b.subs[key[T]{}]
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}
