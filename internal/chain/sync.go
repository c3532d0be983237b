package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hashezusa/aleo-GUI-wallet/internal/event"
	"github.com/hashezusa/aleo-GUI-wallet/internal/ledger"
	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

const (
	// SyncWindow how many recent blocks one sync pass scans per account.
	SyncWindow = 1000

	// maxConcurrentAccounts bound on parallel per-account syncs.
	maxConcurrentAccounts = 4
)

// SyncStatus is the syncer's externally visible state.
type SyncStatus struct {
	Connected   bool      `json:"connected"`
	ChainHeight uint64    `json:"chainHeight"`
	LastSync    time.Time `json:"lastSync"`
	Syncing     bool      `json:"syncing"`
}

// Syncer pulls recent chain history into the ledger. One sync per account
// runs at a time; a pass that is still running when the next tick arrives
// is skipped, not queued.
type Syncer struct {
	log    *zap.Logger
	query  QueryService
	ledger *ledger.Ledger
	bus    *event.Bus

	mu          sync.Mutex
	connected   bool
	chainHeight uint64
	lastSync    time.Time
	syncing     int
	inFlight    map[string]bool
}

// NewSyncer wires the syncer against the node and ledger.
func NewSyncer(log *zap.Logger, query QueryService, l *ledger.Ledger, bus *event.Bus) *Syncer {
	return &Syncer{
		log:      log,
		query:    query,
		ledger:   l,
		bus:      bus,
		inFlight: make(map[string]bool),
	}
}

// CheckConnectivity probes the node and publishes ConnectivityChanged on
// transitions only.
func (s *Syncer) CheckConnectivity(ctx context.Context) bool {
	height, err := s.query.LatestHeight(ctx)
	now := time.Now().UTC()

	s.mu.Lock()
	was := s.connected
	s.connected = err == nil
	if err == nil {
		s.chainHeight = height
	}
	is := s.connected
	s.mu.Unlock()

	if was != is {
		if is {
			s.log.Info("chain connection established", zap.Uint64("height", height))
		} else {
			s.log.Warn("chain connection lost", zap.Error(err))
		}
		event.Publish(s.bus, event.ConnectivityChanged{Connected: is, At: now})
	}
	return is
}

// SyncAccount scans the most recent SyncWindow blocks for the account's
// address and ingests what it finds. Ingestion is idempotent, so overlapping
// windows across passes are harmless. If a sync for this account is already
// running the call returns immediately.
func (s *Syncer) SyncAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	if s.inFlight[accountID] {
		s.mu.Unlock()
		return nil
	}
	s.inFlight[accountID] = true
	s.syncing++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, accountID)
		s.syncing--
		s.mu.Unlock()
	}()

	acct, err := s.ledger.GetAccount(accountID)
	if err != nil {
		return err
	}

	height, err := s.query.LatestHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch chain height: %w", err)
	}
	s.mu.Lock()
	s.chainHeight = height
	s.mu.Unlock()

	from := uint64(0)
	if height > SyncWindow {
		from = height - SyncWindow
	}

	details, err := s.query.TransactionsForAddress(ctx, acct.Address, from, height)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions for %s: %w", acct.Address, err)
	}

	oldBalance, _ := s.ledger.BalanceMicro(accountID)

	// One bad record must not abort the rest of the window.
	var firstErr error
	for _, d := range details {
		tx, err := toLedgerTransaction(acct.Address, d)
		if err != nil {
			s.log.Warn("skipping malformed chain transaction",
				zap.String("txId", d.TransactionID), zap.Error(err))
			continue
		}
		known := s.ledger.HasTransaction(accountID, tx.TransactionID)
		if err := s.ledger.RecordTransaction(accountID, *tx); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !known {
			event.Publish(s.bus, event.TransactionObserved{
				AccountID:     accountID,
				TransactionID: tx.TransactionID,
			})
		}
	}

	if newBalance, err := s.ledger.BalanceMicro(accountID); err == nil && newBalance != oldBalance {
		event.Publish(s.bus, event.BalanceChanged{AccountID: accountID, BalanceMicro: newBalance})
	}
	return firstErr
}

// SyncAll syncs every account concurrently. The last-sync timestamp advances
// only when every account synced cleanly, so a partial pass is retried in
// full on the next tick.
func (s *Syncer) SyncAll(ctx context.Context) error {
	if !s.CheckConnectivity(ctx) {
		return fmt.Errorf("%w: node unreachable", model.ErrTransport)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAccounts)
	for _, id := range s.ledger.AccountIDs() {
		id := id
		g.Go(func() error {
			return s.SyncAccount(ctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSync = time.Now().UTC()
	s.mu.Unlock()
	return nil
}

// Status returns a snapshot of the sync state.
func (s *Syncer) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncStatus{
		Connected:   s.connected,
		ChainHeight: s.chainHeight,
		LastSync:    s.lastSync,
		Syncing:     s.syncing > 0,
	}
}

// toLedgerTransaction maps a node record onto the account's perspective.
func toLedgerTransaction(ownAddress string, d TransactionDetails) (*model.Transaction, error) {
	if d.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction id is empty", model.ErrInvalidFormat)
	}

	var txType model.TransactionType
	var counterparty string
	switch {
	case d.Recipient == ownAddress:
		txType = model.TransactionTypeReceived
		counterparty = d.Sender
	case d.Sender == ownAddress:
		txType = model.TransactionTypeSent
		counterparty = d.Recipient
	default:
		return nil, fmt.Errorf("%w: transaction %s does not touch %s", model.ErrInvalidFormat, d.TransactionID, ownAddress)
	}

	status := model.StatusPending
	switch d.Status {
	case "confirmed":
		status = model.StatusConfirmed
	case "failed":
		status = model.StatusFailed
	}

	created := time.Now().UTC()
	if d.Timestamp > 0 {
		created = time.Unix(d.Timestamp, 0).UTC()
	}

	return &model.Transaction{
		TransactionID: d.TransactionID,
		Type:          txType,
		Counterparty:  counterparty,
		AmountMicro:   d.AmountMicro,
		FeeMicro:      d.FeeMicro,
		Memo:          d.Memo,
		CreatedAt:     created,
		Status:        status,
		BlockHeight:   d.BlockHeight,
	}, nil
}
