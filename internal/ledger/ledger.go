// Package ledger is the authoritative in-memory store of accounts, their
// transaction histories, and contacts. All mutation goes through this
// package; balances are always recomputed from confirmed history, never
// patched incrementally.
package ledger

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hashezusa/aleo-GUI-wallet/internal/common"
	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

// Persister saves a vault snapshot. Persistence runs outside the ledger
// lock; failures are surfaced to the caller but never roll back memory —
// the next successful mutation persists the whole state again.
type Persister interface {
	Persist(*model.VaultData) error
}

// AccountUpdate carries the mutable account fields. The id, key material,
// and address are structurally immutable: there is no way to express an
// overwrite through this type.
type AccountUpdate struct {
	Name *string
}

// Ledger holds every account. A single RWMutex guards the map; disk writes
// happen on snapshots outside the lock.
type Ledger struct {
	log       *zap.Logger
	mu        sync.RWMutex
	accounts  map[string]*model.Account
	order     []string // insertion order for stable listing
	persister Persister
}

// New creates an empty ledger backed by p.
func New(log *zap.Logger, p Persister) *Ledger {
	return &Ledger{
		log:       log,
		accounts:  make(map[string]*model.Account),
		persister: p,
	}
}

// Load replaces the ledger content with a vault loaded from disk. Accounts
// saved by older versions without an id get one assigned. Balances are
// recomputed rather than trusted.
func (l *Ledger) Load(data *model.VaultData) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts = make(map[string]*model.Account, len(data.Accounts))
	l.order = l.order[:0]
	for i := range data.Accounts {
		acct := data.Accounts[i].Clone()
		if acct.ID == "" {
			acct.ID = uuid.NewString()
		}
		l.recomputeBalance(acct)
		l.accounts[acct.ID] = acct
		l.order = append(l.order, acct.ID)
	}
}

// Snapshot returns a deep copy of the full account set for persistence.
func (l *Ledger) Snapshot() *model.VaultData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() *model.VaultData {
	data := &model.VaultData{
		Version:  model.VaultVersion,
		Accounts: make([]model.Account, 0, len(l.order)),
	}
	for _, id := range l.order {
		data.Accounts = append(data.Accounts, *l.accounts[id].Clone())
	}
	return data
}

// AddAccount registers a new account and persists. An empty id gets a fresh
// opaque handle; the returned value is the stored account.
func (l *Ledger) AddAccount(acct model.Account) (*model.Account, error) {
	if acct.Address == "" || acct.PrivateKey == "" {
		return nil, fmt.Errorf("%w: account is missing key material", model.ErrInvalidFormat)
	}

	l.mu.Lock()
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if _, exists := l.accounts[acct.ID]; exists {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: duplicate account id %s", model.ErrInvalidFormat, acct.ID)
	}
	if acct.Name == "" {
		acct.Name = fmt.Sprintf("Account %d", len(l.order)+1)
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	stored := acct.Clone()
	l.recomputeBalance(stored)
	l.accounts[stored.ID] = stored
	l.order = append(l.order, stored.ID)
	snap := l.snapshotLocked()
	result := stored.Clone()
	l.mu.Unlock()

	return result, l.persist(snap)
}

// GetAccount returns a deep copy of the account.
func (l *Ledger) GetAccount(id string) (*model.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", model.ErrNotFound, id)
	}
	return acct.Clone(), nil
}

// GetAccountByAddress returns a deep copy of the account owning address.
func (l *Ledger) GetAccountByAddress(address string) (*model.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, id := range l.order {
		if l.accounts[id].Address == address {
			return l.accounts[id].Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: address %s", model.ErrNotFound, address)
}

// ListAccounts returns deep copies in insertion order.
func (l *Ledger) ListAccounts() []*model.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*model.Account, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.accounts[id].Clone())
	}
	return out
}

// AccountIDs returns the ids of all accounts in insertion order.
func (l *Ledger) AccountIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// UpdateAccount applies the mutable fields and persists.
func (l *Ledger) UpdateAccount(id string, update AccountUpdate) error {
	l.mu.Lock()
	acct, ok := l.accounts[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: account %s", model.ErrNotFound, id)
	}
	if update.Name != nil {
		acct.Name = *update.Name
	}
	snap := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snap)
}

// DeleteAccount removes the account and persists.
func (l *Ledger) DeleteAccount(id string) error {
	l.mu.Lock()
	if _, ok := l.accounts[id]; !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: account %s", model.ErrNotFound, id)
	}
	delete(l.accounts, id)
	for i, existing := range l.order {
		if existing == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	snap := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snap)
}

// RecordTransaction ingests a transaction into an account history. The
// operation is idempotent keyed by transaction id: re-observing a known id
// only moves the status forward (terminal states never revert to Pending)
// and backfills the block height. The balance is recomputed from the full
// confirmed history afterwards.
func (l *Ledger) RecordTransaction(accountID string, tx model.Transaction) error {
	if tx.TransactionID == "" {
		return fmt.Errorf("%w: transaction id is empty", model.ErrInvalidFormat)
	}
	if tx.AmountMicro == 0 {
		return fmt.Errorf("%w: amount must be greater than zero", model.ErrInvalidFormat)
	}
	if tx.Type != model.TransactionTypeSent && tx.Type != model.TransactionTypeReceived {
		return fmt.Errorf("%w: unknown transaction type %q", model.ErrInvalidFormat, tx.Type)
	}

	l.mu.Lock()
	acct, ok := l.accounts[accountID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}

	if existing := findTransaction(acct, tx.TransactionID); existing != nil {
		applyStatus(existing, tx.Status, tx.BlockHeight, tx.ConfirmedAt)
	} else {
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now().UTC()
		}
		if tx.Status == "" {
			tx.Status = model.StatusPending
		}
		if tx.Status == model.StatusConfirmed && tx.ConfirmedAt == nil {
			now := time.Now().UTC()
			tx.ConfirmedAt = &now
		}
		insertNewestFirst(acct, tx)
	}

	l.recomputeBalance(acct)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snap)
}

// UpdateTransactionStatus moves a known transaction forward and backfills
// its block height. Terminal statuses never regress to Pending;
// Failed -> Confirmed is allowed because a transaction later observed on
// chain is authoritative.
func (l *Ledger) UpdateTransactionStatus(accountID, txID string, status model.TransactionStatus, blockHeight uint64) error {
	l.mu.Lock()
	acct, ok := l.accounts[accountID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	tx := findTransaction(acct, txID)
	if tx == nil {
		l.mu.Unlock()
		return fmt.Errorf("%w: transaction %s", model.ErrNotFound, txID)
	}
	applyStatus(tx, status, blockHeight, nil)
	l.recomputeBalance(acct)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snap)
}

// GetTransaction returns a copy of one transaction by id.
func (l *Ledger) GetTransaction(accountID, txID string) (*model.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	tx := findTransaction(acct, txID)
	if tx == nil {
		return nil, fmt.Errorf("%w: transaction %s", model.ErrNotFound, txID)
	}
	out := *tx
	return &out, nil
}

// HasTransaction reports whether the account already knows txID.
func (l *Ledger) HasTransaction(accountID, txID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[accountID]
	if !ok {
		return false
	}
	return findTransaction(acct, txID) != nil
}

// GetTransactions lists transactions newest first, optionally filtered and
// limited.
func (l *Ledger) GetTransactions(accountID string, filter model.TransactionFilter, limit int) ([]model.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	out := make([]model.Transaction, 0, len(acct.Transactions))
	for _, tx := range acct.Transactions {
		if !filter.Matches(tx) {
			continue
		}
		out = append(out, tx)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// BalanceMicro returns the confirmed balance in microcredits.
func (l *Ledger) BalanceMicro(accountID string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	return acct.BalanceMicro, nil
}

// SpendableMicro returns the confirmed balance minus all pending outgoing
// amounts including their fees. This is the figure a new spend must fit
// into, so in-flight sends cannot double-commit the same funds.
func (l *Ledger) SpendableMicro(accountID string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}

	spendable := acct.BalanceMicro
	for _, tx := range acct.Transactions {
		if tx.Type != model.TransactionTypeSent || tx.Status != model.StatusPending {
			continue
		}
		total, carry := bits.Add64(tx.AmountMicro, tx.FeeMicro, 0)
		if carry != 0 || total > spendable {
			return 0, nil
		}
		spendable -= total
	}
	return spendable, nil
}

// Balance returns the confirmed balance as a credits decimal string.
func (l *Ledger) Balance(accountID string) (string, error) {
	micro, err := l.BalanceMicro(accountID)
	if err != nil {
		return "", err
	}
	return common.MicroToCredits(micro), nil
}

// persist writes the snapshot through the configured persister. Errors are
// wrapped as ErrPersistence and reported without touching memory.
func (l *Ledger) persist(snap *model.VaultData) error {
	if l.persister == nil {
		return nil
	}
	if err := l.persister.Persist(snap); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return nil
}

// recomputeBalance derives the balance from the confirmed history:
// sum(received) - sum(sent + fee). Pending and failed transactions do not
// count. All sums saturate instead of wrapping; a history whose confirmed
// spends exceed its confirmed receipts is logged and clamped to zero.
// O(len(transactions)), deterministic for a given history.
func (l *Ledger) recomputeBalance(acct *model.Account) {
	var received, spent uint64
	for _, tx := range acct.Transactions {
		if tx.Status != model.StatusConfirmed {
			continue
		}
		switch tx.Type {
		case model.TransactionTypeReceived:
			received = saturatingAdd(received, tx.AmountMicro)
		case model.TransactionTypeSent:
			spent = saturatingAdd(spent, saturatingAdd(tx.AmountMicro, tx.FeeMicro))
		}
	}
	if spent > received {
		l.log.Warn("confirmed history spends more than it received",
			zap.String("account", acct.ID),
			zap.Uint64("receivedMicro", received),
			zap.Uint64("spentMicro", spent))
		acct.BalanceMicro = 0
		return
	}
	acct.BalanceMicro = received - spent
}

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func findTransaction(acct *model.Account, txID string) *model.Transaction {
	for i := range acct.Transactions {
		if acct.Transactions[i].TransactionID == txID {
			return &acct.Transactions[i]
		}
	}
	return nil
}

// applyStatus moves a transaction's status forward. Pending never
// overwrites a terminal state; block height and confirmation time are
// backfilled when newly known.
func applyStatus(tx *model.Transaction, status model.TransactionStatus, blockHeight uint64, confirmedAt *time.Time) {
	if blockHeight > 0 && tx.BlockHeight == 0 {
		tx.BlockHeight = blockHeight
	}
	if status == "" || status == tx.Status {
		return
	}
	if tx.Status.Terminal() && !status.Terminal() {
		return
	}
	// Failed -> Confirmed is permitted; Confirmed -> Failed is not. A chain
	// observation of the transaction outranks a local timeout.
	if tx.Status == model.StatusConfirmed && status == model.StatusFailed {
		return
	}
	tx.Status = status
	if status == model.StatusConfirmed && tx.ConfirmedAt == nil {
		if confirmedAt != nil {
			t := *confirmedAt
			tx.ConfirmedAt = &t
		} else {
			now := time.Now().UTC()
			tx.ConfirmedAt = &now
		}
	}
}

// insertNewestFirst keeps the history ordered by creation time, newest
// first, with ties keeping insertion order stable.
func insertNewestFirst(acct *model.Account, tx model.Transaction) {
	idx := sort.Search(len(acct.Transactions), func(i int) bool {
		return acct.Transactions[i].CreatedAt.Before(tx.CreatedAt)
	})
	acct.Transactions = append(acct.Transactions, model.Transaction{})
	copy(acct.Transactions[idx+1:], acct.Transactions[idx:])
	acct.Transactions[idx] = tx
}
