package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hashezusa/aleo-GUI-wallet/internal/chain"
	"github.com/hashezusa/aleo-GUI-wallet/internal/event"
	"github.com/hashezusa/aleo-GUI-wallet/internal/ledger"
	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
	"github.com/hashezusa/aleo-GUI-wallet/internal/signer"
)

const (
	senderAddress    = "aleo1owneraddressowneraddressowneraddressowneraddressownera"
	recipientAddress = "aleo1peeraddresspeeraddresspeeraddresspeeraddresspeeraddres"
)

// stubNode answers broadcasts and transaction lookups.
type stubNode struct {
	mu         sync.Mutex
	broadcasts []json.RawMessage
	statuses   map[string]string
	refuse     bool
}

func (s *stubNode) LatestHeight(ctx context.Context) (uint64, error) { return 100, nil }
func (s *stubNode) LatestHash(ctx context.Context) (string, error)   { return "ab1head", nil }
func (s *stubNode) ChainStatus(ctx context.Context) (*chain.ChainStatus, error) {
	return &chain.ChainStatus{Height: 100, Synced: true}, nil
}

func (s *stubNode) TransactionsForAddress(ctx context.Context, address string, from, to uint64) ([]chain.TransactionDetails, error) {
	return nil, nil
}

func (s *stubNode) GetTransaction(ctx context.Context, txID string) (*chain.TransactionDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[txID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &chain.TransactionDetails{TransactionID: txID, Status: status, BlockHeight: 101}, nil
}

func (s *stubNode) BroadcastTransaction(ctx context.Context, payload json.RawMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuse {
		return "", errors.New("node rejected transaction")
	}
	s.broadcasts = append(s.broadcasts, payload)
	return "", nil // engine derives a local id
}

func newEngineFixture(t *testing.T) (*Engine, *ledger.Ledger, *stubNode, *event.Bus, string) {
	t.Helper()
	l := ledger.New(zap.NewNop(), nil)
	acct, err := l.AddAccount(model.Account{
		Name:       "Main",
		PrivateKey: "APrivateKey1test",
		Address:    senderAddress,
	})
	require.NoError(t, err)
	require.NoError(t, l.RecordTransaction(acct.ID, model.Transaction{
		TransactionID: "at1funding",
		Type:          model.TransactionTypeReceived,
		Counterparty:  recipientAddress,
		AmountMicro:   10_000_000,
		Status:        model.StatusConfirmed,
	}))

	node := &stubNode{statuses: make(map[string]string)}
	bus := event.NewBus()
	e := New(zap.NewNop(), node, l, signer.NewLocal(), bus)
	t.Cleanup(e.Close)
	return e, l, node, bus, acct.ID
}

func TestEstimateFee(t *testing.T) {
	assert.Equal(t, uint64(1000), EstimateFeeMicro(""))
	assert.Equal(t, uint64(1050), EstimateFeeMicro("hello"))
	assert.Equal(t, uint64(1000+256*10), EstimateFeeMicro(string(make([]byte, 256))))
}

func TestSendRecordsPendingTransaction(t *testing.T) {
	e, l, node, _, id := newEngineFixture(t)

	tx, err := e.Send(context.Background(), id, recipientAddress, 4_000_000, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, tx.Status)
	assert.Equal(t, uint64(1000), tx.FeeMicro)
	assert.NotEmpty(t, tx.TransactionID)

	// Pending sends leave the confirmed balance alone but shrink spendable.
	bal, _ := l.BalanceMicro(id)
	assert.Equal(t, uint64(10_000_000), bal)
	spendable, _ := l.SpendableMicro(id)
	assert.Equal(t, uint64(5_999_000), spendable)

	node.mu.Lock()
	require.Len(t, node.broadcasts, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(node.broadcasts[0], &payload))
	node.mu.Unlock()
	assert.Equal(t, senderAddress, payload["sender"])
	assert.Equal(t, recipientAddress, payload["recipient"])
	assert.NotEmpty(t, payload["signature"])
}

func TestSendInsufficientBalance(t *testing.T) {
	e, _, _, _, id := newEngineFixture(t)

	// 10.0 credits funded; the fee pushes a 10.0 send over the top.
	_, err := e.Send(context.Background(), id, recipientAddress, 10_000_000, "")
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	// Exactly amount+fee is fine.
	_, err = e.Send(context.Background(), id, recipientAddress, 9_999_000, "")
	assert.NoError(t, err)
}

func TestSendRejectsAmountThatWrapsWithFee(t *testing.T) {
	e, l, _, _, id := newEngineFixture(t)

	// amount+fee wraps around uint64 and would slip past a summed check.
	_, err := e.Send(context.Background(), id, recipientAddress, math.MaxUint64-500, "")
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	spendable, _ := l.SpendableMicro(id)
	assert.Equal(t, uint64(10_000_000), spendable)
}

func TestSendValidation(t *testing.T) {
	e, _, _, _, id := newEngineFixture(t)
	ctx := context.Background()

	_, err := e.Send(ctx, id, "bogus", 1_000_000, "")
	assert.ErrorIs(t, err, model.ErrInvalidFormat)

	_, err = e.Send(ctx, id, recipientAddress, 0, "")
	assert.ErrorIs(t, err, model.ErrInvalidFormat)

	_, err = e.Send(ctx, id, senderAddress, 1_000_000, "")
	assert.ErrorIs(t, err, model.ErrInvalidFormat)

	_, err = e.Send(ctx, id, recipientAddress, 1_000_000, string(make([]byte, MaxMemoBytes+1)))
	assert.ErrorIs(t, err, model.ErrInvalidFormat)

	_, err = e.Send(ctx, "nope", recipientAddress, 1_000_000, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBroadcastFailureLeavesNoRecord(t *testing.T) {
	e, l, node, _, id := newEngineFixture(t)
	node.mu.Lock()
	node.refuse = true
	node.mu.Unlock()

	_, err := e.Send(context.Background(), id, recipientAddress, 1_000_000, "")
	require.Error(t, err)

	txs, err := l.GetTransactions(id, model.TransactionFilter{Type: model.TransactionTypeSent}, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)

	spendable, _ := l.SpendableMicro(id)
	assert.Equal(t, uint64(10_000_000), spendable)
}

func TestConcurrentSendsCannotOverdraw(t *testing.T) {
	e, l, _, _, id := newEngineFixture(t)

	// Two sends that each fit alone but not together. Exactly one wins.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.Send(context.Background(), id, recipientAddress, 6_000_000, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, model.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded)

	spendable, err := l.SpendableMicro(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_999_000), spendable)
}

func TestMonitorConfirmsTransaction(t *testing.T) {
	e, l, node, bus, id := newEngineFixture(t)

	settled := make(chan event.TransactionSettled, 1)
	event.Subscribe(bus, func(ev event.TransactionSettled) { settled <- ev })

	tx, err := e.Send(context.Background(), id, recipientAddress, 2_000_000, "")
	require.NoError(t, err)

	node.mu.Lock()
	node.statuses[tx.TransactionID] = "confirmed"
	node.mu.Unlock()

	select {
	case ev := <-settled:
		assert.True(t, ev.Confirmed)
		assert.Equal(t, tx.TransactionID, ev.TransactionID)
	case <-time.After(30 * time.Second):
		t.Fatal("transaction never settled")
	}

	stored, err := l.GetTransaction(id, tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, stored.Status)
	assert.Equal(t, uint64(101), stored.BlockHeight)

	bal, _ := l.BalanceMicro(id)
	assert.Equal(t, uint64(7_999_000), bal)
}

func TestSendUsesContactAddress(t *testing.T) {
	e, l, _, _, id := newEngineFixture(t)
	require.NoError(t, l.AddContact(id, model.Contact{Name: "Alice", Address: "aleo1alice"}))

	_, err := e.Send(context.Background(), id, "aleo1alice", 1_000_000, "")
	require.NoError(t, err)

	contacts, err := l.Contacts(id)
	require.NoError(t, err)
	assert.False(t, contacts[0].LastUsed.IsZero())
}
