package chain

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hashezusa/aleo-GUI-wallet/internal/event"
	"github.com/hashezusa/aleo-GUI-wallet/internal/ledger"
	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

const ownAddress = "aleo1owneraddressowneraddressowneraddressowneraddressownera"

// fakeNode is an in-memory QueryService.
type fakeNode struct {
	mu      sync.Mutex
	height  uint64
	txs     []TransactionDetails
	offline bool
	windows [][2]uint64
}

func (f *fakeNode) LatestHeight(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return 0, errors.New("connection refused")
	}
	return f.height, nil
}

func (f *fakeNode) LatestHash(ctx context.Context) (string, error) {
	return "ab1headhash", nil
}

func (f *fakeNode) GetTransaction(ctx context.Context, txID string) (*TransactionDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.txs {
		if f.txs[i].TransactionID == txID {
			tx := f.txs[i]
			return &tx, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeNode) TransactionsForAddress(ctx context.Context, address string, fromHeight, toHeight uint64) ([]TransactionDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errors.New("connection refused")
	}
	f.windows = append(f.windows, [2]uint64{fromHeight, toHeight})
	out := make([]TransactionDetails, 0, len(f.txs))
	for _, tx := range f.txs {
		if (tx.Sender == address || tx.Recipient == address) &&
			tx.BlockHeight >= fromHeight && tx.BlockHeight <= toHeight {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeNode) ChainStatus(ctx context.Context) (*ChainStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errors.New("connection refused")
	}
	return &ChainStatus{Height: f.height, Synced: true, PeerCount: 3}, nil
}

func (f *fakeNode) BroadcastTransaction(ctx context.Context, payload json.RawMessage) (string, error) {
	return "at1broadcast", nil
}

func newSyncFixture(t *testing.T, node *fakeNode) (*Syncer, *ledger.Ledger, *event.Bus, string) {
	t.Helper()
	l := ledger.New(zap.NewNop(), nil)
	acct, err := l.AddAccount(model.Account{
		Name:       "Main",
		PrivateKey: "APrivateKey1test",
		Address:    ownAddress,
	})
	require.NoError(t, err)

	bus := event.NewBus()
	s := NewSyncer(zap.NewNop(), node, l, bus)
	return s, l, bus, acct.ID
}

func TestSyncAccountIngestsWindow(t *testing.T) {
	node := &fakeNode{
		height: 5000,
		txs: []TransactionDetails{
			{TransactionID: "at1rx", Sender: "aleo1peer", Recipient: ownAddress,
				AmountMicro: 10_000_000, BlockHeight: 4500, Status: "confirmed", Timestamp: 1700000000},
			{TransactionID: "at1old", Sender: "aleo1peer", Recipient: ownAddress,
				AmountMicro: 99_000_000, BlockHeight: 100, Status: "confirmed", Timestamp: 1600000000},
			{TransactionID: "at1other", Sender: "aleo1peer", Recipient: "aleo1stranger",
				AmountMicro: 1_000_000, BlockHeight: 4600, Status: "confirmed", Timestamp: 1700000100},
		},
	}
	s, l, _, id := newSyncFixture(t, node)

	require.NoError(t, s.SyncAccount(context.Background(), id))

	// Only the in-window transaction for our address landed.
	bal, err := l.BalanceMicro(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), bal)

	// The scan asked for the trailing window.
	require.Len(t, node.windows, 1)
	assert.Equal(t, [2]uint64{4000, 5000}, node.windows[0])
}

func TestSyncAccountIsIdempotentAcrossPasses(t *testing.T) {
	node := &fakeNode{
		height: 5000,
		txs: []TransactionDetails{
			{TransactionID: "at1rx", Sender: "aleo1peer", Recipient: ownAddress,
				AmountMicro: 10_000_000, BlockHeight: 4500, Status: "confirmed", Timestamp: 1700000000},
		},
	}
	s, l, bus, id := newSyncFixture(t, node)

	observed := 0
	event.Subscribe(bus, func(event.TransactionObserved) { observed++ })

	require.NoError(t, s.SyncAccount(context.Background(), id))
	require.NoError(t, s.SyncAccount(context.Background(), id))
	require.NoError(t, s.SyncAccount(context.Background(), id))

	bal, _ := l.BalanceMicro(id)
	assert.Equal(t, uint64(10_000_000), bal)
	assert.Equal(t, 1, observed, "re-observing a known transaction must not re-announce it")
}

func TestSyncPromotesPendingToConfirmed(t *testing.T) {
	node := &fakeNode{
		height: 5000,
		txs: []TransactionDetails{
			{TransactionID: "at1tx", Sender: "aleo1peer", Recipient: ownAddress,
				AmountMicro: 2_000_000, BlockHeight: 4500, Status: "pending", Timestamp: 1700000000},
		},
	}
	s, l, _, id := newSyncFixture(t, node)

	require.NoError(t, s.SyncAccount(context.Background(), id))
	bal, _ := l.BalanceMicro(id)
	assert.Equal(t, uint64(0), bal)

	node.mu.Lock()
	node.txs[0].Status = "confirmed"
	node.mu.Unlock()

	require.NoError(t, s.SyncAccount(context.Background(), id))
	bal, _ = l.BalanceMicro(id)
	assert.Equal(t, uint64(2_000_000), bal)
}

func TestConnectivityEventsAreEdgeTriggered(t *testing.T) {
	node := &fakeNode{height: 100}
	s, _, bus, _ := newSyncFixture(t, node)

	var transitions []bool
	event.Subscribe(bus, func(ev event.ConnectivityChanged) {
		transitions = append(transitions, ev.Connected)
	})

	ctx := context.Background()
	assert.True(t, s.CheckConnectivity(ctx))
	assert.True(t, s.CheckConnectivity(ctx)) // no repeat event

	node.mu.Lock()
	node.offline = true
	node.mu.Unlock()
	assert.False(t, s.CheckConnectivity(ctx))
	assert.False(t, s.CheckConnectivity(ctx)) // no repeat event

	node.mu.Lock()
	node.offline = false
	node.mu.Unlock()
	assert.True(t, s.CheckConnectivity(ctx))

	assert.Equal(t, []bool{true, false, true}, transitions)
}

func TestSyncAllOfflineFailsFast(t *testing.T) {
	node := &fakeNode{offline: true}
	s, _, _, _ := newSyncFixture(t, node)

	err := s.SyncAll(context.Background())
	assert.ErrorIs(t, err, model.ErrTransport)
	assert.True(t, s.Status().LastSync.IsZero())
}

func TestSyncAllAdvancesLastSyncOnSuccess(t *testing.T) {
	node := &fakeNode{height: 100}
	s, _, _, _ := newSyncFixture(t, node)

	require.NoError(t, s.SyncAll(context.Background()))
	st := s.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, uint64(100), st.ChainHeight)
	assert.False(t, st.LastSync.IsZero())
}

func TestBalanceChangeEvent(t *testing.T) {
	node := &fakeNode{
		height: 5000,
		txs: []TransactionDetails{
			{TransactionID: "at1rx", Sender: "aleo1peer", Recipient: ownAddress,
				AmountMicro: 7_000_000, BlockHeight: 4900, Status: "confirmed", Timestamp: 1700000000},
		},
	}
	s, _, bus, id := newSyncFixture(t, node)

	var balances []uint64
	event.Subscribe(bus, func(ev event.BalanceChanged) { balances = append(balances, ev.BalanceMicro) })

	require.NoError(t, s.SyncAccount(context.Background(), id))
	require.NoError(t, s.SyncAccount(context.Background(), id)) // unchanged, no event

	assert.Equal(t, []uint64{7_000_000}, balances)
}
