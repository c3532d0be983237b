// The tests live outside the package so they can stand the real router up:
// importing api from a handler-internal test would cycle back into handler.
package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hashezusa/aleo-GUI-wallet/internal/api"
	"github.com/hashezusa/aleo-GUI-wallet/internal/chain"
	"github.com/hashezusa/aleo-GUI-wallet/internal/engine"
	"github.com/hashezusa/aleo-GUI-wallet/internal/event"
	"github.com/hashezusa/aleo-GUI-wallet/internal/handler"
	"github.com/hashezusa/aleo-GUI-wallet/internal/ledger"
	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
	"github.com/hashezusa/aleo-GUI-wallet/internal/price"
	"github.com/hashezusa/aleo-GUI-wallet/internal/security"
	"github.com/hashezusa/aleo-GUI-wallet/internal/signer"
	"github.com/hashezusa/aleo-GUI-wallet/internal/vault"
)

// quietNode satisfies the chain interface without a network.
type quietNode struct{}

func (quietNode) LatestHeight(ctx context.Context) (uint64, error) { return 1234, nil }
func (quietNode) LatestHash(ctx context.Context) (string, error)   { return "ab1head", nil }
func (quietNode) ChainStatus(ctx context.Context) (*chain.ChainStatus, error) {
	return &chain.ChainStatus{Height: 1234, Synced: true, PeerCount: 7}, nil
}
func (quietNode) GetTransaction(ctx context.Context, txID string) (*chain.TransactionDetails, error) {
	return nil, model.ErrNotFound
}
func (quietNode) TransactionsForAddress(ctx context.Context, address string, from, to uint64) ([]chain.TransactionDetails, error) {
	return nil, nil
}
func (quietNode) BroadcastTransaction(ctx context.Context, payload json.RawMessage) (string, error) {
	return "at1broadcast", nil
}

type fixture struct {
	server *httptest.Server
	ledger *ledger.Ledger
	gate   *security.Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	store := vault.NewStore(filepath.Join(dir, "aleo_wallet.dat"), vault.DefaultIterations)
	l := ledger.New(zap.NewNop(), store)
	gate, err := security.NewGate(filepath.Join(dir, "security_config.json"))
	require.NoError(t, err)

	bus := event.NewBus()
	node := quietNode{}
	syncer := chain.NewSyncer(zap.NewNop(), node, l, bus)
	eng := engine.New(zap.NewNop(), node, l, signer.NewLocal(), bus)
	t.Cleanup(eng.Close)
	tracker := price.NewTracker(nil, bus)

	h := handler.NewWalletHandler(l, eng, syncer, node, gate, store, tracker)
	srv := httptest.NewServer(api.SetupRouter(h))
	t.Cleanup(srv.Close)

	return &fixture{server: srv, ledger: l, gate: gate}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestGenerateAndListAccounts(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/accounts", model.GenerateRequest{Name: "Main"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "Main", created.Name)
	assert.Regexp(t, "^aleo1", created.Address)
	assert.Equal(t, "0.000000", created.Balance)

	resp, body = f.do(t, http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	// The list never carries private keys.
	assert.NotContains(t, string(body), "privateKey")
}

func TestImportRejectsMalformedKey(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodPost, "/accounts/import", model.ImportRequest{PrivateKey: "garbage"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportDuplicateConflicts(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/accounts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &created))

	acct, err := f.ledger.GetAccount(created.ID)
	require.NoError(t, err)

	resp, _ = f.do(t, http.MethodPost, "/accounts/import", model.ImportRequest{PrivateKey: acct.PrivateKey})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSendFlow(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/accounts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var acct model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &acct))

	require.NoError(t, f.ledger.RecordTransaction(acct.ID, model.Transaction{
		TransactionID: "at1funding",
		Type:          model.TransactionTypeReceived,
		Counterparty:  "aleo1peer",
		AmountMicro:   10_000_000,
		Status:        model.StatusConfirmed,
	}))

	resp, body = f.do(t, http.MethodPost, "/accounts/"+acct.ID+"/send", model.SendRequest{
		Recipient: "aleo1peeraddresspeeraddresspeeraddresspeeraddresspeeraddres",
		Amount:    "4.0",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var sent model.SendResponse
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "at1broadcast", sent.TxID)
	assert.Equal(t, "0.001000", sent.Fee)

	// Over-spend rejected.
	resp, _ = f.do(t, http.MethodPost, "/accounts/"+acct.ID+"/send", model.SendRequest{
		Recipient: "aleo1peeraddresspeeraddresspeeraddresspeeraddresspeeraddres",
		Amount:    "9.0",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// An amount so large that adding the fee wraps uint64 is still rejected.
	resp, _ = f.do(t, http.MethodPost, "/accounts/"+acct.ID+"/send", model.SendRequest{
		Recipient: "aleo1peeraddresspeeraddresspeeraddresspeeraddresspeeraddres",
		Amount:    "18446744073709.551115",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/accounts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var acct model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &acct))

	require.NoError(t, f.ledger.RecordTransaction(acct.ID, model.Transaction{
		TransactionID: "at1rx",
		Type:          model.TransactionTypeReceived,
		Counterparty:  "aleo1peer",
		AmountMicro:   10_000_000,
		Status:        model.StatusConfirmed,
	}))

	resp, body = f.do(t, http.MethodGet, "/accounts/"+acct.ID+"/transactions?type=Received", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist model.HistoryResponse
	require.NoError(t, json.Unmarshal(body, &hist))
	assert.Equal(t, "10.000000", hist.Balance)
	require.Len(t, hist.Transactions, 1)
	assert.Equal(t, "10.000000", hist.Transactions[0].Amount)
}

func TestContactsEndpoints(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/accounts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var acct model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &acct))
	base := "/accounts/" + acct.ID + "/contacts"

	resp, _ = f.do(t, http.MethodPost, base, model.ContactRequest{Name: "Alice", Address: "aleo1alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate address rejected.
	resp, _ = f.do(t, http.MethodPost, base, model.ContactRequest{Name: "Alice2", Address: "aleo1alice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, base+"?q=ALICE", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var contacts []model.Contact
	require.NoError(t, json.Unmarshal(body, &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, "Alice", contacts[0].Name)

	resp, _ = f.do(t, http.MethodDelete, base+"/aleo1alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &contacts))
	assert.Empty(t, contacts)
}

func TestExportRequiresPassword(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gate.SetPassword([]byte("master")))

	resp, body := f.do(t, http.MethodPost, "/accounts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var acct model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &acct))

	resp, _ = f.do(t, http.MethodPost, "/accounts/"+acct.ID+"/export/private", model.AuthRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/accounts/"+acct.ID+"/export/private", model.AuthRequest{Password: "master"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var exported model.ExportKeyResponse
	require.NoError(t, json.Unmarshal(body, &exported))
	assert.Regexp(t, "^APrivateKey1", exported.Key)
}

func TestEncryptedExportImportRoundTrip(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gate.SetPassword([]byte("master")))

	resp, body := f.do(t, http.MethodPost, "/accounts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var acct model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &acct))

	resp, body = f.do(t, http.MethodPost, "/accounts/"+acct.ID+"/export/private", model.ExportKeyRequest{
		Password: "master", Encrypt: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var exported model.ExportKeyResponse
	require.NoError(t, json.Unmarshal(body, &exported))
	assert.Regexp(t, "^ENCRYPTED:", exported.Key)

	// Re-importing the wrapped key lands on the same address.
	require.NoError(t, f.ledger.DeleteAccount(acct.ID))
	resp, body = f.do(t, http.MethodPost, "/accounts/import", model.ImportRequest{
		PrivateKey: exported.Key, Password: "master",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var imported model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &imported))
	assert.Equal(t, acct.Address, imported.Address)
}

func TestSecurityEndpoints(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/security/enable", model.AuthRequest{Password: "master"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st model.SecurityStatusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.True(t, st.Protected)
	assert.True(t, st.Encrypted)

	resp, _ = f.do(t, http.MethodPost, "/security/lock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/security/unlock", model.AuthRequest{Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/security/unlock", model.AuthRequest{Password: "master"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/security/password", model.ChangePasswordRequest{
		OldPassword: "master", NewPassword: "better",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = f.do(t, http.MethodPost, "/security/disable", model.AuthRequest{Password: "better"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNetworkStatusEndpoint(t *testing.T) {
	f := newFixture(t)

	// Syncer has not probed yet, so the node reads as disconnected.
	resp, body := f.do(t, http.MethodGet, "/network/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st model.NetworkStatusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.False(t, st.Connected)
}

func TestPriceBeforeFirstFetch(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/price", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnknownAccount(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/accounts/nope/balance", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQREndpoint(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/accounts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var acct model.AccountResponse
	require.NoError(t, json.Unmarshal(body, &acct))

	resp, body = f.do(t, http.MethodGet, "/accounts/"+acct.ID+"/qr", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var qr model.QRResponse
	require.NoError(t, json.Unmarshal(body, &qr))
	assert.Equal(t, acct.Address, qr.Address)
	assert.NotEmpty(t, qr.QR)
}
