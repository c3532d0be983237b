package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/hashezusa/aleo-GUI-wallet/internal/chain"
	"github.com/hashezusa/aleo-GUI-wallet/internal/common"
	"github.com/hashezusa/aleo-GUI-wallet/internal/engine"
	"github.com/hashezusa/aleo-GUI-wallet/internal/keystore"
	"github.com/hashezusa/aleo-GUI-wallet/internal/ledger"
	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
	"github.com/hashezusa/aleo-GUI-wallet/internal/price"
	"github.com/hashezusa/aleo-GUI-wallet/internal/security"
	"github.com/hashezusa/aleo-GUI-wallet/internal/vault"
)

// WalletHandler serves the wallet REST API.
type WalletHandler struct {
	ledger  *ledger.Ledger
	engine  *engine.Engine
	syncer  *chain.Syncer
	query   chain.QueryService
	gate    *security.Gate
	store   *vault.Store
	tracker *price.Tracker
}

// NewWalletHandler wires the handler against the wallet components.
func NewWalletHandler(l *ledger.Ledger, e *engine.Engine, s *chain.Syncer, q chain.QueryService, g *security.Gate, st *vault.Store, t *price.Tracker) *WalletHandler {
	return &WalletHandler{
		ledger:  l,
		engine:  e,
		syncer:  s,
		query:   q,
		gate:    g,
		store:   st,
		tracker: t,
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps sentinel errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidFormat), errors.Is(err, model.ErrInsufficientBalance):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrAuthenticationFailed):
		status = http.StatusUnauthorized
	case errors.Is(err, model.ErrLocked):
		status = http.StatusLocked
	case errors.Is(err, model.ErrTransport):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, model.ErrorResponse{Error: err.Error()})
}

func accountView(acct *model.Account) model.AccountResponse {
	return model.AccountResponse{
		ID:        acct.ID,
		Name:      acct.Name,
		Address:   acct.Address,
		ViewKey:   acct.ViewKey,
		Balance:   common.MicroToCredits(acct.BalanceMicro),
		CreatedAt: acct.CreatedAt,
	}
}

// Accounts handles /accounts: POST generates, GET lists.
// @Summary      Create or list accounts
// @Description  POST generates a fresh account; GET lists all accounts without key material
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request  body      model.GenerateRequest  false  "Account name"
// @Success      200      {array}   model.AccountResponse
// @Router       /accounts [get]
func (h *WalletHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts := h.ledger.ListAccounts()
		out := make([]model.AccountResponse, 0, len(accounts))
		for _, acct := range accounts {
			out = append(out, accountView(acct))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req model.GenerateRequest
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&req) // empty body means default name
		}
		material, err := keystore.Generate()
		if err != nil {
			writeError(w, err)
			return
		}
		stored, err := h.ledger.AddAccount(model.Account{
			Name:       req.Name,
			PrivateKey: material.PrivateKey,
			ViewKey:    material.ViewKey,
			Address:    material.Address,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, accountView(stored))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ImportAccount handles POST /accounts/import.
// @Summary      Import an account
// @Description  Derives the view key and address from a private key and registers the account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request  body      model.ImportRequest  true  "Private key and optional name"
// @Success      201      {object}  model.AccountResponse
// @Router       /accounts/import [post]
func (h *WalletHandler) ImportAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidFormat)
		return
	}

	var material keystore.Material
	var err error
	if keystore.IsEncryptedKey(req.PrivateKey) {
		material, err = keystore.ImportEncrypted(req.PrivateKey, []byte(req.Password), h.store.Iterations())
	} else {
		material, err = keystore.Import(req.PrivateKey)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.ledger.GetAccountByAddress(material.Address); err == nil {
		writeJSON(w, http.StatusConflict, model.ErrorResponse{Error: "account already exists"})
		return
	}

	stored, err := h.ledger.AddAccount(model.Account{
		Name:       req.Name,
		PrivateKey: material.PrivateKey,
		ViewKey:    material.ViewKey,
		Address:    material.Address,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountView(stored))
}

// AccountByID dispatches /accounts/{id} and its sub-resources.
func (h *WalletHandler) AccountByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/accounts/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, model.ErrNotFound)
		return
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "":
		h.account(w, r, id)
	case sub == "balance":
		h.balance(w, r, id)
	case sub == "transactions":
		h.transactions(w, r, id)
	case sub == "send":
		h.send(w, r, id)
	case sub == "qr":
		h.qr(w, r, id)
	case sub == "sync":
		h.syncAccount(w, r, id)
	case sub == "export/private" || sub == "export/view":
		h.exportKey(w, r, id, sub)
	case sub == "contacts" || strings.HasPrefix(sub, "contacts/"):
		h.contacts(w, r, id, strings.TrimPrefix(sub, "contacts"))
	default:
		writeError(w, model.ErrNotFound)
	}
}

// account handles GET, POST (rename), DELETE on /accounts/{id}.
func (h *WalletHandler) account(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		acct, err := h.ledger.GetAccount(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, accountView(acct))
	case http.MethodPost:
		var req model.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			writeError(w, model.ErrInvalidFormat)
			return
		}
		if err := h.ledger.UpdateAccount(id, ledger.AccountUpdate{Name: &req.Name}); err != nil {
			writeError(w, err)
			return
		}
		acct, err := h.ledger.GetAccount(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, accountView(acct))
	case http.MethodDelete:
		if err := h.gate.Authorize(); err != nil {
			writeError(w, err)
			return
		}
		if err := h.ledger.DeleteAccount(id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// balance handles GET /accounts/{id}/balance.
// @Summary      Get account balance
// @Description  Confirmed balance in credits, with USD valuation when a price quote is available
// @Tags         accounts
// @Produce      json
// @Success      200  {object}  model.BalanceResponse
// @Router       /accounts/{id}/balance [get]
func (h *WalletHandler) balance(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	acct, err := h.ledger.GetAccount(id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := model.BalanceResponse{
		Address: acct.Address,
		Balance: common.MicroToCredits(acct.BalanceMicro),
	}
	if quote, ok := h.tracker.Latest(); ok {
		resp.Price = price.FormatUSD(quote.USD)
		resp.USD = price.ValueUSD(acct.BalanceMicro, quote.USD)
	}
	writeJSON(w, http.StatusOK, resp)
}

// transactions handles GET /accounts/{id}/transactions.
// @Summary      Get account transactions
// @Description  Transaction history newest first with optional type, status, and limit filters
// @Tags         accounts
// @Produce      json
// @Param        type    query     string  false  "Sent or Received"
// @Param        status  query     string  false  "Pending, Confirmed, or Failed"
// @Param        limit   query     int     false  "Maximum entries"
// @Success      200     {object}  model.HistoryResponse
// @Router       /accounts/{id}/transactions [get]
func (h *WalletHandler) transactions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	var filter model.TransactionFilter
	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		filter.Type = model.TransactionType(typeStr)
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		filter.Status = model.TransactionStatus(statusStr)
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	acct, err := h.ledger.GetAccount(id)
	if err != nil {
		writeError(w, err)
		return
	}
	txs, err := h.ledger.GetTransactions(id, filter, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]model.TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, model.TransactionView{
			TransactionID: tx.TransactionID,
			Type:          string(tx.Type),
			Counterparty:  tx.Counterparty,
			Amount:        common.MicroToCredits(tx.AmountMicro),
			Fee:           common.MicroToCredits(tx.FeeMicro),
			Memo:          tx.Memo,
			CreatedAt:     tx.CreatedAt,
			ConfirmedAt:   tx.ConfirmedAt,
			Status:        string(tx.Status),
			BlockHeight:   tx.BlockHeight,
		})
	}
	writeJSON(w, http.StatusOK, model.HistoryResponse{
		Address:      acct.Address,
		Balance:      common.MicroToCredits(acct.BalanceMicro),
		Transactions: views,
	})
}

// send handles POST /accounts/{id}/send.
// @Summary      Send credits
// @Description  Creates, signs, and broadcasts a transfer; the fee is charged on top of the amount
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request  body      model.SendRequest  true  "Recipient, amount in credits, optional memo"
// @Success      200      {object}  model.SendResponse
// @Router       /accounts/{id}/send [post]
func (h *WalletHandler) send(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	if err := h.gate.Authorize(); err != nil {
		writeError(w, err)
		return
	}

	var req model.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidFormat)
		return
	}

	amountMicro, err := common.CreditsToMicro(req.Amount)
	if err != nil {
		writeError(w, fmt.Errorf("%w: amount %q", model.ErrInvalidFormat, req.Amount))
		return
	}

	tx, err := h.engine.Send(r.Context(), id, req.Recipient, amountMicro, req.Memo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SendResponse{
		TxID: tx.TransactionID,
		Fee:  common.MicroToCredits(tx.FeeMicro),
	})
}

// qr handles GET /accounts/{id}/qr.
// @Summary      Get address QR code
// @Description  Returns the account address as a base64-encoded PNG QR code
// @Tags         accounts
// @Produce      json
// @Success      200  {object}  model.QRResponse
// @Router       /accounts/{id}/qr [get]
func (h *WalletHandler) qr(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	acct, err := h.ledger.GetAccount(id)
	if err != nil {
		writeError(w, err)
		return
	}

	png, err := qrcode.Encode(acct.Address, qrcode.Medium, 256)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.QRResponse{
		Address: acct.Address,
		QR:      base64.StdEncoding.EncodeToString(png),
	})
}

// syncAccount handles POST /accounts/{id}/sync: a manual sync pass.
func (h *WalletHandler) syncAccount(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}
	if err := h.syncer.SyncAccount(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.syncer.Status())
}

// exportKey handles POST /accounts/{id}/export/private and export/view. Both
// require a verified session; the private key export additionally re-checks
// the password in the request body.
// @Summary      Export key material
// @Description  Returns the private or view key after password verification
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request  body      model.ExportKeyRequest  true  "Master password and optional encrypt flag"
// @Success      200      {object}  model.ExportKeyResponse
// @Router       /accounts/{id}/export/private [post]
func (h *WalletHandler) exportKey(w http.ResponseWriter, r *http.Request, id, sub string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.ExportKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidFormat)
		return
	}
	if err := h.gate.Verify([]byte(req.Password)); err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(); err != nil {
		writeError(w, err)
		return
	}

	acct, err := h.ledger.GetAccount(id)
	if err != nil {
		writeError(w, err)
		return
	}

	key := acct.ViewKey
	if sub == "export/private" {
		key = acct.PrivateKey
		if req.Encrypt {
			key, err = keystore.ExportEncrypted(key, []byte(req.Password), h.store.Iterations())
			if err != nil {
				writeError(w, err)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, model.ExportKeyResponse{Key: key})
}
