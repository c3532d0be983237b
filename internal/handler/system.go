package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
	"github.com/hashezusa/aleo-GUI-wallet/internal/price"
)

// Unlock handles POST /security/unlock.
// @Summary      Unlock the wallet
// @Description  Verifies the master password and opens an authenticated session
// @Tags         security
// @Accept       json
// @Produce      json
// @Param        request  body      model.AuthRequest  true  "Master password"
// @Success      200      {object}  model.SecurityStatusResponse
// @Router       /security/unlock [post]
func (h *WalletHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidFormat)
		return
	}
	if err := h.gate.Verify([]byte(req.Password)); err != nil {
		writeError(w, err)
		return
	}
	h.securityStatus(w)
}

// LockWallet handles POST /security/lock.
// @Summary      Lock the wallet
// @Description  Drops the authenticated session immediately
// @Tags         security
// @Produce      json
// @Success      200  {object}  model.SecurityStatusResponse
// @Router       /security/lock [post]
func (h *WalletHandler) LockWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}
	h.gate.Lock()
	h.securityStatus(w)
}

// SecurityStatus handles GET /security/status.
// @Summary      Security status
// @Description  Reports protection, lockout, and vault encryption state
// @Tags         security
// @Produce      json
// @Success      200  {object}  model.SecurityStatusResponse
// @Router       /security/status [get]
func (h *WalletHandler) SecurityStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}
	h.securityStatus(w)
}

func (h *WalletHandler) securityStatus(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, model.SecurityStatusResponse{
		Protected: h.gate.IsProtected(),
		Locked:    h.gate.IsLocked(),
		Encrypted: h.store.Encrypted(),
	})
}

// ChangePassword handles POST /security/password. The master password and
// the vault encryption key change together so they never drift apart.
// @Summary      Change the master password
// @Tags         security
// @Accept       json
// @Produce      json
// @Param        request  body      model.ChangePasswordRequest  true  "Old and new passwords"
// @Success      200      {object}  model.SecurityStatusResponse
// @Router       /security/password [post]
func (h *WalletHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidFormat)
		return
	}
	if err := h.gate.ChangePassword([]byte(req.OldPassword), []byte(req.NewPassword)); err != nil {
		writeError(w, err)
		return
	}
	h.store.EnableEncryption([]byte(req.NewPassword))
	if err := h.store.Persist(h.ledger.Snapshot()); err != nil {
		writeError(w, err)
		return
	}
	h.securityStatus(w)
}

// EnableProtection handles POST /security/enable: sets the master password
// and encrypts the vault file.
// @Summary      Enable password protection
// @Tags         security
// @Accept       json
// @Produce      json
// @Param        request  body      model.AuthRequest  true  "New master password"
// @Success      200      {object}  model.SecurityStatusResponse
// @Router       /security/enable [post]
func (h *WalletHandler) EnableProtection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidFormat)
		return
	}
	if err := h.gate.SetPassword([]byte(req.Password)); err != nil {
		writeError(w, err)
		return
	}
	h.store.EnableEncryption([]byte(req.Password))
	if err := h.store.Persist(h.ledger.Snapshot()); err != nil {
		writeError(w, err)
		return
	}
	h.securityStatus(w)
}

// DisableProtection handles POST /security/disable: verifies the password,
// turns protection off, and rewrites the vault in plaintext.
// @Summary      Disable password protection
// @Tags         security
// @Accept       json
// @Produce      json
// @Param        request  body      model.AuthRequest  true  "Current master password"
// @Success      200      {object}  model.SecurityStatusResponse
// @Router       /security/disable [post]
func (h *WalletHandler) DisableProtection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidFormat)
		return
	}
	if err := h.gate.DisableProtection([]byte(req.Password)); err != nil {
		writeError(w, err)
		return
	}
	h.store.DisableEncryption()
	if err := h.store.Persist(h.ledger.Snapshot()); err != nil {
		writeError(w, err)
		return
	}
	h.securityStatus(w)
}

// NetworkStatus handles GET /network/status.
// @Summary      Network status
// @Description  Node connectivity, chain height, head hash, and last sync time
// @Tags         network
// @Produce      json
// @Success      200  {object}  model.NetworkStatusResponse
// @Router       /network/status [get]
func (h *WalletHandler) NetworkStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	st := h.syncer.Status()
	resp := model.NetworkStatusResponse{
		Connected:    st.Connected,
		LatestHeight: st.ChainHeight,
	}
	if !st.LastSync.IsZero() {
		resp.LastSyncTime = st.LastSync.Unix()
	}
	if st.Connected {
		if hash, err := h.query.LatestHash(r.Context()); err == nil {
			resp.LatestHash = hash
		}
		if status, err := h.query.ChainStatus(r.Context()); err == nil {
			resp.Peers = status.PeerCount
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Price handles GET /price.
// @Summary      Market price
// @Description  Latest Aleo price in USD from the price tracker
// @Tags         network
// @Produce      json
// @Success      200  {object}  model.PriceResponse
// @Router       /price [get]
func (h *WalletHandler) Price(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	quote, ok := h.tracker.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, model.ErrorResponse{Error: "no price quote yet"})
		return
	}
	writeJSON(w, http.StatusOK, model.PriceResponse{
		Symbol:    "ALEO",
		USD:       price.FormatUSD(quote.USD),
		UpdatedAt: quote.At,
	})
}

// Backup handles POST /wallet/backup: copies the wallet file as-is.
// @Summary      Back up the wallet file
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.BackupRequest  true  "Destination path"
// @Success      200      {object}  map[string]bool
// @Router       /wallet/backup [post]
func (h *WalletHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.BackupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, model.ErrInvalidFormat)
		return
	}
	if err := h.gate.Authorize(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.Backup(req.Path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"backedUp": true})
}

// Restore handles POST /wallet/restore: replaces the in-memory ledger with
// the backup's contents and persists it as the live wallet file.
// @Summary      Restore the wallet from a backup
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.RestoreRequest  true  "Backup path and password for encrypted backups"
// @Success      200      {object}  map[string]int
// @Router       /wallet/restore [post]
func (h *WalletHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, model.ErrInvalidFormat)
		return
	}
	if err := h.gate.Authorize(); err != nil {
		writeError(w, err)
		return
	}

	data, err := h.store.Restore(req.Path, []byte(req.Password))
	if err != nil {
		writeError(w, err)
		return
	}
	h.ledger.Load(data)
	if err := h.store.Persist(h.ledger.Snapshot()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"accounts": len(data.Accounts)})
}
