package model

import "time"

// GenerateRequest represents request for POST /accounts
type GenerateRequest struct {
	Name string `json:"name"`
}

// ImportRequest represents request for POST /accounts/import. PrivateKey may
// be a raw key or an ENCRYPTED: export, which requires Password to unwrap.
type ImportRequest struct {
	PrivateKey string `json:"privateKey" binding:"required"`
	Name       string `json:"name"`
	Password   string `json:"password"`
}

// AccountResponse is the public view of an account. Private key material is
// never included; use the export endpoints.
type AccountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	ViewKey   string    `json:"viewKey"`
	Balance   string    `json:"balance"` // credits as a decimal string
	CreatedAt time.Time `json:"createdAt"`
}

// BalanceResponse represents response for GET /accounts/{id}/balance
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Price   string `json:"price_usd,omitempty"`
	USD     string `json:"balance_in_usd,omitempty"`
}

// SendRequest represents request for POST /accounts/{id}/send
type SendRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Amount    string `json:"amount" binding:"required"` // credits as a decimal string
	Memo      string `json:"memo"`
}

// SendResponse represents response for POST /accounts/{id}/send
type SendResponse struct {
	TxID string `json:"txId"`
	Fee  string `json:"fee"`
}

// TransactionView is a Transaction with amounts rendered as decimal strings.
type TransactionView struct {
	TransactionID string     `json:"transactionId"`
	Type          string     `json:"type"`
	Counterparty  string     `json:"counterparty"`
	Amount        string     `json:"amount"`
	Fee           string     `json:"fee"`
	Memo          string     `json:"memo,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
	Status        string     `json:"status"`
	BlockHeight   uint64     `json:"blockHeight,omitempty"`
}

// HistoryResponse represents response for GET /accounts/{id}/transactions
type HistoryResponse struct {
	Address      string            `json:"address"`
	Balance      string            `json:"balance"`
	Transactions []TransactionView `json:"transactions"`
}

// ContactRequest represents request for POST /accounts/{id}/contacts
type ContactRequest struct {
	Name        string `json:"name" binding:"required"`
	Address     string `json:"address" binding:"required"`
	Description string `json:"description"`
}

// AuthRequest carries the master password for unlock and export calls.
type AuthRequest struct {
	Password string `json:"password" binding:"required"`
}

// ExportKeyRequest represents request for the key export endpoints. Encrypt
// wraps the exported private key under the password instead of returning it
// raw.
type ExportKeyRequest struct {
	Password string `json:"password" binding:"required"`
	Encrypt  bool   `json:"encrypt"`
}

// ChangePasswordRequest represents request for POST /security/password
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// SecurityStatusResponse represents response for GET /security/status
type SecurityStatusResponse struct {
	Protected bool `json:"protected"`
	Locked    bool `json:"locked"`
	Encrypted bool `json:"encrypted"`
}

// BackupRequest represents request for POST /wallet/backup
type BackupRequest struct {
	Path string `json:"path" binding:"required"`
}

// RestoreRequest represents request for POST /wallet/restore
type RestoreRequest struct {
	Path     string `json:"path" binding:"required"`
	Password string `json:"password"`
}

// ExportKeyResponse represents response for the key export endpoints.
type ExportKeyResponse struct {
	Key string `json:"key"`
}

// QRResponse represents response for GET /accounts/{id}/qr
type QRResponse struct {
	Address string `json:"address"`
	QR      string `json:"qr"` // base64-encoded PNG
}

// NetworkStatusResponse represents response for GET /network/status
type NetworkStatusResponse struct {
	Connected    bool   `json:"connected"`
	LatestHeight uint64 `json:"latestHeight"`
	LatestHash   string `json:"latestHash"`
	Peers        int    `json:"peers"`
	LastSyncTime int64  `json:"lastSyncTime"`
}

// PriceResponse represents response for GET /price
type PriceResponse struct {
	Symbol    string    `json:"symbol"`
	USD       string    `json:"usd"`
	UpdatedAt time.Time `json:"updatedAt"`
}
