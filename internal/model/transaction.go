package model

import "time"

// TransactionType transaction direction relative to the owning account
type TransactionType string

const (
	TransactionTypeSent     TransactionType = "Sent"
	TransactionTypeReceived TransactionType = "Received"
)

// TransactionStatus lifecycle state of a transaction
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "Pending"
	StatusConfirmed TransactionStatus = "Confirmed"
	StatusFailed    TransactionStatus = "Failed"
)

// Terminal reports whether s is a final state.
func (s TransactionStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Transaction is one entry in an account history, uniquely identified by
// TransactionID. Amounts are microcredits. Fee is only meaningful for Sent.
type Transaction struct {
	TransactionID string            `json:"transactionId"`
	Type          TransactionType   `json:"type"`
	Counterparty  string            `json:"counterparty"` // sender for Received, recipient for Sent
	AmountMicro   uint64            `json:"amount"`
	FeeMicro      uint64            `json:"fee"`
	Memo          string            `json:"memo,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	ConfirmedAt   *time.Time        `json:"confirmedAt,omitempty"`
	Status        TransactionStatus `json:"status"`
	BlockHeight   uint64            `json:"blockHeight,omitempty"`
}

// TransactionFilter narrows GetTransactions results. Zero values match all.
type TransactionFilter struct {
	Type   TransactionType
	Status TransactionStatus
}

// Matches reports whether tx passes the filter.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	return true
}
