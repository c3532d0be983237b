package model

import "time"

// Account is a single Aleo account held by the wallet. The private key never
// leaves the vault boundary except through the explicit export calls.
type Account struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	PrivateKey   string        `json:"privateKey"`
	ViewKey      string        `json:"viewKey"`
	Address      string        `json:"address"`
	BalanceMicro uint64        `json:"balance"` // microcredits, derived from confirmed transactions
	CreatedAt    time.Time     `json:"createdAt"`
	Transactions []Transaction `json:"transactions"` // newest first
	Contacts     []Contact     `json:"contacts"`
}

// Clone returns a deep copy so callers can read account state without
// holding the ledger lock.
func (a *Account) Clone() *Account {
	out := *a
	out.Transactions = make([]Transaction, len(a.Transactions))
	copy(out.Transactions, a.Transactions)
	out.Contacts = make([]Contact, len(a.Contacts))
	copy(out.Contacts, a.Contacts)
	return &out
}

// Contact is an address book entry. The address is fixed at creation;
// name and description stay editable.
type Contact struct {
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUsed    time.Time `json:"lastUsed,omitempty"` // zero value means never used
}

// VaultData is the plaintext shape of the persisted wallet file.
type VaultData struct {
	Version  string    `json:"version"`
	Accounts []Account `json:"accounts"`
}

// VaultVersion is written into every saved wallet file.
const VaultVersion = "1.0"
