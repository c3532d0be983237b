package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashezusa/aleo-GUI-wallet/internal/keystore"
	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

// AddContact appends an address book entry. The address must look like an
// Aleo address and be unique within the account; it is immutable afterwards.
func (l *Ledger) AddContact(accountID string, contact model.Contact) error {
	if contact.Name == "" {
		return fmt.Errorf("%w: contact name is empty", model.ErrInvalidFormat)
	}
	if !keystore.LooksLikeAddress(contact.Address) {
		return fmt.Errorf("%w: contact address %q", model.ErrInvalidFormat, contact.Address)
	}

	l.mu.Lock()
	acct, ok := l.accounts[accountID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	for _, existing := range acct.Contacts {
		if existing.Address == contact.Address {
			l.mu.Unlock()
			return fmt.Errorf("%w: contact with address %s already exists", model.ErrInvalidFormat, contact.Address)
		}
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}
	contact.LastUsed = time.Time{}
	acct.Contacts = append(acct.Contacts, contact)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snap)
}

// UpdateContact edits the mutable fields (name, description) of the contact
// with the given address.
func (l *Ledger) UpdateContact(accountID, address string, name, description *string) error {
	l.mu.Lock()
	acct, ok := l.accounts[accountID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	contact := findContact(acct, address)
	if contact == nil {
		l.mu.Unlock()
		return fmt.Errorf("%w: contact %s", model.ErrNotFound, address)
	}
	if name != nil {
		if *name == "" {
			l.mu.Unlock()
			return fmt.Errorf("%w: contact name is empty", model.ErrInvalidFormat)
		}
		contact.Name = *name
	}
	if description != nil {
		contact.Description = *description
	}
	snap := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snap)
}

// RemoveContact deletes the contact with the given address.
func (l *Ledger) RemoveContact(accountID, address string) error {
	l.mu.Lock()
	acct, ok := l.accounts[accountID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	idx := -1
	for i := range acct.Contacts {
		if acct.Contacts[i].Address == address {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: contact %s", model.ErrNotFound, address)
	}
	acct.Contacts = append(acct.Contacts[:idx], acct.Contacts[idx+1:]...)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snap)
}

// Contacts returns all contacts of the account.
func (l *Ledger) Contacts(accountID string) ([]model.Contact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	return append([]model.Contact(nil), acct.Contacts...), nil
}

// SearchContacts matches the query case-insensitively against contact names
// and addresses. An empty query returns all contacts.
func (l *Ledger) SearchContacts(accountID, query string) ([]model.Contact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	q := strings.ToLower(query)
	out := make([]model.Contact, 0, len(acct.Contacts))
	for _, c := range acct.Contacts {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Address), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

// MarkContactUsed stamps the contact's last-used time. Sending to an
// unknown address is not an error; the call is a no-op then.
func (l *Ledger) MarkContactUsed(accountID, address string) error {
	l.mu.Lock()
	acct, ok := l.accounts[accountID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	contact := findContact(acct, address)
	if contact == nil {
		l.mu.Unlock()
		return nil
	}
	contact.LastUsed = time.Now().UTC()
	snap := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snap)
}

// ExportContacts serializes the account's address book as JSON.
func (l *Ledger) ExportContacts(accountID string) (string, error) {
	contacts, err := l.Contacts(accountID)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(contacts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal contacts: %w", err)
	}
	return string(raw), nil
}

// ImportContacts merges a JSON contact list into the account, skipping
// entries with invalid addresses or addresses already present. Returns the
// number of contacts added.
func (l *Ledger) ImportContacts(accountID, data string) (int, error) {
	var contacts []model.Contact
	if err := json.Unmarshal([]byte(data), &contacts); err != nil {
		return 0, fmt.Errorf("%w: contacts payload is not valid JSON", model.ErrInvalidFormat)
	}

	added := 0
	for _, c := range contacts {
		if c.Name == "" || !keystore.LooksLikeAddress(c.Address) {
			continue
		}
		if err := l.AddContact(accountID, c); err == nil {
			added++
		}
	}
	return added, nil
}

func findContact(acct *model.Account, address string) *model.Contact {
	for i := range acct.Contacts {
		if acct.Contacts[i].Address == address {
			return &acct.Contacts[i]
		}
	}
	return nil
}
