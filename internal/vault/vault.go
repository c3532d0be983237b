// Package vault owns the persisted wallet file format: a JSON
// {version, accounts} document, optionally encrypted as
// [16-byte salt][16-byte iv][ciphertext]. Decryption is authenticated, so a
// wrong password fails closed instead of returning garbage.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/renameio"
	"golang.org/x/crypto/pbkdf2"

	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

const (
	// SaltLen per-vault random salt, stored in the clear ahead of the
	// ciphertext.
	SaltLen = 16

	// ivLen the GCM nonce. 16 bytes rather than the default 12 keeps the
	// on-disk layout at salt||iv||ciphertext with fixed 16-byte fields.
	ivLen = 16

	// DefaultIterations PBKDF2-SHA256 work factor. Tunable upward, never
	// below MinIterations.
	DefaultIterations = 100_000
	MinIterations     = 100_000

	keyLen = 32
)

// DeriveKey derives a symmetric key from a password with PBKDF2-SHA256.
func DeriveKey(password, salt []byte, iterations int) []byte {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}

// Encrypt seals plaintext under a fresh salt and iv.
// Output layout: salt || iv || ciphertext.
func Encrypt(plaintext, password []byte, iterations int) ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	iv := make([]byte, ivLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	aesGCM, err := newGCM(password, salt, iterations)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, SaltLen+ivLen+len(plaintext)+aesGCM.Overhead())
	out = append(out, salt...)
	out = append(out, iv...)
	out = aesGCM.Seal(out, iv, plaintext, nil)
	return out, nil
}

// Decrypt opens a salt||iv||ciphertext blob. A wrong password surfaces as
// ErrAuthenticationFailed via the GCM tag check.
func Decrypt(blob, password []byte, iterations int) ([]byte, error) {
	if len(blob) < SaltLen+ivLen+1 {
		return nil, fmt.Errorf("%w: vault blob too short", model.ErrInvalidFormat)
	}

	salt := blob[:SaltLen]
	iv := blob[SaltLen : SaltLen+ivLen]
	ciphertext := blob[SaltLen+ivLen:]

	aesGCM, err := newGCM(password, salt, iterations)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, model.ErrAuthenticationFailed
	}
	return plaintext, nil
}

func newGCM(password, salt []byte, iterations int) (cipher.AEAD, error) {
	key := DeriveKey(password, salt, iterations)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// Store persists the account set to a single wallet file, encrypted or
// plaintext. Mode switches re-serialize the whole vault; saves are atomic
// (temp file + rename) so a crash mid-write never corrupts the last good
// copy.
type Store struct {
	mu         sync.Mutex
	path       string
	iterations int
	encrypted  bool
	password   []byte
}

// NewStore creates a store for the wallet file at path.
func NewStore(path string, iterations int) *Store {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	return &Store{path: path, iterations: iterations}
}

// Encrypted reports whether saves are currently encrypted.
func (s *Store) Encrypted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encrypted
}

// Iterations returns the configured KDF work factor.
func (s *Store) Iterations() int {
	return s.iterations
}

// Load reads the wallet file. A missing file yields an empty vault. The
// second return value reports whether the file is encrypted; when it is,
// the caller must follow up with Unlock.
func (s *Store) Load() (*model.VaultData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &model.VaultData{Version: model.VaultVersion}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read wallet file: %w", err)
	}

	data, ok := parseVault(raw)
	if ok {
		s.encrypted = false
		return data, false, nil
	}

	// Not structured JSON: assume encrypted.
	s.encrypted = true
	return nil, true, nil
}

// Unlock decrypts an encrypted wallet file and remembers the password for
// subsequent saves.
func (s *Store) Unlock(password []byte) (*model.VaultData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}

	plaintext, err := Decrypt(raw, password, s.iterations)
	if err != nil {
		return nil, err
	}

	data, ok := parseVault(plaintext)
	if !ok {
		return nil, fmt.Errorf("%w: decrypted vault is not valid", model.ErrInvalidFormat)
	}

	s.encrypted = true
	s.password = append([]byte(nil), password...)
	return data, nil
}

// EnableEncryption switches subsequent saves to encrypted mode. The caller
// must follow with Persist to rewrite the file under the new mode.
func (s *Store) EnableEncryption(password []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encrypted = true
	s.password = append([]byte(nil), password...)
}

// DisableEncryption switches subsequent saves back to plaintext.
func (s *Store) DisableEncryption() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encrypted = false
	clear(s.password)
	s.password = nil
}

// Persist writes the whole vault in the current mode. Implements
// ledger.Persister.
func (s *Store) Persist(data *model.VaultData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data.Version == "" {
		data.Version = model.VaultVersion
	}

	plaintext, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	out := plaintext
	if s.encrypted {
		out, err = Encrypt(plaintext, s.password, s.iterations)
		if err != nil {
			return fmt.Errorf("failed to encrypt vault: %w", err)
		}
	}

	if err := renameio.WriteFile(s.path, out, 0o600); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return nil
}

// Backup copies the current wallet file bytes (encrypted form included) to
// backupPath.
func (s *Store) Backup(backupPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read wallet file: %w", err)
	}
	if err := renameio.WriteFile(backupPath, raw, 0o600); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return nil
}

// Restore loads a backup file, decrypting it with password when it is not
// plaintext, and returns the recovered vault. An encrypted backup switches
// the store to the backup's password; a plaintext backup leaves the store's
// current encryption mode alone, so restoring an old unencrypted backup
// into a protected wallet never downgrades it to plaintext on disk.
func (s *Store) Restore(backupPath string, password []byte) (*model.VaultData, error) {
	raw, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	if data, ok := parseVault(raw); ok {
		return data, nil
	}

	if len(password) == 0 {
		return nil, model.ErrAuthenticationFailed
	}

	plaintext, err := Decrypt(raw, password, s.iterations)
	if err != nil {
		return nil, err
	}
	data, ok := parseVault(plaintext)
	if !ok {
		return nil, fmt.Errorf("%w: decrypted backup is not valid", model.ErrInvalidFormat)
	}

	s.mu.Lock()
	s.encrypted = true
	s.password = append([]byte(nil), password...)
	s.mu.Unlock()
	return data, nil
}

// parseVault attempts the structured plaintext parse. Anything that does not
// decode to a vault document is treated as ciphertext by callers.
func parseVault(raw []byte) (*model.VaultData, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var data model.VaultData
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return nil, false
	}
	return &data, true
}
