// Package keystore generates, imports, and validates Aleo-style key
// material. The derivation chain private key -> view key -> address is
// deterministic and one-way (each step hashes the previous secret), but it is
// a stand-in for the chain's real curve math: swapping in the production
// algorithm only touches this package and the signer oracle.
package keystore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
	"github.com/hashezusa/aleo-GUI-wallet/internal/vault"
)

const (
	PrivateKeyPrefix = "APrivateKey1"
	ViewKeyPrefix    = "AViewKey1"
	AddressPrefix    = "aleo1"

	seedLen = 32

	// Minimum total lengths for the syntactic format check. The bodies are
	// base58 (keys) or hex (address), so a 32-byte seed never encodes shorter
	// than these.
	minPrivateKeyLen = len(PrivateKeyPrefix) + 43
	minViewKeyLen    = len(ViewKeyPrefix) + 43
	minAddressLen    = 60

	addressBodyLen = 58

	// encryptedKeyPrefix marks a password-wrapped private key export.
	encryptedKeyPrefix = "ENCRYPTED:"
)

// Kind selects which format ValidateFormat checks.
type Kind int

const (
	KindPrivateKey Kind = iota
	KindViewKey
	KindAddress
)

// Material is a full derived key set for one account.
type Material struct {
	PrivateKey string
	ViewKey    string
	Address    string
}

// Generate creates fresh key material from a cryptographically secure
// random seed.
func Generate() (Material, error) {
	seed := make([]byte, seedLen)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return Material{}, fmt.Errorf("failed to generate seed: %w", err)
	}
	return deriveFromSeed(seed), nil
}

// Import derives the view key and address for an existing private key.
// The result is deterministic and identical to what Generate would have
// produced for the same seed.
func Import(privateKey string) (Material, error) {
	seed, err := seedFromPrivateKey(privateKey)
	if err != nil {
		return Material{}, err
	}
	return deriveFromSeed(seed), nil
}

// ValidateFormat checks prefix and length conventions for the given kind.
// This is a syntactic check only, not a cryptographic validity proof.
func ValidateFormat(material string, kind Kind) error {
	switch kind {
	case KindPrivateKey:
		if !strings.HasPrefix(material, PrivateKeyPrefix) || len(material) < minPrivateKeyLen {
			return fmt.Errorf("%w: private key must start with %q", model.ErrInvalidFormat, PrivateKeyPrefix)
		}
	case KindViewKey:
		if !strings.HasPrefix(material, ViewKeyPrefix) || len(material) < minViewKeyLen {
			return fmt.Errorf("%w: view key must start with %q", model.ErrInvalidFormat, ViewKeyPrefix)
		}
	case KindAddress:
		if !strings.HasPrefix(material, AddressPrefix) || len(material) < minAddressLen {
			return fmt.Errorf("%w: address must start with %q", model.ErrInvalidFormat, AddressPrefix)
		}
	default:
		return fmt.Errorf("%w: unknown key kind", model.ErrInvalidFormat)
	}
	return nil
}

// LooksLikeAddress is the lenient check used for address book entries, which
// may hold abbreviated or not-yet-funded addresses.
func LooksLikeAddress(address string) bool {
	return strings.HasPrefix(address, AddressPrefix) && len(address) > len(AddressPrefix)
}

// ExportEncrypted wraps a private key in the vault cipher under the given
// password. The caller must already hold an authenticated security session.
func ExportEncrypted(privateKey string, password []byte, iterations int) (string, error) {
	if err := ValidateFormat(privateKey, KindPrivateKey); err != nil {
		return "", err
	}
	blob, err := vault.Encrypt([]byte(privateKey), password, iterations)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt private key: %w", err)
	}
	return encryptedKeyPrefix + base64.StdEncoding.EncodeToString(blob), nil
}

// ImportEncrypted unwraps a password-protected export and derives the full
// key set from it.
func ImportEncrypted(encrypted string, password []byte, iterations int) (Material, error) {
	if !strings.HasPrefix(encrypted, encryptedKeyPrefix) {
		return Material{}, fmt.Errorf("%w: missing %q prefix", model.ErrInvalidFormat, encryptedKeyPrefix)
	}
	blob, err := base64.StdEncoding.DecodeString(encrypted[len(encryptedKeyPrefix):])
	if err != nil {
		return Material{}, fmt.Errorf("%w: bad base64 payload", model.ErrInvalidFormat)
	}
	plaintext, err := vault.Decrypt(blob, password, iterations)
	if err != nil {
		return Material{}, err
	}
	return Import(string(plaintext))
}

// IsEncryptedKey reports whether s is a password-wrapped export rather than
// a raw private key.
func IsEncryptedKey(s string) bool {
	return strings.HasPrefix(s, encryptedKeyPrefix)
}

func deriveFromSeed(seed []byte) Material {
	privateKey := PrivateKeyPrefix + base58.Encode(seed)

	viewSeed := sha256.Sum256(seed)
	viewKey := ViewKeyPrefix + base58.Encode(viewSeed[:])

	addrSeed := sha256.Sum256(viewSeed[:])
	address := AddressPrefix + hex.EncodeToString(addrSeed[:])[:addressBodyLen]

	return Material{
		PrivateKey: privateKey,
		ViewKey:    viewKey,
		Address:    address,
	}
}

func seedFromPrivateKey(privateKey string) ([]byte, error) {
	if err := ValidateFormat(privateKey, KindPrivateKey); err != nil {
		return nil, err
	}
	seed, err := base58.Decode(privateKey[len(PrivateKeyPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: private key body is not base58", model.ErrInvalidFormat)
	}
	if len(seed) != seedLen {
		return nil, fmt.Errorf("%w: private key seed must be %d bytes", model.ErrInvalidFormat, seedLen)
	}
	return seed, nil
}
