// Package security implements the master-password gate in front of the key
// store and vault: password verification, failed-attempt lockout, and the
// inactivity auto-lock. Its profile lives in its own config file, independent
// of the wallet vault.
package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"crypto/rand"

	"github.com/google/renameio"

	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
	"github.com/hashezusa/aleo-GUI-wallet/internal/vault"
)

const (
	// DefaultAutoLockTimeout inactivity window before sensitive operations
	// require a fresh unlock.
	DefaultAutoLockTimeout = 300 * time.Second

	// DefaultAttemptsLimit failed verifications before the gate locks.
	DefaultAttemptsLimit = 5

	// DefaultLockoutWindow cooldown after too many failures. Attempts during
	// the window are rejected without touching the password hash.
	DefaultLockoutWindow = time.Hour

	saltLen = 16
)

// Profile is the persisted security configuration, independent of the vault.
type Profile struct {
	PasswordRequired bool   `json:"passwordRequired"`
	PasswordHash     string `json:"passwordHash,omitempty"`
	PasswordSalt     string `json:"passwordSalt,omitempty"`
	Iterations       int    `json:"pbkdf2Iterations"`
	FailedAttempts   int    `json:"failedAttempts"`
	AttemptsLimit    int    `json:"failedAttemptsLimit"`
	LockedUntil      int64  `json:"lockedUntil,omitempty"` // unix seconds, 0 = not locked
	AutoLockTimeout  int    `json:"autoLockTimeout"`       // seconds
	LastAccess       int64  `json:"lastAccess"`            // unix seconds
}

// Gate is the security state machine:
// Unauthenticated -> Authenticated -> (Locked | AutoLocked) -> Unauthenticated.
type Gate struct {
	mu            sync.Mutex
	path          string
	profile       Profile
	authenticated bool
	now           func() time.Time
}

// NewGate loads the security profile from path, creating defaults when the
// file does not exist yet.
func NewGate(path string) (*Gate, error) {
	g := &Gate{
		path: path,
		now:  time.Now,
		profile: Profile{
			PasswordRequired: false,
			Iterations:       vault.DefaultIterations,
			AttemptsLimit:    DefaultAttemptsLimit,
			AutoLockTimeout:  int(DefaultAutoLockTimeout.Seconds()),
		},
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read security config: %w", err)
	}
	if err := json.Unmarshal(raw, &g.profile); err != nil {
		return nil, fmt.Errorf("failed to parse security config: %w", err)
	}
	if g.profile.AttemptsLimit <= 0 {
		g.profile.AttemptsLimit = DefaultAttemptsLimit
	}
	if g.profile.AutoLockTimeout <= 0 {
		g.profile.AutoLockTimeout = int(DefaultAutoLockTimeout.Seconds())
	}
	if g.profile.Iterations < vault.MinIterations {
		g.profile.Iterations = vault.DefaultIterations
	}
	return g, nil
}

// SetPassword creates or replaces the master password and enables
// protection. The gate is left authenticated.
func (g *Gate) SetPassword(password []byte) error {
	if len(password) == 0 {
		return fmt.Errorf("%w: password cannot be empty", model.ErrInvalidFormat)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	g.profile.PasswordSalt = base64.StdEncoding.EncodeToString(salt)
	g.profile.PasswordHash = base64.StdEncoding.EncodeToString(hashPassword(password, salt, g.profile.Iterations))
	g.profile.PasswordRequired = true
	g.profile.FailedAttempts = 0
	g.profile.LockedUntil = 0
	g.profile.LastAccess = g.now().Unix()
	g.authenticated = true

	return g.save()
}

// Verify checks the master password. On success the failed-attempt counter
// resets and the session becomes authenticated; on failure the counter
// increments and, at the limit, the gate locks for the cooldown window.
// While locked, attempts return ErrLocked without evaluating the password.
func (g *Gate) Verify(password []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.profile.PasswordRequired {
		g.authenticated = true
		return nil
	}

	if g.lockedLocked() {
		return fmt.Errorf("%w: try again after %s", model.ErrLocked,
			time.Unix(g.profile.LockedUntil, 0).UTC().Format(time.RFC3339))
	}

	if g.profile.PasswordHash == "" || g.profile.PasswordSalt == "" {
		return model.ErrAuthenticationFailed
	}

	salt, err := base64.StdEncoding.DecodeString(g.profile.PasswordSalt)
	if err != nil {
		return fmt.Errorf("corrupt security config: %w", err)
	}
	stored, err := base64.StdEncoding.DecodeString(g.profile.PasswordHash)
	if err != nil {
		return fmt.Errorf("corrupt security config: %w", err)
	}

	computed := hashPassword(password, salt, g.profile.Iterations)
	if subtle.ConstantTimeCompare(computed, stored) == 1 {
		g.profile.FailedAttempts = 0
		g.profile.LockedUntil = 0
		g.profile.LastAccess = g.now().Unix()
		g.authenticated = true
		if err := g.save(); err != nil {
			return err
		}
		return nil
	}

	g.profile.FailedAttempts++
	if g.profile.FailedAttempts >= g.profile.AttemptsLimit {
		g.profile.LockedUntil = g.now().Add(DefaultLockoutWindow).Unix()
	}
	g.authenticated = false
	if err := g.save(); err != nil {
		return err
	}
	return model.ErrAuthenticationFailed
}

// ChangePassword verifies the old password and installs the new one.
func (g *Gate) ChangePassword(oldPassword, newPassword []byte) error {
	if err := g.Verify(oldPassword); err != nil {
		return err
	}
	return g.SetPassword(newPassword)
}

// DisableProtection turns password protection off after verifying the
// current password.
func (g *Gate) DisableProtection(password []byte) error {
	if err := g.Verify(password); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.profile.PasswordRequired = false
	g.profile.PasswordHash = ""
	g.profile.PasswordSalt = ""
	g.profile.FailedAttempts = 0
	g.profile.LockedUntil = 0
	return g.save()
}

// IsProtected reports whether a master password is required.
func (g *Gate) IsProtected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.profile.PasswordRequired
}

// IsLocked reports whether the failed-attempt cooldown is active.
func (g *Gate) IsLocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lockedLocked()
}

// ShouldAutoLock is a pure predicate: has the inactivity window elapsed
// since the last access. Callers re-check it before every sensitive
// operation, not only at session start.
func (g *Gate) ShouldAutoLock() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.profile.PasswordRequired {
		return false
	}
	return g.now().Unix()-g.profile.LastAccess > int64(g.profile.AutoLockTimeout)
}

// Authorize gates a sensitive operation: the cooldown must not be active,
// the session must be authenticated, and the inactivity window must not
// have elapsed. A successful call refreshes the last-access timestamp.
func (g *Gate) Authorize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.profile.PasswordRequired {
		return nil
	}
	if g.lockedLocked() {
		return model.ErrLocked
	}
	if !g.authenticated {
		return model.ErrAuthenticationFailed
	}
	if g.now().Unix()-g.profile.LastAccess > int64(g.profile.AutoLockTimeout) {
		g.authenticated = false
		return fmt.Errorf("%w: session auto-locked", model.ErrAuthenticationFailed)
	}
	g.profile.LastAccess = g.now().Unix()
	return g.save()
}

// Lock drops the authenticated session immediately.
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authenticated = false
}

// SetAutoLockTimeout overrides the inactivity window.
func (g *Gate) SetAutoLockTimeout(d time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profile.AutoLockTimeout = int(d.Seconds())
	return g.save()
}

// lockedLocked checks the cooldown and clears it once expired.
// Caller holds g.mu.
func (g *Gate) lockedLocked() bool {
	if g.profile.LockedUntil == 0 {
		return false
	}
	if g.now().Unix() >= g.profile.LockedUntil {
		g.profile.LockedUntil = 0
		g.profile.FailedAttempts = 0
		_ = g.save()
		return false
	}
	return true
}

// save persists the profile atomically. Caller holds g.mu.
func (g *Gate) save() error {
	raw, err := json.MarshalIndent(&g.profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal security config: %w", err)
	}
	if err := renameio.WriteFile(g.path, raw, 0o600); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return nil
}

func hashPassword(password, salt []byte, iterations int) []byte {
	key := vault.DeriveKey(password, salt, iterations)
	sum := sha256.Sum256(key)
	return sum[:]
}
