// Package signer abstracts transaction authorization. The engine hands a
// canonical payload to an Oracle and receives the signature to attach; the
// wallet never interprets the signature itself.
package signer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

// Oracle produces a signature over a canonical transaction payload using the
// account's private key.
type Oracle interface {
	Sign(ctx context.Context, privateKey string, payload []byte) (string, error)
}

// Local signs with an HMAC keyed by the private key. It stands in for a real
// proving backend; the output is deterministic for a given key and payload,
// which the engine relies on for stable transaction ids.
type Local struct{}

// NewLocal returns the built-in signing oracle.
func NewLocal() *Local {
	return &Local{}
}

// Sign computes the signature string for payload.
func (*Local) Sign(ctx context.Context, privateKey string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if privateKey == "" {
		return "", fmt.Errorf("%w: private key is empty", model.ErrInvalidFormat)
	}
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write(payload)
	return "sign1" + hex.EncodeToString(mac.Sum(nil)), nil
}
