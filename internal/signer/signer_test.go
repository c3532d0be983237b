package signer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

func TestSignDeterministic(t *testing.T) {
	s := NewLocal()
	ctx := context.Background()

	a, err := s.Sign(ctx, "APrivateKey1test", []byte("payload"))
	require.NoError(t, err)
	b, err := s.Sign(ctx, "APrivateKey1test", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Regexp(t, "^sign1", a)

	// Different key or payload changes the signature.
	c, err := s.Sign(ctx, "APrivateKey1other", []byte("payload"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	d, err := s.Sign(ctx, "APrivateKey1test", []byte("other"))
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestSignEmptyKey(t *testing.T) {
	_, err := NewLocal().Sign(context.Background(), "", []byte("payload"))
	assert.ErrorIs(t, err, model.ErrInvalidFormat)
}

func TestSignCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal().Sign(ctx, "APrivateKey1test", []byte("payload"))
	assert.Error(t, err)
}
