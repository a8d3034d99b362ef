package hashing

import (
	"context"
	"strings"
	"testing"

	"github.com/edutech-foundation/site-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashVerify_RoundTrip(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost, 2)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "Password1!")
	require.NoError(t, err)
	assert.NotEqual(t, "Password1!", digest)

	ok, err := h.Verify(ctx, "Password1!", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, "Password2!", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewBcrypt_CostOutOfRangeUsesDefault(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcrypt(99, 1).cost)
	assert.Equal(t, 10, NewBcrypt(10, 1).cost)
}

func TestHash_TooLongIsBadRequest(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost, 1)
	_, err := h.Hash(context.Background(), strings.Repeat("A1!", 30))
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestVerify_MalformedDigestIsError(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost, 1)
	ok, err := h.Verify(context.Background(), "x", "not-a-hash")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestHash_WaitsForSlotUntilContextDone(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost, 1)
	h.gate <- struct{}{} // occupy the only slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Hash(ctx, "Password1!")
	assert.ErrorIs(t, err, context.Canceled)
}
