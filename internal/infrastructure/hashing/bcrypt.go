package hashing

import (
	"context"
	"errors"
	"fmt"

	"github.com/edutech-foundation/site-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes passwords with a fixed cost. At most `concurrency` hashes run
// at once; further callers wait for a slot or for their context to end, so a
// burst of logins cannot take every CPU away from other requests.
type Bcrypt struct {
	cost int
	gate chan struct{}
}

func NewBcrypt(cost, concurrency int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Bcrypt{cost: cost, gate: make(chan struct{}, concurrency)}
}

func (b *Bcrypt) Hash(ctx context.Context, plain string) (string, error) {
	if err := b.acquire(ctx); err != nil {
		return "", err
	}
	defer b.release()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("password longer than 72 bytes: %w", domain.ErrBadRequest)
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plain matches digest. A mismatch is not an error.
func (b *Bcrypt) Verify(ctx context.Context, plain, digest string) (bool, error) {
	if err := b.acquire(ctx); err != nil {
		return false, err
	}
	defer b.release()
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

func (b *Bcrypt) acquire(ctx context.Context) error {
	select {
	case b.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bcrypt) release() { <-b.gate }
