package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edutech-foundation/site-api/internal/domain"
)

// UserRepo is a process-local credential store with the same uniqueness
// semantics as the DynamoDB repository.
type UserRepo struct {
	mu         sync.RWMutex
	byID       map[string]*domain.User
	byEmail    map[string]string
	byUsername map[string]string
	now        func() time.Time
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:       make(map[string]*domain.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		now:        time.Now,
	}
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byEmail, email, "email")
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byUsername, username, "username")
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return domain.ErrEmailTaken
	}
	if _, ok := r.byUsername[u.Username]; ok {
		return domain.ErrUsernameTaken
	}
	if _, ok := r.byID[u.UserID]; ok {
		return fmt.Errorf("user id collision: %w", domain.ErrConflict)
	}
	cp := *u
	r.byID[u.UserID] = &cp
	r.byEmail[u.Email] = u.UserID
	r.byUsername[u.Username] = u.UserID
	return nil
}

func (r *UserRepo) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	u.PasswordHash = hash
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *UserRepo) lookup(index map[string]string, key, field string) (*domain.User, error) {
	id, ok := index[key]
	if !ok {
		return nil, fmt.Errorf("user by %s: %w", field, domain.ErrNotFound)
	}
	cp := *r.byID[id]
	return &cp, nil
}
