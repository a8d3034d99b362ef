package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/edutech-foundation/site-api/internal/domain"
)

// Ledger is a process-local OTP store and verified-email set. Expiry is
// checked when an entry is read; Sweep drops entries nobody came back for.
// All methods are safe for concurrent use; every operation on a key runs
// under one lock, so a compare-and-delete cannot interleave with a
// concurrent Put or Consume of the same email.
type Ledger struct {
	mu       sync.Mutex
	pending  map[string]domain.PendingOTP
	verified map[string]time.Time // email -> marker expiry
	now      func() time.Time
}

type Option func(*Ledger)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		pending:  make(map[string]domain.PendingOTP),
		verified: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) Put(_ context.Context, p *domain.PendingOTP) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[p.Email] = *p
	return nil
}

func (l *Ledger) Get(_ context.Context, email string) (*domain.PendingOTP, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.livePending(email)
	if !ok {
		return nil, domain.ErrOTPMissing
	}
	return &p, nil
}

func (l *Ledger) Consume(_ context.Context, email, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.livePending(email)
	if !ok {
		return domain.ErrOTPMissing
	}
	if subtle.ConstantTimeCompare([]byte(p.Code), []byte(code)) != 1 {
		return domain.ErrOTPMismatch
	}
	delete(l.pending, email)
	return nil
}

func (l *Ledger) Delete(_ context.Context, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, email)
	return nil
}

func (l *Ledger) Mark(_ context.Context, email string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verified[email] = l.now().Add(ttl)
	return nil
}

func (l *Ledger) IsMarked(_ context.Context, email string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.verified[email]
	if !ok {
		return false, nil
	}
	if !l.now().Before(exp) {
		delete(l.verified, email)
		return false, nil
	}
	return true, nil
}

func (l *Ledger) Clear(_ context.Context, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.verified, email)
	return nil
}

// Sweep removes expired codes and markers and returns how many were dropped.
func (l *Ledger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for email, p := range l.pending {
		if p.Expired(now) {
			delete(l.pending, email)
			n++
		}
	}
	for email, exp := range l.verified {
		if !now.Before(exp) {
			delete(l.verified, email)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is cancelled.
func (l *Ledger) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}

// livePending returns the pending code for email, dropping it if expired.
// Callers hold l.mu.
func (l *Ledger) livePending(email string) (domain.PendingOTP, bool) {
	p, ok := l.pending[email]
	if !ok {
		return domain.PendingOTP{}, false
	}
	if p.Expired(l.now()) {
		delete(l.pending, email)
		return domain.PendingOTP{}, false
	}
	return p, true
}
