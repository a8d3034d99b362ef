package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/edutech-foundation/site-api/internal/domain"
	"github.com/edutech-foundation/site-api/internal/observability/metrics"
	pkgtoken "github.com/edutech-foundation/site-api/internal/pkg/token"
	"go.uber.org/zap"
)

// Store keeps at most one pending code per normalized email.
//
// Get and Consume report domain.ErrOTPMissing for a code that was never
// issued, was consumed, or has expired. Consume compares and deletes in one
// atomic step, returning domain.ErrOTPMismatch (and keeping the record) when
// the code differs. Any other error is an infrastructure failure.
type Store interface {
	Put(ctx context.Context, p *domain.PendingOTP) error
	Get(ctx context.Context, email string) (*domain.PendingOTP, error)
	Consume(ctx context.Context, email, code string) error
	Delete(ctx context.Context, email string) error
}

// VerifiedSet records emails that passed an OTP challenge.
type VerifiedSet interface {
	Mark(ctx context.Context, email string, ttl time.Duration) error
	IsMarked(ctx context.Context, email string) (bool, error)
	Clear(ctx context.Context, email string) error
}

// Mailer delivers an HTML email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type Service interface {
	// Issue stores a fresh code for email, replacing any pending one, and returns it.
	Issue(ctx context.Context, email string) (string, error)
	// Send issues a code and emails it with the wording for purpose.
	Send(ctx context.Context, email string, purpose domain.Purpose) error
	// Verify consumes a matching code and marks the email verified.
	Verify(ctx context.Context, email, code string) error
	// Check compares code against the pending one without consuming it.
	Check(ctx context.Context, email, code string) error
	// Consume deletes a matching pending code without marking the email.
	Consume(ctx context.Context, email, code string) error
}

type service struct {
	store       Store
	verified    VerifiedSet
	mailer      Mailer
	ttl         time.Duration
	verifiedTTL time.Duration
	now         func() time.Time
	log         *zap.SugaredLogger
}

type ServiceDeps struct {
	Store       Store
	Verified    VerifiedSet
	Mailer      Mailer
	TTL         time.Duration
	VerifiedTTL time.Duration
	Now         func() time.Time
	Logger      *zap.SugaredLogger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:       deps.Store,
		verified:    deps.Verified,
		mailer:      deps.Mailer,
		ttl:         deps.TTL,
		verifiedTTL: deps.VerifiedTTL,
		now:         deps.Now,
		log:         deps.Logger,
	}
	if s.ttl <= 0 {
		s.ttl = 5 * time.Minute
	}
	if s.verifiedTTL <= 0 {
		s.verifiedTTL = 15 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	return s
}

func (s *service) Issue(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", domain.ErrEmailRequired
	}
	code, err := pkgtoken.NewOTP()
	if err != nil {
		return "", domain.Upstream("generate otp", err)
	}
	p := &domain.PendingOTP{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.store.Put(ctx, p); err != nil {
		return "", domain.Upstream("store otp", err)
	}
	return code, nil
}

func (s *service) Send(ctx context.Context, email string, purpose domain.Purpose) error {
	email = domain.NormalizeEmail(email)
	code, err := s.Issue(ctx, email)
	if err != nil {
		metrics.OTPIssuedTotal.WithLabelValues(string(purpose), "failure").Inc()
		return err
	}
	subject, body, err := render(purpose, messageData{Code: code, Minutes: int(s.ttl / time.Minute)})
	if err != nil {
		metrics.OTPIssuedTotal.WithLabelValues(string(purpose), "failure").Inc()
		return err
	}
	if err := s.mailer.SendEmail(ctx, email, subject, body); err != nil {
		s.log.Errorw("otp email delivery failed", "email", email, "purpose", purpose, "err", err)
		metrics.OTPIssuedTotal.WithLabelValues(string(purpose), "failure").Inc()
		return domain.Upstream("send otp email", err)
	}
	s.log.Infow("otp sent", "email", email, "purpose", purpose)
	metrics.OTPIssuedTotal.WithLabelValues(string(purpose), "success").Inc()
	return nil
}

func (s *service) Verify(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)
	if err := s.consume(ctx, email, code); err != nil {
		metrics.OTPVerificationsTotal.WithLabelValues("verify", metrics.Result(err)).Inc()
		return err
	}
	// A failed Mark leaves the code spent and the email unverified; the client
	// requests a new code.
	if err := s.verified.Mark(ctx, email, s.verifiedTTL); err != nil {
		metrics.OTPVerificationsTotal.WithLabelValues("verify", "failure").Inc()
		return domain.Upstream("mark email verified", err)
	}
	s.log.Infow("email verified", "email", email)
	metrics.OTPVerificationsTotal.WithLabelValues("verify", "success").Inc()
	return nil
}

func (s *service) Check(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.ErrEmailRequired
	}
	p, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrOTPMissing) {
			return domain.ErrOTPMissing
		}
		return domain.Upstream("load otp", err)
	}
	if p.Expired(s.now()) {
		return domain.ErrOTPMissing
	}
	if subtle.ConstantTimeCompare([]byte(p.Code), []byte(code)) != 1 {
		return domain.ErrOTPMismatch
	}
	return nil
}

func (s *service) Consume(ctx context.Context, email, code string) error {
	return s.consume(ctx, domain.NormalizeEmail(email), code)
}

func (s *service) consume(ctx context.Context, email, code string) error {
	if email == "" {
		return domain.ErrEmailRequired
	}
	err := s.store.Consume(ctx, email, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrOTPMissing):
		return domain.ErrOTPMissing
	case errors.Is(err, domain.ErrOTPMismatch):
		return domain.ErrOTPMismatch
	default:
		return domain.Upstream("consume otp", err)
	}
}
