package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/edutech-foundation/site-api/internal/domain"
	"github.com/edutech-foundation/site-api/internal/observability/metrics"
	"github.com/edutech-foundation/site-api/internal/pkg/id"
	"github.com/edutech-foundation/site-api/internal/pkg/password"
	"go.uber.org/zap"
)

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error
}

// UserStore lookups return an error wrapping domain.ErrNotFound when nothing
// matches. Create is the authoritative uniqueness guard and reports
// domain.ErrEmailTaken or domain.ErrUsernameTaken on collision.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

type codeLedger interface {
	Send(ctx context.Context, email string, purpose domain.Purpose) error
	Check(ctx context.Context, email, code string) error
	Consume(ctx context.Context, email, code string) error
}

type verifiedSet interface {
	IsMarked(ctx context.Context, email string) (bool, error)
	Clear(ctx context.Context, email string) error
}

type hasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, digest string) (bool, error)
}

type tokenSigner interface {
	Sign(userID, email string) (token string, expiresAt time.Time, err error)
}

type service struct {
	users    UserStore
	codes    codeLedger
	verified verifiedSet
	hasher   hasher
	signer   tokenSigner
	now      func() time.Time
	log      *zap.SugaredLogger

	dummyOnce sync.Once
	dummyHash string
}

type ServiceDeps struct {
	UserRepo UserStore
	OTP      codeLedger
	Verified verifiedSet
	Hasher   hasher
	Signer   tokenSigner
	Now      func() time.Time
	Logger   *zap.SugaredLogger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:    deps.UserRepo,
		codes:    deps.OTP,
		verified: deps.Verified,
		hasher:   deps.Hasher,
		signer:   deps.Signer,
		now:      deps.Now,
		log:      deps.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	return s
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (u *domain.User, err error) {
	defer func() { metrics.RegistrationsTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	email := domain.NormalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	if username == "" {
		return nil, domain.ErrUsernameRequired
	}
	if req.ConfirmPassword != nil && *req.ConfirmPassword != req.Password {
		return nil, domain.ErrPasswordMismatch
	}
	marked, err := s.verified.IsMarked(ctx, email)
	if err != nil {
		return nil, domain.Upstream("check verified email", err)
	}
	if !marked {
		return nil, domain.ErrEmailNotVerified
	}
	if err := password.Validate(req.Password); err != nil {
		return nil, err
	}
	if err := s.checkAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, hashError(err)
	}
	now := s.now().UTC()
	u = &domain.User{
		UserID:       id.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, domain.Upstream("create user", err)
	}
	if err := s.verified.Clear(ctx, email); err != nil {
		s.log.Warnw("failed to clear verified email marker", "email", email, "err", err)
	}
	s.log.Infow("user registered", "user_id", u.UserID, "email", email)
	return u, nil
}

// checkAvailable is a fast-path conflict check; Create still guards the race.
// Email is checked before username.
func (s *service) checkAvailable(ctx context.Context, email, username string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Upstream("lookup email", err)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Upstream("lookup username", err)
	}
	return nil
}

func (s *service) Login(ctx context.Context, email, plain string) (sess *domain.Session, err error) {
	defer func() { metrics.LoginsTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	email = domain.NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Upstream("lookup user", err)
		}
		// Unknown emails still pay for one bcrypt comparison.
		_, _ = s.hasher.Verify(ctx, plain, s.dummy(ctx))
		return nil, domain.ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(ctx, plain, u.PasswordHash)
	if err != nil {
		return nil, domain.Upstream("verify password", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	token, exp, err := s.signer.Sign(u.UserID, u.Email)
	if err != nil {
		return nil, domain.Upstream("sign token", err)
	}
	s.log.Infow("user logged in", "user_id", u.UserID)
	return &domain.Session{
		Token:     token,
		UserID:    u.UserID,
		IssuedAt:  s.now().UTC(),
		ExpiresAt: exp,
		User:      u,
	}, nil
}

func (s *service) ForgotPassword(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.ErrEmailRequired
	}
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return domain.Upstream("lookup user", err)
	}
	return s.codes.Send(ctx, email, domain.PurposeReset)
}

func (s *service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) (err error) {
	defer func() { metrics.PasswordResetsTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	email := domain.NormalizeEmail(req.Email)
	if email == "" {
		return domain.ErrEmailRequired
	}
	// A wrong code or a weak password must leave the OTP live.
	if err := s.codes.Check(ctx, email, req.OTP); err != nil {
		return err
	}
	if err := password.Validate(req.NewPassword); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return domain.Upstream("lookup user", err)
	}
	hash, err := s.hasher.Hash(ctx, req.NewPassword)
	if err != nil {
		return hashError(err)
	}
	// Consume is the atomic step: of two concurrent resets with the same code
	// only one gets past here.
	if err := s.codes.Consume(ctx, email, req.OTP); err != nil {
		return err
	}
	// The code is spent even if the update below fails; the user asks for a
	// new one. Putting it back could overwrite a code issued meanwhile.
	if err := s.users.UpdatePasswordHash(ctx, u.UserID, hash); err != nil {
		s.log.Errorw("password update failed after code was consumed", "user_id", u.UserID, "err", err)
		return domain.Upstream("update password", err)
	}
	s.log.Infow("password reset", "user_id", u.UserID)
	return nil
}

// hashError keeps client-fixable hasher rejections (over-long input) as they are.
func hashError(err error) error {
	if errors.Is(err, domain.ErrBadRequest) {
		return err
	}
	return domain.Upstream("hash password", err)
}

func (s *service) dummy(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(ctx, id.New())
		if err != nil {
			s.log.Warnw("failed to prepare dummy password hash", "err", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
