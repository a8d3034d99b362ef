package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/edutech-foundation/site-api/internal/domain"
	"github.com/go-redis/redis/v8"
)

// consumeScript deletes KEYS[1] only when it holds ARGV[1].
// Returns 1 on delete, 0 when the key is absent, -1 on mismatch.
var consumeScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
	return 0
end
if v ~= ARGV[1] then
	return -1
end
redis.call("DEL", KEYS[1])
return 1
`)

// Ledger stores pending OTPs and verified-email markers as keys with native
// Redis expiry, so several API instances share one view.
type Ledger struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewLedger(client *redis.Client, prefix string) *Ledger {
	return &Ledger{client: client, prefix: prefix, now: time.Now}
}

func (l *Ledger) otpKey(email string) string {
	return fmt.Sprintf("%s:otp:%s", l.prefix, email)
}

func (l *Ledger) verifiedKey(email string) string {
	return fmt.Sprintf("%s:verified:%s", l.prefix, email)
}

func (l *Ledger) Put(ctx context.Context, p *domain.PendingOTP) error {
	ttl := p.ExpiresAt.Sub(l.now())
	if ttl <= 0 {
		return fmt.Errorf("otp already expired")
	}
	return l.client.Set(ctx, l.otpKey(p.Email), p.Code, ttl).Err()
}

func (l *Ledger) Get(ctx context.Context, email string) (*domain.PendingOTP, error) {
	key := l.otpKey(email)
	pipe := l.client.TxPipeline()
	get := pipe.Get(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	code, err := get.Result()
	if err == redis.Nil {
		return nil, domain.ErrOTPMissing
	}
	if err != nil {
		return nil, err
	}
	ttl := pttl.Val()
	if ttl <= 0 {
		return nil, domain.ErrOTPMissing
	}
	return &domain.PendingOTP{Email: email, Code: code, ExpiresAt: l.now().Add(ttl)}, nil
}

func (l *Ledger) Consume(ctx context.Context, email, code string) error {
	n, err := consumeScript.Run(ctx, l.client, []string{l.otpKey(email)}, code).Int64()
	if err != nil {
		return err
	}
	return consumeResult(n)
}

func consumeResult(n int64) error {
	switch n {
	case 1:
		return nil
	case -1:
		return domain.ErrOTPMismatch
	default:
		return domain.ErrOTPMissing
	}
}

func (l *Ledger) Delete(ctx context.Context, email string) error {
	return l.client.Del(ctx, l.otpKey(email)).Err()
}

func (l *Ledger) Mark(ctx context.Context, email string, ttl time.Duration) error {
	return l.client.Set(ctx, l.verifiedKey(email), "1", ttl).Err()
}

func (l *Ledger) IsMarked(ctx context.Context, email string) (bool, error) {
	n, err := l.client.Exists(ctx, l.verifiedKey(email)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *Ledger) Clear(ctx context.Context, email string) error {
	return l.client.Del(ctx, l.verifiedKey(email)).Err()
}
