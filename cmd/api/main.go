package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/edutech-foundation/site-api/internal/application/chat"
	"github.com/edutech-foundation/site-api/internal/application/identity"
	"github.com/edutech-foundation/site-api/internal/application/otp"
	"github.com/edutech-foundation/site-api/internal/config"
	"github.com/edutech-foundation/site-api/internal/infrastructure/dynamo"
	"github.com/edutech-foundation/site-api/internal/infrastructure/gemini"
	"github.com/edutech-foundation/site-api/internal/infrastructure/hashing"
	jwtinfra "github.com/edutech-foundation/site-api/internal/infrastructure/jwt"
	"github.com/edutech-foundation/site-api/internal/infrastructure/memory"
	redisinfra "github.com/edutech-foundation/site-api/internal/infrastructure/redis"
	"github.com/edutech-foundation/site-api/internal/infrastructure/sendgrid"
	"github.com/edutech-foundation/site-api/internal/infrastructure/smtp"
	"github.com/edutech-foundation/site-api/internal/observability/metrics"
	"github.com/edutech-foundation/site-api/internal/pkg/logger"
	transporthttp "github.com/edutech-foundation/site-api/internal/transport/http"
	"github.com/edutech-foundation/site-api/internal/transport/http/handler"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// otpBackend is a pending-code store that also keeps the verified-email set.
type otpBackend interface {
	otp.Store
	otp.VerifiedSet
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Errorw("server exited", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.SugaredLogger) error {
	var checks []handler.HealthCheck

	// DynamoDB is created once and shared by whichever stores need it.
	var dynamoClient *dynamodb.Client
	dynamoFor := func() (*dynamodb.Client, error) {
		if dynamoClient != nil {
			return dynamoClient, nil
		}
		c, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dynamo.Bootstrap(ctx, c, cfg.DynamoTables, zlog)
		checks = append(checks, handler.HealthCheck{
			Name: "dynamodb",
			Check: func(ctx context.Context) error {
				_, err := c.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &cfg.DynamoTables.Users})
				return err
			},
		})
		dynamoClient = c
		return c, nil
	}

	users, err := newUserStore(cfg, dynamoFor)
	if err != nil {
		return err
	}

	codes, err := newOTPStore(ctx, cfg, zlog, dynamoFor, &checks)
	if err != nil {
		return err
	}

	var mailer otp.Mailer
	switch cfg.MailProvider {
	case config.MailProviderSendGrid:
		mailer = sendgrid.NewMailer(cfg, zlog)
	default:
		mailer = smtp.NewMailer(cfg)
	}

	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	// The chat relay degrades to 500s rather than blocking startup.
	var model chat.Completer
	if c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err == nil {
		model = c
	} else {
		zlog.Warnw("chat model not available", "error", err)
	}

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:       codes,
		Verified:    codes,
		Mailer:      mailer,
		TTL:         cfg.OTPTTL,
		VerifiedTTL: cfg.VerifiedEmailTTL,
		Logger:      zlog.Named("otp"),
	})

	deps := &transporthttp.Deps{
		OTP: otpSvc,
		Identity: identity.NewService(identity.ServiceDeps{
			UserRepo: users,
			OTP:      otpSvc,
			Verified: codes,
			Hasher:   hashing.NewBcrypt(cfg.BcryptCost, cfg.HashConcurrency),
			Signer:   tokens,
			Logger:   zlog.Named("identity"),
		}),
		Chat:   chat.NewService(chat.ServiceDeps{Model: model, Logger: zlog.Named("chat")}),
		Tokens: tokens,
		Logger: zlog.Named("http"),
		Checks: checks,
		Ctx:    ctx,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Infow("server starting",
			"port", cfg.AppPort,
			"env", cfg.AppEnv,
			"user_store", cfg.UserStore,
			"otp_store", cfg.OTPStore,
			"mail_provider", cfg.MailProvider,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	zlog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	zlog.Info("server stopped")
	return nil
}

func newUserStore(cfg *config.Config, dynamoFor func() (*dynamodb.Client, error)) (identity.UserStore, error) {
	switch cfg.UserStore {
	case config.UserStoreMemory:
		return memory.NewUserRepo(), nil
	case config.UserStoreDynamo:
		c, err := dynamoFor()
		if err != nil {
			return nil, err
		}
		return dynamo.NewUserRepo(c, cfg.DynamoTables.Users), nil
	default:
		return nil, fmt.Errorf("unknown USER_STORE %q", cfg.UserStore)
	}
}

func newOTPStore(ctx context.Context, cfg *config.Config, zlog *zap.SugaredLogger, dynamoFor func() (*dynamodb.Client, error), checks *[]handler.HealthCheck) (otpBackend, error) {
	switch cfg.OTPStore {
	case config.OTPStoreMemory:
		ledger := memory.NewLedger()
		go ledger.Run(ctx, cfg.OTPSweepInterval)
		return ledger, nil
	case config.OTPStoreRedis:
		client, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		*checks = append(*checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		go func() {
			<-ctx.Done()
			if err := client.Close(); err != nil {
				zlog.Warnw("redis close", "error", err)
			}
		}()
		return redisinfra.NewLedger(client, cfg.RedisPrefix), nil
	case config.OTPStoreDynamo:
		c, err := dynamoFor()
		if err != nil {
			return nil, err
		}
		return dynamo.NewVerificationRepo(c, cfg.DynamoTables.Verifications), nil
	default:
		return nil, fmt.Errorf("unknown OTP_STORE %q", cfg.OTPStore)
	}
}
