package http

import (
	"context"
	"net/http"
	"time"

	"github.com/edutech-foundation/site-api/internal/config"
	"github.com/edutech-foundation/site-api/internal/transport/http/handler"
	appmiddleware "github.com/edutech-foundation/site-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx := deps.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(appmiddleware.WithMetrics(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.GlobalRateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.GlobalRateLimit, time.Minute))
	}

	// Per-IP token bucket for endpoints that send mail or check secrets.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.SensitiveRateLimit), cfg.SensitiveBurst)

	healthH := handler.NewHealthHandler(deps.Checks...)
	authH := handler.NewAuthHandler(deps.OTP, deps.Identity, log)
	chatH := handler.NewChatHandler(deps.Chat, log)

	r.Get("/healthz", healthH.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(sensitiveRL.Limit)
				r.Post("/send-otp", authH.SendOTP)
				r.Post("/resend-otp", authH.ResendOTP)
				r.Post("/verify-otp", authH.VerifyOTP)
				r.Post("/login", authH.Login)
				r.Post("/forget-password", authH.ForgotPassword)
				r.Post("/reset-password", authH.ResetPassword)
			})
			r.Post("/register", authH.Register)

			if deps.Tokens != nil {
				r.With(appmiddleware.Auth(deps.Tokens)).Get("/me", authH.Me)
			}
		})
		r.Post("/chat", chatH.Chat)
	})

	return r
}
