package http

import (
	"context"

	"github.com/edutech-foundation/site-api/internal/application/chat"
	"github.com/edutech-foundation/site-api/internal/application/identity"
	"github.com/edutech-foundation/site-api/internal/application/otp"
	"github.com/edutech-foundation/site-api/internal/transport/http/handler"
	"github.com/edutech-foundation/site-api/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// Deps holds the services and collaborators the router wires into handlers.
type Deps struct {
	OTP      otp.Service
	Identity identity.Service
	Chat     chat.Service
	Tokens   middleware.TokenVerifier
	Logger   *zap.SugaredLogger
	Checks   []handler.HealthCheck

	// Ctx bounds background goroutines started by the router (rate-limit cleanup).
	Ctx context.Context
}
