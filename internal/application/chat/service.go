package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/edutech-foundation/site-api/internal/domain"
	"github.com/edutech-foundation/site-api/internal/observability/metrics"
	"go.uber.org/zap"
)

const maxMessageLen = 4000

type Completer interface {
	Complete(ctx context.Context, system, message string) (string, error)
}

type Service interface {
	Reply(ctx context.Context, message string) (string, error)
}

type service struct {
	model Completer
	log   *zap.SugaredLogger
}

type ServiceDeps struct {
	Model  Completer
	Logger *zap.SugaredLogger
}

func NewService(deps ServiceDeps) Service {
	s := &service{model: deps.Model, log: deps.Logger}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	return s
}

func (s *service) Reply(ctx context.Context, message string) (reply string, err error) {
	defer func() { metrics.ChatRepliesTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("message is required: %w", domain.ErrBadRequest)
	}
	if len(message) > maxMessageLen {
		return "", fmt.Errorf("message is too long: %w", domain.ErrBadRequest)
	}
	if s.model == nil {
		return "", domain.Upstream("complete chat", fmt.Errorf("no model configured"))
	}
	reply, err = s.model.Complete(ctx, systemPrompt, message)
	if err != nil {
		return "", domain.Upstream("complete chat", err)
	}
	s.log.Debugw("chat reply", "message_len", len(message), "reply_len", len(reply))
	return reply, nil
}
