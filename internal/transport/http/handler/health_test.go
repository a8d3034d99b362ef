package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_NoChecks(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler().Health(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env HealthEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, "ok", env.Status)
	assert.Empty(t, env.Checks)
}

func TestHealth_FailingCheckDegrades(t *testing.T) {
	h := NewHealthHandler(
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		HealthCheck{Name: "dynamodb", Check: func(context.Context) error { return nil }},
	)
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var env HealthEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, "degraded", env.Status)
	assert.Equal(t, "ok", env.Checks["dynamodb"])
	assert.Equal(t, "connection refused", env.Checks["redis"])
}
