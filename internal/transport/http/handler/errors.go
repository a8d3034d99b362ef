package handler

import (
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/edutech-foundation/site-api/internal/domain"
	"go.uber.org/zap"
)

// httpError maps a service error to a status and a client-safe message.
// Server-side failures are logged and answered with fallback only.
func httpError(w http.ResponseWriter, log *zap.SugaredLogger, err error, fallback string) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		log.Errorw(fallback, "err", err)
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, clientMessage(err, kind))
}

func classify(err error) (int, error) {
	switch {
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusInternalServerError, domain.ErrUpstream
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, domain.ErrUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		// Duplicates are reported as 400 on this API.
		return http.StatusBadRequest, domain.ErrConflict
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, domain.ErrBadRequest
	default:
		return http.StatusInternalServerError, nil
	}
}

func clientMessage(err error, kind error) string {
	msg := domain.Message(err, "")
	if msg == "" {
		msg = strings.TrimSuffix(err.Error(), ": "+kind.Error())
	}
	return capitalize(msg)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
