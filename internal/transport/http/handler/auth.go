package handler

import (
	"net/http"

	"github.com/edutech-foundation/site-api/internal/application/identity"
	"github.com/edutech-foundation/site-api/internal/application/otp"
	"github.com/edutech-foundation/site-api/internal/domain"
	"github.com/edutech-foundation/site-api/internal/pkg/validate"
	"github.com/edutech-foundation/site-api/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// AuthHandler serves the OTP and account endpoints under /api/auth.
type AuthHandler struct {
	otp      otp.Service
	identity identity.Service
	log      *zap.SugaredLogger
}

func NewAuthHandler(otpSvc otp.Service, identitySvc identity.Service, log *zap.SugaredLogger) *AuthHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AuthHandler{otp: otpSvc, identity: identitySvc, log: log}
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.otp.Send(r.Context(), req.Email, domain.PurposeSignup); err != nil {
		httpError(w, h.log, err, "Failed to send OTP")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "OTP sent"})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.otp.Send(r.Context(), req.Email, domain.PurposeResend); err != nil {
		httpError(w, h.log, err, "Failed to resend OTP")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "OTP resent successfully"})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.otp.Verify(r.Context(), req.Email, req.OTP); err != nil {
		httpError(w, h.log, err, "Failed to verify OTP")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "OTP verified"})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.identity.Register(r.Context(), req); err != nil {
		httpError(w, h.log, err, "Registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "User registered"})
}

// Login answers every client-side failure with the same invalid-credentials
// message, including malformed bodies.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	err := decodeJSON(w, r, &req)
	req.Email = domain.NormalizeEmail(req.Email)
	if err != nil || validate.Struct(&req) != nil {
		httpError(w, h.log, domain.ErrInvalidCredentials, "Login failed")
		return
	}
	sess, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpError(w, h.log, err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{Message: "Login successful", Token: sess.Token})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.identity.ForgotPassword(r.Context(), req.Email); err != nil {
		httpError(w, h.log, err, "Failed to send reset OTP")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "OTP sent for password reset"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.identity.ResetPassword(r.Context(), req); err != nil {
		httpError(w, h.log, err, "Password reset failed")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "Password reset successful"})
}

// Me describes the bearer token presented by the caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	env := SessionEnvelope{UserID: claims.UserID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		env.ExpiresAt = claims.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, env)
}
