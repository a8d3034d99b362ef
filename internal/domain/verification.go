package domain

import "time"

// PendingOTP is the single live one-time code for an email address.
// ExpiresAt doubles as the DynamoDB TTL attribute (Unix seconds) when persisted there.
type PendingOTP struct {
	Email     string    `json:"email" dynamodbav:"email"`
	Code      string    `json:"code" dynamodbav:"code"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"`
}

// Expired reports whether the code is no longer usable at now.
func (p *PendingOTP) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Purpose selects the notification wording for an issued code.
type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeResend Purpose = "resend"
	PurposeReset  Purpose = "reset"
)

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

// EmailRequest carries an address whose presence is checked by the service.
type EmailRequest struct {
	Email string `json:"email"`
}
