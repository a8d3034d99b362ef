package otp

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/edutech-foundation/site-api/internal/domain"
)

type message struct {
	subject string
	body    *template.Template
}

var messages = map[domain.Purpose]message{
	domain.PurposeSignup: {
		subject: "Your OTP Code",
		body:    template.Must(template.New("signup").Parse(`<p>Your OTP is: <b>{{.Code}}</b></p><p>It expires in {{.Minutes}} minutes.</p>`)),
	},
	domain.PurposeResend: {
		subject: "Your Resent OTP Code",
		body:    template.Must(template.New("resend").Parse(`<p>Your new OTP is: <b>{{.Code}}</b></p><p>Any code sent earlier no longer works.</p>`)),
	},
	domain.PurposeReset: {
		subject: "Reset Password OTP",
		body:    template.Must(template.New("reset").Parse(`<p>Your password reset OTP is: <b>{{.Code}}</b></p><p>If you did not ask to reset your password, ignore this email.</p>`)),
	},
}

type messageData struct {
	Code    string
	Minutes int
}

func render(purpose domain.Purpose, data messageData) (subject, html string, err error) {
	m, ok := messages[purpose]
	if !ok {
		return "", "", fmt.Errorf("unknown otp purpose %q", purpose)
	}
	var buf bytes.Buffer
	if err := m.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s message: %w", purpose, err)
	}
	return m.subject, buf.String(), nil
}
