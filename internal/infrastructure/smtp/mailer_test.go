package smtp

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/edutech-foundation/site-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMailer(username string) (*Mailer, *[]byte, *string) {
	m := NewMailer(&config.Config{
		SMTPHost:     "mail.local",
		SMTPPort:     "1025",
		SMTPUsername: username,
		MailFrom:     "noreply@example.com",
		MailFromName: "EduTech Foundation",
	})
	var sent []byte
	var addr string
	m.send = func(a string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		addr = a
		sent = msg
		return nil
	}
	return m, &sent, &addr
}

func TestSendEmail_HTMLHeaders(t *testing.T) {
	m, sent, addr := testMailer("")
	require.NoError(t, m.SendEmail(context.Background(), "a@x.com", "Your OTP Code", "<p>Your OTP is <b>123456</b></p>"))

	msg := string(*sent)
	assert.Equal(t, "mail.local:1025", *addr)
	assert.Contains(t, msg, "To: a@x.com\r\n")
	assert.Contains(t, msg, "Subject: Your OTP Code\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=\"utf-8\"\r\n")
	assert.Contains(t, msg, "From: EduTech Foundation <noreply@example.com>\r\n")
	assert.Contains(t, msg, "\r\n\r\n<p>Your OTP is <b>123456</b></p>")
}

func TestSendEmail_CanceledContext(t *testing.T) {
	m, sent, _ := testMailer("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.SendEmail(ctx, "a@x.com", "s", "b"), context.Canceled)
	assert.Nil(t, *sent)
}

func TestSendEmail_PropagatesTransportError(t *testing.T) {
	m, _, _ := testMailer("user")
	boom := errors.New("554 rejected")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	assert.ErrorIs(t, m.SendEmail(context.Background(), "a@x.com", "s", "b"), boom)
}
