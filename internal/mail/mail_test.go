package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("noted@example.com", "alice@example.com", "http://noted.example.com/?token=abc123")
	require.NoError(t, err)

	body := string(msg)
	assert.Contains(t, body, "From: noted@example.com")
	assert.Contains(t, body, "To: alice@example.com")
	assert.Contains(t, body, "Subject: "+subject)
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "text/plain")
	assert.Contains(t, body, "text/html")

	// The link appears in the plain part and as a rendered anchor
	assert.Contains(t, body, "http://noted.example.com/?token=abc123")
	assert.Contains(t, body, `<a href="http://noted.example.com/?token=abc123"`)
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer()
	err := m.SendSignInLink(context.Background(), "alice@example.com", "http://noted.example.com/?token=abc123")
	assert.NoError(t, err)
}

func TestNewSMTPMailer_DefaultPort(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "noted@example.com"})
	assert.Equal(t, 587, m.cfg.Port)
}
