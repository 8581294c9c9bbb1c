package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_OTP(t *testing.T) {
	subject, html, err := Render(Message{
		Type:     "otp",
		Token:    "482913",
		Name:     "Ada",
		FromName: "EmailAPI",
	})
	require.NoError(t, err)

	assert.Equal(t, "Your verification code is 482913", subject)
	assert.Contains(t, html, "482913")
	assert.Contains(t, html, "Hi Ada,")
	assert.Contains(t, html, "EmailAPI")
}

func TestRender_OTP_NoName(t *testing.T) {
	_, html, err := Render(Message{Type: "otp", Token: "111222", FromName: "EmailAPI"})
	require.NoError(t, err)

	assert.Contains(t, html, "Hi,")
	assert.NotContains(t, html, "Hi ,")
}

func TestRender_MagicLink(t *testing.T) {
	subject, html, err := Render(Message{
		Type:     "magic_link",
		Token:    "https://app.example.com/auth?t=abc123",
		FromName: "EmailAPI",
	})
	require.NoError(t, err)

	assert.Equal(t, "Your sign-in link", subject)
	assert.Contains(t, html, `href="https://app.example.com/auth?t=abc123"`)
}

func TestRender_PasswordReset(t *testing.T) {
	subject, html, err := Render(Message{
		Type:     "password_reset",
		Token:    "https://app.example.com/reset?t=xyz",
		FromName: "EmailAPI",
	})
	require.NoError(t, err)

	assert.Equal(t, "Reset your password", subject)
	assert.Contains(t, html, "Reset Password")
	assert.Contains(t, html, "https://app.example.com/reset?t=xyz")
}

func TestRender_Welcome(t *testing.T) {
	subject, html, err := Render(Message{Type: "welcome", Name: "Grace", FromName: "Acme"})
	require.NoError(t, err)

	assert.Equal(t, "Welcome to Acme!", subject)
	assert.Contains(t, html, "Hi Grace,")
}

func TestRender_Welcome_FallbackGreeting(t *testing.T) {
	_, html, err := Render(Message{Type: "welcome", FromName: "Acme"})
	require.NoError(t, err)

	assert.Contains(t, html, "Hi there,")
}

func TestRender_CustomBypassesTemplates(t *testing.T) {
	subject, html, err := Render(Message{
		Type:       "custom",
		Subject:    "March invoice",
		CustomHTML: "<h1>Invoice attached</h1>",
		FromName:   "EmailAPI",
	})
	require.NoError(t, err)

	assert.Equal(t, "March invoice", subject)
	assert.Equal(t, "<h1>Invoice attached</h1>", html)
}

func TestRender_UnknownType(t *testing.T) {
	_, _, err := Render(Message{Type: "newsletter"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown email type")
}

func TestRender_EscapesTemplateInput(t *testing.T) {
	_, html, err := Render(Message{
		Type:     "otp",
		Token:    "123456",
		Name:     "<script>alert(1)</script>",
		FromName: "EmailAPI",
	})
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.True(t, strings.Contains(html, "&lt;script&gt;"))
}
