package services

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_Disabled(t *testing.T) {
	svc := NewNotificationService(nil)
	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.Send("title", "body"))

	var nilSvc *NotificationService
	assert.False(t, nilSvc.Enabled())
}

func TestNotificationService_SendAll(t *testing.T) {
	svc := NewNotificationService([]string{"generic://one.example/hook", "slack://token@channel"})
	var sent []string
	svc.send = func(url, msg string) error {
		sent = append(sent, url)
		assert.Equal(t, "Overdue tests\n\n3 overdue", msg)
		return nil
	}

	require.NoError(t, svc.Send("Overdue tests", "3 overdue"))
	assert.Equal(t, []string{"generic://one.example/hook", "slack://token@channel"}, sent)
}

func TestNotificationService_CollectsErrors(t *testing.T) {
	svc := NewNotificationService([]string{"generic://one.example/hook", "slack://token@channel"})
	calls := 0
	svc.send = func(url, msg string) error {
		calls++
		if calls == 1 {
			return errors.New("boom")
		}
		return nil
	}

	err := svc.Send("t", "m")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 2, calls)
}

func TestNormalizeURL_Discord(t *testing.T) {
	got := normalizeURL("https://discord.com/api/webhooks/123456/abc_DEF-1")
	assert.Equal(t, "discord://abc_DEF-1@123456", got)
	assert.Equal(t, "slack://x@y", normalizeURL("slack://x@y"))
}

func TestIsPrivateIP(t *testing.T) {
	assert.True(t, isPrivateIP(net.ParseIP("10.1.2.3")))
	assert.True(t, isPrivateIP(net.ParseIP("172.20.0.1")))
	assert.True(t, isPrivateIP(net.ParseIP("192.168.1.1")))
	assert.True(t, isPrivateIP(net.ParseIP("127.0.0.1")))
	assert.False(t, isPrivateIP(net.ParseIP("8.8.8.8")))
}

func TestValidateWebhookURL(t *testing.T) {
	_, err := validateWebhookURL("ftp://example.com")
	assert.Error(t, err)

	_, err = validateWebhookURL("http://")
	assert.Error(t, err)

	u, err := validateWebhookURL("http://localhost:9000/hook")
	require.NoError(t, err)
	assert.Equal(t, "localhost", u.Hostname())
}
