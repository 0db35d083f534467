//go:build e2e

package e2e

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/fgeck/wakelaunch/internal/services/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTelegramConfig(t *testing.T) models.TelegramConfig {
	t.Helper()

	botToken := os.Getenv("TEST_TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		t.Skip("TEST_TELEGRAM_BOT_TOKEN not set")
	}

	chatID := os.Getenv("TEST_TELEGRAM_CHAT_ID")
	if chatID == "" {
		t.Skip("TEST_TELEGRAM_CHAT_ID not set")
	}

	return models.TelegramConfig{
		BotToken: botToken,
		ChatID:   chatID,
	}
}

func TestTelegramSendLaunchedNotification_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)

	svc := telegram.New(testLogger())

	event := models.WakeEvent{
		Time:       time.Now(),
		Host:       "e2e-test-host",
		Interface:  "eth0",
		SourceMAC:  "02:00:00:00:00:01",
		TargetMAC:  "aa:bb:cc:dd:ee:ff",
		LaunchPath: "/usr/bin/kodi",
		PID:        4711,
		Readiness:  &models.ReadinessResult{Ready: true, WaitDuration: 7 * time.Second},
	}

	result, err := svc.SendNotification(context.Background(), cfg, event)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)
}

func TestTelegramSendFailureNotification_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)

	svc := telegram.New(testLogger())

	event := models.WakeEvent{
		Time:       time.Now(),
		Host:       "e2e-test-host",
		Interface:  "eth0",
		TargetMAC:  "aa:bb:cc:dd:ee:ff",
		LaunchPath: "/usr/bin/kodi",
		LaunchErr:  errors.New("no user logged into the active console session"),
	}

	result, err := svc.SendNotification(context.Background(), cfg, event)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)
}

func TestTelegramInvalidToken_E2E(t *testing.T) {
	cfg := models.TelegramConfig{
		BotToken: "invalid:token",
		ChatID:   "-100123456789",
	}

	svc := telegram.New(testLogger())

	result, err := svc.SendNotification(context.Background(), cfg, models.WakeEvent{Host: "test"})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
}
