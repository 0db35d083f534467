// Package telegram provides Telegram notification services.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for Telegram notification operations.
type Service interface {
	SendNotification(ctx context.Context, cfg models.TelegramConfig, event models.WakeEvent) (*models.TelegramResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the Telegram Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
}

// New creates a new Telegram service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		baseURL: "https://api.telegram.org",
	}
}

// NewWithClient creates a new Telegram service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// sendMessageRequest is the request body for Telegram sendMessage API.
type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendNotification reports a wake event via Telegram.
func (s *Impl) SendNotification(ctx context.Context, cfg models.TelegramConfig, event models.WakeEvent) (*models.TelegramResult, error) {
	result := &models.TelegramResult{}

	s.logger.Info().
		Str("chat_id", cfg.ChatID).
		Bool("launched", event.Launched()).
		Msg("sending Telegram notification")

	reqBody := sendMessageRequest{
		ChatID:    cfg.ChatID,
		Text:      s.formatMessage(event),
		ParseMode: "HTML",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		result.Error = fmt.Errorf("failed to marshal request: %w", err)
		return result, nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, cfg.BotToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		return result, nil
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("failed to send request: %w", err)
		return result, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("telegram API returned status %d", resp.StatusCode)
		return result, nil
	}

	result.MessageSent = true
	s.logger.Info().Msg("Telegram notification sent successfully")

	return result, nil
}

func (s *Impl) formatMessage(event models.WakeEvent) string {
	var b bytes.Buffer

	if event.Launched() {
		b.WriteString("✅ <b>Application Launched</b>\n\n")
	} else {
		b.WriteString("❌ <b>Launch Failed</b>\n\n")
	}

	b.WriteString(fmt.Sprintf("🖥 <b>Host:</b> %s\n", escapeHTML(event.Host)))
	b.WriteString(fmt.Sprintf("🔌 <b>Interface:</b> %s\n", escapeHTML(event.Interface)))
	b.WriteString(fmt.Sprintf("⏰ <b>Received:</b> %s\n", event.Time.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("📦 <b>Application:</b> %s\n", escapeHTML(event.LaunchPath)))

	b.WriteString("\n<b>📡 Magic Packet:</b>\n")
	b.WriteString(fmt.Sprintf("  • Target: <code>%s</code>\n", escapeHTML(event.TargetMAC)))
	if event.SourceMAC != "" {
		b.WriteString(fmt.Sprintf("  • Sender: <code>%s</code>\n", escapeHTML(event.SourceMAC)))
	}

	if !event.Launched() {
		b.WriteString("\n<b>⚠️ Error Details:</b>\n")
		b.WriteString(fmt.Sprintf("  • Error: <code>%s</code>\n", escapeHTML(event.LaunchErr.Error())))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("\n🚀 <b>PID:</b> %d\n", event.PID))

	if r := event.Readiness; r != nil {
		if r.Ready {
			b.WriteString(fmt.Sprintf("🟢 <b>Ready after:</b> %s\n", r.WaitDuration.Round(time.Second)))
		} else {
			msg := "not ready"
			if r.Error != nil {
				msg = r.Error.Error()
			}
			b.WriteString(fmt.Sprintf("🟠 <b>Not ready:</b> <code>%s</code>\n", escapeHTML(msg)))
		}
	}

	return b.String()
}

// escapeHTML escapes HTML special characters.
func escapeHTML(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
