package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Message 封装一条待发送的通知。
type Message struct {
	Text           string
	DisablePreview bool
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, message Message) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	delay    time.Duration
	client   *http.Client
	logger   zerolog.Logger
	lastSend time.Time
}

// NewTelegramNotifier 构造 Telegram 告警器。 delay spaces out consecutive
// sends to stay under the bot API rate limit.
func NewTelegramNotifier(botToken, chatID, baseURL string, delay, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		delay:    delay,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送 HTML 文本。
func (n *TelegramNotifier) Notify(ctx context.Context, message Message) error {
	if err := n.throttle(ctx); err != nil {
		return err
	}

	payload := map[string]any{
		"chat_id":                  n.chatID,
		"text":                     message.Text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": message.DisablePreview,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Debug().Int("chars", len(message.Text)).Msg("notification sent")
	return nil
}

func (n *TelegramNotifier) throttle(ctx context.Context) error {
	if n.delay <= 0 || n.lastSend.IsZero() {
		n.lastSend = time.Now()
		return nil
	}

	wait := n.delay - time.Since(n.lastSend)
	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	n.lastSend = time.Now()
	return nil
}

var _ Notifier = (*TelegramNotifier)(nil)
