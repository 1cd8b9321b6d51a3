package bot

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"animerec/internal/models"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const tgAPIURL = "https://api.telegram.org/bot"

// Bot sends messages through the Telegram Bot API.
type Bot struct {
	Token      string
	Logger     *logrus.Logger
	apiURL     string
	httpClient *http.Client
}

func NewBot(token string, logger *logrus.Logger) *Bot {
	return NewBotWithURL(token, tgAPIURL, logger)
}

// NewBotWithURL points the bot at another API root (tests, local Bot API servers).
func NewBotWithURL(token, apiURL string, logger *logrus.Logger) *Bot {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bot{
		Token:      token,
		Logger:     logger,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendMessage posts an HTML-formatted message to chatID.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	response := models.TelegramResponse{
		ChatId:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}

	jsonData, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	url := fmt.Sprintf("%s%s/sendMessage", b.apiURL, b.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("TG API returned status %d", resp.StatusCode)
	}

	return nil
}
