package handlers

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"time"

	"animerec/internal/models"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	webhookPath        = "/telegram/webhook"
	secretTokenHeader  = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateSize      = 1 << 20
	updateProcessLimit = 60 * time.Second
)

// UpdateProcessor handles one Telegram update.
type UpdateProcessor interface {
	ProcessMessage(ctx context.Context, update *models.Update)
}

// MountWebhook makes Routes serve Telegram updates at /telegram/webhook.
// An empty secret disables the secret token check.
func (h *Handler) MountWebhook(processor UpdateProcessor, secret string) {
	h.webhook = WebhookHandler(processor, secret, h.logger)
}

func WebhookHandler(processor UpdateProcessor, secret string, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(secretTokenHeader)), []byte(secret)) != 1 {
			logger.Warn("Rejected webhook call with bad secret token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		update, err := parseUpdate(r)
		if err != nil {
			logger.WithError(err).Error("Error parsing request")
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		// Telegram retries slow webhooks, so acknowledge first and work detached.
		ctx, cancel := context.WithTimeout(context.Background(), updateProcessLimit)

		go func() {
			defer cancel()
			processor.ProcessMessage(ctx, update)
		}()

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func parseUpdate(r *http.Request) (*models.Update, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var update models.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("failed to decode update: %w", err)
	}

	return &update, nil
}
