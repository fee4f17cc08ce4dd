package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookSettings configures the outbound webhook endpoint.
type WebhookSettings struct {
	URL      string            `json:"url"`
	Method   string            `json:"method,omitempty"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Webhook posts routed-item events to a custom endpoint.
type Webhook struct {
	settings   WebhookSettings
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewWebhook creates a webhook sender.
func NewWebhook(settings WebhookSettings, httpClient *http.Client, logger zerolog.Logger) *Webhook {
	if settings.Method == "" {
		settings.Method = http.MethodPost
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: sendTimeout}
	}
	return &Webhook{
		settings:   settings,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "webhook").Logger(),
	}
}

// webhookPayload is the request body.
type webhookPayload struct {
	EventType    string    `json:"eventType"`
	InstanceName string    `json:"instanceName"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       int64     `json:"userId,omitempty"`
	UserName     string    `json:"userName,omitempty"`
	Title        string    `json:"title,omitempty"`
	MediaType    string    `json:"mediaType,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// SendRouted delivers one routed-item event.
func (w *Webhook) SendRouted(ctx context.Context, event Event) error {
	return w.send(ctx, webhookPayload{
		EventType:    "watchlistRouted",
		InstanceName: "Relayarr",
		Timestamp:    time.Now().UTC(),
		UserID:       event.UserID,
		UserName:     event.UserName,
		Title:        event.Title,
		MediaType:    string(event.MediaType),
	})
}

// Test sends a test event so operators can verify the endpoint.
func (w *Webhook) Test(ctx context.Context) error {
	return w.send(ctx, webhookPayload{
		EventType:    "test",
		InstanceName: "Relayarr",
		Timestamp:    time.Now().UTC(),
		Message:      "Test notification from Relayarr",
	})
}

func (w *Webhook) send(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, w.settings.Method, w.settings.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if w.settings.Username != "" && w.settings.Password != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(w.settings.Username + ":" + w.settings.Password))
		req.Header.Set("Authorization", "Basic "+auth)
	}
	for key, value := range w.settings.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
