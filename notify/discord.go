package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// defaultClient bounds webhook deliveries; a hung post is a failed post.
var defaultClient = &http.Client{Timeout: 10 * time.Second}

// DeliveryError is a non-2xx response from the webhook endpoint.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook delivery: status %d: %s", e.Status, e.Body)
}

// DiscordWebhook posts messages as Discord embeds via a webhook URL. Images
// are uploaded as multipart attachments and referenced from the embed so the
// preview renders inline. Safe for concurrent use.
type DiscordWebhook struct {
	URL        string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// NewDiscordWebhook returns a webhook notifier with a send-side rate limit.
// Discord allows bursts but throttles sustained webhook traffic; the limiter
// keeps concurrent watchers from tripping 429s.
func NewDiscordWebhook(url string) *DiscordWebhook {
	return &DiscordWebhook{
		URL:     url,
		Limiter: rate.NewLimiter(rate.Limit(2), 5),
	}
}

func (d *DiscordWebhook) http() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return defaultClient
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Post delivers one message. It makes exactly one attempt; callers decide
// whether a failure matters enough to log or escalate.
func (d *DiscordWebhook) Post(ctx context.Context, m Message) error {
	if d.URL == "" {
		return fmt.Errorf("webhook url empty")
	}
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("webhook rate wait: %w", err)
		}
	}

	e := embed{
		Title:       m.Title,
		Description: m.Description,
		Color:       m.Color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, f := range m.Fields {
		e.Fields = append(e.Fields, embedField(f))
	}

	imageName := m.ImageName
	if len(m.Image) > 0 {
		if imageName == "" {
			imageName = "preview.jpg"
		}
		e.Image = &embedImage{URL: "attachment://" + imageName}
	}
	payload, err := json.Marshal(webhookPayload{Embeds: []embed{e}})
	if err != nil {
		return err
	}

	var req *http.Request
	if len(m.Image) > 0 {
		req, err = d.multipartRequest(ctx, payload, imageName, m.Image)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(payload))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return err
	}

	resp, err := d.http().Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close webhook response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &DeliveryError{Status: resp.StatusCode, Body: string(b)}
	}
	return nil
}

func (d *DiscordWebhook) multipartRequest(ctx context.Context, payload []byte, imageName string, image []byte) (*http.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormField("payload_json")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, err
	}
	file, err := mw.CreateFormFile("files[0]", imageName)
	if err != nil {
		return nil, err
	}
	if _, err := file.Write(image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}
