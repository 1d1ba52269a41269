package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook delivery headers.
const (
	HeaderEvent     = "X-Ticketflow-Event"
	HeaderSignature = "X-Ticketflow-Signature"
)

// WebhookNotifier posts each Event as JSON. With a secret, the body is
// signed and the signature sent as "sha256=<hex hmac>" in HeaderSignature.
type WebhookNotifier struct {
	url     string
	secret  []byte
	headers http.Header
	client  *http.Client
	now     func() time.Time
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithWebhookSecret signs deliveries with secret.
func WithWebhookSecret(secret string) WebhookOption {
	return func(n *WebhookNotifier) {
		if secret != "" {
			n.secret = []byte(secret)
		}
	}
}

// WithWebhookHeader adds a header to every delivery.
func WithWebhookHeader(key, value string) WebhookOption {
	return func(n *WebhookNotifier) { n.headers.Set(key, value) }
}

// WithWebhookClient replaces the HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(n *WebhookNotifier) { n.client = c }
}

// NewWebhookNotifier creates a WebhookNotifier for url.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	n := &WebhookNotifier{
		url:     url,
		headers: make(http.Header),
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = n.now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h := n.headers.Clone()
	h.Set(HeaderEvent, string(event.Type))
	if n.secret != nil {
		h.Set(HeaderSignature, Sign(n.secret, body))
	}
	return post(ctx, n.client, n.url, h, body, "webhook")
}

// Sign returns the HeaderSignature value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// post sends a JSON body and treats any non-2xx status as an error.
func post(ctx context.Context, client *http.Client, url string, h http.Header, body []byte, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", name, err)
	}
	for k, vs := range h {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", name, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
