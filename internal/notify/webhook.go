package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/recycling-rewards/internal/config"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// SignatureHeader carries the webhook signature:
//
//	X-Signature: t={timestamp},v1={hex hmac-sha256(secret, "{timestamp}.{payload}")}
const SignatureHeader = "X-Signature"

// WebhookNotifier posts collection requests as signed JSON.
type WebhookNotifier struct {
	url     string
	secret  string
	timeout time.Duration
	now     func() time.Time
}

type webhookPayload struct {
	Event   string                  `json:"event"`
	Message string                  `json:"message"`
	Request model.CollectionRequest `json:"request"`
}

// NewWebhookNotifier creates a WebhookNotifier. An empty secret sends
// unsigned requests.
func NewWebhookNotifier(cfg config.NotifyConfig) (*WebhookNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, errors.New("webhook notifier: NOTIFY_WEBHOOK_URL is required")
	}
	return &WebhookNotifier{
		url:     cfg.WebhookURL,
		secret:  cfg.WebhookSecret,
		timeout: cfg.Timeout,
		now:     time.Now,
	}, nil
}

func (n *WebhookNotifier) Notify(ctx context.Context, req model.CollectionRequest) error {
	timeout, err := remaining(ctx, n.timeout)
	if err != nil {
		return err
	}

	body, err := json.Marshal(webhookPayload{Event: "bin.collection_requested", Message: Message(req), Request: req})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	agent := fiber.Post(n.url).
		ContentType(fiber.MIMEApplicationJSON).
		Body(body).
		Timeout(timeout)
	if n.secret != "" {
		agent.Set(SignatureHeader, SignHeader(body, n.secret, n.now().Unix()))
	}

	code, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post webhook: %w", errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return fmt.Errorf("post webhook: receiver returned %d: %s", code, truncate(resp, 256))
	}
	return nil
}

// SignHeader produces the X-Signature header value for payload.
func SignHeader(payload []byte, secret string, timestamp int64) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, ComputeSignature(timestamp, payload, secret))
}

// ComputeSignature returns hex(HMAC-SHA256(secret, "{timestamp}.{payload}")).
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
