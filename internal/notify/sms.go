package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/recycling-rewards/internal/config"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// SMSNotifier sends collection requests as text messages through the
// Twilio Messages API.
type SMSNotifier struct {
	endpoint   string
	accountSID string
	authToken  string
	from       string
	to         string
	timeout    time.Duration
}

// NewSMSNotifier validates the Twilio settings and creates an SMSNotifier.
func NewSMSNotifier(cfg config.NotifyConfig) (*SMSNotifier, error) {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return nil, errors.New("sms notifier: NOTIFY_TWILIO_ACCOUNT_SID and NOTIFY_TWILIO_AUTH_TOKEN are required")
	}
	if cfg.SMSFrom == "" || cfg.SMSTo == "" {
		return nil, errors.New("sms notifier: NOTIFY_SMS_FROM and NOTIFY_SMS_TO are required")
	}
	return &SMSNotifier{
		endpoint: fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
			strings.TrimRight(cfg.TwilioBaseURL, "/"), cfg.TwilioAccountSID),
		accountSID: cfg.TwilioAccountSID,
		authToken:  cfg.TwilioAuthToken,
		from:       cfg.SMSFrom,
		to:         cfg.SMSTo,
		timeout:    cfg.Timeout,
	}, nil
}

func (n *SMSNotifier) Notify(ctx context.Context, req model.CollectionRequest) error {
	timeout, err := remaining(ctx, n.timeout)
	if err != nil {
		return err
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("To", n.to)
	args.Set("From", n.from)
	args.Set("Body", Message(req))

	code, body, errs := fiber.Post(n.endpoint).
		BasicAuth(n.accountSID, n.authToken).
		Form(args).
		Timeout(timeout).
		Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("send sms: %w", errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return fmt.Errorf("send sms: twilio returned %d: %s", code, truncate(body, 256))
	}
	return nil
}

// remaining bounds the request by both the configured timeout and ctx.
func remaining(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return 0, context.DeadlineExceeded
	}
	return timeout, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
