// Package notify delivers bin collection requests to the operator.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/fairyhunter13/recycling-rewards/internal/config"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// Driver names accepted by NOTIFY_DRIVER.
const (
	DriverLog     = "log"
	DriverSMS     = "sms"
	DriverWebhook = "webhook"
	DriverMQTT    = "mqtt"
)

// Notifier sends one collection request.
type Notifier interface {
	Notify(ctx context.Context, req model.CollectionRequest) error
}

// Closer is implemented by notifiers that hold a connection.
type Closer interface {
	Close()
}

// New builds the notifier selected by cfg.Driver.
func New(cfg config.NotifyConfig) (Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLog:
		return NewLogNotifier(), nil
	case DriverSMS:
		return NewSMSNotifier(cfg)
	case DriverWebhook:
		return NewWebhookNotifier(cfg)
	case DriverMQTT:
		return NewMQTTNotifier(cfg)
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

// Message renders the human readable text of a collection request.
func Message(req model.CollectionRequest) string {
	name := req.Name
	if name == "" {
		name = req.UserID
	}
	address := req.Address
	if address == "" {
		address = "no address on file"
	}
	return fmt.Sprintf("Bin full: please collect from %s at %s (coupon %s, crossing %d)",
		name, address, req.CouponCode, req.Crossing)
}
