package notify

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// LogNotifier writes collection requests to the log. It is the default
// driver and never fails.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier on the global logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.Logger}
}

// NewLogNotifierWithLogger creates a LogNotifier writing to logger.
func NewLogNotifierWithLogger(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, req model.CollectionRequest) error {
	n.logger.Info().
		Str("user_id", req.UserID).
		Str("name", req.Name).
		Str("address", req.Address).
		Str("coupon_code", req.CouponCode).
		Int("crossing", req.Crossing).
		Time("requested_at", req.RequestedAt).
		Msg(Message(req))
	return nil
}
