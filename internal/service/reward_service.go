package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/recycling-rewards/internal/config"
	"github.com/fairyhunter13/recycling-rewards/internal/metrics"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
	"github.com/fairyhunter13/recycling-rewards/pkg/database"
)

// CouponPrefix starts every coupon code.
const CouponPrefix = "RECYCLE-"

// Notifier delivers a collection request to the operator.
type Notifier interface {
	Notify(ctx context.Context, req model.CollectionRequest) error
}

// RewardService runs the bin reward cycle:
//
//	filling --(bin_points >= threshold)--> notifying --(ResetBin)--> filling
//
// The filling to notifying transition is a conditional update on the user
// row, so each crossing is claimed by exactly one settlement and yields one
// coupon.
type RewardService struct {
	userRepo      UserRepositoryInterface
	couponRepo    CouponRepositoryInterface
	notifier      Notifier
	cfg           config.RewardConfig
	notifyTimeout time.Duration
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewRewardService creates a new RewardService.
func NewRewardService(
	userRepo UserRepositoryInterface,
	couponRepo CouponRepositoryInterface,
	notifier Notifier,
	cfg config.RewardConfig,
	notifyTimeout time.Duration,
	m *metrics.Metrics,
) *RewardService {
	return &RewardService{
		userRepo:      userRepo,
		couponRepo:    couponRepo,
		notifier:      notifier,
		cfg:           cfg,
		notifyTimeout: notifyTimeout,
		metrics:       m,
		now:           time.Now,
	}
}

// Evaluate runs inside the redeem transaction right after a settlement.
// It returns the coupon issued for a new crossing, or nil when the bin is
// below the threshold or the current crossing was already claimed.
func (s *RewardService) Evaluate(ctx context.Context, tx database.TxQuerier, userID string, binPoints int) (*model.Coupon, error) {
	if binPoints < s.cfg.Threshold {
		return nil, nil
	}

	crossing, claimed, err := s.userRepo.ClaimCrossing(ctx, tx, userID, s.cfg.Threshold)
	if err != nil {
		return nil, storeErr("claim crossing", err)
	}
	if !claimed {
		return nil, nil
	}

	coupon := &model.Coupon{
		Code:     NewCouponCode(),
		UserID:   userID,
		Crossing: crossing,
	}
	if err := s.couponRepo.Insert(ctx, tx, coupon); err != nil {
		return nil, storeErr("insert coupon", err)
	}
	return coupon, nil
}

// Dispatch records a committed coupon and sends its collection request.
// Delivery failures are reported on the outcome and never returned as errors.
func (s *RewardService) Dispatch(ctx context.Context, userID string, coupon *model.Coupon) *model.RewardOutcome {
	s.metrics.CouponIssued()
	return s.dispatch(ctx, userID, coupon)
}

func (s *RewardService) dispatch(ctx context.Context, userID string, coupon *model.Coupon) *model.RewardOutcome {
	outcome := &model.RewardOutcome{Coupon: *coupon}

	if err := s.notify(ctx, userID, coupon); err != nil {
		s.metrics.Notification(false)
		outcome.NotificationError = err.Error()
		log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("coupon_code", coupon.Code).
			Int("crossing", coupon.Crossing).
			Msg("collection notification failed, coupon kept")
		return outcome
	}
	s.metrics.Notification(true)
	outcome.Notified = true

	if s.cfg.AutoReset {
		// Delivery already happened; the reset must not depend on the caller staying connected.
		resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()
		if err := s.ResetBin(resetCtx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("automatic bin reset failed")
		} else {
			outcome.BinReset = true
		}
	}
	return outcome
}

func (s *RewardService) notify(ctx context.Context, userID string, coupon *model.Coupon) error {
	// The coupon is already committed; a cancelled request must not abort delivery.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	req := model.CollectionRequest{
		UserID:      userID,
		CouponCode:  coupon.Code,
		Crossing:    coupon.Crossing,
		RequestedAt: s.now().UTC(),
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: load user: %w", ErrNotificationFailed, err)
	}
	if user != nil {
		req.Name = user.Name
		req.Address = user.Address
	}

	if err := s.notifier.Notify(ctx, req); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	return nil
}

// ResetBin zeroes the bin and returns the user to filling. It is only valid
// while a reward is pending.
func (s *RewardService) ResetBin(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidRequest
	}

	reset, err := s.userRepo.ResetBin(ctx, userID)
	if err != nil {
		return storeErr("reset bin", err)
	}
	if reset {
		log.Info().Str("user_id", userID).Msg("bin reset")
		return nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return storeErr("get user", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	return ErrNoPendingReward
}

// RetryNotification re-sends the collection request for the pending coupon.
// No coupon is issued.
func (s *RewardService) RetryNotification(ctx context.Context, userID string) (*model.RewardOutcome, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.RewardState != model.RewardNotifying {
		return nil, ErrNoPendingReward
	}

	coupon, err := s.couponRepo.Latest(ctx, userID)
	if err != nil {
		return nil, storeErr("get latest coupon", err)
	}
	if coupon == nil {
		return nil, ErrNoPendingReward
	}
	return s.dispatch(ctx, userID, coupon), nil
}

// NewCouponCode returns a random code such as RECYCLE-3F2504E04F8911D39A0C0305E82C3301.
func NewCouponCode() string {
	return CouponPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
