package model

import "time"

// Coupon is issued once per reward threshold crossing.
type Coupon struct {
	Code     string    `json:"code"`
	UserID   string    `json:"user_id"`
	Crossing int       `json:"crossing"`
	IssuedAt time.Time `json:"issued_at"`
	Consumed bool      `json:"consumed"`
}

// RewardOutcome describes what the reward trigger did after a settlement.
// A failed notification leaves the coupon valid.
type RewardOutcome struct {
	Coupon            Coupon `json:"coupon"`
	Notified          bool   `json:"notified"`
	NotificationError string `json:"notification_error,omitempty"`
	BinReset          bool   `json:"bin_reset"`
}

// CollectionRequest asks the operator to collect a full bin.
type CollectionRequest struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	CouponCode  string    `json:"coupon_code"`
	Crossing    int       `json:"crossing"`
	RequestedAt time.Time `json:"requested_at"`
}
