package model

import "time"

// RewardState is the persisted position of a user in the reward cycle.
type RewardState string

const (
	// RewardFilling means the bin is accumulating points.
	RewardFilling RewardState = "filling"
	// RewardNotifying means a coupon was issued for the current crossing and
	// the bin waits for an explicit reset.
	RewardNotifying RewardState = "notifying"
)

// User holds the point balances of a scanner.
type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Points      int         `json:"points"`
	BinPoints   int         `json:"bin_points"`
	RewardState RewardState `json:"reward_state"`
	Crossings   int         `json:"crossings"`
	CreatedAt   time.Time   `json:"-"`
	UpdatedAt   time.Time   `json:"-"`
}

// Settlement is the user's balance right after a credit.
type Settlement struct {
	TotalPoints int
	BinPoints   int
}

// Profile is the API response DTO for GET /api/users/me.
type Profile struct {
	User
	RedeemedTokens []string `json:"redeemed_tokens"`
	Coupons        []Coupon `json:"coupons"`
}

// UpdateProfileRequest is the DTO for PUT /api/users/me.
type UpdateProfileRequest struct {
	Name    string `json:"name" validate:"required,notblank,max=255"`
	Address string `json:"address" validate:"max=1024"`
}

// LeaderboardEntry is one row of the points leaderboard.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// RankResponse is the API response DTO for GET /api/leaderboard/me.
type RankResponse struct {
	UserID string `json:"user_id"`
	Rank   int    `json:"rank"`
	Points int    `json:"points"`
}
