package model

import "time"

// Token is a minted recyclable item.
type Token struct {
	ID         string     `json:"id"`
	Category   string     `json:"category"`
	PointValue int        `json:"point_value"`
	Redeemed   bool       `json:"redeemed"`
	RedeemedBy *string    `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	MintedAt   time.Time  `json:"minted_at"`
}

// TokenResponse is a token together with its printable QR payload.
type TokenResponse struct {
	Token
	Payload string `json:"payload"`
}

// MintTokenRequest is the DTO for POST /api/admin/tokens.
// An empty ID lets the server generate one.
type MintTokenRequest struct {
	ID       string `json:"id" validate:"omitempty,notblank,nopipe,max=128"`
	Category string `json:"category" validate:"required,notblank,nopipe,max=32"`
}

// BulkMintRequest is the DTO for POST /api/admin/tokens/bulk.
type BulkMintRequest struct {
	Category string `json:"category" validate:"required,notblank,nopipe,max=32"`
	Count    *int   `json:"count" validate:"required"`
}

// BulkMintResult reports the outcome of a bulk mint. Batches are
// all-or-nothing, so Minted equals Requested whenever no error is returned.
type BulkMintResult struct {
	Category   string          `json:"category"`
	PointValue int             `json:"point_value"`
	Requested  int             `json:"requested"`
	Minted     int             `json:"minted"`
	Tokens     []TokenResponse `json:"tokens"`
}

// RedeemRequest is the DTO for POST /api/tokens/redeem.
type RedeemRequest struct {
	QRData string `json:"qr_data" validate:"required,notblank,max=512"`
}

// RedeemResult is returned from a successful scan.
type RedeemResult struct {
	Token         Token          `json:"token"`
	PointsAwarded int            `json:"points_awarded"`
	TotalPoints   int            `json:"total_points"`
	BinPoints     int            `json:"bin_points"`
	Reward        *RewardOutcome `json:"reward,omitempty"`
}

// Stats summarizes ledger usage for admins.
type Stats struct {
	TotalTokens   int64 `json:"total_tokens"`
	Unredeemed    int64 `json:"unredeemed_tokens"`
	Redeemed      int64 `json:"redeemed_tokens"`
	Users         int64 `json:"users"`
	CouponsIssued int64 `json:"coupons_issued"`
}
