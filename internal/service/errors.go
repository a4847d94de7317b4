package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDuplicateID is returned when minting a token whose id already exists
	ErrDuplicateID = errors.New("token id already exists")

	// ErrTokenNotFound is returned when a token cannot be found
	ErrTokenNotFound = errors.New("token not found")

	// ErrAlreadyRedeemed is matched by *AlreadyRedeemedError
	ErrAlreadyRedeemed = errors.New("token already redeemed")

	// ErrInvalidCount is returned when a bulk mint count is out of range
	ErrInvalidCount = errors.New("invalid count")

	// ErrInvalidCategory is returned when a category has no entry in the point table
	ErrInvalidCategory = errors.New("invalid category")

	// ErrTransientStore is returned when the store failed in a retryable way.
	// Callers must re-query the token before retrying a redeem.
	ErrTransientStore = errors.New("transient store error")

	// ErrSettlementFailed is returned when crediting the user failed; the
	// redemption was rolled back with it
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrNotificationFailed marks a collection notification that was not
	// delivered. It never fails the enclosing redeem.
	ErrNotificationFailed = errors.New("notification delivery failed")

	// ErrUserNotFound is returned when a user has no record yet
	ErrUserNotFound = errors.New("user not found")

	// ErrNoPendingReward is returned when a bin reset or notification retry
	// is requested while no reward is pending
	ErrNoPendingReward = errors.New("no pending reward")
)

// AlreadyRedeemedError carries who redeemed a token and when.
type AlreadyRedeemedError struct {
	TokenID    string
	RedeemedBy string
	RedeemedAt time.Time
	// ByCaller is true when the user attempting the redeem is the one who
	// already redeemed the token.
	ByCaller bool
}

func (e *AlreadyRedeemedError) Error() string {
	return fmt.Sprintf("token %s already redeemed by %s at %s",
		e.TokenID, e.RedeemedBy, e.RedeemedAt.UTC().Format(time.RFC3339))
}

// Unwrap lets errors.Is match ErrAlreadyRedeemed.
func (e *AlreadyRedeemedError) Unwrap() error {
	return ErrAlreadyRedeemed
}
