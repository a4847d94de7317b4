// Package token encodes and decodes the compact payload printed on QR labels.
//
// The wire format is the ASCII string "<id>|<category>|<points>": exactly three
// pipe-delimited fields with no escaping. Categories are not checked here; the
// ledger validates them against the configured point table.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Separator delimits the payload fields.
	Separator = "|"

	fieldCount = 3

	// MaxIDLength bounds a token id to what the ledger can store.
	MaxIDLength = 128
)

var (
	// ErrMalformedPayload is returned when a payload is not three non-empty fields.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidPointValue is returned when the points field is not a non-negative integer.
	ErrInvalidPointValue = errors.New("invalid point value")
)

// Payload is the decoded content of a QR label.
type Payload struct {
	ID         string
	Category   string
	PointValue int
}

// Legacy reports whether the payload came from the older JSON label format,
// which only carried the item id.
func (p Payload) Legacy() bool {
	return p.Category == ""
}

// Encode builds the printable payload for a token.
// Fields that would not survive a Decode are rejected.
func Encode(id, category string, pointValue int) (string, error) {
	if err := checkID(id); err != nil {
		return "", fmt.Errorf("id: %w", err)
	}
	if err := checkField(category); err != nil {
		return "", fmt.Errorf("category: %w", err)
	}
	if pointValue < 0 {
		return "", ErrInvalidPointValue
	}
	return id + Separator + category + Separator + strconv.Itoa(pointValue), nil
}

// Decode parses a pipe-delimited payload.
func Decode(payload string) (Payload, error) {
	parts := strings.Split(strings.TrimSpace(payload), Separator)
	if len(parts) != fieldCount {
		return Payload{}, ErrMalformedPayload
	}
	if checkID(parts[0]) != nil || checkField(parts[1]) != nil || parts[2] == "" {
		return Payload{}, ErrMalformedPayload
	}

	points, err := parsePoints(parts[2])
	if err != nil {
		return Payload{}, err
	}

	return Payload{ID: parts[0], Category: parts[1], PointValue: points}, nil
}

type legacyPayload struct {
	ItemID    string `json:"itemId"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// DecodeLegacy parses the JSON label format {"itemId": "..."}.
// Only the id is recovered; category and points come from the ledger.
func DecodeLegacy(payload string) (Payload, error) {
	var lp legacyPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &lp); err != nil {
		return Payload{}, ErrMalformedPayload
	}
	if checkID(lp.ItemID) != nil {
		return Payload{}, ErrMalformedPayload
	}
	return Payload{ID: lp.ItemID}, nil
}

// Parse decodes either label format. JSON labels are only accepted when
// acceptLegacy is set; otherwise they fail as malformed.
func Parse(payload string, acceptLegacy bool) (Payload, error) {
	if strings.HasPrefix(strings.TrimSpace(payload), "{") {
		if !acceptLegacy {
			return Payload{}, ErrMalformedPayload
		}
		return DecodeLegacy(payload)
	}
	return Decode(payload)
}

// checkField rejects empty fields, the separator and NUL, which Postgres
// text columns cannot hold.
func checkField(s string) error {
	if s == "" || strings.Contains(s, Separator) || strings.IndexByte(s, 0) >= 0 {
		return ErrMalformedPayload
	}
	return nil
}

func checkID(id string) error {
	if len(id) > MaxIDLength {
		return ErrMalformedPayload
	}
	return checkField(id)
}

// parsePoints accepts digits only, so "+5", "-1" and " 5" are rejected.
func parsePoints(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidPointValue
		}
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, ErrInvalidPointValue
	}
	return int(n), nil
}
