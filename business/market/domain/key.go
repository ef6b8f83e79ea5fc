package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DetectionKey identifies a watched arbitrage route:
// (network, token pair, venueA, venueB). It is the detection identity, not a
// uniqueness constraint across time; many opportunities may carry the same
// key, each a fresh snapshot.
type DetectionKey struct {
	Network string
	Base    string
	Quote   string
	VenueA  string
	VenueB  string
}

// String returns the canonical form used as store index and cool-down key.
func (k DetectionKey) String() string {
	return fmt.Sprintf("%s:%s-%s:%s/%s", k.Network, k.Base, k.Quote, k.VenueA, k.VenueB)
}

// ParseDetectionKey parses the canonical string form produced by String.
// Malformed input yields a zero-valued key; stored keys are always written
// via String so this only happens on hand-edited data.
func ParseDetectionKey(s string) DetectionKey {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return DetectionKey{}
	}
	pair := strings.SplitN(parts[1], "-", 2)
	venues := strings.SplitN(parts[2], "/", 2)
	if len(pair) != 2 || len(venues) != 2 {
		return DetectionKey{}
	}
	return DetectionKey{
		Network: parts[0],
		Base:    pair[0],
		Quote:   pair[1],
		VenueA:  venues[0],
		VenueB:  venues[1],
	}
}

// Route is one configured detection tuple together with its candidate input
// amount in base token units.
type Route struct {
	Key      DetectionKey
	Base     *Token
	Quote    *Token
	VenueA   *Venue
	VenueB   *Venue
	AmountIn decimal.Decimal
}
