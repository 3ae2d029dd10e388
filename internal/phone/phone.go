package phone

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhoneNumber is returned when input cannot be turned into a valid
// number for the given or inferred region.
var ErrInvalidPhoneNumber = errors.New("invalid phone number")

// DefaultRegion is used when neither the caller nor the Normalizer specify one.
const DefaultRegion = "FR"

// Normalizer canonicalizes phone numbers to E.164.
type Normalizer struct {
	region string
}

// NewNormalizer returns a Normalizer that falls back to region for numbers
// written in national format.
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return &Normalizer{region: region}
}

// Normalize parses raw and returns it as +<country><national number>. A
// number written with a leading + carries its own region; otherwise
// defaultRegion, then the Normalizer's region, is used.
func (n *Normalizer) Normalize(raw, defaultRegion string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhoneNumber)
	}
	// libphonenumber maps vanity letters to digits; reject them instead.
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			return "", fmt.Errorf("%w: contains letters", ErrInvalidPhoneNumber)
		}
	}

	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = n.region
	}

	num, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhoneNumber, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: not a valid number for region %s", ErrInvalidPhoneNumber, phonenumbers.GetRegionCodeForNumber(num))
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
