package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	purposeSession     = "session"
	purposeVerifyEmail = "verify_email"
)

var errWrongPurpose = errors.New("token purpose mismatch")

// tokenClaims is the payload of every token the portal signs. Purpose keeps a
// verification link from being replayed as a session and vice versa.
type tokenClaims struct {
	Purpose string `json:"purpose"`
	Version int    `json:"ver"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// signHS256 creates a compact JWT string using HS256.
func signHS256(claims tokenClaims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseHS256 verifies signature, expiry and purpose and returns the claims.
func parseHS256(raw, purpose string, secret []byte, now func() time.Time) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, errWrongPurpose
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
