package identity

import "time"

const (
	// ProviderPassword marks accounts created with email and password.
	ProviderPassword = "password"
	// ProviderGoogle marks accounts created from a Google ID token.
	ProviderGoogle = "google"
)

// Account is a registered identity. Profile data beyond the display name
// and phone lives in the profile store.
type Account struct {
	ID              string
	Email           string
	PasswordHash    []byte
	DisplayName     string
	PhoneNumber     string
	EmailVerified   bool
	TokenVersion    int
	Provider        string
	ProviderSubject string
	CreatedAt       time.Time
	LastLogin       *time.Time
}

// NewAccount is the input to CreateAccount.
type NewAccount struct {
	Email       string
	Password    string
	DisplayName string
	PhoneNumber string
}

// SocialIdentity is what a social provider vouches for.
type SocialIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
	GivenName     string
	FamilyName    string
}
