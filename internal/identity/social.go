package identity

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

// SocialVerifier checks a credential issued by a social provider.
type SocialVerifier interface {
	Verify(ctx context.Context, credential string) (SocialIdentity, error)
}

// GoogleVerifier validates Google ID tokens against the OAuth client id.
type GoogleVerifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewGoogleVerifier builds a verifier for tokens minted for clientID.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

// Verify validates the token signature and audience and extracts the profile claims.
func (g *GoogleVerifier) Verify(ctx context.Context, credential string) (SocialIdentity, error) {
	payload, err := g.validate(ctx, credential, g.clientID)
	if err != nil {
		return SocialIdentity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	name, _ := payload.Claims["name"].(string)
	given, _ := payload.Claims["given_name"].(string)
	family, _ := payload.Claims["family_name"].(string)

	return SocialIdentity{
		Provider:      ProviderGoogle,
		Subject:       payload.Subject,
		Email:         email,
		EmailVerified: verified,
		DisplayName:   strings.TrimSpace(name),
		GivenName:     given,
		FamilyName:    family,
	}, nil
}

// StaticVerifier maps opaque credentials to identities. Development and tests.
type StaticVerifier map[string]SocialIdentity

// Verify looks the credential up.
func (s StaticVerifier) Verify(_ context.Context, credential string) (SocialIdentity, error) {
	id, ok := s[credential]
	if !ok {
		return SocialIdentity{}, ErrInvalidToken
	}
	return id, nil
}
