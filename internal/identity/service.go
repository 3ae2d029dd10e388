package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidToken        = errors.New("invalid token")
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
)

const minPasswordLength = 6

// Service manages the account lifecycle.
type Service struct {
	repo      Repository
	verifiers map[string]SocialVerifier
	now       func() time.Time
}

// NewService creates a new identity service. verifiers is keyed by provider
// name and may be nil when social sign-in is disabled.
func NewService(repo Repository, verifiers map[string]SocialVerifier) *Service {
	if verifiers == nil {
		verifiers = map[string]SocialVerifier{}
	}
	return &Service{repo: repo, verifiers: verifiers, now: time.Now}
}

// NormalizeEmail lower-cases and trims an email so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers an email/password account with an unverified email.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (Account, error) {
	email := NormalizeEmail(in.Email)
	if !govalidator.IsEmail(email) {
		return Account{}, ErrInvalidEmail
	}
	if len(in.Password) < minPasswordLength {
		return Account{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	account := Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PhoneNumber:  in.PhoneNumber,
		Provider:     ProviderPassword,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Authenticate verifies email and password. Accounts whose email is not yet
// confirmed are refused.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if len(account.PasswordHash) == 0 {
		return Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !account.EmailVerified {
		return Account{}, ErrEmailNotVerified
	}
	s.touch(ctx, &account)
	return account, nil
}

// ResolveSocial verifies a provider credential and returns the matching
// account, creating it on first sign-in. created reports whether a new
// account was made.
func (s *Service) ResolveSocial(ctx context.Context, provider, credential string) (account Account, created bool, err error) {
	verifier, ok := s.verifiers[strings.ToLower(provider)]
	if !ok {
		return Account{}, false, ErrUnsupportedProvider
	}
	social, err := verifier.Verify(ctx, credential)
	if err != nil {
		return Account{}, false, err
	}
	if social.Subject == "" || social.Email == "" {
		return Account{}, false, fmt.Errorf("%w: provider returned no subject or email", ErrInvalidToken)
	}
	if social.Provider == "" {
		social.Provider = strings.ToLower(provider)
	}

	account, err = s.repo.FindByProvider(ctx, social.Provider, social.Subject)
	if err == nil {
		s.touch(ctx, &account)
		return account, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, false, err
	}

	email := NormalizeEmail(social.Email)
	account, err = s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		// Only a provider-verified email may take over an existing account.
		if !social.EmailVerified {
			return Account{}, false, ErrEmailAlreadyExists
		}
		if !account.EmailVerified {
			if err := s.repo.MarkEmailVerified(ctx, account.ID); err != nil {
				return Account{}, false, err
			}
			account.EmailVerified = true
		}
		s.touch(ctx, &account)
		return account, false, nil
	case !errors.Is(err, ErrAccountNotFound):
		return Account{}, false, err
	}

	displayName := social.DisplayName
	if displayName == "" {
		displayName = strings.TrimSpace(social.GivenName + " " + social.FamilyName)
	}
	account = Account{
		ID:              uuid.New().String(),
		Email:           email,
		DisplayName:     displayName,
		EmailVerified:   social.EmailVerified,
		Provider:        social.Provider,
		ProviderSubject: social.Subject,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, false, err
	}
	s.touch(ctx, &account)
	return account, true, nil
}

// FindByID returns the account with the given id.
func (s *Service) FindByID(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByEmail returns the account registered with email.
func (s *Service) FindByEmail(ctx context.Context, email string) (Account, error) {
	return s.repo.FindByEmail(ctx, NormalizeEmail(email))
}

// MarkEmailVerified confirms the account email.
func (s *Service) MarkEmailVerified(ctx context.Context, id string) error {
	return s.repo.MarkEmailVerified(ctx, id)
}

// BumpTokenVersion invalidates every session issued for the account.
func (s *Service) BumpTokenVersion(ctx context.Context, id string) error {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.UpdateTokenVersion(ctx, id, account.TokenVersion+1)
}

// touch stamps the last login; failures do not block the sign-in.
func (s *Service) touch(ctx context.Context, account *Account) {
	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, account.ID, now); err == nil {
		account.LastLogin = &now
	}
}
