package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/parisgate/parisgate/internal/geo"
	"github.com/parisgate/parisgate/internal/identity"
)

// ErrEmptyUpdate is returned when a completion request carries no field.
var ErrEmptyUpdate = errors.New("no profile field to update")

// EligibilityChecker gates every address written to a profile.
type EligibilityChecker interface {
	RequireEligible(ctx context.Context, address string) (geo.Result, error)
}

// PhoneNormalizer converts user input to E.164.
type PhoneNormalizer interface {
	Normalize(raw, defaultRegion string) (string, error)
}

// Input is a profile completion or edit request. Blank fields are ignored.
type Input struct {
	FirstName   string
	LastName    string
	PhoneNumber string
	Address     string
	Region      string
}

// Service reads and edits profiles.
type Service struct {
	store   Store
	checker EligibilityChecker
	phones  PhoneNormalizer
	now     func() time.Time
}

func NewService(store Store, checker EligibilityChecker, phones PhoneNormalizer) *Service {
	return &Service{store: store, checker: checker, phones: phones, now: time.Now}
}

// Get returns the profile of userID.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	return s.store.Get(ctx, userID)
}

// ForAccount returns the stored profile of account, or an unsaved one seeded
// from the account when the document was never written.
func (s *Service) ForAccount(ctx context.Context, account identity.Account) (Profile, error) {
	p, err := s.store.Get(ctx, account.ID)
	if errors.Is(err, ErrProfileNotFound) {
		return s.seed(account), nil
	}
	return p, err
}

// Complete merges the non-blank fields of in into the profile of account.
// The phone number is normalized and a new address must pass the eligibility
// gate; on any rejection the stored document is left as it was. A missing
// document is created from the account, so a signup whose profile write
// failed can be finished here.
func (s *Service) Complete(ctx context.Context, account identity.Account, in Input) (Profile, error) {
	var patch Patch
	if v := strings.TrimSpace(in.FirstName); v != "" {
		patch.FirstName = &v
	}
	if v := strings.TrimSpace(in.LastName); v != "" {
		patch.LastName = &v
	}
	if v := strings.TrimSpace(in.PhoneNumber); v != "" {
		normalized, err := s.phones.Normalize(v, in.Region)
		if err != nil {
			return Profile{}, err
		}
		patch.PhoneNumber = &normalized
	}
	if v := strings.TrimSpace(in.Address); v != "" {
		if _, err := s.checker.RequireEligible(ctx, v); err != nil {
			return Profile{}, err
		}
		patch.Address = &v
	}
	if patch.Empty() {
		return Profile{}, ErrEmptyUpdate
	}
	return s.store.Upsert(ctx, s.seed(account), patch)
}

// EnsureForSocialLogin creates the profile of a social account on first
// sign-in. An existing document is never overwritten.
func (s *Service) EnsureForSocialLogin(ctx context.Context, account identity.Account) (Profile, error) {
	p := s.seed(account)
	created, err := s.store.CreateIfAbsent(ctx, p)
	if err != nil {
		return Profile{}, err
	}
	if created {
		return p, nil
	}
	return s.store.Get(ctx, account.ID)
}

// MarkEmailVerified mirrors the account verification onto the profile.
func (s *Service) MarkEmailVerified(ctx context.Context, userID string) error {
	verified := true
	_, err := s.store.Update(ctx, userID, Patch{EmailVerified: &verified})
	return err
}

func (s *Service) seed(account identity.Account) Profile {
	first, last := SplitName(account.DisplayName)
	return Profile{
		ID:            account.ID,
		Email:         account.Email,
		FirstName:     first,
		LastName:      last,
		PhoneNumber:   account.PhoneNumber,
		CreatedAt:     s.now().UTC(),
		EmailVerified: account.EmailVerified,
		DisplayName:   account.DisplayName,
		Provider:      account.Provider,
	}
}
