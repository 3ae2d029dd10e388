package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parisgate/parisgate/internal/geo"
	"github.com/parisgate/parisgate/internal/identity"
	"github.com/parisgate/parisgate/internal/metrics"
	"github.com/parisgate/parisgate/internal/phone"
	"github.com/parisgate/parisgate/internal/profile"
)

var (
	// ErrMissingField is wrapped by *MissingFieldError.
	ErrMissingField = errors.New("missing required field")
	// ErrPasswordMismatch means confirmPassword differs from password.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrUpstream marks a failure after the account was created.
	ErrUpstream = errors.New("upstream service error")
)

// MissingFieldError names the required fields that were left blank.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field(s): %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// AccountCreator registers the credentials of a new user.
type AccountCreator interface {
	CreateAccount(ctx context.Context, in identity.NewAccount) (identity.Account, error)
}

// VerificationSender mails the email confirmation link.
type VerificationSender interface {
	SendVerificationEmail(ctx context.Context, email string) (string, error)
}

// ProfileCreator writes the initial profile document.
type ProfileCreator interface {
	Create(ctx context.Context, p profile.Profile) error
}

// Request is the signup form.
type Request struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	PhoneNumber     string
	Address         string
	Region          string
}

// Result describes a completed signup.
type Result struct {
	UserID           string
	VerificationLink string
	Profile          profile.Profile
}

// Orchestrator runs the signup steps in order and stops at the first
// failure. Later steps never run once an earlier one has failed.
type Orchestrator struct {
	accounts AccountCreator
	verifier VerificationSender
	profiles ProfileCreator
	checker  profile.EligibilityChecker
	phones   profile.PhoneNormalizer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewOrchestrator wires the signup steps. A nil logger falls back to
// slog.Default and m may be nil.
func NewOrchestrator(accounts AccountCreator, verifier VerificationSender, profiles ProfileCreator,
	checker profile.EligibilityChecker, phones profile.PhoneNormalizer, logger *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		accounts: accounts,
		verifier: verifier,
		profiles: profiles,
		checker:  checker,
		phones:   phones,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Signup validates the form, gates the address, creates the account and its
// profile, then sends the verification email. A failed email dispatch is
// logged and does not fail the signup.
func (o *Orchestrator) Signup(ctx context.Context, req Request) (Result, error) {
	res, err := o.signup(ctx, req)
	o.metrics.RecordSignup(Outcome(err))
	return res, err
}

func (o *Orchestrator) signup(ctx context.Context, req Request) (Result, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Address = strings.TrimSpace(req.Address)

	if err := validate(req); err != nil {
		return Result{}, err
	}

	phoneE164, err := o.phones.Normalize(req.PhoneNumber, req.Region)
	if err != nil {
		return Result{}, err
	}

	if _, err := o.checker.RequireEligible(ctx, req.Address); err != nil {
		return Result{}, err
	}

	account, err := o.accounts.CreateAccount(ctx, identity.NewAccount{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.FirstName + " " + req.LastName,
		PhoneNumber: phoneE164,
	})
	if err != nil {
		return Result{}, err
	}

	p := profile.Profile{
		ID:            account.ID,
		Email:         account.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		PhoneNumber:   phoneE164,
		Address:       req.Address,
		CreatedAt:     o.now().UTC(),
		EmailVerified: false,
		Provider:      identity.ProviderPassword,
	}
	if err := o.profiles.Create(ctx, p); err != nil {
		// The account stays behind; there is no compensating delete.
		o.logger.Error("profile write failed after account creation",
			slog.String("user_id", account.ID),
			slog.Any("error", err),
		)
		return Result{}, fmt.Errorf("%w: store profile: %v", ErrUpstream, err)
	}

	link, err := o.verifier.SendVerificationEmail(ctx, account.Email)
	if err != nil {
		o.logger.Warn("verification email not sent",
			slog.String("user_id", account.ID),
			slog.Any("error", err),
		)
	}

	return Result{UserID: account.ID, VerificationLink: link, Profile: p}, nil
}

func validate(req Request) error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"email", req.Email},
		{"password", req.Password},
		{"firstName", req.FirstName},
		{"lastName", req.LastName},
		{"phoneNumber", strings.TrimSpace(req.PhoneNumber)},
		{"address", req.Address},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldError{Fields: missing}
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return ErrPasswordMismatch
	}
	return nil
}

// Outcome labels err for the signup counter.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrWeakPassword):
		return "invalid_form"
	case errors.Is(err, geo.ErrAddressTooFar):
		return "too_far"
	case errors.Is(err, geo.ErrAddressNotFound), errors.Is(err, geo.ErrAddressRequired):
		return "address_not_found"
	case errors.Is(err, phone.ErrInvalidPhoneNumber):
		return "invalid_phone"
	case errors.Is(err, identity.ErrEmailAlreadyExists):
		return "email_taken"
	default:
		return "error"
	}
}
