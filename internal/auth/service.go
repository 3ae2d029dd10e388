package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/parisgate/parisgate/internal/config"
	"github.com/parisgate/parisgate/internal/identity"
	"github.com/parisgate/parisgate/internal/notification"
)

var (
	// ErrSessionRevoked is returned for tokens issued before the last sign-out.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrVerificationDispatch means the verification link was built but could
	// not be delivered.
	ErrVerificationDispatch = errors.New("verification email dispatch failed")
)

// Session is the bearer credential handed to a signed-in user.
type Session struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Service issues and checks session tokens and email verification links.
type Service struct {
	accounts        *identity.Service
	notifier        notification.Notifier
	secret          []byte
	sessionTTL      time.Duration
	verificationTTL time.Duration
	verifyURL       string
	now             func() time.Time
}

func NewService(cfg config.Config, accounts *identity.Service, notifier notification.Notifier) *Service {
	return &Service{
		accounts:        accounts,
		notifier:        notifier,
		secret:          []byte(cfg.JWTSecret),
		sessionTTL:      cfg.SessionTTL,
		verificationTTL: cfg.VerificationTTL,
		verifyURL:       cfg.VerifyEmailURL(),
		now:             time.Now,
	}
}

// SignIn checks email and password and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, identity.Account, error) {
	account, err := s.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, identity.Account{}, err
	}
	session, err := s.issue(account)
	if err != nil {
		return Session{}, identity.Account{}, err
	}
	return session, account, nil
}

// SignInWithProvider verifies a social credential and opens a session.
// created reports a first-time sign-in.
func (s *Service) SignInWithProvider(ctx context.Context, provider, credential string) (Session, identity.Account, bool, error) {
	account, created, err := s.accounts.ResolveSocial(ctx, provider, credential)
	if err != nil {
		return Session{}, identity.Account{}, false, err
	}
	session, err := s.issue(account)
	if err != nil {
		return Session{}, identity.Account{}, false, err
	}
	return session, account, created, nil
}

// Authenticate resolves a session token to its account.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (identity.Account, error) {
	claims, err := parseHS256(accessToken, purposeSession, s.secret, s.now)
	if err != nil {
		return identity.Account{}, fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}
	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return identity.Account{}, identity.ErrInvalidToken
		}
		return identity.Account{}, err
	}
	if account.TokenVersion != claims.Version {
		return identity.Account{}, ErrSessionRevoked
	}
	return account, nil
}

// SignOut revokes every outstanding session of the user.
func (s *Service) SignOut(ctx context.Context, userID string) error {
	return s.accounts.BumpTokenVersion(ctx, userID)
}

// SendVerificationEmail mails a confirmation link to the account holder and
// returns the link. A delivery failure still returns the link alongside an
// error wrapping ErrVerificationDispatch.
func (s *Service) SendVerificationEmail(ctx context.Context, email string) (string, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	link, err := s.VerificationLink(account)
	if err != nil {
		return "", err
	}

	msg := notification.Message{
		Kind:        notification.KindEmailVerification,
		Destination: account.Email,
		Subject:     "Confirmez votre adresse email",
		Body:        "Bienvenue ! Cliquez sur le lien ci-dessous pour activer votre compte.",
		Link:        link,
	}
	if s.notifier != nil {
		if err := s.notifier.Send(ctx, msg); err != nil {
			return link, fmt.Errorf("%w: %v", ErrVerificationDispatch, err)
		}
	}
	return link, nil
}

// VerificationLink builds the signed confirmation URL for account.
func (s *Service) VerificationLink(account identity.Account) (string, error) {
	now := s.now()
	token, err := signHS256(tokenClaims{
		Purpose: purposeVerifyEmail,
		Email:   account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.verificationTTL)),
			ID:        uuid.NewString(),
		},
	}, s.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return s.verifyURL + "?token=" + url.QueryEscape(token), nil
}

// VerifyEmail consumes a verification token and confirms the account email.
func (s *Service) VerifyEmail(ctx context.Context, token string) (identity.Account, error) {
	claims, err := parseHS256(token, purposeVerifyEmail, s.secret, s.now)
	if err != nil {
		return identity.Account{}, fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}
	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		return identity.Account{}, err
	}
	// The link is bound to the address it was mailed to.
	if claims.Email != "" && claims.Email != account.Email {
		return identity.Account{}, identity.ErrInvalidToken
	}
	if !account.EmailVerified {
		if err := s.accounts.MarkEmailVerified(ctx, account.ID); err != nil {
			return identity.Account{}, err
		}
		account.EmailVerified = true
	}
	return account, nil
}

func (s *Service) issue(account identity.Account) (Session, error) {
	now := s.now()
	exp := now.Add(s.sessionTTL)
	token, err := signHS256(tokenClaims{
		Purpose: purposeSession,
		Version: account.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}, s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{UserID: account.ID, AccessToken: token, ExpiresIn: int64(s.sessionTTL.Seconds())}, nil
}
