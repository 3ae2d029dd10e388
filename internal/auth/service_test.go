package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/parisgate/parisgate/internal/config"
	"github.com/parisgate/parisgate/internal/identity"
	"github.com/parisgate/parisgate/internal/notification"
)

func newTestService(t *testing.T, notifier notification.Notifier) (*Service, *identity.Service) {
	t.Helper()
	cfg := config.Config{
		JWTSecret:       "test-secret",
		SessionTTL:      time.Hour,
		VerificationTTL: 24 * time.Hour,
		PublicBaseURL:   "https://portal.example.fr",
	}
	verifiers := map[string]identity.SocialVerifier{
		identity.ProviderGoogle: identity.StaticVerifier{
			"id-token": {Subject: "g-42", Email: "ines@example.com", EmailVerified: true, DisplayName: "Inès Roux"},
		},
	}
	accounts := identity.NewService(identity.NewMemoryRepository(), verifiers)
	return NewService(cfg, accounts, notifier), accounts
}

func createAccount(t *testing.T, accounts *identity.Service, email string) identity.Account {
	t.Helper()
	account, err := accounts.CreateAccount(context.Background(), identity.NewAccount{Email: email, Password: "secret1"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

func TestVerificationFlow(t *testing.T) {
	rec := &notification.Recorder{}
	svc, accounts := newTestService(t, rec)
	ctx := context.Background()
	account := createAccount(t, accounts, "jules@example.com")

	if _, _, err := svc.SignIn(ctx, "jules@example.com", "secret1"); !errors.Is(err, identity.ErrEmailNotVerified) {
		t.Fatalf("expected sign-in to be refused before verification, got %v", err)
	}

	link, err := svc.SendVerificationEmail(ctx, "jules@example.com")
	if err != nil {
		t.Fatalf("send verification: %v", err)
	}
	if !strings.HasPrefix(link, "https://portal.example.fr/api/verify-email?token=") {
		t.Fatalf("unexpected link %q", link)
	}
	msgs := rec.Messages()
	if len(msgs) != 1 || msgs[0].Destination != "jules@example.com" || msgs[0].Link != link {
		t.Fatalf("unexpected notifications %+v", msgs)
	}

	verified, err := svc.VerifyEmail(ctx, tokenFromLink(t, link))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.ID != account.ID || !verified.EmailVerified {
		t.Fatalf("unexpected verified account %+v", verified)
	}

	session, signedIn, err := svc.SignIn(ctx, "jules@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.UserID != account.ID || session.AccessToken == "" || session.ExpiresIn != 3600 {
		t.Fatalf("unexpected session %+v", session)
	}
	if signedIn.ID != account.ID {
		t.Fatalf("unexpected account %+v", signedIn)
	}
}

func TestSendVerificationEmailDispatchFailure(t *testing.T) {
	rec := &notification.Recorder{Err: errors.New("smtp down")}
	svc, accounts := newTestService(t, rec)
	createAccount(t, accounts, "karim@example.com")

	link, err := svc.SendVerificationEmail(context.Background(), "karim@example.com")
	if !errors.Is(err, ErrVerificationDispatch) {
		t.Fatalf("expected ErrVerificationDispatch, got %v", err)
	}
	if link == "" {
		t.Fatal("link must still be returned when delivery fails")
	}
}

func TestVerificationTokenCannotOpenSession(t *testing.T) {
	svc, accounts := newTestService(t, nil)
	account := createAccount(t, accounts, "lea@example.com")

	link, err := svc.VerificationLink(account)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), tokenFromLink(t, link)); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyEmailRejectsExpiredToken(t *testing.T) {
	svc, accounts := newTestService(t, nil)
	account := createAccount(t, accounts, "marc@example.com")

	issued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }
	link, err := svc.VerificationLink(account)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(25 * time.Hour) }
	if _, err := svc.VerifyEmail(context.Background(), tokenFromLink(t, link)); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired link, got %v", err)
	}
}

func TestSignOutRevokesSessions(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	session, account, created, err := svc.SignInWithProvider(ctx, "google", "id-token")
	if err != nil {
		t.Fatalf("social sign-in: %v", err)
	}
	if !created {
		t.Fatal("expected first social sign-in to create the account")
	}

	got, err := svc.Authenticate(ctx, session.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != account.ID {
		t.Fatalf("expected %s, got %s", account.ID, got.ID)
	}

	if err := svc.SignOut(ctx, account.ID); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := svc.Authenticate(ctx, session.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	svc, accounts := newTestService(t, nil)
	account := createAccount(t, accounts, "nina@example.com")

	other := *svc
	other.secret = []byte("another-secret")
	session, err := other.issue(account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), session.AccessToken); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
