package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/parisgate/parisgate/internal/config"
	"github.com/parisgate/parisgate/internal/geo"
	"github.com/parisgate/parisgate/internal/identity"
	"github.com/parisgate/parisgate/internal/logging"
	"github.com/parisgate/parisgate/internal/metrics"
	"github.com/parisgate/parisgate/internal/notification"
	"github.com/parisgate/parisgate/internal/profile"
)

const (
	notreDame = "1 Place du Parvis Notre-Dame, Paris"
	marseille = "Marseille, France"
)

type testEnv struct {
	app      *fiber.App
	geocoder *geo.StaticGeocoder
	outbox   *notification.Recorder
	metrics  *metrics.Metrics
}

func testConfig() config.Config {
	return config.Config{
		AppName:                "ParisGate",
		AppEnv:                 "test",
		JWTSecret:              "test-secret",
		SessionTTL:             time.Hour,
		VerificationTTL:        24 * time.Hour,
		PublicBaseURL:          "http://portal.test",
		ReferenceLatitude:      48.8566,
		ReferenceLongitude:     2.3522,
		MaxDistanceKm:          50,
		PhoneDefaultRegion:     "FR",
		LoginAttemptsPerMinute: 5,
		IdempotencyTTL:         time.Hour,
	}
}

func newTestEnv(t *testing.T, cache *redis.Client) *testEnv {
	t.Helper()
	return newTestEnvWith(t, cache, nil)
}

// newTestEnvWith lets a test swap ports in Deps before Setup runs.
func newTestEnvWith(t *testing.T, cache *redis.Client, override func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{
		geocoder: geo.DevelopmentGeocoder(),
		outbox:   &notification.Recorder{},
		metrics:  metrics.New(),
	}
	env.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	deps := Deps{
		Cfg:      testConfig(),
		Cache:    cache,
		Logger:   logging.Discard(),
		Metrics:  env.metrics,
		Geocoder: env.geocoder,
		Notifier: env.outbox,
		Verifiers: map[string]identity.SocialVerifier{
			identity.ProviderGoogle: identity.StaticVerifier{
				"google-ok": {Subject: "g-7", Email: "social@example.com", EmailVerified: true, DisplayName: "Sophie Martin"},
			},
		},
	}
	if override != nil {
		override(&deps)
	}
	if err := Setup(env.app, deps); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func signupBody(email string) map[string]string {
	return map[string]string{
		"email":       email,
		"password":    "secret123",
		"firstName":   "Camille",
		"lastName":    "Bernard",
		"phoneNumber": "0612345678",
		"address":     notreDame,
	}
}

func TestValidateAddressAccepted(t *testing.T) {
	env := newTestEnv(t, nil)
	status, body := env.do(t, fiber.MethodPost, "/api/validate-address", map[string]string{"address": notreDame}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d %v", status, body)
	}
	if body["valid"] != true {
		t.Fatalf("expected valid=true, got %v", body)
	}
	if d, _ := body["distance"].(float64); d < 0.3 || d > 0.6 {
		t.Fatalf("expected distance about 0.4 km, got %v", body["distance"])
	}
	coords, _ := body["coordinates"].(map[string]any)
	if coords["latitude"] != 48.853 || coords["longitude"] != 2.349 {
		t.Fatalf("unexpected coordinates %v", coords)
	}
}

func TestValidateAddressTooFar(t *testing.T) {
	env := newTestEnv(t, nil)
	status, body := env.do(t, fiber.MethodPost, "/api/validate-address", map[string]string{"address": marseille}, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if body["valid"] != false || body["message"] != msgAddressTooFar {
		t.Fatalf("unexpected body %v", body)
	}
	if d, _ := body["distance"].(float64); d < 600 || d > 700 {
		t.Fatalf("expected distance about 660 km, got %v", body["distance"])
	}
}

func TestValidateAddressMissingMakesNoLookup(t *testing.T) {
	env := newTestEnv(t, nil)
	status, body := env.do(t, fiber.MethodPost, "/api/validate-address", map[string]string{"address": "  "}, nil)
	if status != fiber.StatusBadRequest || body["message"] != "Adresse requise" {
		t.Fatalf("expected 400 Adresse requise, got %d %v", status, body)
	}
	if env.geocoder.Calls() != 0 {
		t.Fatalf("expected no geocoder call, got %d", env.geocoder.Calls())
	}
}

func TestValidateAddressLegacyKey(t *testing.T) {
	env := newTestEnv(t, nil)
	status, _ := env.do(t, fiber.MethodPost, "/api/validate-address", map[string]string{"adress": notreDame}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 for legacy key, got %d", status)
	}
}

func TestValidateAddressNotFoundAndUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	status, body := env.do(t, fiber.MethodPost, "/api/validate-address", map[string]string{"address": "Atlantide"}, nil)
	if status != fiber.StatusBadRequest || body["message"] != "Adresse non trouvée" {
		t.Fatalf("expected 400 Adresse non trouvée, got %d %v", status, body)
	}

	env.geocoder.FailWith(geo.ErrGeocodingUnavailable)
	status, body = env.do(t, fiber.MethodPost, "/api/validate-address", map[string]string{"address": notreDame}, nil)
	if status != fiber.StatusInternalServerError || body["message"] != msgInternal {
		t.Fatalf("expected 500, got %d %v", status, body)
	}
}

func TestSignupEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(t, fiber.MethodPost, "/api/signup", signupBody("camille@example.com"), nil)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d %v", status, body)
	}
	if body["message"] != msgSignupSuccess {
		t.Fatalf("unexpected message %v", body["message"])
	}
	link, _ := body["verificationLink"].(string)
	if !strings.HasPrefix(link, "http://portal.test/api/verify-email?token=") {
		t.Fatalf("unexpected verification link %q", link)
	}
	if len(env.outbox.Messages()) != 1 {
		t.Fatalf("expected one verification email, got %d", len(env.outbox.Messages()))
	}

	status, body = env.do(t, fiber.MethodPost, "/api/signup", signupBody("camille@example.com"), nil)
	if status != fiber.StatusBadRequest || body["message"] != msgEmailTaken {
		t.Fatalf("expected duplicate email 400, got %d %v", status, body)
	}
}

func TestSignupEndpointRejections(t *testing.T) {
	env := newTestEnv(t, nil)

	missing := signupBody("a@example.com")
	delete(missing, "lastName")
	far := signupBody("b@example.com")
	far["address"] = marseille
	badPhone := signupBody("c@example.com")
	badPhone["phoneNumber"] = "123"

	cases := []struct {
		name    string
		body    map[string]string
		message string
	}{
		{"missing field", missing, msgMissingFields},
		{"too far", far, msgAddressTooFar},
		{"invalid phone", badPhone, msgInvalidPhone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(t, fiber.MethodPost, "/api/signup", tc.body, nil)
			if status != fiber.StatusBadRequest || body["message"] != tc.message {
				t.Fatalf("expected 400 %q, got %d %v", tc.message, status, body)
			}
		})
	}
}

func TestSignupGeocoderDownIs500(t *testing.T) {
	env := newTestEnv(t, nil)
	env.geocoder.FailWith(geo.ErrGeocodingUnavailable)
	status, body := env.do(t, fiber.MethodPost, "/api/signup", signupBody("d@example.com"), nil)
	if status != fiber.StatusInternalServerError || body["message"] != msgInternal {
		t.Fatalf("expected 500, got %d %v", status, body)
	}
}

func TestSignupIdempotentReplay(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	env := newTestEnv(t, cache)
	headers := map[string]string{"Idempotency-Key": "signup-1"}
	first, firstBody := env.do(t, fiber.MethodPost, "/api/signup", signupBody("e@example.com"), headers)
	second, secondBody := env.do(t, fiber.MethodPost, "/api/signup", signupBody("e@example.com"), headers)
	if first != fiber.StatusCreated || second != fiber.StatusCreated {
		t.Fatalf("expected both 201, got %d and %d", first, second)
	}
	if firstBody["verificationLink"] != secondBody["verificationLink"] {
		t.Fatal("replay must return the stored body")
	}
	if len(env.outbox.Messages()) != 1 {
		t.Fatalf("replay must not send another email, got %d", len(env.outbox.Messages()))
	}
}

func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	_, body := env.do(t, fiber.MethodPost, "/api/signup", signupBody("flow@example.com"), nil)
	link, _ := body["verificationLink"].(string)

	creds := map[string]string{"email": "flow@example.com", "password": "secret123"}
	status, body := env.do(t, fiber.MethodPost, "/api/login", creds, nil)
	if status != fiber.StatusForbidden || body["message"] != msgEmailNotVerified {
		t.Fatalf("expected 403 before verification, got %d %v", status, body)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	status, body = env.do(t, fiber.MethodGet, u.RequestURI(), nil, nil)
	if status != fiber.StatusOK || body["message"] != msgEmailVerified {
		t.Fatalf("verify: %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodPost, "/api/login", map[string]string{"email": "flow@example.com", "password": "wrong-pass"}, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", status)
	}

	status, body = env.do(t, fiber.MethodPost, "/api/login", creds, nil)
	if status != fiber.StatusOK {
		t.Fatalf("login: %d %v", status, body)
	}
	if body["emailVerified"] != true || body["profileComplete"] != true {
		t.Fatalf("unexpected login body %v", body)
	}
	bearer := map[string]string{fiber.HeaderAuthorization: "Bearer " + body["accessToken"].(string)}

	status, body = env.do(t, fiber.MethodGet, "/api/profile", nil, bearer)
	if status != fiber.StatusOK || body["email"] != "flow@example.com" || body["emailVerified"] != true {
		t.Fatalf("profile: %d %v", status, body)
	}
	if body["phoneNumber"] != "+33612345678" {
		t.Fatalf("expected E.164 phone in profile, got %v", body["phoneNumber"])
	}

	status, body = env.do(t, fiber.MethodPost, "/api/complete-profile", map[string]string{"address": marseille}, bearer)
	if status != fiber.StatusBadRequest || body["message"] != msgAddressTooFar {
		t.Fatalf("expected too-far rejection, got %d %v", status, body)
	}
	status, body = env.do(t, fiber.MethodPost, "/api/complete-profile", map[string]string{"firstName": "Camille-Anne"}, bearer)
	if status != fiber.StatusOK || body["firstName"] != "Camille-Anne" || body["address"] != notreDame {
		t.Fatalf("partial update: %d %v", status, body)
	}

	if status, _ = env.do(t, fiber.MethodPost, "/api/logout", nil, bearer); status != fiber.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status, _ = env.do(t, fiber.MethodGet, "/api/profile", nil, bearer); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", status)
	}
}

type profileWriteFails struct{ profile.Store }

func (profileWriteFails) Create(context.Context, profile.Profile) error {
	return errors.New("mongo: no reachable servers")
}

func TestCompleteProfileRecoversFailedSignupWrite(t *testing.T) {
	accounts := identity.NewMemoryRepository()
	profiles := profile.NewMemoryStore()
	env := newTestEnvWith(t, nil, func(d *Deps) {
		d.Accounts = accounts
		d.Profiles = profileWriteFails{Store: profiles}
	})

	status, body := env.do(t, fiber.MethodPost, "/api/signup", signupBody("lost@example.com"), nil)
	if status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 when the profile write fails, got %d %v", status, body)
	}
	ids := identity.NewService(accounts, nil)
	account, err := ids.FindByEmail(context.Background(), "lost@example.com")
	if err != nil {
		t.Fatalf("account should exist: %v", err)
	}
	if err := ids.MarkEmailVerified(context.Background(), account.ID); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	status, body = env.do(t, fiber.MethodPost, "/api/login", map[string]string{"email": "lost@example.com", "password": "secret123"}, nil)
	if status != fiber.StatusOK || body["profileComplete"] != false {
		t.Fatalf("login: %d %v", status, body)
	}
	bearer := map[string]string{fiber.HeaderAuthorization: "Bearer " + body["accessToken"].(string)}

	status, body = env.do(t, fiber.MethodGet, "/api/profile", nil, bearer)
	if status != fiber.StatusOK || body["needsCompletion"] != true || body["email"] != "lost@example.com" {
		t.Fatalf("profile before completion: %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodPost, "/api/complete-profile", map[string]string{"address": notreDame}, bearer)
	if status != fiber.StatusOK || body["needsCompletion"] != false {
		t.Fatalf("complete profile: %d %v", status, body)
	}
	if body["firstName"] != "Camille" || body["phoneNumber"] != "+33612345678" {
		t.Fatalf("expected profile seeded from the account, got %v", body)
	}
	stored, err := profiles.Get(context.Background(), account.ID)
	if err != nil || stored.Address != notreDame {
		t.Fatalf("profile not persisted: %+v, %v", stored, err)
	}
}

func TestSocialLoginCreatesIncompleteProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	status, body := env.do(t, fiber.MethodPost, "/api/auth/social", map[string]string{"provider": "google", "idToken": "google-ok"}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("social login: %d %v", status, body)
	}
	if body["created"] != true || body["profileComplete"] != false {
		t.Fatalf("unexpected body %v", body)
	}
	bearer := map[string]string{fiber.HeaderAuthorization: "Bearer " + body["accessToken"].(string)}

	status, body = env.do(t, fiber.MethodPost, "/api/complete-profile", map[string]string{
		"phoneNumber": "+33 6 12 34 56 78",
		"address":     "Versailles, France",
	}, bearer)
	if status != fiber.StatusOK || body["needsCompletion"] != false {
		t.Fatalf("complete profile: %d %v", status, body)
	}
	if body["firstName"] != "Sophie" || body["lastName"] != "Martin" {
		t.Fatalf("expected names from provider, got %v", body)
	}

	status, body = env.do(t, fiber.MethodPost, "/api/auth/social", map[string]string{"provider": "google", "idToken": "forged"}, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d %v", status, body)
	}
}

func TestProfileRequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)
	status, body := env.do(t, fiber.MethodGet, "/api/profile", nil, nil)
	if status != fiber.StatusUnauthorized || body["message"] == "" {
		t.Fatalf("expected JSON 401, got %d %v", status, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, fiber.MethodPost, "/api/validate-address", map[string]string{"address": notreDame}, nil)

	status, body := env.do(t, fiber.MethodGet, "/healthz", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("healthz: %d %v", status, body)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `parisgate_eligibility_checks_total{outcome="accepted"} 1`) {
		t.Fatalf("expected eligibility counter in exposition, got:\n%s", raw)
	}
}
