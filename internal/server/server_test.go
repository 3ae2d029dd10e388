package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/parisgate/parisgate/internal/config"
	"github.com/parisgate/parisgate/internal/geo"
	"github.com/parisgate/parisgate/internal/logging"
	"github.com/parisgate/parisgate/internal/metrics"
	"github.com/parisgate/parisgate/internal/routes"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(routes.Deps{
		Cfg: config.Config{
			AppName:                "ParisGate",
			AppEnv:                 "test",
			JWTSecret:              "test-secret",
			ReferenceLatitude:      48.8566,
			ReferenceLongitude:     2.3522,
			MaxDistanceKm:          50,
			PhoneDefaultRegion:     "FR",
			LoginAttemptsPerMinute: 5,
		},
		Logger:   logging.Discard(),
		Metrics:  metrics.New(),
		Geocoder: geo.DevelopmentGeocoder(),
	})
	if err != nil {
		t.Fatalf("build server: %v", err)
	}
	return srv
}

func decodeMessage(t *testing.T, app *fiber.App, method, path string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body.Message
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	srv := newTestServer(t)
	status, msg := decodeMessage(t, srv.App(), fiber.MethodGet, "/api/nope")
	if status != fiber.StatusNotFound || msg == "" {
		t.Fatalf("expected JSON 404, got %d %q", status, msg)
	}
}

func TestWrongMethodIs405(t *testing.T) {
	srv := newTestServer(t)
	status, msg := decodeMessage(t, srv.App(), fiber.MethodGet, "/api/signup")
	if status != fiber.StatusMethodNotAllowed || msg != "Méthode non autorisée" {
		t.Fatalf("expected 405 Méthode non autorisée, got %d %q", status, msg)
	}
}

func TestNonDevelopmentRequiresStores(t *testing.T) {
	_, err := New(routes.Deps{Cfg: config.Config{AppEnv: "production"}, Logger: logging.Discard()})
	if err == nil {
		t.Fatal("expected an error without database in production")
	}
}
