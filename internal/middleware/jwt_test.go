package middleware

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/parisgate/parisgate/internal/auth"
	"github.com/parisgate/parisgate/internal/identity"
)

type tokenTable map[string]identity.Account

func (t tokenTable) Authenticate(_ context.Context, token string) (identity.Account, error) {
	switch token {
	case "revoked":
		return identity.Account{}, auth.ErrSessionRevoked
	case "db-down":
		return identity.Account{}, errors.New("postgres: connection refused")
	}
	account, ok := t[token]
	if !ok {
		return identity.Account{}, identity.ErrInvalidToken
	}
	return account, nil
}

func TestJWTAuth(t *testing.T) {
	sessions := tokenTable{"good": {ID: "user-1", Email: "u@example.com"}}
	app := fiber.New()
	app.Get("/api/profile", JWTAuth(sessions), func(c *fiber.Ctx) error {
		account, ok := CurrentAccount(c)
		if !ok || account.ID != UserID(c) {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(UserID(c))
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic Z29vZA==", fiber.StatusUnauthorized},
		{"empty token", "Bearer   ", fiber.StatusUnauthorized},
		{"unknown token", "Bearer forged", fiber.StatusUnauthorized},
		{"revoked session", "Bearer revoked", fiber.StatusUnauthorized},
		{"account store down", "Bearer db-down", fiber.StatusInternalServerError},
		{"valid token", "Bearer good", fiber.StatusOK},
		{"lower-case scheme", "bearer good", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/api/profile", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.StatusCode)
			}
			if tc.status == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != "user-1" {
					t.Fatalf("expected user id in locals, got %q", body)
				}
			}
		})
	}
}
