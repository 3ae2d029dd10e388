package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/parisgate/parisgate/internal/auth"
	"github.com/parisgate/parisgate/internal/identity"
)

const (
	userIDLocal  = "user_id"
	accountLocal = "account"
)

// SessionAuthenticator resolves a bearer token to its account.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (identity.Account, error)
}

// JWTAuth rejects requests without a valid, unrevoked session token and
// stores the account in the request locals.
func JWTAuth(sessions SessionAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentification requise.")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentification requise.")
		}

		account, err := sessions.Authenticate(c.UserContext(), token)
		switch {
		case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, auth.ErrSessionRevoked):
			return fiber.NewError(fiber.StatusUnauthorized, "Session invalide ou expirée.")
		case err != nil:
			// Store outages surface as 500 through the error handler.
			return fmt.Errorf("authenticate session: %w", err)
		}

		c.Locals(userIDLocal, account.ID)
		c.Locals(accountLocal, account)
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" on public routes.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDLocal).(string)
	return id
}

// CurrentAccount returns the account stored by JWTAuth.
func CurrentAccount(c *fiber.Ctx) (identity.Account, bool) {
	account, ok := c.Locals(accountLocal).(identity.Account)
	return account, ok
}
