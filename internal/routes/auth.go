package routes

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/parisgate/parisgate/internal/auth"
	"github.com/parisgate/parisgate/internal/identity"
	"github.com/parisgate/parisgate/internal/metrics"
	"github.com/parisgate/parisgate/internal/middleware"
	"github.com/parisgate/parisgate/internal/profile"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type socialLoginRequest struct {
	Provider string `json:"provider"`
	IDToken  string `json:"idToken"`
}

type sessionResponse struct {
	auth.Session
	EmailVerified   bool `json:"emailVerified"`
	ProfileComplete bool `json:"profileComplete"`
	Created         bool `json:"created,omitempty"`
}

// RegisterAuthRoutes wires sign-in, social sign-in, email verification and
// sign-out. rateLimiter may be nil.
func RegisterAuthRoutes(r fiber.Router, sessions *auth.Service, profiles *profile.Service, rateLimiter, jwt fiber.Handler, m *metrics.Metrics, logger *slog.Logger) {
	login := func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, msgInvalidBody)
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			return fiber.NewError(http.StatusBadRequest, msgMissingFields)
		}
		session, account, err := sessions.SignIn(c.UserContext(), req.Email, req.Password)
		if err != nil {
			m.RecordLogin(identity.ProviderPassword, loginOutcome(err))
			return err
		}
		m.RecordLogin(identity.ProviderPassword, "success")
		return c.Status(http.StatusOK).JSON(sessionResponse{
			Session:         session,
			EmailVerified:   account.EmailVerified,
			ProfileComplete: profileComplete(c, profiles, account.ID),
		})
	}
	if rateLimiter != nil {
		r.Post("/login", rateLimiter, login)
	} else {
		r.Post("/login", login)
	}

	r.Post("/auth/social", func(c *fiber.Ctx) error {
		var req socialLoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, msgInvalidBody)
		}
		if strings.TrimSpace(req.IDToken) == "" {
			return fiber.NewError(http.StatusBadRequest, msgMissingFields)
		}
		provider := strings.ToLower(strings.TrimSpace(req.Provider))
		if provider == "" {
			provider = identity.ProviderGoogle
		}
		session, account, created, err := sessions.SignInWithProvider(c.UserContext(), provider, req.IDToken)
		if err != nil {
			m.RecordLogin(provider, loginOutcome(err))
			return err
		}
		m.RecordLogin(provider, "success")

		p, err := profiles.EnsureForSocialLogin(c.UserContext(), account)
		if err != nil {
			return err
		}
		if created {
			logger.Info("social account created",
				slog.String("user_id", account.ID),
				slog.String("provider", provider),
			)
		}
		return c.Status(http.StatusOK).JSON(sessionResponse{
			Session:         session,
			EmailVerified:   account.EmailVerified,
			ProfileComplete: !profile.NeedsCompletion(p),
			Created:         created,
		})
	})

	r.Get("/verify-email", func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return fiber.NewError(http.StatusBadRequest, msgInvalidToken)
		}
		account, err := sessions.VerifyEmail(c.UserContext(), token)
		if err != nil {
			return err
		}
		if err := profiles.MarkEmailVerified(c.UserContext(), account.ID); err != nil {
			// The account is verified; the profile flag catches up on the next edit.
			logger.Warn("profile verification flag not updated",
				slog.String("user_id", account.ID),
				slog.Any("error", err),
			)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"message": msgEmailVerified})
	})

	r.Post("/logout", jwt, func(c *fiber.Ctx) error {
		if err := sessions.SignOut(c.UserContext(), middleware.UserID(c)); err != nil {
			return err
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"message": msgLoggedOut})
	})
}

func profileComplete(c *fiber.Ctx, profiles *profile.Service, userID string) bool {
	p, err := profiles.Get(c.UserContext(), userID)
	if err != nil {
		return false
	}
	return !profile.NeedsCompletion(p)
}

func loginOutcome(err error) string {
	switch toHTTPError(err).Code {
	case http.StatusUnauthorized:
		return "invalid_credentials"
	case http.StatusForbidden:
		return "unverified"
	case http.StatusBadRequest:
		return "rejected"
	default:
		return "error"
	}
}
