package routes

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/parisgate/parisgate/internal/middleware"
	"github.com/parisgate/parisgate/internal/signup"
)

type signupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	PhoneNumber     string `json:"phoneNumber"`
	Address         string `json:"address"`
	Region          string `json:"region"`
}

// RegisterSignupRoutes wires account registration. idempotency may be nil.
func RegisterSignupRoutes(r fiber.Router, orch *signup.Orchestrator, idempotency fiber.Handler, logger *slog.Logger) {
	handlers := []fiber.Handler{}
	if idempotency != nil {
		handlers = append(handlers, idempotency)
	}
	handlers = append(handlers, func(c *fiber.Ctx) error {
		var req signupRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, msgInvalidBody)
		}
		res, err := orch.Signup(c.UserContext(), signup.Request{
			Email:           req.Email,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			PhoneNumber:     req.PhoneNumber,
			Address:         req.Address,
			Region:          req.Region,
		})
		if err != nil {
			return err
		}
		logger.Info("signup completed",
			slog.String("user_id", res.UserID),
			slog.String("request_id", middleware.GetRequestID(c)),
		)
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"message":          msgSignupSuccess,
			"verificationLink": res.VerificationLink,
		})
	})
	r.Post("/signup", handlers...)
}
