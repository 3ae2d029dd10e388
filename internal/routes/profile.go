package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/parisgate/parisgate/internal/middleware"
	"github.com/parisgate/parisgate/internal/profile"
)

type completeProfileRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
	Region      string `json:"region"`
}

type profileResponse struct {
	profile.Profile
	NeedsCompletion bool `json:"needsCompletion"`
}

// RegisterProfileRoutes wires the signed-in user's profile pages behind the
// jwt session gate.
func RegisterProfileRoutes(r fiber.Router, profiles *profile.Service, jwt fiber.Handler) {
	r.Get("/profile", jwt, func(c *fiber.Ctx) error {
		account, _ := middleware.CurrentAccount(c)
		p, err := profiles.ForAccount(c.UserContext(), account)
		if err != nil {
			return err
		}
		return c.Status(http.StatusOK).JSON(profileResponse{Profile: p, NeedsCompletion: profile.NeedsCompletion(p)})
	})

	r.Post("/complete-profile", jwt, func(c *fiber.Ctx) error {
		var req completeProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, msgInvalidBody)
		}
		account, _ := middleware.CurrentAccount(c)
		p, err := profiles.Complete(c.UserContext(), account, profile.Input{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			PhoneNumber: req.PhoneNumber,
			Address:     req.Address,
			Region:      req.Region,
		})
		if err != nil {
			return err
		}
		return c.Status(http.StatusOK).JSON(profileResponse{Profile: p, NeedsCompletion: profile.NeedsCompletion(p)})
	})
}
