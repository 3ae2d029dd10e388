package routes

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/parisgate/parisgate/internal/geo"
)

type validateAddressRequest struct {
	Address string `json:"address"`
	// Adress is the misspelt key older form clients still send.
	Adress string `json:"adress"`
}

// RegisterAddressRoutes wires the standalone eligibility check used by the
// signup form before submission.
func RegisterAddressRoutes(r fiber.Router, checker *geo.Checker) {
	r.Post("/validate-address", func(c *fiber.Ctx) error {
		var req validateAddressRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, msgInvalidBody)
		}
		address := strings.TrimSpace(req.Address)
		if address == "" {
			address = strings.TrimSpace(req.Adress)
		}

		res, err := checker.CheckAddress(c.UserContext(), address)
		if err != nil {
			return err
		}
		if !res.Accepted {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"valid":    false,
				"distance": res.DistanceKm,
				"message":  msgAddressTooFar,
			})
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"valid":       true,
			"distance":    res.DistanceKm,
			"coordinates": res.Coordinates,
		})
	})
}
