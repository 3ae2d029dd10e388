package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/parisgate/parisgate/internal/auth"
	"github.com/parisgate/parisgate/internal/geo"
	"github.com/parisgate/parisgate/internal/identity"
	"github.com/parisgate/parisgate/internal/phone"
	"github.com/parisgate/parisgate/internal/profile"
	"github.com/parisgate/parisgate/internal/signup"
)

const (
	msgMissingFields     = "Tous les champs sont requis."
	msgPasswordMismatch  = "Les mots de passe ne correspondent pas."
	msgInvalidPhone      = "Numéro de téléphone invalide. Utilisez le format E.164, par exemple +33612345678."
	msgAddressRequired   = "Adresse requise"
	msgAddressNotFound   = "Adresse non trouvée"
	msgAddressTooFar     = "L'adresse doit être située à moins de 50 km de Paris."
	msgEmailTaken        = "Cet email est déjà utilisé."
	msgInvalidEmail      = "Adresse email invalide."
	msgWeakPassword      = "Le mot de passe doit contenir au moins 6 caractères."
	msgBadCredentials    = "Email ou mot de passe incorrect."
	msgEmailNotVerified  = "Veuillez vérifier votre email pour activer votre compte."
	msgInvalidToken      = "Lien ou jeton invalide ou expiré."
	msgUnsupportedSocial = "Fournisseur d'identité non pris en charge."
	msgProfileNotFound   = "Profil introuvable."
	msgEmptyUpdate       = "Aucune modification fournie."
	msgInvalidBody       = "Requête invalide."
	msgInternal          = "Erreur interne du serveur."
	msgSignupSuccess     = "Inscription réussie ! Veuillez vérifier votre email pour confirmer votre compte."
	msgEmailVerified     = "Votre email a été vérifié. Vous pouvez maintenant vous connecter."
	msgLoggedOut         = "Déconnexion réussie."
	msgMethodNotAllowed  = "Méthode non autorisée"
	msgNotFound          = "Ressource introuvable."
)

// toHTTPError translates a domain error into the status and user-facing
// message the portal shows.
func toHTTPError(err error) *fiber.Error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, signup.ErrMissingField):
		return fiber.NewError(http.StatusBadRequest, msgMissingFields)
	case errors.Is(err, signup.ErrPasswordMismatch):
		return fiber.NewError(http.StatusBadRequest, msgPasswordMismatch)
	case errors.Is(err, phone.ErrInvalidPhoneNumber):
		return fiber.NewError(http.StatusBadRequest, msgInvalidPhone)
	case errors.Is(err, geo.ErrAddressRequired):
		return fiber.NewError(http.StatusBadRequest, msgAddressRequired)
	case errors.Is(err, geo.ErrAddressNotFound):
		return fiber.NewError(http.StatusBadRequest, msgAddressNotFound)
	case errors.Is(err, geo.ErrAddressTooFar):
		return fiber.NewError(http.StatusBadRequest, msgAddressTooFar)
	case errors.Is(err, identity.ErrEmailAlreadyExists):
		return fiber.NewError(http.StatusBadRequest, msgEmailTaken)
	case errors.Is(err, identity.ErrInvalidEmail):
		return fiber.NewError(http.StatusBadRequest, msgInvalidEmail)
	case errors.Is(err, identity.ErrWeakPassword):
		return fiber.NewError(http.StatusBadRequest, msgWeakPassword)
	case errors.Is(err, identity.ErrInvalidCredentials):
		return fiber.NewError(http.StatusUnauthorized, msgBadCredentials)
	case errors.Is(err, identity.ErrEmailNotVerified):
		return fiber.NewError(http.StatusForbidden, msgEmailNotVerified)
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, auth.ErrSessionRevoked):
		return fiber.NewError(http.StatusUnauthorized, msgInvalidToken)
	case errors.Is(err, identity.ErrUnsupportedProvider):
		return fiber.NewError(http.StatusBadRequest, msgUnsupportedSocial)
	case errors.Is(err, profile.ErrProfileNotFound), errors.Is(err, identity.ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, msgProfileNotFound)
	case errors.Is(err, profile.ErrEmptyUpdate):
		return fiber.NewError(http.StatusBadRequest, msgEmptyUpdate)
	default:
		// GeocodingUnavailable, upstream store failures and anything unexpected.
		return fiber.NewError(http.StatusInternalServerError, msgInternal)
	}
}

// ErrorHandler renders every error as {"message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	fe := toHTTPError(err)
	// Unmatched routes carry fiber's "Cannot GET /path" text.
	if fe.Code == http.StatusNotFound && strings.HasPrefix(fe.Message, "Cannot ") {
		fe = fiber.NewError(http.StatusNotFound, msgNotFound)
	}
	if fe.Code == http.StatusMethodNotAllowed {
		fe = fiber.NewError(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
	return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
}
