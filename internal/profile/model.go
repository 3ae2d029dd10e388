package profile

import (
	"strings"
	"time"
)

// Profile is the user document shown on the account pages.
type Profile struct {
	ID            string    `json:"uid" bson:"_id"`
	Email         string    `json:"email" bson:"email"`
	FirstName     string    `json:"firstName" bson:"firstName"`
	LastName      string    `json:"lastName" bson:"lastName"`
	PhoneNumber   string    `json:"phoneNumber" bson:"phoneNumber"`
	Address       string    `json:"address" bson:"address"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	EmailVerified bool      `json:"emailVerified" bson:"emailVerified"`
	DisplayName   string    `json:"displayName,omitempty" bson:"displayName,omitempty"`
	PhotoURL      string    `json:"photoURL,omitempty" bson:"photoURL,omitempty"`
	Provider      string    `json:"provider,omitempty" bson:"provider,omitempty"`
}

// Patch lists the fields to overwrite. Nil fields are left untouched.
type Patch struct {
	FirstName     *string
	LastName      *string
	PhoneNumber   *string
	Address       *string
	EmailVerified *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.PhoneNumber == nil && p.Address == nil && p.EmailVerified == nil
}

// Apply returns a copy of pr with the patch applied.
func (p Patch) Apply(pr Profile) Profile {
	if p.FirstName != nil {
		pr.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		pr.LastName = *p.LastName
	}
	if p.PhoneNumber != nil {
		pr.PhoneNumber = *p.PhoneNumber
	}
	if p.Address != nil {
		pr.Address = *p.Address
	}
	if p.EmailVerified != nil {
		pr.EmailVerified = *p.EmailVerified
	}
	return pr
}

// NeedsCompletion is true while the profile lacks a phone number or address,
// typically after a first social sign-in.
func NeedsCompletion(p Profile) bool {
	return strings.TrimSpace(p.PhoneNumber) == "" || strings.TrimSpace(p.Address) == ""
}

// SplitName turns a provider display name into first and last name.
func SplitName(displayName string) (first, last string) {
	parts := strings.Fields(displayName)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
