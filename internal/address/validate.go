package address

import (
	"regexp"
	"strings"

	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

var (
	phonePattern   = regexp.MustCompile(`^\d{10}$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// States lists the Indian states and union territories accepted for delivery.
var States = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
	"Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka",
	"Kerala", "Madhya Pradesh", "Maharashtra", "Manipur", "Meghalaya", "Mizoram",
	"Nagaland", "Odisha", "Punjab", "Rajasthan", "Sikkim", "Tamil Nadu",
	"Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand", "West Bengal",
	"Andaman and Nicobar Islands", "Chandigarh", "Dadra and Nagar Haveli and Daman and Diu",
	"Delhi", "Jammu and Kashmir", "Ladakh", "Lakshadweep", "Puducherry",
}

// CanonicalState matches name case-insensitively against States.
func CanonicalState(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, s := range States {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}

// Validate trims the form, canonicalises state and type, and reports field errors.
func Validate(a domain.Address) (domain.Address, error) {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.Pincode = strings.TrimSpace(a.Pincode)
	a.Landmark = strings.TrimSpace(a.Landmark)

	fields := make(map[string]string)
	if a.FullName == "" {
		fields["fullName"] = "Full name is required"
	}
	switch {
	case a.Phone == "":
		fields["phone"] = "Phone number is required"
	case !phonePattern.MatchString(a.Phone):
		fields["phone"] = "Phone number must be 10 digits"
	}
	if a.Line1 == "" {
		fields["addressLine1"] = "Address is required"
	}
	if a.City == "" {
		fields["city"] = "City is required"
	}
	if strings.TrimSpace(a.State) == "" {
		fields["state"] = "State is required"
	} else if state, ok := CanonicalState(a.State); ok {
		a.State = state
	} else {
		fields["state"] = "Select a valid state"
	}
	switch {
	case a.Pincode == "":
		fields["pincode"] = "Pincode is required"
	case !pincodePattern.MatchString(a.Pincode):
		fields["pincode"] = "Pincode must be 6 digits"
	}
	switch domain.AddressType(strings.ToUpper(strings.TrimSpace(string(a.Type)))) {
	case "":
		a.Type = domain.AddressHome
	case domain.AddressHome, domain.AddressWork, domain.AddressOther:
		a.Type = domain.AddressType(strings.ToUpper(strings.TrimSpace(string(a.Type))))
	default:
		fields["addressType"] = "Address type must be HOME, WORK or OTHER"
	}
	return a, domain.NewValidationError(fields)
}
