package session

import (
	"regexp"
	"strings"

	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern    = regexp.MustCompile(`^\d{10,15}$`)
)

const minPasswordLength = 6

// SignUpRequest is the registration form.
type SignUpRequest struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
	Confirm   string
}

func (r SignUpRequest) normalized() SignUpRequest {
	r.Username = strings.TrimSpace(r.Username)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	return r
}

// Validate checks the form before anything is sent.
func (r SignUpRequest) Validate() error {
	r = r.normalized()
	fields := make(map[string]string)
	if !usernamePattern.MatchString(r.Username) {
		fields["username"] = "Username must be 3–50 characters"
	}
	if r.FirstName == "" {
		fields["firstName"] = "First name required"
	}
	if r.LastName == "" {
		fields["lastName"] = "Last name required"
	}
	if !emailPattern.MatchString(r.Email) {
		fields["email"] = "Valid email required"
	}
	if !phonePattern.MatchString(r.Phone) {
		fields["phone"] = "Phone must be 10–15 digits"
	}
	if len(r.Password) < minPasswordLength {
		fields["password"] = "Password must be 6+ chars"
	}
	if r.Password != r.Confirm {
		fields["confirm"] = "Passwords do not match"
	}
	return domain.NewValidationError(fields)
}

func (r SignUpRequest) payload() map[string]string {
	return map[string]string{
		"username":  r.Username,
		"firstName": r.FirstName,
		"lastName":  r.LastName,
		"email":     r.Email,
		"phone":     r.Phone,
		"password":  r.Password,
	}
}
