package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
)

const (
	pathUpdate            = "/api/profile/update"
	pathVerifyEmailChange = "/api/profile/verify-email-change"

	minNewPasswordLength = 8
	minOTPLength         = 4
)

var (
	errSessionRequired = errors.New("profile: session is required")

	phonePattern = regexp.MustCompile(`^\d{10,15}$`)
)

// Session is the subset of the session holder the service needs.
type Session interface {
	IsAuthenticated() bool
	AuthenticatedRequest(ctx context.Context, method, path string, call session.Call) (*apiclient.Envelope, error)
	RefreshProfile(ctx context.Context) error
	SetUser(user domain.User)
	User() (domain.User, bool)
}

// Update carries the editable profile fields. Empty fields are left unchanged.
type Update struct {
	Username        string `json:"username,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	Phone           string `json:"phone,omitempty"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
	NewEmail        string `json:"newEmail,omitempty"`
}

// Result reports the outcome of an update.
type Result struct {
	User    domain.User
	Message string
	// EmailChangeRequested means an OTP was sent to the new address; finish with
	// VerifyEmailChange.
	EmailChangeRequested bool
}

// Service edits the signed-in user's profile.
type Service struct {
	session Session
	logger  *zap.Logger
}

// New constructs a Service.
func New(sess Session, logger *zap.Logger) (*Service, error) {
	if sess == nil {
		return nil, errSessionRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{session: sess, logger: logger}, nil
}

// Validate checks an update before anything is sent.
func (u Update) Validate() error {
	fields := make(map[string]string)
	if u.Phone != "" && !phonePattern.MatchString(u.Phone) {
		fields["phone"] = "Phone must be 10-15 digits"
	}
	if u.NewPassword != "" {
		if len(u.NewPassword) < minNewPasswordLength {
			fields["newPassword"] = "New password must be at least 8 characters"
		}
		if u.CurrentPassword == "" {
			fields["currentPassword"] = "Current password is required"
		}
	}
	if u.NewEmail != "" && !strings.Contains(u.NewEmail, "@") {
		fields["newEmail"] = "Valid email required"
	}
	return domain.NewValidationError(fields)
}

func (u Update) trimmed() Update {
	u.Username = strings.TrimSpace(u.Username)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Phone = strings.TrimSpace(u.Phone)
	u.NewEmail = strings.TrimSpace(u.NewEmail)
	return u
}

// Update sends the changed fields and refreshes the held user.
func (s *Service) Update(ctx context.Context, u Update) (Result, error) {
	if !s.session.IsAuthenticated() {
		return Result{}, domain.ErrUnauthenticated
	}
	u = u.trimmed()
	if err := u.Validate(); err != nil {
		return Result{}, err
	}
	if u == (Update{}) {
		return Result{}, domain.NewValidationError(map[string]string{"profile": "Nothing to update"})
	}

	env, err := s.session.AuthenticatedRequest(ctx, http.MethodPut, pathUpdate, session.Call{Body: u})
	if err != nil {
		return Result{}, fmt.Errorf("profile: update: %w", err)
	}

	res := Result{Message: env.Message}
	res.EmailChangeRequested, _ = env.Data.Bool("emailChangeRequested")
	if raw := env.Data.Object("user"); raw != nil {
		s.session.SetUser(domain.NormalizeUser(raw))
	}
	if err := s.session.RefreshProfile(ctx); err != nil {
		s.logger.Warn("refresh after profile update", zap.Error(err))
	}
	res.User, _ = s.session.User()
	return res, nil
}

// VerifyEmailChange confirms a pending email change with the OTP sent to the new address.
func (s *Service) VerifyEmailChange(ctx context.Context, otp string) (Result, error) {
	otp = strings.TrimSpace(otp)
	if len(otp) < minOTPLength {
		return Result{}, domain.NewValidationError(map[string]string{"otp": "Enter a valid OTP"})
	}
	env, err := s.session.AuthenticatedRequest(ctx, http.MethodPost, pathVerifyEmailChange, session.Call{
		Body: map[string]string{"otp": otp},
	})
	if err != nil {
		return Result{}, fmt.Errorf("profile: verify email change: %w", err)
	}
	user, _ := s.session.User()
	if raw := env.Data.Object("user"); raw != nil {
		if email := raw.String("email"); email != "" {
			user.Email = email
			s.session.SetUser(user)
		}
	}
	return Result{User: user, Message: firstNonEmpty(env.Message, "Email changed")}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
