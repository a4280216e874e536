package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/storage"
)

const (
	pathSignIn       = "/api/auth/signin"
	pathSignUp       = "/api/auth/signup"
	pathGoogle       = "/api/auth/google"
	pathVerifyEmail  = "/api/auth/verify-email"
	pathResendOTP    = "/api/auth/resend-otp"
	pathProfile      = "/api/profile/me"
	signInFallback   = "Sign in failed"
	signUpFallback   = "Signup failed"
	googleFallback   = "Google sign-in failed"
	invalidSignInMsg = "Invalid sign-in response from server"
)

var (
	errTransportRequired = errors.New("session: transport is required")

	// ErrSessionExpired is returned by RefreshProfile after the backend rejected the token
	// and the session was cleared.
	ErrSessionExpired = errors.New("session expired")
)

// Transport performs one backend call.
type Transport interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Envelope, error)
}

// Deps wires the holder.
type Deps struct {
	Transport Transport
	Store     *storage.Adapter
	Logger    *zap.Logger
}

// Holder owns the bearer token and the current user. It is the only component that
// reads or writes the persisted auth keys.
type Holder struct {
	transport Transport
	store     *storage.Adapter
	logger    *zap.Logger

	// persistMu orders a state change with its write to the store, so a sign-out
	// cannot be overtaken by a slower write of the session it ended.
	persistMu sync.Mutex

	mu        sync.RWMutex
	token     string
	user      *domain.User
	epoch     uint64 // bumped whenever a session starts or ends
	listeners []func()
}

// New constructs a Holder. A nil store keeps state in memory only.
func New(deps Deps) (*Holder, error) {
	if deps.Transport == nil {
		return nil, errTransportRequired
	}
	store := deps.Store
	if store == nil {
		store = storage.NewAdapter(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{transport: deps.Transport, store: store, logger: logger}, nil
}

// Call carries the optional parts of an authenticated request.
type Call struct {
	Query          url.Values
	Body           any
	IdempotencyKey string
	// UseCookies skips the Authorization header even when a token is held; the
	// transport's cookie jar carries the session. Cookie sessions never send one.
	UseCookies bool
}

// Token returns the current bearer token, or "".
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// User returns a copy of the current user, if any.
func (h *Holder) User() (domain.User, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.user == nil {
		return domain.User{}, false
	}
	return *h.user, true
}

// IsAuthenticated reports whether a bearer token or a cookie session is held. The user
// record may lag the token.
func (h *Holder) IsAuthenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token != "" || h.user != nil
}

// CookieSession reports a signed-in user without a bearer token.
func (h *Holder) CookieSession() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token == "" && h.user != nil
}

// OnSignOut registers fn to run after every sign-out.
func (h *Holder) OnSignOut(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// TokenExpiry decodes the exp claim of a JWT token without verifying it.
func (h *Holder) TokenExpiry() (time.Time, bool) {
	token := h.Token()
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Bootstrap hydrates the session from persistence and refreshes the profile when a
// session was stored. A rejected session leaves the holder signed out; other refresh
// failures keep the stored session.
func (h *Holder) Bootstrap(ctx context.Context) {
	h.persistMu.Lock()
	token := h.store.Token()
	user, _ := h.store.User()
	h.mu.Lock()
	h.token = token
	h.user = user
	h.epoch++
	h.mu.Unlock()
	h.persistMu.Unlock()

	if token == "" && user == nil {
		return
	}
	_ = h.RefreshProfile(ctx)
}

// SignIn exchanges credentials for a token and user.
func (h *Holder) SignIn(ctx context.Context, email, password string) (domain.User, error) {
	env, err := h.transport.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathSignIn,
		Body:   map[string]string{"email": strings.TrimSpace(email), "password": password},
	})
	if err != nil {
		return domain.User{}, authFailure(err, signInFallback)
	}

	token := firstNonEmpty(env.Data.String("token"), env.Body.String("token"))
	rawUser := env.Data.Object("user")
	if rawUser == nil {
		rawUser = env.Body.Object("user")
	}
	if rawUser == nil {
		return domain.User{}, &apiclient.AuthenticationError{Status: env.Status, Message: invalidSignInMsg}
	}
	user := domain.NormalizeUser(rawUser)
	if token == "" {
		h.logger.Info("signed in with cookie session", zap.String("user_id", user.ID))
	}
	h.establish(token, user)
	return user, nil
}

// SignInWithGoogle exchanges a Google identity credential for a token and user.
func (h *Holder) SignInWithGoogle(ctx context.Context, credential string) (domain.User, error) {
	if strings.TrimSpace(credential) == "" {
		return domain.User{}, domain.NewValidationError(map[string]string{"credential": "Google credential is required"})
	}
	env, err := h.transport.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathGoogle,
		Body:   map[string]string{"credential": credential},
	})
	if err != nil {
		return domain.User{}, authFailure(err, googleFallback)
	}
	token := env.Data.String("token")
	rawUser := env.Data.Object("user")
	if token == "" || rawUser == nil {
		return domain.User{}, &apiclient.AuthenticationError{Status: env.Status, Message: "Invalid Google sign-in response"}
	}
	user := domain.NormalizeUser(rawUser)
	h.establish(token, user)
	return user, nil
}

// SignUp registers an account. It never authenticates: the backend answers with an OTP
// challenge and the returned message should be shown before calling VerifyEmail.
func (h *Holder) SignUp(ctx context.Context, req SignUpRequest) (string, error) {
	req = req.normalized()
	if err := req.Validate(); err != nil {
		return "", err
	}
	env, err := h.transport.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathSignUp,
		Body:   req.payload(),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", firstNonEmpty(apiclient.Message(err), signUpFallback), err)
	}
	return firstNonEmpty(env.Message, "OTP sent to your email."), nil
}

// VerifyEmail completes sign-up with the emailed one-time passcode. When the backend
// returns a token the session becomes authenticated.
func (h *Holder) VerifyEmail(ctx context.Context, email, otp string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	otp = strings.TrimSpace(otp)
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "Email is required"
	}
	if otp == "" {
		fields["otp"] = "OTP is required"
	}
	if err := domain.NewValidationError(fields); err != nil {
		return "", err
	}

	env, err := h.transport.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathVerifyEmail,
		Body:   map[string]string{"email": email, "otp": otp},
	})
	if err != nil {
		return "", err
	}
	if token := env.Data.String("token"); token != "" {
		var user domain.User
		if raw := env.Data.Object("user"); raw != nil {
			user = domain.NormalizeUser(raw)
		} else {
			user = domain.User{Email: email}
		}
		h.establish(token, user)
	}
	return firstNonEmpty(env.Message, "Verified"), nil
}

// ResendOTP asks the backend to send a new sign-up passcode.
func (h *Holder) ResendOTP(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", domain.NewValidationError(map[string]string{"email": "Email is required"})
	}
	env, err := h.transport.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   pathResendOTP,
		Body:   map[string]string{"email": email},
	})
	if err != nil {
		return "", err
	}
	return firstNonEmpty(env.Message, "OTP resent successfully."), nil
}

// SignOut clears the in-memory and persisted session. Requests already in flight keep
// the token they captured and fail or succeed on their own.
func (h *Holder) SignOut() {
	h.endSession(nil)
}

// endSession clears the session. With epoch set it only ends that session, and reports
// false when a sign-out or sign-in already replaced it.
func (h *Holder) endSession(epoch *uint64) bool {
	h.persistMu.Lock()
	h.mu.Lock()
	if epoch != nil && *epoch != h.epoch {
		h.mu.Unlock()
		h.persistMu.Unlock()
		return false
	}
	h.token = ""
	h.user = nil
	h.epoch++
	listeners := append([]func(){}, h.listeners...)
	h.mu.Unlock()

	if err := h.store.ClearAuth(); err != nil {
		h.logger.Warn("clear persisted session", zap.Error(err))
	}
	h.persistMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return true
}

// AuthenticatedRequest calls the backend with the token captured at call time.
func (h *Holder) AuthenticatedRequest(ctx context.Context, method, path string, call Call) (*apiclient.Envelope, error) {
	req := apiclient.Request{
		Method:         method,
		Path:           path,
		Query:          call.Query,
		Body:           call.Body,
		IdempotencyKey: call.IdempotencyKey,
	}
	if !call.UseCookies {
		req.Token = h.Token()
	}
	return h.transport.Do(ctx, req)
}

// RefreshWarning wraps a profile refresh failure that left the session in place.
type RefreshWarning struct {
	Err error
}

func (w *RefreshWarning) Error() string { return "profile refresh: " + w.Err.Error() }

func (w *RefreshWarning) Unwrap() error { return w.Err }

// RefreshProfile re-fetches the current user. A 401 or 403 signs the session out and
// returns ErrSessionExpired; any other failure keeps the session and returns a
// *RefreshWarning. A result that arrives after the session ended is discarded.
func (h *Holder) RefreshProfile(ctx context.Context) error {
	h.mu.RLock()
	epoch := h.epoch
	authenticated := h.token != "" || h.user != nil
	h.mu.RUnlock()
	if !authenticated {
		return nil
	}
	env, err := h.AuthenticatedRequest(ctx, http.MethodGet, pathProfile, Call{})
	if err != nil {
		if apiclient.IsAuthFailure(err) {
			if !h.endSession(&epoch) {
				h.logger.Debug("ignoring rejection of an ended session", zap.Int("status", apiclient.StatusOf(err)))
				return nil
			}
			h.logger.Info("session rejected by backend, signed out", zap.Int("status", apiclient.StatusOf(err)))
			return fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		h.logger.Warn("profile refresh failed", zap.Error(err))
		return &RefreshWarning{Err: err}
	}

	raw := env.Data.Object("user")
	if raw == nil {
		h.logger.Warn("unexpected profile response")
		return &RefreshWarning{Err: errors.New("response carried no user")}
	}
	user := domain.NormalizeUser(raw)
	if !h.storeUser(&epoch, user) {
		h.logger.Debug("discarding profile of an ended session", zap.String("user_id", user.ID))
	}
	return nil
}

// SetUser replaces the held user record after a profile mutation. It is ignored once
// signed out.
func (h *Holder) SetUser(user domain.User) {
	h.storeUser(nil, user)
}

// storeUser replaces the user, in memory and on disk. With epoch set it only does so
// while that session is current.
func (h *Holder) storeUser(epoch *uint64, user domain.User) bool {
	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	h.mu.Lock()
	stale := epoch != nil && *epoch != h.epoch
	if stale || (h.token == "" && h.user == nil) {
		h.mu.Unlock()
		return false
	}
	h.user = &user
	h.mu.Unlock()

	if err := h.store.SetUser(&user); err != nil {
		h.logger.Warn("persist user", zap.Error(err))
	}
	return true
}

func (h *Holder) establish(token string, user domain.User) {
	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	h.mu.Lock()
	h.token = token
	h.user = &user
	h.epoch++
	h.mu.Unlock()

	if err := h.store.SetToken(token); err != nil {
		h.logger.Warn("persist token", zap.Error(err))
	}
	if err := h.store.SetUser(&user); err != nil {
		h.logger.Warn("persist user", zap.Error(err))
	}
}

// authFailure reports rejected credentials as *apiclient.AuthenticationError and keeps
// transport failures as they are.
func authFailure(err error, fallback string) error {
	var authErr *apiclient.AuthenticationError
	if errors.As(err, &authErr) {
		return err
	}
	status := apiclient.StatusOf(err)
	if status == 0 {
		return err
	}
	return &apiclient.AuthenticationError{Status: status, Message: firstNonEmpty(apiclient.Message(err), fallback)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
