// Package paywidget hosts the payment gateway's checkout widget on a local callback
// listener and turns its callbacks into checkout widget events.
package paywidget

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/checkout"
	"github.com/Hemanshudhaduk/Velora/internal/platform/httpx"
	"github.com/Hemanshudhaduk/Velora/internal/platform/observability"
)

const (
	defaultAddr       = "127.0.0.1:8787"
	defaultTimeout    = 15 * time.Minute
	readHeaderTimeout = 10 * time.Second
	reasonExpired     = "payment window expired"
)

var (
	// ErrClosed is returned by Open after Close.
	ErrClosed = errors.New("paywidget: server closed")
	// ErrNotStarted is returned by Open before Start when no BaseURL was configured.
	ErrNotStarted = errors.New("paywidget: server not started")
)

// Config configures the callback listener.
type Config struct {
	Addr string
	// BaseURL is the externally reachable root of the listener. Start fills it from the
	// bound address when empty.
	BaseURL string
	// Timeout bounds how long a payment page stays open before it counts as dismissed.
	Timeout time.Duration
	// Announce is told where the shopper should open the payment page.
	Announce func(order checkout.GatewayOrder, pageURL string)
	IDGen    func() string
	Logger   *zap.Logger
}

type pending struct {
	order  checkout.GatewayOrder
	events chan checkout.WidgetEvent
	timer  *time.Timer
	done   chan struct{}
}

// Server implements checkout.PaymentWidget over HTTP callbacks.
type Server struct {
	cfg    Config
	logger *zap.Logger
	router chi.Router

	mu       sync.Mutex
	baseURL  string
	sessions map[string]*pending
	httpSrv  *http.Server
	closed   bool
}

// New constructs a Server. Call Start to bind the listener, or mount Handler yourself
// and set Config.BaseURL.
func New(cfg Config) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.IDGen == nil {
		cfg.IDGen = func() string { return ulid.Make().String() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		sessions: make(map[string]*pending),
	}
	s.router = s.routes()
	return s
}

// Handler exposes the callback routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		observability.CallbackLogger(s.logger),
		observability.Recover,
	)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/payment/{nonce}", func(p chi.Router) {
		p.Get("/", s.handlePage)
		p.Get("/options", s.handleOptions)
		p.Post("/success", s.handleSuccess)
		p.Post("/failure", s.handleFailure)
		p.Post("/dismiss", s.handleDismiss)
	})
	return r
}

// Start binds the listener and serves until Close.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("paywidget: listen on %s: %w", s.cfg.Addr, err)
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: readHeaderTimeout}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrClosed
	}
	s.httpSrv = srv
	if s.baseURL == "" {
		s.baseURL = "http://" + ln.Addr().String()
	}
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("payment callback listener stopped", zap.Error(err))
		}
	}()
	s.logger.Info("payment callback listener started", zap.String("addr", ln.Addr().String()))
	return nil
}

// Close shuts the listener down and abandons open payment pages.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpSrv
	nonces := make([]string, 0, len(s.sessions))
	for nonce := range s.sessions {
		nonces = append(nonces, nonce)
	}
	s.mu.Unlock()

	for _, nonce := range nonces {
		s.finish(nonce, nil)
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Open registers a single-use payment page for order and returns its event stream.
func (s *Server) Open(ctx context.Context, order checkout.GatewayOrder) (<-chan checkout.WidgetEvent, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.baseURL == "" {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	nonce := s.cfg.IDGen()
	p := &pending{
		order:  order,
		events: make(chan checkout.WidgetEvent, 1),
		done:   make(chan struct{}),
	}
	s.sessions[nonce] = p
	pageURL := s.baseURL + "/payment/" + nonce + "/"
	p.timer = time.AfterFunc(s.cfg.Timeout, func() {
		s.finish(nonce, &checkout.WidgetEvent{Kind: checkout.EventDismissed, Reason: reasonExpired})
	})
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.finish(nonce, nil)
		case <-p.done:
		}
	}()

	s.logger.Info("payment page opened",
		zap.String("order_id", order.OrderID),
		zap.String("gateway_order_id", order.GatewayOrderID),
	)
	if s.cfg.Announce != nil {
		s.cfg.Announce(order, pageURL)
	}
	return p.events, nil
}

// finish delivers ev (if any) and retires nonce. It reports whether nonce was pending.
func (s *Server) finish(nonce string, ev *checkout.WidgetEvent) bool {
	s.mu.Lock()
	p, ok := s.sessions[nonce]
	if ok {
		delete(s.sessions, nonce)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	if ev != nil {
		p.events <- *ev
	}
	close(p.events)
	close(p.done)
	return true
}

func (s *Server) lookup(nonce string) (checkout.GatewayOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.sessions[nonce]
	if !ok {
		return checkout.GatewayOrder{}, false
	}
	return p.order, true
}
