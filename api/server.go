// Package api exposes a custody controller over HTTP.
//
// The calling principal is read from a request header. Authenticating that
// header is left to the deployment (a gateway or an outer middleware).
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/xraph/custody"
	"github.com/xraph/custody/types"
)

// DefaultPrincipalHeader carries the caller principal.
const DefaultPrincipalHeader = "X-Custody-Principal"

// Server routes HTTP requests to a Controller.
type Server struct {
	c       *custody.Controller
	logger  *slog.Logger
	header  string
	limiter *RateLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithPrincipalHeader changes the header the caller principal is read from.
func WithPrincipalHeader(name string) Option {
	return func(s *Server) { s.header = name }
}

// WithRateLimit limits each principal to rps requests per second with the
// given burst. A zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = NewRateLimiter(rate.Limit(rps), burst)
	}
}

// New creates a Server for c.
func New(c *custody.Controller, opts ...Option) *Server {
	s := &Server{
		c:      c,
		logger: slog.Default(),
		header: DefaultPrincipalHeader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the server's background housekeeping until ctx is done. It
// evicts idle rate-limit buckets and is a no-op when limiting is disabled.
func (s *Server) Start(ctx context.Context) {
	if s.limiter != nil {
		s.limiter.StartCleanup(ctx, DefaultCleanupInterval, DefaultLimiterIdle)
	}
}

// RateLimiter returns the server's limiter, or nil when limiting is disabled.
func (s *Server) RateLimiter() *RateLimiter { return s.limiter }

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.principal)
	if s.limiter != nil {
		r.Use(s.limiter.Handler)
	}

	r.Get("/health", s.health)
	r.Get("/status", s.status)
	r.Get("/events", s.events)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", s.createAccount)
		r.Get("/", s.listAccounts)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/", s.getAccount)
			r.Post("/deposit", s.deposit)
			r.Post("/withdraw", s.withdraw)
			r.Post("/transfer", s.transfer)
			r.Post("/transfer-out", s.transferOut)
			r.Post("/authorizations", s.authorize)
			r.Delete("/authorizations/{authID}", s.deauthorize)
			r.Post("/settlements", s.settle)
			r.Put("/owner", s.transferAccountOwnership)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/reconcile", s.reconcile)
		r.Post("/pause", s.pause)
		r.Post("/unpause", s.unpause)
		r.Post("/withdraw-to-custodian", s.withdrawToCustodian)
		r.Put("/demurrage", s.setDemurrage)
		r.Put("/fee", s.setFee)
		r.Put("/custodian", s.setCustodian)
		r.Put("/community-chest", s.setCommunityChest)
		r.Put("/fee-sink", s.setFeeSink)
		r.Put("/owner", s.transferOwnership)
		r.Put("/implementation", s.updateImplementation)
		r.Get("/roles/{role}", s.roleMembers)
		r.Post("/roles/{role}/members", s.grantRole)
		r.Delete("/roles/{role}/members/{principal}", s.revokeRole)
	})

	return r
}

// principal moves the caller header into the request context.
func (s *Server) principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.Header.Get(s.header); p != "" {
			r = r.WithContext(custody.WithPrincipal(r.Context(), types.Principal(p)))
		}
		next.ServeHTTP(w, r)
	})
}
