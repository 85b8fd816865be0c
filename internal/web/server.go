// Package web serves the payslip query pages, the admin upload pages and
// a small JSON API over payroll.Service.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/paystub/internal/config"
	"github.com/JonMunkholm/paystub/internal/payroll"
	"github.com/JonMunkholm/paystub/internal/web/middleware"
)

// multipartOverhead is allowed on top of the file size limit for the
// form fields and multipart framing of an upload.
const multipartOverhead = 1 << 20

// Server is the HTTP server of the payslip application.
type Server struct {
	service  *payroll.Service
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	sessions *sessionStore
	limiters []*rateLimiter
}

// NewServer creates a Server. A random session key is used when
// cfg.Security.SecretKey is empty.
func NewServer(service *payroll.Service, cfg *config.Config) *Server {
	secret := []byte(cfg.Security.SecretKey)
	if len(secret) == 0 {
		slog.Warn("SECRET_KEY not set, sessions will not survive a restart")
		secret = randomSecret()
	}

	s := &Server{
		service:  service,
		cfg:      cfg,
		router:   chi.NewRouter(),
		sessions: newSessionStore(secret, cfg.Security.SessionTTL),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute))
	}
}

// newLimiter returns a per-minute limiter middleware, or a pass-through
// when rate limiting is disabled.
func (s *Server) newLimiter(perMinute int) func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := newRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl.middleware(s)
}

func (s *Server) setupRoutes() {
	loginLimit := s.newLimiter(s.cfg.Rate.LoginLimit)
	uploadLimit := s.newLimiter(s.cfg.Rate.UploadLimit)
	requireAdmin := middleware.RequireAuth(s.sessions.Username, s.handleUnauthorized)

	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Post("/query", s.handleQuery)
	s.router.Get("/login", s.handleLoginPage)
	s.router.With(loginLimit).Post("/login", s.handleLogin)
	s.router.Get("/logout", s.handleLogout)
	s.router.With(requireAdmin).Get("/admin", s.handleAdmin)
	s.router.With(requireAdmin, uploadLimit).Post("/upload", s.handleUpload)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/months", s.handleAPIMonths)
		r.Post("/query", s.handleAPIQuery)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/imports", s.handleAPIImports)
			r.With(uploadLimit).Post("/preview", s.handleAPIPreview)
			r.With(uploadLimit).Post("/upload", s.handleAPIUpload)
		})
	})
}

// Start listens on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Close stops the session and rate limiter sweepers without touching
// the listener.
func (s *Server) Close() {
	s.sessions.Close()
	for _, rl := range s.limiters {
		rl.Close()
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// Pages ship their styles inline and load nothing else.
				h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}
