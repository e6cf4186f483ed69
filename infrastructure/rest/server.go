// Package rest exposes the account, history and WebSocket endpoints.
package rest

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Options struct {
	ClientURL     string
	CookieName    string
	CookieSecure  bool
	TokenDuration time.Duration
}

type Server struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	verifier    contract.TokenVerifier
	wsHandler   http.Handler
	options     Options
}

func NewServer(log *slog.Logger,
	authService services.IAuthService,
	chatService services.IChatService,
	verifier contract.TokenVerifier,
	wsHandler http.Handler,
	options Options) *Server {
	if options.CookieName == "" {
		options.CookieName = auth.DefaultCookieName
	}
	return &Server{
		log:         log,
		authService: authService,
		chatService: chatService,
		verifier:    verifier,
		wsHandler:   wsHandler,
		options:     options,
	}
}

// Routes builds the router. CORS runs first so preflight requests are
// answered before routing.
func (s *Server) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(
		s.withCORS(),
		middleware.RequestID,
		middleware.RealIP,
		s.withLogger,
		middleware.Recoverer,
	)

	router.Get("/test", s.handleTest)
	router.Get("/profile", s.handleProfile)
	router.Get("/people", s.handlePeople)
	router.Get("/messages/{userId}", s.handleMessages)
	router.Post("/login", s.handleLogin)
	router.Post("/register", s.handleRegister)
	router.Post("/logout", s.handleLogout)
	router.Handle("/ws", s.wsHandler)
	return router
}

func (s *Server) withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.options.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	})
}

func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// identity returns the caller's identity from the token cookie.
func (s *Server) identity(r *http.Request) (domain.Identity, bool) {
	token, ok := auth.TokenFromHeader(r.Header, s.options.CookieName)
	if !ok {
		return domain.Identity{}, false
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		return domain.Identity{}, false
	}
	return identity, true
}

func (s *Server) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.options.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.options.TokenDuration.Seconds()),
		HttpOnly: true,
		Secure:   s.options.CookieSecure,
		SameSite: s.sameSite(),
	})
}

func (s *Server) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.options.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.options.CookieSecure,
		SameSite: s.sameSite(),
	})
}

// sameSite allows cross-site cookies only over TLS, as browsers require.
func (s *Server) sameSite() http.SameSite {
	if s.options.CookieSecure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
