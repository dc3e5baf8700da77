/*
Package handler provides the HTTP handlers and routing setup for the server.

This file defines the main Router, applying necessary middleware like logging,
CORS, and IP-based rate limiting before delegating requests to specific handlers
(REST API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/limiter"
	"chatwire/internal/pkg/logx"
	"chatwire/internal/pkg/resp"
)

const (
	RegisterRate  = 0.05
	RegisterBurst = 2
	ConnectRate   = 0.2
	ConnectBurst  = 5
	UploadRate    = 1
	UploadBurst   = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	registerLimiter := limiter.NewIPRateLimiter(rate.Limit(RegisterRate), RegisterBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	uploadLimiter := limiter.NewIPRateLimiter(rate.Limit(UploadRate), UploadBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status": "ok",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/auth", func(auth chi.Router) {
		rateLimitedRegister := registerLimiter.Middleware(HandleRegister(deps))
		auth.Post("/register", rateLimitedRegister.ServeHTTP)
		auth.Post("/login", HandleLogin(deps))
	})

	r.Group(func(api chi.Router) {
		api.Use(jwt.RequireAuth(deps.Config.JWTSecret))

		api.Post("/chats/private", HandleCreatePrivateChat(deps))
		api.Post("/chats/group", HandleCreateGroupChat(deps))
		api.Get("/chats", HandleListChats(deps))

		api.Get("/chats/{chatID}/participants", HandleListParticipants(deps))
		api.Post("/chats/{chatID}/participants", HandleAddParticipants(deps))

		api.Get("/chats/{chatID}/messages", HandleListMessages(deps))

		rateLimitedSend := uploadLimiter.Middleware(HandleSendMessage(deps))
		api.Post("/chats/{chatID}/messages", rateLimitedSend.ServeHTTP)

		api.Get("/files/*", HandleDownloadFile(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
