package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/colintoh/clicky-mcp/internal/config"
	"github.com/colintoh/clicky-mcp/internal/mcp"
	"github.com/colintoh/clicky-mcp/internal/session"
)

// SessionHeader carries the session id on every request after initialize
const SessionHeader = "Mcp-Session-Id"

const maxMessageBytes = 1 << 20

// Router handles HTTP routing
type Router struct {
	cfg            *config.Config
	sessionManager *session.Manager
	server         *mcp.Server
	wsHandler      *WSHandler
	version        string
	logger         zerolog.Logger
	startTime      time.Time
}

// NewRouter creates a new router
func NewRouter(
	cfg *config.Config,
	sm *session.Manager,
	server *mcp.Server,
	ws *WSHandler,
	version string,
	logger zerolog.Logger,
) *Router {
	return &Router{
		cfg:            cfg,
		sessionManager: sm,
		server:         server,
		wsHandler:      ws,
		version:        version,
		logger:         logger.With().Str("component", "api").Logger(),
		startTime:      time.Now(),
	}
}

// Handler returns the HTTP handler
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", SessionHeader},
		ExposedHeaders:   []string{SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get(rt.cfg.HealthCheckPath, rt.handleHealth)
	r.Get("/ready", rt.handleReady)

	// Protocol endpoints
	r.Route("/mcp", func(r chi.Router) {
		r.With(middleware.Timeout(60*time.Second)).Post("/", rt.handleMessage)
		r.Delete("/", rt.handleEndSession)
		r.Get("/ws", rt.wsHandler.HandleConnection)
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions", rt.handleListSessions)
		r.Get("/stats", rt.handleStats)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (rt *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			rt.logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("HTTP request")
		}()

		next.ServeHTTP(ww, r)
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Uptime:    time.Since(rt.startTime).String(),
		Timestamp: time.Now(),
		Version:   rt.version,
	}
	rt.respondJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	if rt.sessionManager.Count() >= rt.cfg.MaxSessions {
		rt.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "max sessions reached",
		})
		return
	}

	rt.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMessage answers one JSON-RPC message. initialize opens a session;
// everything else must name a live one.
func (rt *Router) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		rt.respondError(w, http.StatusRequestEntityTooLarge, "Message too large")
		return
	}

	req, errResp := mcp.ParseRequest(body)
	if errResp != nil {
		rt.respondJSON(w, http.StatusBadRequest, errResp)
		return
	}

	var sess *session.Session
	if req.Method == mcp.MethodInitialize {
		sess, err = rt.sessionManager.CreateSession(session.TransportHTTP)
		if err != nil {
			rt.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		w.Header().Set(SessionHeader, sess.ID)
	} else {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			rt.respondError(w, http.StatusBadRequest, "Missing "+SessionHeader+" header")
			return
		}
		var found bool
		sess, found = rt.sessionManager.GetSession(id)
		if !found {
			rt.respondError(w, http.StatusNotFound, "Session not found")
			return
		}
	}

	resp := rt.server.Handle(r.Context(), sess, req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	rt.respondJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		rt.respondError(w, http.StatusBadRequest, "Missing "+SessionHeader+" header")
		return
	}
	if err := rt.sessionManager.EndSession(id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			rt.respondError(w, http.StatusNotFound, "Session not found")
			return
		}
		rt.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleListSessions(w http.ResponseWriter, r *http.Request) {
	rt.respondJSON(w, http.StatusOK, rt.sessionManager.ListSessions())
}

// StatsResponse represents server statistics
type StatsResponse struct {
	session.ManagerStats
	ActiveConnections int   `json:"active_connections"`
	UptimeSeconds     int64 `json:"uptime_seconds"`
}

func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		ManagerStats:      rt.sessionManager.Stats(),
		ActiveConnections: rt.wsHandler.ActiveConnections(),
		UptimeSeconds:     int64(time.Since(rt.startTime).Seconds()),
	}
	rt.respondJSON(w, http.StatusOK, resp)
}

// respondJSON writes JSON response
func (rt *Router) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes error response
func (rt *Router) respondError(w http.ResponseWriter, status int, message string) {
	rt.respondJSON(w, status, map[string]string{"error": message})
}
