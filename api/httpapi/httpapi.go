package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	wsadapter "arenakit/adapters/websocket"
	"arenakit/analytics"
	"arenakit/core"
	"arenakit/engine"
	"arenakit/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// DefaultMaxPlayers applies to session creation requests that omit max_players.
	DefaultMaxPlayers int
	// WaitTimeout bounds session wait requests that carry no timeout of their own.
	WaitTimeout time.Duration
	// Analytics, if set, exposes daily snapshots.
	Analytics *analytics.Collector
	Logger    *slog.Logger
}

type api struct {
	arena *engine.Arena
	opts  Options
	log   *slog.Logger
}

// NewMux builds an http.Handler exposing the arena operations and the WebSocket stream.
// Health and the stream sit outside API key auth; everything else is under it.
func NewMux(arena *engine.Arena, hub *realtime.Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultMaxPlayers <= 0 {
		opts.DefaultMaxPlayers = 4
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	a := &api{arena: arena, opts: opts, log: opts.Logger.With("component", "http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)
	if opts.AllowCORSOrigin != "" {
		r.Use(corsMiddleware(opts.AllowCORSOrigin))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		r.Use(rateLimitMiddleware(newRateLimiter(opts.RateLimitRPM, opts.RateLimitBurst)))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	mount := func(r chi.Router) {
		r.Get("/healthz", a.healthCheck)
		if hub != nil {
			r.Handle("/ws", wsadapter.HandlerWithOptions(hub, wsadapter.Options{Logger: opts.Logger}))
		}
		r.Group(func(r chi.Router) {
			if len(opts.APIKeys) > 0 {
				r.Use(apiKeyMiddleware(opts.APIKeys))
			}
			a.routes(r)
		})
	}
	if prefix := routePrefix(opts.PathPrefix); prefix != "" {
		r.Route(prefix, mount)
	} else {
		mount(r)
	}
	return r
}

func (a *api) routes(r chi.Router) {
	r.Get("/leaderboard", a.getLeaderboard)
	r.Post("/ratings", a.updateRating)
	r.Get("/achievements", a.getCatalog)
	if a.opts.Analytics != nil {
		r.Get("/analytics/{day}", a.getAnalytics)
	}

	r.Route("/players", func(r chi.Router) {
		r.Get("/", a.listPlayers)
		r.Post("/", a.addPlayer)
		r.Route("/{playerID}", func(r chi.Router) {
			r.Get("/", a.getPlayer)
			r.Get("/stats", a.getPlayerStats)
			r.Get("/rank", a.getPlayerRank)
			r.Get("/progress", a.getPlayerProgress)
			r.Get("/history", a.getRatingHistory)
			r.Get("/sessions", a.getPlayerSessions)
			r.Post("/experience", a.addExperience)
			r.Get("/achievements", a.getPlayerAchievements)
			r.Get("/achievements/progress", a.getAchievementProgress)
			r.Post("/achievements/{achievementID}", a.unlockAchievement)
			r.Get("/rewards", a.getPlayerRewards)
			r.Post("/rewards", a.awardReward)
		})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", a.listSessions)
		r.Post("/", a.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", a.getSession)
			r.Get("/wait", a.waitForSession)
			r.Post("/join", a.joinSession)
			r.Post("/leave", a.leaveSession)
			r.Post("/start", a.startSession)
			r.Post("/finish", a.finishSession)
		})
	})

	r.Route("/games", func(r chi.Router) {
		r.Get("/", a.listGames)
		r.Post("/", a.createGame)
		r.Route("/{gameID}", func(r chi.Router) {
			r.Get("/", a.getGame)
			r.Post("/join", a.joinGame)
			r.Post("/leave", a.leaveGame)
			r.Post("/start", a.startGame)
			r.Post("/finish", a.finishGame)
			r.Get("/chat", a.getChat)
			r.Post("/chat", a.sendChat)
			r.Post("/events", a.postGameEvent)
		})
	})
}

// healthCheck verifies storage answers a roster read.
func (a *api) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}
	if _, err := a.arena.Ratings.ListPlayers(r.Context()); err != nil {
		a.log.Warn("health check failed", "error", err)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
		writeJSONStatus(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, status)
}

func routePrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}
	return prefix
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch core.ErrorKind(err) {
	case "not_found":
		return http.StatusNotFound
	case "invalid_state", "capacity", "insufficient_players", "already_exists":
		return http.StatusConflict
	case "invalid_argument":
		return http.StatusBadRequest
	case "timeout":
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeError(w, status, core.ErrorKind(err), err.Error(), nil)
}

var errEmptyBody = errors.New("request body is required")

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func (a *api) decodeOrFail(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decode(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return false
	}
	return true
}
