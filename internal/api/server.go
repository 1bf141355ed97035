package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arena/internal/arena"
	"arena/internal/config"
	"arena/internal/metrics"
	"arena/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	arena   *arena.Service
	hub     *notify.Hub
	metrics *metrics.Metrics
	mux     *chi.Mux
}

// New wires the router. hub and m may be nil, which drops /v1/ws and
// /metrics respectively.
func New(cfg config.APIConfig, logger *slog.Logger, svc *arena.Service, hub *notify.Hub, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		arena:   svc,
		hub:     hub,
		metrics: m,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		if s.hub != nil {
			r.Get("/ws", s.hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/matches", s.handleMatches)
			r.Get("/matches/{id}", s.handleMatchDetail)
			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/actors/{id}/history", s.handleHistory)
			r.Get("/actors/{id}/stats", s.handleStats)
			r.Post("/rematches", s.handleRematch)

			r.Group(func(r chi.Router) {
				r.Use(s.operatorMiddleware)
				r.Post("/tick", s.handleTick)
				r.Post("/matches/{id}/resolve", s.handleResolve)
			})
		})
	})
}

func (s *Server) operatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.OperatorToken == "" {
			writeError(w, http.StatusForbidden, "operator endpoints are disabled")
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.OperatorToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid operator token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	day := strings.TrimSpace(r.URL.Query().Get("day"))
	if day == "" {
		day = s.arena.Today()
	}
	out, err := s.arena.Matches(r.Context(), day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": day, "matches": out})
}

func (s *Server) handleMatchDetail(w http.ResponseWriter, r *http.Request) {
	out, err := s.arena.MatchDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	season := strings.TrimSpace(r.URL.Query().Get("season"))
	out, err := s.arena.Leaderboard(r.Context(), season, queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	out, err := s.arena.History(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 20))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out, err := s.arena.Stats(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(r.URL.Query().Get("season")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRematch(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RequesterID string `json:"requester_id"`
		TargetID    string `json:"target_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, created, err := s.arena.RequestRematch(r.Context(), in.RequesterID, in.TargetID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	attrs := []any{
		slog.String("requester", req.RequesterID),
		slog.String("target", req.TargetID),
		slog.Bool("created", created),
	}
	if key := idempotencyKey(r); key != "" {
		attrs = append(attrs, slog.String("idempotency_key", key))
	}
	s.log.Info("rematch requested", attrs...)
	writeJSON(w, status, map[string]any{"request": req, "created": created})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Day                string `json:"day"`
		MatchesPerDay      int    `json:"matches_per_day"`
		ResolveImmediately bool   `json:"resolve_immediately"`
	}
	if err := decodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Day) == "" {
		in.Day = s.arena.Today()
	}
	out, err := s.arena.TickDay(r.Context(), in.Day, in.MatchesPerDay, in.ResolveImmediately)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	out, err := s.arena.ResolveMatch(r.Context(), chi.URLParam(r, "id"), true)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, arena.ErrInvalidDay), errors.Is(err, arena.ErrInvalidActor),
		errors.Is(err, arena.ErrInvalidSlotCount), errors.Is(err, arena.ErrInvalidSeason),
		errors.Is(err, arena.ErrSameActor), errors.Is(err, arena.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, arena.ErrActorNotFound), errors.Is(err, arena.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, arena.ErrMatchNotDue), errors.Is(err, arena.ErrTxConflict),
		errors.Is(err, arena.ErrStatusRegression):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, arena.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// idempotencyKey is the client's replay key, empty when none was sent.
func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
