// Package handler exposes actor catalog lookups for the kiosk pickers.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"garita/internal/catalog"
	"garita/internal/platform/metrics"
	"garita/internal/platform/middleware"
	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
	"garita/pkg/platform/httputil"
)

// Service is the catalog surface the handler drives.
type Service interface {
	Get(ctx context.Context, actorID id.ActorID) (catalog.Actor, error)
	ListActive(ctx context.Context, kind catalog.ActorKind) ([]catalog.Actor, error)
}

type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{service: service, logger: logger, metrics: m, jwtValidator: jwtValidator}
}

// Register mounts the catalog routes.
func (h *Handler) Register(r chi.Router) {
	catalogRouter := chi.NewRouter()
	catalogRouter.Use(middleware.Recovery(h.logger))
	catalogRouter.Use(middleware.RequestID)
	catalogRouter.Use(middleware.Logger(h.logger))
	catalogRouter.Use(middleware.Timeout(10 * time.Second))
	catalogRouter.Use(middleware.Latency(h.metrics))
	catalogRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	catalogRouter.Get("/actors", h.handleListActors)
	catalogRouter.Get("/actors/{actorID}", h.handleGetActor)

	r.Mount("/catalog", catalogRouter)
}

type listActorsResponse struct {
	Actors []catalog.Actor `json:"actors"`
}

func (h *Handler) handleListActors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind := catalog.ActorKind(r.URL.Query().Get("kind"))
	actors, err := h.service.ListActive(ctx, kind)
	if err != nil {
		h.logger.WarnContext(ctx, "actor list failed", "kind", kind, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listActorsResponse{Actors: actors})
}

func (h *Handler) handleGetActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid actor id"))
		return
	}

	actor, err := h.service.Get(ctx, actorID)
	if err != nil {
		h.logger.WarnContext(ctx, "actor lookup failed", "actor_id", actorID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actor)
}
