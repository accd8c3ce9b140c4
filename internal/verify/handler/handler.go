// Package handler exposes field verification over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"garita/internal/platform/metrics"
	"garita/internal/platform/middleware"
	"garita/internal/verify"
	dErrors "garita/pkg/domain-errors"
	"garita/pkg/platform/httputil"
)

// maxImageBytes bounds image verification request bodies.
const maxImageBytes = 10 << 20

// Verification calls are rate limited per kiosk since the image path hits a
// paid OCR provider.
const (
	rateLimitRequests = 60
	rateLimitWindow   = time.Minute
)

// Engine is the verification surface the handler drives.
type Engine interface {
	VerifyText(ctx context.Context, kind verify.FieldKind, raw string) (verify.Result, error)
	VerifyImage(ctx context.Context, kind verify.FieldKind, image []byte) (verify.Result, error)
}

type Handler struct {
	engine       Engine
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(engine Engine, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{engine: engine, logger: logger, metrics: m, jwtValidator: jwtValidator}
}

// Register mounts the verification routes.
func (h *Handler) Register(r chi.Router) {
	verifyRouter := chi.NewRouter()
	verifyRouter.Use(middleware.Recovery(h.logger))
	verifyRouter.Use(middleware.RequestID)
	verifyRouter.Use(middleware.Logger(h.logger))
	verifyRouter.Use(middleware.Device)
	verifyRouter.Use(middleware.Timeout(30 * time.Second))
	verifyRouter.Use(middleware.Latency(h.metrics))
	verifyRouter.Use(middleware.RateLimit(rateLimitRequests, rateLimitWindow))
	verifyRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	verifyRouter.Post("/text", h.handleVerifyText)
	verifyRouter.Post("/image", h.handleVerifyImage)

	r.Mount("/verify", verifyRouter)
}

type verifyTextRequest struct {
	FieldKind string `json:"field_kind"`
	Raw       string `json:"raw"`
}

func (h *Handler) handleVerifyText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	kind, err := verify.ParseFieldKind(req.FieldKind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.engine.VerifyText(ctx, kind, req.Raw)
	if err != nil {
		h.logger.WarnContext(ctx, "text verification failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleVerifyImage reads the image from a multipart "image" part with the
// field kind in the query string, so kiosks can post camera captures
// directly.
func (h *Handler) handleVerifyImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, err := verify.ParseFieldKind(r.URL.Query().Get("field_kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "missing image part"))
		return
	}
	defer file.Close()
	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable image part"))
		return
	}

	result, err := h.engine.VerifyImage(ctx, kind, image)
	if err != nil {
		h.logger.WarnContext(ctx, "image verification failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
