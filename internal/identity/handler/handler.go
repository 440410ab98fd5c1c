package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"contactlink/internal/identity/models"
	platformmetrics "contactlink/internal/platform/metrics"
	"contactlink/internal/platform/middleware"
	"contactlink/internal/transport/http/shared"
	dErrors "contactlink/pkg/domain-errors"
)

// Service defines the interface for identity operations.
type Service interface {
	Identify(ctx context.Context, req models.IdentifyRequest) (models.ClusterView, error)
}

// Handler handles the identify endpoint.
type Handler struct {
	logger         *slog.Logger
	identity       Service
	metrics        *platformmetrics.Metrics
	apiKeyHash     string
	requestTimeout time.Duration
}

// New creates a new identity Handler.
func New(identity Service, logger *slog.Logger, metrics *platformmetrics.Metrics, apiKeyHash string, requestTimeout time.Duration) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Handler{
		logger:         logger,
		identity:       identity,
		metrics:        metrics,
		apiKeyHash:     apiKeyHash,
		requestTimeout: requestTimeout,
	}
}

// Register registers the identity routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	identityRouter := chi.NewRouter()
	identityRouter.Use(middleware.Recovery(h.logger))
	identityRouter.Use(middleware.RequestID)
	identityRouter.Use(middleware.RequestTime)
	identityRouter.Use(middleware.ClientMetadata)
	identityRouter.Use(middleware.Logger(h.logger))
	identityRouter.Use(middleware.Timeout(h.requestTimeout))
	identityRouter.Use(middleware.ContentTypeJSON)
	identityRouter.Use(middleware.Latency(h.metrics))
	identityRouter.Use(middleware.RequireAPIKey(h.apiKeyHash, h.logger))
	identityRouter.Post("/identify", h.handleIdentify)

	r.Mount("/", identityRouter)
}

// handleIdentify resolves the submitted signals into an identity cluster and
// returns the merged contact view.
func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid identify request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	view, err := h.identity.Identify(ctx, req)
	if err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeValidation):
			h.logger.WarnContext(ctx, "identify request rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, err)
		case dErrors.HasCode(err, dErrors.CodeUnavailable):
			h.logger.WarnContext(ctx, "identify failed upstream",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, err)
		default:
			h.logger.ErrorContext(ctx, "identify failed",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to identify contact"))
		}
		return
	}

	shared.WriteJSON(w, http.StatusOK, models.NewContactResponse(view))
}
