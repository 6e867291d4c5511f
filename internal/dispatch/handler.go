package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lead-manager-backend/internal/leads"
	"lead-manager-backend/internal/middleware"
	"lead-manager-backend/internal/transport"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	log     *slog.Logger
}

func NewHandler(service *Service, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

// Send drives the whole dispatch synchronously; the CRM is called once per
// lead, so the timeout is sized for large batches rather than a single call.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	batchID := strings.TrimSpace(chi.URLParam(r, "batchID"))
	if batchID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing batch id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Minute)
	defer cancel()

	result, err := h.service.Send(ctx, batchID)
	if err != nil {
		switch {
		case errors.Is(err, leads.ErrBatchNotFound):
			log.Warn("dispatch send: batch not found", slog.String("batch_id", batchID))
			transport.WriteError(w, http.StatusNotFound, "batch not found", nil)
		case errors.Is(err, leads.ErrProductNotFound):
			log.Warn("dispatch send: product not found", slog.String("batch_id", batchID))
			transport.WriteError(w, http.StatusNotFound, "product not found", nil)
		case errors.Is(err, ErrNoEligibleAgents):
			log.Warn("dispatch send: no eligible agents", slog.String("batch_id", batchID))
			transport.WriteError(w, http.StatusBadRequest, "no agents available at the current hour", nil)
		case errors.Is(err, ErrNoLeadsToSend):
			log.Warn("dispatch send: nothing to send", slog.String("batch_id", batchID))
			transport.WriteError(w, http.StatusBadRequest, "no processed leads to send", nil)
		default:
			log.Error("dispatch send: error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "dispatch error", nil)
		}
		return
	}

	log.Info("dispatch send: ok",
		slog.String("batch_id", batchID),
		slog.String("dispatch_id", result.RunID),
		slog.Int("sent", result.Success),
		slog.Int("errors", result.Errors),
	)
	transport.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
