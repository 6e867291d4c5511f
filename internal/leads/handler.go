package leads

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lead-manager-backend/internal/httpx"
	"lead-manager-backend/internal/middleware"
	"lead-manager-backend/internal/transport"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 16 << 20

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

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing product id", nil)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		log.Warn("leads upload: invalid multipart body")
		transport.WriteError(w, http.StatusBadRequest, "invalid multipart body", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		log.Warn("leads upload: missing file field")
		transport.WriteError(w, http.StatusBadRequest, "missing file field", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		log.Warn("leads upload: read error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "could not read file", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	result, err := h.service.Upload(ctx, productID, header.Filename, data, "")
	if err != nil {
		switch {
		case errors.Is(err, ErrProductNotFound):
			log.Warn("leads upload: product not found", slog.String("product_id", productID))
			transport.WriteError(w, http.StatusNotFound, "product not found", nil)
		case errors.Is(err, ErrMalformedFile):
			log.Warn("leads upload: malformed file", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		default:
			log.Error("leads upload: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("leads upload: ok",
		slog.String("batch_id", result.BatchID),
		slog.String("file", result.Filename),
		slog.Int("records", result.RecordCount),
	)
	transport.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	batchID := strings.TrimSpace(chi.URLParam(r, "batchID"))
	if batchID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing batch id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	result, err := h.service.Process(ctx, batchID)
	if err != nil {
		switch {
		case errors.Is(err, ErrBatchNotFound):
			log.Warn("leads process: batch not found", slog.String("batch_id", batchID))
			transport.WriteError(w, http.StatusNotFound, "batch not found", nil)
		case errors.Is(err, ErrProductNotFound):
			log.Warn("leads process: product not found", slog.String("batch_id", batchID))
			transport.WriteError(w, http.StatusNotFound, "product not found", nil)
		default:
			log.Error("leads process: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("leads process: ok",
		slog.String("batch_id", batchID),
		slog.Int("valid", result.Valid),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("filtered", result.Filtered),
	)
	transport.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	batchID := strings.TrimSpace(chi.URLParam(r, "batchID"))
	if batchID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing batch id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	summary, err := h.service.Summary(ctx, batchID)
	if err != nil {
		if errors.Is(err, ErrBatchNotFound) {
			log.Warn("leads summary: batch not found", slog.String("batch_id", batchID))
			transport.WriteError(w, http.StatusNotFound, "batch not found", nil)
			return
		}
		log.Error("leads summary: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) ListByBatch(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	batchID := strings.TrimSpace(chi.URLParam(r, "batchID"))
	if batchID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing batch id", nil)
		return
	}

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 100, 500)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !IsValidStatus(status) {
		transport.WriteError(w, http.StatusBadRequest, "invalid status filter", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.ListLeads(ctx, batchID, status, limit, offset)
	if err != nil {
		log.Error("leads list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 100, 500)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.ListHistory(ctx, limit, offset)
	if err != nil {
		log.Error("history list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
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
