package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"bazaars/internal/domain"
	"bazaars/internal/service"
	"bazaars/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
)

// OpenCursor declares a server-side cursor over the filtered ad set and
// returns its name for subsequent fetches.
func (h *AdHandler) OpenCursor(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "OpenCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer h.observe("POST", "/ads/cursor", &status, startTime)

	var filter domain.AdFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil && !errors.Is(err, io.EOF) {
		status = "error"
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid filter payload")
		return
	}

	name, err := h.service.OpenCursor(ctx, filter)
	if err != nil {
		status = "error"
		h.logger.ErrorLogger.Error("failed to open cursor", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not open cursor")
		return
	}

	span.SetAttributes(attribute.String("cursor.name", name))
	utils.RespondWithJSON(w, http.StatusCreated, map[string]string{"cursor": name})
}

func (h *AdHandler) FetchFromCursor(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "FetchFromCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer h.observe("GET", "/ads/cursor/{name}", &status, startTime)

	name := chi.URLParam(r, "name")
	if name == "" {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "missing cursor name")
		return
	}

	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		count = 10
	}

	span.SetAttributes(
		attribute.String("cursor.name", name),
		attribute.Int("cursor.count", count),
	)

	ads, err := h.service.FetchFromCursor(ctx, name, count)
	if err != nil {
		if errors.Is(err, service.ErrCursorNotFound) {
			status = "not_found"
			utils.RespondWithErrorJSON(w, http.StatusNotFound, "cursor not found")
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("failed to fetch from cursor", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not fetch from cursor")
		return
	}

	if ads == nil {
		ads = []*domain.Ad{}
	}
	utils.RespondWithJSON(w, http.StatusOK, service.CursorBatch{Cursor: name, Ads: ads})
}

func (h *AdHandler) CloseCursor(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CloseCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer h.observe("DELETE", "/ads/cursor/{name}", &status, startTime)

	name := chi.URLParam(r, "name")
	if name == "" {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "missing cursor name")
		return
	}

	span.SetAttributes(attribute.String("cursor.name", name))

	if err := h.service.CloseCursor(ctx, name); err != nil {
		if errors.Is(err, service.ErrCursorNotFound) {
			status = "not_found"
			utils.RespondWithErrorJSON(w, http.StatusNotFound, "cursor not found")
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("failed to close cursor", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not close cursor")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "cursor closed"})
}
