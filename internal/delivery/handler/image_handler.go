package handler

import (
	"errors"
	"net/http"
	"time"

	"bazaars/internal/service"
	"bazaars/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
)

// GetImage serves the raw image bytes with the stored Content-Type.
func (h *AdHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetImage")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer h.observe("GET", "/images/{id}", &status, startTime)

	id := chi.URLParam(r, "id")
	if id == "" {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "missing id parameter")
		return
	}

	span.SetAttributes(attribute.String("image.id", id))

	img, err := h.service.GetImage(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrImageNotFound) {
			status = "not_found"
			utils.RespondWithErrorJSON(w, http.StatusNotFound, "image not found")
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("failed to get image", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	contentType := img.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(img.Bytes)
}
