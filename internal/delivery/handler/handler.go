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
	"bazaars/pkg/logger"
	"bazaars/pkg/utils"

	"bazaars/internal/infrastructure/metrics"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxUploadBytes = 32 << 20

type AdHandler struct {
	service service.AdService
	logger  *logger.Loggers
	metrics *metrics.HandlerMetrics
	tracer  trace.Tracer
}

func NewAdHandler(service service.AdService, logger *logger.Loggers, metrics *metrics.HandlerMetrics) *AdHandler {
	tracer := otel.Tracer("bazaars/handler")
	return &AdHandler{
		service: service,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (h *AdHandler) observe(method, endpoint string, status *string, start time.Time) {
	duration := time.Since(start).Seconds()
	h.metrics.RequestCount.WithLabelValues(method, endpoint, *status).Inc()
	h.metrics.RequestDuration.WithLabelValues(method, endpoint, *status).Observe(duration)
}

// parseFilterQuery reads the optional filter fields from listing query params.
// Timestamps are RFC 3339.
func parseFilterQuery(r *http.Request) (domain.AdFilter, error) {
	var filter domain.AdFilter
	query := r.URL.Query()

	if v := query.Get("title_contains"); v != "" {
		filter.TitleContains = &v
	}
	if v := query.Get("description_contains"); v != "" {
		filter.DescriptionContains = &v
	}
	if v := query.Get("price_lt"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, errors.New("invalid price_lt parameter")
		}
		filter.PriceLT = &f
	}
	if v := query.Get("price_gt"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, errors.New("invalid price_gt parameter")
		}
		filter.PriceGT = &f
	}
	if v := query.Get("updated_at_lt"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid updated_at_lt parameter")
		}
		filter.UpdatedAtLT = &t
	}
	if v := query.Get("updated_at_gt"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid updated_at_gt parameter")
		}
		filter.UpdatedAtGT = &t
	}

	return filter, nil
}

func (h *AdHandler) GetAllAds(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetAllAds")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer h.observe("GET", "/ads", &status, startTime)

	query := r.URL.Query()

	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}

	page, err := strconv.Atoi(query.Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}

	offset := (page - 1) * limit

	sortBy := query.Get("sortBy")
	if sortBy == "" {
		sortBy = "created_at"
	}

	order := query.Get("order")
	if order == "" {
		order = "ASC"
	}

	filter, err := parseFilterQuery(r)
	if err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	span.SetAttributes(
		attribute.Int("ads.limit", limit),
		attribute.Int("ads.offset", offset),
		attribute.String("ads.sort_by", sortBy),
		attribute.String("ads.order", order),
	)

	result, err := h.service.ListAds(ctx, limit, offset, sortBy, order, filter)
	if err != nil {
		status = "error"
		h.logger.ErrorLogger.Error("failed to retrieve ads", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not retrieve ads")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *AdHandler) GetAdByID(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetAdByID")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer h.observe("GET", "/ads/{id}", &status, startTime)

	id, ok := h.adID(w, r, &status)
	if !ok {
		return
	}

	span.SetAttributes(attribute.Int64("ad.id", id))

	ad, err := h.service.GetAdByID(ctx, id)
	if err != nil {
		h.respondAdError(w, err, &status)
		span.RecordError(err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, ad)
}

func (h *AdHandler) CreateAd(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateAd")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer h.observe("POST", "/ads", &status, startTime)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		status = "error"
		h.logger.ErrorLogger.Error("invalid multipart payload", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}

	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid price field")
		return
	}

	topAd := false
	if v := r.FormValue("top_ad"); v != "" {
		topAd, err = strconv.ParseBool(v)
		if err != nil {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid top_ad field")
			return
		}
	}

	content := domain.AdContent{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       price,
		UserEmail:   r.FormValue("user_email"),
		UserPhone:   r.FormValue("user_phone"),
		TopAd:       topAd,
	}

	// Pre-supplied ids first, then any uploaded files.
	imageIDs := append([]string{}, r.MultipartForm.Value["image_ids"]...)

	for _, fh := range r.MultipartForm.File["images"] {
		file, err := fh.Open()
		if err != nil {
			status = "error"
			h.logger.ErrorLogger.Error("failed to open uploaded image", utils.Err(err))
			span.RecordError(err)
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid image upload")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			status = "error"
			h.logger.ErrorLogger.Error("failed to read uploaded image", utils.Err(err))
			span.RecordError(err)
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid image upload")
			return
		}

		id, err := h.service.StoreImage(ctx, fh.Filename, fh.Header.Get("Content-Type"), data)
		if err != nil {
			status = "error"
			h.logger.ErrorLogger.Error("failed to store image", utils.Err(err))
			span.RecordError(err)
			utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not store image")
			return
		}
		imageIDs = append(imageIDs, id)
	}

	span.SetAttributes(
		attribute.String("ad.title", content.Title),
		attribute.Float64("ad.price", content.Price),
		attribute.Int("ad.images", len(imageIDs)),
	)

	createdAd, err := h.service.CreateAd(ctx, content, imageIDs)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("could not create ad", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not create ad")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, createdAd)
}

func (h *AdHandler) UpdateAd(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateAd")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer h.observe("PUT", "/ads/{id}", &status, startTime)

	id, ok := h.adID(w, r, &status)
	if !ok {
		return
	}

	var adRequest domain.Ad
	if err := json.NewDecoder(r.Body).Decode(&adRequest); err != nil {
		status = "error"
		h.logger.ErrorLogger.Error("failed to decode request body", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	adRequest.ID = id

	span.SetAttributes(
		attribute.Int64("ad.id", adRequest.ID),
		attribute.String("ad.title", adRequest.Title),
		attribute.Float64("ad.price", adRequest.Price),
	)

	updatedAd, err := h.service.UpdateAd(ctx, &adRequest)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		h.respondAdError(w, err, &status)
		span.RecordError(err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, updatedAd)
}

func (h *AdHandler) DeleteAd(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteAd")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer h.observe("DELETE", "/ads/{id}", &status, startTime)

	id, ok := h.adID(w, r, &status)
	if !ok {
		return
	}

	if err := h.service.DeleteAd(ctx, id); err != nil {
		h.respondAdError(w, err, &status)
		span.RecordError(err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "ad deleted successfully"})
}

// adID extracts and validates the {id} route parameter, writing the error
// response itself when the value is unusable.
func (h *AdHandler) adID(w http.ResponseWriter, r *http.Request, status *string) (int64, bool) {
	idParam := chi.URLParam(r, "id")
	if idParam == "" {
		*status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "missing id parameter")
		return 0, false
	}

	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil || id <= 0 {
		*status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid id parameter")
		return 0, false
	}
	return id, true
}

func (h *AdHandler) respondAdError(w http.ResponseWriter, err error, status *string) {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		*status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid id parameter")
	case errors.Is(err, service.ErrAdNotFound):
		*status = "not_found"
		utils.RespondWithErrorJSON(w, http.StatusNotFound, "ad not found")
	default:
		*status = "error"
		h.logger.ErrorLogger.Error("ad request failed", utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
	}
}
