package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bazaars/internal/domain"
	"bazaars/internal/infrastructure/imagestore"
	"bazaars/internal/infrastructure/metrics"
	"bazaars/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidID      = errors.New("invalid ad ID")
	ErrAdNotFound     = errors.New("ad not found")
	ErrValidation     = errors.New("validation failed")
	ErrCursorNotFound = errors.New("cursor not found")
	ErrImageNotFound  = errors.New("image not found")
)

type PaginationResult struct {
	Ads         []*domain.Ad `json:"ads"`
	CurrentPage int          `json:"current_page"`
	NextPage    int          `json:"next_page,omitempty"`
	PrevPage    int          `json:"prev_page,omitempty"`
	TotalPages  int          `json:"total_pages"`
}

type CursorBatch struct {
	Cursor string       `json:"cursor"`
	Ads    []*domain.Ad `json:"ads"`
}

type AdService interface {
	ListAds(ctx context.Context, limit int, offset int, sortBy string, order string, filter domain.AdFilter) (*PaginationResult, error)
	GetAdByID(ctx context.Context, id int64) (*domain.Ad, error)
	CreateAd(ctx context.Context, content domain.AdContent, imageIDs []string) (*domain.Ad, error)
	UpdateAd(ctx context.Context, ad *domain.Ad) (*domain.Ad, error)
	DeleteAd(ctx context.Context, id int64) error
	OpenCursor(ctx context.Context, filter domain.AdFilter) (string, error)
	FetchFromCursor(ctx context.Context, name string, count int) ([]*domain.Ad, error)
	CloseCursor(ctx context.Context, name string) error
	GetImage(ctx context.Context, id string) (*domain.Image, error)
	StoreImage(ctx context.Context, fileName string, mimeType string, data []byte) (string, error)
}

type adService struct {
	repository repository.AdRepository
	images     imagestore.ImageStore
	metrics    *metrics.ServiceMetrics
	tracer     trace.Tracer
}

func NewAdService(repository repository.AdRepository, images imagestore.ImageStore, metrics *metrics.ServiceMetrics) AdService {
	tracer := otel.Tracer("bazaars/service")
	return &adService{
		repository: repository,
		images:     images,
		metrics:    metrics,
		tracer:     tracer,
	}
}

func (s *adService) observe(method string, status *string, start time.Time) {
	duration := time.Since(start).Seconds()
	s.metrics.MethodCount.WithLabelValues(method, *status).Inc()
	s.metrics.MethodDuration.WithLabelValues(method, *status).Observe(duration)
}

// validateContent enforces the write-side rules the schema leaves open:
// required text fields must be non-empty and price must be non-negative.
func validateContent(content domain.AdContent) error {
	switch {
	case content.Title == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case content.Description == "":
		return fmt.Errorf("%w: description is required", ErrValidation)
	case content.UserEmail == "":
		return fmt.Errorf("%w: user_email is required", ErrValidation)
	case content.UserPhone == "":
		return fmt.Errorf("%w: user_phone is required", ErrValidation)
	case content.Price < 0:
		return fmt.Errorf("%w: price must be non-negative", ErrValidation)
	}
	return nil
}

func (s *adService) ListAds(ctx context.Context, limit int, offset int, sortBy string, order string, filter domain.AdFilter) (*PaginationResult, error) {
	ctx, span := s.tracer.Start(ctx, "ListAds")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("ListAds", &status, startTime)

	ads, err := s.repository.GetPage(ctx, limit, offset, sortBy, order, filter)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	totalCount, err := s.repository.CountAds(ctx, filter)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	totalPages := (totalCount + limit - 1) / limit
	currentPage := (offset / limit) + 1

	var nextPage, prevPage int
	if currentPage < totalPages {
		nextPage = currentPage + 1
	}
	if currentPage > 1 {
		prevPage = currentPage - 1
	}

	span.SetAttributes(
		attribute.Int("ads.limit", limit),
		attribute.Int("ads.offset", offset),
		attribute.String("ads.sort_by", sortBy),
		attribute.String("ads.order", order),
		attribute.Int("ads.total_count", totalCount),
	)

	return &PaginationResult{
		Ads:         ads,
		CurrentPage: currentPage,
		NextPage:    nextPage,
		PrevPage:    prevPage,
		TotalPages:  totalPages,
	}, nil
}

func (s *adService) GetAdByID(ctx context.Context, id int64) (*domain.Ad, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	ctx, span := s.tracer.Start(ctx, "GetAdByID")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("GetAdByID", &status, startTime)

	ad, err := s.repository.GetAdByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return nil, ErrAdNotFound
		}
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("ad.id", id))
	return ad, nil
}

func (s *adService) CreateAd(ctx context.Context, content domain.AdContent, imageIDs []string) (*domain.Ad, error) {
	ctx, span := s.tracer.Start(ctx, "CreateAd")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("CreateAd", &status, startTime)

	if err := validateContent(content); err != nil {
		status = "invalid"
		return nil, err
	}

	createdAd, err := s.repository.CreateAd(ctx, content, imageIDs)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("ad.id", createdAd.ID),
		attribute.String("ad.title", createdAd.Title),
		attribute.Float64("ad.price", createdAd.Price),
	)
	return createdAd, nil
}

func (s *adService) UpdateAd(ctx context.Context, ad *domain.Ad) (*domain.Ad, error) {
	if ad.ID <= 0 {
		return nil, ErrInvalidID
	}

	ctx, span := s.tracer.Start(ctx, "UpdateAd")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("UpdateAd", &status, startTime)

	if err := validateContent(domain.AdContent{
		Title:       ad.Title,
		Description: ad.Description,
		Price:       ad.Price,
		UserEmail:   ad.UserEmail,
		UserPhone:   ad.UserPhone,
		TopAd:       ad.TopAd,
	}); err != nil {
		status = "invalid"
		return nil, err
	}
	if ad.Status == "" {
		status = "invalid"
		return nil, fmt.Errorf("%w: status is required", ErrValidation)
	}

	updatedAd, err := s.repository.UpdateAd(ctx, ad)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return nil, ErrAdNotFound
		}
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("ad.id", updatedAd.ID),
		attribute.String("ad.title", updatedAd.Title),
		attribute.Float64("ad.price", updatedAd.Price),
	)
	return updatedAd, nil
}

func (s *adService) DeleteAd(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}

	ctx, span := s.tracer.Start(ctx, "DeleteAd")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("DeleteAd", &status, startTime)

	err := s.repository.DeleteAd(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return ErrAdNotFound
		}
		status = "error"
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Int64("ad.id", id))
	return nil
}

func (s *adService) OpenCursor(ctx context.Context, filter domain.AdFilter) (string, error) {
	ctx, span := s.tracer.Start(ctx, "OpenCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("OpenCursor", &status, startTime)

	name, err := s.repository.DeclareCursor(ctx, filter)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(attribute.String("cursor.name", name))
	return name, nil
}

func (s *adService) FetchFromCursor(ctx context.Context, name string, count int) ([]*domain.Ad, error) {
	ctx, span := s.tracer.Start(ctx, "FetchFromCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("FetchFromCursor", &status, startTime)

	ads, err := s.repository.FetchFromCursor(ctx, name, count)
	if err != nil {
		if errors.Is(err, repository.ErrCursorNotFound) {
			status = "not_found"
			return nil, ErrCursorNotFound
		}
		status = "error"
		span.RecordError(err)
		return nil, err
	}
	return ads, nil
}

func (s *adService) CloseCursor(ctx context.Context, name string) error {
	ctx, span := s.tracer.Start(ctx, "CloseCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("CloseCursor", &status, startTime)

	err := s.repository.CloseCursor(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrCursorNotFound) {
			status = "not_found"
			return ErrCursorNotFound
		}
		status = "error"
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *adService) GetImage(ctx context.Context, id string) (*domain.Image, error) {
	ctx, span := s.tracer.Start(ctx, "GetImage")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("GetImage", &status, startTime)

	img, err := s.images.Get(ctx, id)
	if err != nil {
		if errors.Is(err, imagestore.ErrImageNotFound) {
			status = "not_found"
			return nil, ErrImageNotFound
		}
		status = "error"
		span.RecordError(err)
		return nil, err
	}
	return img, nil
}

func (s *adService) StoreImage(ctx context.Context, fileName string, mimeType string, data []byte) (string, error) {
	ctx, span := s.tracer.Start(ctx, "StoreImage")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer s.observe("StoreImage", &status, startTime)

	if len(data) == 0 {
		status = "invalid"
		return "", fmt.Errorf("%w: image data is empty", ErrValidation)
	}

	id, err := s.images.Put(ctx, fileName, mimeType, data)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(attribute.String("image.id", id))
	return id, nil
}
