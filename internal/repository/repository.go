package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bazaars/internal/domain"
	"bazaars/internal/infrastructure/cache"
	"bazaars/internal/infrastructure/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// adColumns is the canonical select list. price is cast to float8 so the
// stdlib driver scans it straight into a float64.
const adColumns = "id, title, description, price::float8, status, user_email, user_phone, created_at, updated_at, top_ad, images"

const cacheTTL = 10 * time.Minute

type AdRepository interface {
	GetPage(ctx context.Context, limit int, offset int, sortBy string, order string, filter domain.AdFilter) ([]*domain.Ad, error)
	GetAdByID(ctx context.Context, id int64) (*domain.Ad, error)
	CreateAd(ctx context.Context, content domain.AdContent, imageIDs []string) (*domain.Ad, error)
	UpdateAd(ctx context.Context, ad *domain.Ad) (*domain.Ad, error)
	DeleteAd(ctx context.Context, id int64) error
	CountAds(ctx context.Context, filter domain.AdFilter) (int, error)
	DeclareCursor(ctx context.Context, filter domain.AdFilter) (string, error)
	FetchFromCursor(ctx context.Context, name string, count int) ([]*domain.Ad, error)
	CloseCursor(ctx context.Context, name string) error
}

type postgresAdRepository struct {
	db      *sql.DB
	cache   cache.Cache
	metrics *metrics.RepositoryMetrics
	tracer  trace.Tracer

	mu      sync.Mutex
	cursors map[string]*sql.Conn
}

func NewPostgresAdRepository(db *sql.DB, cache cache.Cache, metrics *metrics.RepositoryMetrics) AdRepository {
	tracer := otel.Tracer("bazaars/repository")
	return &postgresAdRepository{
		db:      db,
		cache:   cache,
		metrics: metrics,
		tracer:  tracer,
		cursors: make(map[string]*sql.Conn),
	}
}

func (r *postgresAdRepository) observe(query string, status *string, start time.Time) {
	duration := time.Since(start).Seconds()
	r.metrics.QueryCount.WithLabelValues(query, *status).Inc()
	r.metrics.QueryDuration.WithLabelValues(query, *status).Observe(duration)
}

// scanAd reads one ads row; images arrives as a jsonb byte slice.
func scanAd(row interface{ Scan(...interface{}) error }) (*domain.Ad, error) {
	var ad domain.Ad
	var images []byte
	if err := row.Scan(
		&ad.ID,
		&ad.Title,
		&ad.Description,
		&ad.Price,
		&ad.Status,
		&ad.UserEmail,
		&ad.UserPhone,
		&ad.CreatedAt,
		&ad.UpdatedAt,
		&ad.TopAd,
		&images,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(images, &ad.Images); err != nil {
		return nil, fmt.Errorf("decode images column: %w", err)
	}
	if ad.Images == nil {
		ad.Images = []string{}
	}
	return &ad, nil
}

func scanAds(rows *sql.Rows) ([]*domain.Ad, error) {
	var ads []*domain.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ads, nil
}

func (r *postgresAdRepository) GetPage(ctx context.Context, limit int, offset int, sortBy string, order string, filter domain.AdFilter) ([]*domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository GetPage")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer r.observe("GetPage", &status, startTime)

	sortBy, order = normalizeSort(sortBy, order)

	isDefaultPage := limit == 10 && offset == 0 && sortBy == "created_at" && order == "ASC" && filter.IsEmpty()
	cacheKey := "ads:default_page"

	if isDefaultPage {
		cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Get")
		cached, err := r.cache.Get(cacheSpanCtx, cacheKey)
		cacheSpan.End()

		if err == nil {
			var ads []*domain.Ad
			if err := json.Unmarshal([]byte(cached), &ads); err == nil {
				return ads, nil
			}
		}
	}

	where, args := buildFilterClause(filter, 1)
	query := fmt.Sprintf(
		"SELECT %s FROM ads%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		adColumns, where, sortBy, order, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetAttributes(
			attribute.String("query", query),
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
			attribute.String("sort_by", sortBy),
			attribute.String("order", order),
		)
		return nil, fmt.Errorf("failed to retrieve ads: %w", err)
	}
	defer rows.Close()

	ads, err := scanAds(rows)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	if isDefaultPage {
		adsJSON, err := json.Marshal(ads)
		if err == nil {
			cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Set")
			r.cache.Set(cacheSpanCtx, cacheKey, string(adsJSON), cacheTTL)
			cacheSpan.End()
		}
	}

	return ads, nil
}

func (r *postgresAdRepository) GetAdByID(ctx context.Context, id int64) (*domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository GetAdByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("ad.id", id))

	startTime := time.Now()
	status := "success"
	defer r.observe("GetAdByID", &status, startTime)

	cacheKey := fmt.Sprintf("ad:%d", id)

	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Get")
	cached, err := r.cache.Get(cacheSpanCtx, cacheKey)
	cacheSpan.End()

	if err == nil {
		var ad domain.Ad
		if err := json.Unmarshal([]byte(cached), &ad); err == nil {
			return &ad, nil
		}
	}

	query := fmt.Sprintf("SELECT %s FROM ads WHERE id = $1", adColumns)

	ad, err := scanAd(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err != sql.ErrNoRows {
			status = "error"
			span.RecordError(err)
		}
		return nil, err
	}

	adJSON, err := json.Marshal(ad)
	if err == nil {
		cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Set")
		r.cache.Set(cacheSpanCtx, cacheKey, string(adJSON), cacheTTL)
		cacheSpan.End()
	}

	return ad, nil
}

func (r *postgresAdRepository) CreateAd(ctx context.Context, content domain.AdContent, imageIDs []string) (*domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository CreateAd")
	defer span.End()

	span.SetAttributes(
		attribute.String("ad.title", content.Title),
		attribute.Float64("ad.price", content.Price),
	)

	startTime := time.Now()
	status := "success"
	defer r.observe("CreateAd", &status, startTime)

	if imageIDs == nil {
		imageIDs = []string{}
	}
	images, err := json.Marshal(imageIDs)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("encode images column: %w", err)
	}

	now := time.Now().UTC()

	query := fmt.Sprintf(`
		INSERT INTO ads (title, description, price, status, user_email, user_phone, created_at, updated_at, top_ad, images)
		VALUES ($1, $2, $3, 'active', $4, $5, $6, $6, $7, $8)
		RETURNING %s`, adColumns)

	ad, err := scanAd(r.db.QueryRowContext(ctx, query,
		content.Title,
		content.Description,
		content.Price,
		content.UserEmail,
		content.UserPhone,
		now,
		content.TopAd,
		images,
	))
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert ad: %w", err)
	}

	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Delete")
	r.cache.Delete(cacheSpanCtx, "ads:default_page")
	cacheSpan.End()

	return ad, nil
}

func (r *postgresAdRepository) UpdateAd(ctx context.Context, ad *domain.Ad) (*domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository UpdateAd")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("ad.id", ad.ID),
		attribute.String("ad.title", ad.Title),
		attribute.Float64("ad.price", ad.Price),
	)

	startTime := time.Now()
	status := "success"
	defer r.observe("UpdateAd", &status, startTime)

	if ad.Images == nil {
		ad.Images = []string{}
	}
	images, err := json.Marshal(ad.Images)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("encode images column: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE ads
		SET title = $1, description = $2, price = $3, status = $4, user_email = $5, user_phone = $6, top_ad = $7, images = $8, updated_at = $9
		WHERE id = $10
		RETURNING %s`, adColumns)

	updated, err := scanAd(r.db.QueryRowContext(ctx, query,
		ad.Title,
		ad.Description,
		ad.Price,
		ad.Status,
		ad.UserEmail,
		ad.UserPhone,
		ad.TopAd,
		images,
		time.Now().UTC(),
		ad.ID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			status = "not_found"
			return nil, sql.ErrNoRows
		}
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update ad: %w", err)
	}

	cacheKey := fmt.Sprintf("ad:%d", ad.ID)

	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Delete")
	r.cache.Delete(cacheSpanCtx, cacheKey, "ads:default_page")
	cacheSpan.End()

	updatedJSON, err := json.Marshal(updated)
	if err == nil {
		cacheSpanCtx, cacheSpan = r.tracer.Start(ctx, "Redis Set")
		r.cache.Set(cacheSpanCtx, cacheKey, string(updatedJSON), cacheTTL)
		cacheSpan.End()
	}

	return updated, nil
}

func (r *postgresAdRepository) DeleteAd(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "Repository DeleteAd")
	defer span.End()

	span.SetAttributes(attribute.Int64("ad.id", id))

	startTime := time.Now()
	status := "success"
	defer r.observe("DeleteAd", &status, startTime)

	result, err := r.db.ExecContext(ctx, "DELETE FROM ads WHERE id = $1", id)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to delete ad: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to retrieve rows affected: %w", err)
	}

	if rowsAffected == 0 {
		status = "not_found"
		return sql.ErrNoRows
	}

	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Delete")
	r.cache.Delete(cacheSpanCtx, fmt.Sprintf("ad:%d", id), "ads:default_page")
	cacheSpan.End()

	return nil
}

func (r *postgresAdRepository) CountAds(ctx context.Context, filter domain.AdFilter) (int, error) {
	ctx, span := r.tracer.Start(ctx, "Repository CountAds")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer r.observe("CountAds", &status, startTime)

	where, args := buildFilterClause(filter, 1)

	var count int
	query := "SELECT COUNT(*) FROM ads" + where
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		status = "error"
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count ads: %w", err)
	}
	return count, nil
}
