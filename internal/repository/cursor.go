package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bazaars/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ErrCursorNotFound is returned when a fetch or close names a cursor this
// instance does not hold.
var ErrCursorNotFound = errors.New("cursor not found")

const maxCursorFetch = 100

var cursorNamePattern = regexp.MustCompile(`^c_[0-9a-f]{10}$`)

func newCursorName() string {
	return "c_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// DeclareCursor opens a WITH HOLD cursor over the filtered ads set. The
// cursor lives on a pinned connection: WITH HOLD outlives transactions but
// not the session, so the connection stays reserved until CloseCursor.
func (r *postgresAdRepository) DeclareCursor(ctx context.Context, filter domain.AdFilter) (string, error) {
	ctx, span := r.tracer.Start(ctx, "Repository DeclareCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer r.observe("DeclareCursor", &status, startTime)

	conn, err := r.db.Conn(ctx)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return "", fmt.Errorf("failed to acquire connection: %w", err)
	}

	name := newCursorName()
	query := fmt.Sprintf(
		"DECLARE %s CURSOR WITH HOLD FOR SELECT %s FROM ads%s",
		name, adColumns, buildFilterClauseLiteral(filter),
	)

	if _, err := conn.ExecContext(ctx, query); err != nil {
		conn.Close()
		status = "error"
		span.RecordError(err)
		return "", fmt.Errorf("failed to declare cursor: %w", err)
	}

	r.mu.Lock()
	r.cursors[name] = conn
	r.mu.Unlock()

	span.SetAttributes(attribute.String("cursor.name", name))
	return name, nil
}

// FetchFromCursor advances the named cursor by up to count rows.
func (r *postgresAdRepository) FetchFromCursor(ctx context.Context, name string, count int) ([]*domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository FetchFromCursor")
	defer span.End()

	span.SetAttributes(
		attribute.String("cursor.name", name),
		attribute.Int("cursor.count", count),
	)

	startTime := time.Now()
	status := "success"
	defer r.observe("FetchFromCursor", &status, startTime)

	if !cursorNamePattern.MatchString(name) {
		status = "not_found"
		return nil, ErrCursorNotFound
	}
	if count <= 0 || count > maxCursorFetch {
		count = maxCursorFetch
	}

	r.mu.Lock()
	conn, ok := r.cursors[name]
	r.mu.Unlock()
	if !ok {
		status = "not_found"
		return nil, ErrCursorNotFound
	}

	rows, err := conn.QueryContext(ctx, fmt.Sprintf("FETCH FORWARD %d FROM %s", count, name))
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch from cursor: %w", err)
	}
	defer rows.Close()

	ads, err := scanAds(rows)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}
	return ads, nil
}

// CloseCursor closes the named cursor and releases its pinned connection.
func (r *postgresAdRepository) CloseCursor(ctx context.Context, name string) error {
	ctx, span := r.tracer.Start(ctx, "Repository CloseCursor")
	defer span.End()

	span.SetAttributes(attribute.String("cursor.name", name))

	startTime := time.Now()
	status := "success"
	defer r.observe("CloseCursor", &status, startTime)

	if !cursorNamePattern.MatchString(name) {
		status = "not_found"
		return ErrCursorNotFound
	}

	r.mu.Lock()
	conn, ok := r.cursors[name]
	delete(r.cursors, name)
	r.mu.Unlock()
	if !ok {
		status = "not_found"
		return ErrCursorNotFound
	}

	_, err := conn.ExecContext(ctx, "CLOSE "+name)
	if cerr := conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to close cursor: %w", err)
	}
	return nil
}
