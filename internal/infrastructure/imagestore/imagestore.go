package imagestore

import (
	"context"
	"errors"

	"bazaars/internal/domain"
)

// ErrImageNotFound is returned when no image exists for the given id.
var ErrImageNotFound = errors.New("image not found")

// ImageStore persists ad image blobs keyed by generated id.
type ImageStore interface {
	Get(ctx context.Context, id string) (*domain.Image, error)
	Put(ctx context.Context, fileName string, mimeType string, data []byte) (string, error)
	Delete(ctx context.Context, id string) error
}
