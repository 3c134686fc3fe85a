package imagestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bazaars/internal/domain"

	"github.com/google/uuid"
)

// LocalImageStore keeps each image as <dir>/<id> with a <dir>/<id>.meta JSON
// sidecar carrying the original file name and MIME type.
type LocalImageStore struct {
	dir string
}

type imageMetadata struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

func NewLocalImageStore(dir string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &LocalImageStore{dir: dir}, nil
}

func (s *LocalImageStore) Get(ctx context.Context, id string) (*domain.Image, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("read image %s: %w", id, err)
	}

	metaBytes, err := os.ReadFile(filepath.Join(s.dir, id+".meta"))
	if err != nil {
		return nil, fmt.Errorf("read image metadata %s: %w", id, err)
	}

	var meta imageMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("decode image metadata %s: %w", id, err)
	}

	return &domain.Image{
		ID:       id,
		FileName: meta.FileName,
		MimeType: meta.MimeType,
		Bytes:    data,
	}, nil
}

func (s *LocalImageStore) Put(ctx context.Context, fileName string, mimeType string, data []byte) (string, error) {
	id := uuid.NewString()

	meta, err := json.Marshal(imageMetadata{FileName: fileName, MimeType: mimeType})
	if err != nil {
		return "", fmt.Errorf("encode image metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, id), data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", id, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, id+".meta"), meta, 0o644); err != nil {
		os.Remove(filepath.Join(s.dir, id))
		return "", fmt.Errorf("write image metadata %s: %w", id, err)
	}

	return id, nil
}

func (s *LocalImageStore) Delete(ctx context.Context, id string) error {
	if err := os.Remove(filepath.Join(s.dir, id)); err != nil {
		if os.IsNotExist(err) {
			return ErrImageNotFound
		}
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	if err := os.Remove(filepath.Join(s.dir, id+".meta")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete image metadata %s: %w", id, err)
	}
	return nil
}
