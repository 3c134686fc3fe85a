package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"bazaars/internal/domain"
	"bazaars/internal/infrastructure/imagestore"
	"bazaars/internal/infrastructure/metrics"
	"bazaars/internal/repository"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.ServiceMetrics
)

// serviceMetrics registers against the default prometheus registry, so the
// test binary must create it exactly once.
func serviceMetrics() *metrics.ServiceMetrics {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.NewServiceMetrics()
	})
	return testMetrics
}

type fakeRepo struct {
	ads     map[int64]*domain.Ad
	nextID  int64
	cursors map[string][]*domain.Ad
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		ads:     make(map[int64]*domain.Ad),
		nextID:  1,
		cursors: make(map[string][]*domain.Ad),
	}
}

func (f *fakeRepo) GetPage(ctx context.Context, limit, offset int, sortBy, order string, filter domain.AdFilter) ([]*domain.Ad, error) {
	var ads []*domain.Ad
	for _, ad := range f.ads {
		ads = append(ads, ad)
	}
	if offset >= len(ads) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ads) {
		end = len(ads)
	}
	return ads[offset:end], nil
}

func (f *fakeRepo) GetAdByID(ctx context.Context, id int64) (*domain.Ad, error) {
	ad, ok := f.ads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return ad, nil
}

func (f *fakeRepo) CreateAd(ctx context.Context, content domain.AdContent, imageIDs []string) (*domain.Ad, error) {
	if imageIDs == nil {
		imageIDs = []string{}
	}
	now := time.Now().UTC()
	ad := &domain.Ad{
		ID:          f.nextID,
		Title:       content.Title,
		Description: content.Description,
		Price:       content.Price,
		Status:      "active",
		UserEmail:   content.UserEmail,
		UserPhone:   content.UserPhone,
		CreatedAt:   now,
		UpdatedAt:   now,
		TopAd:       content.TopAd,
		Images:      imageIDs,
	}
	f.ads[ad.ID] = ad
	f.nextID++
	return ad, nil
}

func (f *fakeRepo) UpdateAd(ctx context.Context, ad *domain.Ad) (*domain.Ad, error) {
	if _, ok := f.ads[ad.ID]; !ok {
		return nil, sql.ErrNoRows
	}
	updated := *ad
	updated.UpdatedAt = time.Now().UTC()
	f.ads[ad.ID] = &updated
	return &updated, nil
}

func (f *fakeRepo) DeleteAd(ctx context.Context, id int64) error {
	if _, ok := f.ads[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.ads, id)
	return nil
}

func (f *fakeRepo) CountAds(ctx context.Context, filter domain.AdFilter) (int, error) {
	return len(f.ads), nil
}

func (f *fakeRepo) DeclareCursor(ctx context.Context, filter domain.AdFilter) (string, error) {
	name := "c_0123456789"
	var ads []*domain.Ad
	for _, ad := range f.ads {
		ads = append(ads, ad)
	}
	f.cursors[name] = ads
	return name, nil
}

func (f *fakeRepo) FetchFromCursor(ctx context.Context, name string, count int) ([]*domain.Ad, error) {
	ads, ok := f.cursors[name]
	if !ok {
		return nil, repository.ErrCursorNotFound
	}
	if count > len(ads) {
		count = len(ads)
	}
	batch := ads[:count]
	f.cursors[name] = ads[count:]
	return batch, nil
}

func (f *fakeRepo) CloseCursor(ctx context.Context, name string) error {
	if _, ok := f.cursors[name]; !ok {
		return repository.ErrCursorNotFound
	}
	delete(f.cursors, name)
	return nil
}

type fakeImageStore struct {
	images map[string]*domain.Image
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{images: make(map[string]*domain.Image)}
}

func (f *fakeImageStore) Get(ctx context.Context, id string) (*domain.Image, error) {
	img, ok := f.images[id]
	if !ok {
		return nil, imagestore.ErrImageNotFound
	}
	return img, nil
}

func (f *fakeImageStore) Put(ctx context.Context, fileName, mimeType string, data []byte) (string, error) {
	id := "img-1"
	f.images[id] = &domain.Image{ID: id, FileName: fileName, MimeType: mimeType, Bytes: data}
	return id, nil
}

func (f *fakeImageStore) Delete(ctx context.Context, id string) error {
	delete(f.images, id)
	return nil
}

func newTestService(repo repository.AdRepository, store imagestore.ImageStore) AdService {
	return NewAdService(repo, store, serviceMetrics())
}

func validContent() domain.AdContent {
	return domain.AdContent{
		Title:       "Bike",
		Description: "Used",
		Price:       120.50,
		UserEmail:   "a@b.com",
		UserPhone:   "555-1234",
	}
}

func TestCreateAdSetsDefaults(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeImageStore())

	ad, err := svc.CreateAd(context.Background(), validContent(), nil)
	if err != nil {
		t.Fatalf("CreateAd: %v", err)
	}
	if ad.ID <= 0 {
		t.Errorf("ID = %d, want generated positive id", ad.ID)
	}
	if ad.Status != "active" {
		t.Errorf("Status = %q, want active", ad.Status)
	}
	if ad.TopAd {
		t.Error("TopAd = true, want default false")
	}
	if ad.Images == nil || len(ad.Images) != 0 {
		t.Errorf("Images = %v, want empty slice", ad.Images)
	}
	if ad.CreatedAt.IsZero() || ad.UpdatedAt.IsZero() {
		t.Error("timestamps not set on create")
	}
}

func TestCreateAdValidation(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeImageStore())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*domain.AdContent)
	}{
		{"missing title", func(c *domain.AdContent) { c.Title = "" }},
		{"missing description", func(c *domain.AdContent) { c.Description = "" }},
		{"missing email", func(c *domain.AdContent) { c.UserEmail = "" }},
		{"missing phone", func(c *domain.AdContent) { c.UserPhone = "" }},
		{"negative price", func(c *domain.AdContent) { c.Price = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := validContent()
			tt.mutate(&content)
			if _, err := svc.CreateAd(ctx, content, nil); !errors.Is(err, ErrValidation) {
				t.Errorf("CreateAd = %v, want ErrValidation", err)
			}
		})
	}
}

func TestGetAdByID(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeImageStore())
	ctx := context.Background()

	created, err := svc.CreateAd(ctx, validContent(), []string{"img-1"})
	if err != nil {
		t.Fatalf("CreateAd: %v", err)
	}

	got, err := svc.GetAdByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetAdByID: %v", err)
	}
	if got.Title != "Bike" || len(got.Images) != 1 {
		t.Errorf("unexpected ad: %+v", got)
	}

	if _, err := svc.GetAdByID(ctx, created.ID+100); !errors.Is(err, ErrAdNotFound) {
		t.Errorf("missing ad: err = %v, want ErrAdNotFound", err)
	}
	if _, err := svc.GetAdByID(ctx, 0); !errors.Is(err, ErrInvalidID) {
		t.Errorf("zero id: err = %v, want ErrInvalidID", err)
	}
}

func TestUpdateAdTranslatesNoRows(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeImageStore())

	ad := &domain.Ad{
		ID:          42,
		Title:       "Bike",
		Description: "Used",
		Price:       99,
		Status:      "active",
		UserEmail:   "a@b.com",
		UserPhone:   "555-1234",
	}

	if _, err := svc.UpdateAd(context.Background(), ad); !errors.Is(err, ErrAdNotFound) {
		t.Errorf("UpdateAd = %v, want ErrAdNotFound", err)
	}
}

func TestDeleteAd(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeImageStore())
	ctx := context.Background()

	created, _ := svc.CreateAd(ctx, validContent(), nil)

	if err := svc.DeleteAd(ctx, created.ID); err != nil {
		t.Fatalf("DeleteAd: %v", err)
	}
	if err := svc.DeleteAd(ctx, created.ID); !errors.Is(err, ErrAdNotFound) {
		t.Errorf("second delete = %v, want ErrAdNotFound", err)
	}
	if err := svc.DeleteAd(ctx, -1); !errors.Is(err, ErrInvalidID) {
		t.Errorf("negative id = %v, want ErrInvalidID", err)
	}
}

func TestListAdsPaginationMath(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeImageStore())
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := svc.CreateAd(ctx, validContent(), nil); err != nil {
			t.Fatalf("CreateAd: %v", err)
		}
	}

	result, err := svc.ListAds(ctx, 10, 10, "created_at", "ASC", domain.AdFilter{})
	if err != nil {
		t.Fatalf("ListAds: %v", err)
	}
	if result.CurrentPage != 2 {
		t.Errorf("CurrentPage = %d, want 2", result.CurrentPage)
	}
	if result.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", result.TotalPages)
	}
	if result.NextPage != 3 {
		t.Errorf("NextPage = %d, want 3", result.NextPage)
	}
	if result.PrevPage != 1 {
		t.Errorf("PrevPage = %d, want 1", result.PrevPage)
	}
	if len(result.Ads) != 10 {
		t.Errorf("len(Ads) = %d, want 10", len(result.Ads))
	}
}

func TestCursorLifecycle(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeImageStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc.CreateAd(ctx, validContent(), nil)
	}

	name, err := svc.OpenCursor(ctx, domain.AdFilter{})
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}

	batch, err := svc.FetchFromCursor(ctx, name, 2)
	if err != nil {
		t.Fatalf("FetchFromCursor: %v", err)
	}
	if len(batch) != 2 {
		t.Errorf("len(batch) = %d, want 2", len(batch))
	}

	if err := svc.CloseCursor(ctx, name); err != nil {
		t.Fatalf("CloseCursor: %v", err)
	}
	if _, err := svc.FetchFromCursor(ctx, name, 2); !errors.Is(err, ErrCursorNotFound) {
		t.Errorf("fetch after close = %v, want ErrCursorNotFound", err)
	}
	if err := svc.CloseCursor(ctx, "c_ffffffffff"); !errors.Is(err, ErrCursorNotFound) {
		t.Errorf("close unknown = %v, want ErrCursorNotFound", err)
	}
}

func TestImageOperations(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeImageStore())
	ctx := context.Background()

	id, err := svc.StoreImage(ctx, "bike.jpg", "image/jpeg", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("StoreImage: %v", err)
	}

	img, err := svc.GetImage(ctx, id)
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if img.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q, want image/jpeg", img.MimeType)
	}

	if _, err := svc.GetImage(ctx, "missing"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("GetImage missing = %v, want ErrImageNotFound", err)
	}
	if _, err := svc.StoreImage(ctx, "x", "image/png", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("StoreImage empty = %v, want ErrValidation", err)
	}
}
