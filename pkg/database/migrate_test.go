package database

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestListMigrationsSortsAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_add_column.sql": {Data: []byte("ALTER TABLE ads ADD COLUMN x INT;")},
		"migrations/0001_create_ads.sql": {Data: []byte("CREATE TABLE ads ();")},
		"migrations/README.md":           {Data: []byte("ignore me")},
	}

	files, err := listMigrations(fsys, "migrations")
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}

	want := []string{"0001_create_ads.sql", "0002_add_column.sql"}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d: %v", len(files), len(want), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestListMigrationsMissingDir(t *testing.T) {
	if _, err := listMigrations(fstest.MapFS{}, "migrations"); err == nil {
		t.Fatal("expected error for missing migrations dir")
	}
}

func TestEmbeddedMigrationDefinesAdsSchema(t *testing.T) {
	b, err := fs.ReadFile(migrationFS, "migrations/0001_create_ads.sql")
	if err != nil {
		t.Fatalf("read embedded migration: %v", err)
	}
	sql := strings.ToLower(string(b))

	for _, col := range []string{
		"title varchar(255) not null",
		"description text not null",
		"price numeric(12, 2) not null",
		"status varchar(50) not null",
		"user_email varchar(255) not null",
		"user_phone varchar(50) not null",
		"created_at timestamp not null",
		"updated_at timestamp not null",
		"top_ad boolean not null default false",
		"images jsonb not null default '[]'::jsonb",
	} {
		if !strings.Contains(sql, col) {
			t.Errorf("migration missing column definition %q", col)
		}
	}

	for _, idx := range []string{
		"create index idx_ads_price on ads (price)",
		"create index idx_ads_status on ads (status)",
		"create index idx_ads_updated_at on ads (updated_at)",
		"create index idx_ads_top_ad on ads (top_ad)",
	} {
		if !strings.Contains(sql, idx) {
			t.Errorf("migration missing index %q", idx)
		}
	}
}
