package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/igolaizola/mixtape/pkg/catalog"
	"github.com/igolaizola/mixtape/pkg/cmd/migrate"
	"github.com/igolaizola/mixtape/pkg/storage"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := filepath.Join(dir, "mixtape.db")
	input := filepath.Join(dir, "songs.csv")
	csv := "title,artist,year,label\nJump,Van Halen,1984,Warner\n,Nobody,2000,\nPanama,Van Halen,1984,Warner\nUnchained,Van Halen,1981,Warner\n"
	if err := os.WriteFile(input, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}

	if err := migrate.Run(ctx, &migrate.Config{DBType: "sqlite", DBConn: db}); err != nil {
		t.Fatalf("migrate.Run() = %v", err)
	}
	if err := Run(ctx, &Config{DBType: "sqlite", DBConn: db, Input: input, Limit: 2}); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	store, err := storage.New("sqlite", db, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Stop() }()

	records, err := catalog.NewStore(store).FetchAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("imported %d songs, want 2", len(records))
	}
	for _, r := range records {
		if r.Artist() != "Van Halen" || r["year"] != 1984 {
			t.Errorf("unexpected record %v", r)
		}
		if _, ok := r["meta_data"]; ok {
			t.Errorf("record leaked meta_data: %v", r)
		}
	}
}
