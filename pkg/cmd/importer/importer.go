package importer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/igolaizola/mixtape/pkg/catalog"
	"github.com/igolaizola/mixtape/pkg/storage"
	"github.com/oklog/ulid/v2"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	Input  string
	Limit  int
}

// Run loads songs from a json or csv file into the catalog table.
func Run(ctx context.Context, cfg *Config) error {
	var count int
	log.Println("import: started")
	defer func() {
		log.Printf("import: ended (%d)\n", count)
	}()

	debug := func(format string, args ...interface{}) {
		if !cfg.Debug {
			return
		}
		format += "\n"
		log.Printf(format, args...)
	}

	records, err := catalog.ReadFile(cfg.Input)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("import: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("import: couldn't start orm store: %w", err)
	}
	defer func() { _ = store.Stop() }()

	var songs []*storage.Song
	for _, r := range records {
		if cfg.Limit > 0 && len(songs) >= cfg.Limit {
			break
		}
		song := catalog.ToSong(ulid.Make().String(), r)
		if strings.TrimSpace(song.Title) == "" {
			log.Printf("import: skipping record without title: %v\n", r)
			continue
		}
		debug("import: %s - %s", song.Title, song.Artist)
		songs = append(songs, song)
	}
	if err := store.SetSongs(ctx, songs); err != nil {
		return fmt.Errorf("import: couldn't save songs: %w", err)
	}
	count = len(songs)
	return nil
}
