package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/igolaizola/mixtape/pkg/catalog"
	"github.com/igolaizola/mixtape/pkg/filestore"
	"github.com/igolaizola/mixtape/pkg/playlist"
	"github.com/igolaizola/mixtape/pkg/selector"
	"github.com/igolaizola/mixtape/pkg/storage"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	FSType string
	FSConn string
	Proxy  string

	Source string
	Input  string
	Output string
	Save   bool

	Selector    string
	Endpoint    string
	Model       string
	Token       string
	Timeout     time.Duration
	BackoffUnit time.Duration
	MaxRetries  int
	PerBatch    int

	Theme          string
	BatchSize      int
	TotalTarget    int
	Seed           int64
	RequireInBatch bool
}

// Run fetches the catalog, assembles a playlist for the theme and writes it
// to the output file.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("compose: process started")
	defer log.Println("compose: process ended")

	if cfg.Output == "" {
		return errors.New("compose: output file is required")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("compose: invalid batch size %d", cfg.BatchSize)
	}
	if cfg.TotalTarget <= 0 {
		return fmt.Errorf("compose: invalid total target %d", cfg.TotalTarget)
	}

	source := strings.ToLower(cfg.Source)
	fromDB := source == "" || source == "db"

	var store *storage.Store
	if fromDB || cfg.Save {
		var err error
		store, err = storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
		if err != nil {
			return fmt.Errorf("compose: couldn't create orm store: %w", err)
		}
		if err := store.Start(ctx); err != nil {
			if fromDB {
				return fmt.Errorf("compose: couldn't start orm store: %w: %w", catalog.ErrSourceUnavailable, err)
			}
			return fmt.Errorf("compose: couldn't start orm store: %w", err)
		}
		defer func() { _ = store.Stop() }()
	}

	var fs *filestore.Store
	if cfg.FSType != "" {
		var err error
		fs, err = filestore.New(cfg.FSType, cfg.FSConn, cfg.Debug)
		if err != nil {
			return fmt.Errorf("compose: couldn't create file storage: %w", err)
		}
	}

	src, err := catalog.New(source, cfg.Input, store)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	log.Println("compose: loading catalog")
	records, err := src.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("compose: couldn't fetch catalog: %w", err)
	}
	log.Printf("compose: total songs %d\n", len(records))

	sel, err := selector.New(cfg.Selector, &selector.Config{
		Endpoint:    cfg.Endpoint,
		Model:       cfg.Model,
		Token:       cfg.Token,
		Proxy:       cfg.Proxy,
		Debug:       cfg.Debug,
		PerBatch:    cfg.PerBatch,
		MaxRetries:  cfg.MaxRetries,
		Timeout:     cfg.Timeout,
		BackoffUnit: cfg.BackoffUnit,
	})
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	start := time.Now()
	assembler := playlist.New(playlist.Config{
		BatchSize:      cfg.BatchSize,
		TotalTarget:    cfg.TotalTarget,
		Seed:           cfg.Seed,
		RequireInBatch: cfg.RequireInBatch,
		Debug:          cfg.Debug,
	}, sel)
	p, err := assembler.Assemble(ctx, records, cfg.Theme)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	st := p.Stats
	log.Printf("compose: sent %d/%d batches (%d failed, %d unparsed, %d duplicates, %d rejected) in %s\n",
		st.Sent, st.Batches, st.Failed, st.Unparsed, st.Duplicates, st.Rejected, time.Since(start))

	if p.Len() == 0 {
		log.Println("compose: no songs selected")
	} else {
		log.Printf("compose: final playlist (%d songs)\n", p.Len())
		for i, s := range p.Songs {
			title, _ := s["title"].(string)
			artist, _ := s["artist"].(string)
			log.Printf("%d. %s – %s\n", i+1, title, artist)
		}
	}

	if err := Write(cfg.Output, p.Songs); err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	log.Printf("compose: playlist written to %s\n", cfg.Output)

	id := ulid.Make().String()
	if cfg.Save {
		js, err := json.Marshal(p.Songs)
		if err != nil {
			return fmt.Errorf("compose: couldn't marshal playlist: %w", err)
		}
		if err := store.SetPlaylist(ctx, &storage.Playlist{
			ID:       id,
			Theme:    cfg.Theme,
			Selector: cfg.Selector,
			Model:    cfg.Model,
			Count:    p.Len(),
			Songs:    string(js),
		}); err != nil {
			return fmt.Errorf("compose: couldn't save playlist: %w", err)
		}
		log.Printf("compose: playlist saved with id %s\n", id)
	}

	if fs != nil {
		name := id + filepath.Ext(cfg.Output)
		if err := fs.SetPlaylist(ctx, cfg.Output, name); err != nil {
			return fmt.Errorf("compose: couldn't upload playlist: %w", err)
		}
		log.Printf("compose: playlist uploaded as %s\n", name)
	}
	return nil
}

// Write stores songs as an indented json array, or yaml for .yaml and .yml
// paths.
func Write(path string, songs []playlist.Candidate) error {
	if songs == nil {
		songs = []playlist.Candidate{}
	}
	var b []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(songs)
	default:
		b, err = json.MarshalIndent(songs, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("couldn't marshal playlist: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("couldn't write %s: %w", path, err)
	}
	return nil
}
