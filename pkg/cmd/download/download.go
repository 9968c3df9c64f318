package download

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/igolaizola/mixtape/pkg/filestore"
)

type Config struct {
	Debug  bool
	FSType string
	FSConn string

	ID     string
	Ext    string
	Output string
}

// Run fetches a playlist uploaded by compose back from the file store.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("download: started")
	defer log.Println("download: ended")

	if cfg.ID == "" {
		return errors.New("download: playlist id is required")
	}
	if cfg.FSType == "" {
		return errors.New("download: fs type is required")
	}
	fs, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("download: couldn't create file storage: %w", err)
	}

	ext := cfg.Ext
	if ext == "" {
		ext = ".json"
	}
	if ext[0] != '.' {
		ext = "." + ext
	}
	name := cfg.ID + ext
	output := cfg.Output
	if output == "" {
		output = name
	}
	if filepath.Ext(output) == "" {
		output += ext
	}
	if err := fs.GetPlaylist(ctx, output, name); err != nil {
		return fmt.Errorf("download: couldn't download %s: %w", name, err)
	}
	log.Printf("download: playlist %s written to %s\n", name, output)
	return nil
}
