package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/igolaizola/mixtape/pkg/storage"
)

type songStore interface {
	Ping(ctx context.Context) error
	AllSongs(ctx context.Context, filter ...storage.Filter) ([]*storage.Song, error)
}

type dbSource struct {
	store songStore
}

// NewStore returns a source backed by the songs table.
func NewStore(store *storage.Store) Source {
	return &dbSource{store: store}
}

func (s *dbSource) FetchAll(ctx context.Context) ([]Record, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	songs, err := s.store.AllSongs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	records := make([]Record, 0, len(songs))
	for _, song := range songs {
		records = append(records, FromSong(song))
	}
	return records, nil
}

// FromSong converts a stored song to a record, leaving out empty optional
// fields and anything internal.
func FromSong(song *storage.Song) Record {
	r := Record{
		"title":  song.Title,
		"artist": song.Artist,
	}
	if song.Album != "" {
		r["album"] = song.Album
	}
	if song.Genre != "" {
		r["genre"] = song.Genre
	}
	if song.Year != 0 {
		r["year"] = song.Year
	}
	if song.Duration != 0 {
		r["duration"] = song.Duration
	}
	if song.Path != "" {
		r["path"] = song.Path
	}
	return r
}

// ToSong converts a record to a song for import. Unknown fields are kept as
// json in the meta_data column.
func ToSong(id string, r Record) *storage.Song {
	song := &storage.Song{
		ID:     id,
		Title:  r.Title(),
		Artist: r.Artist(),
		Album:  str(r["album"]),
		Genre:  str(r["genre"]),
		Year:   int(num(r["year"])),
		Path:   str(r["path"]),
	}
	song.Duration = float32(num(r["duration"]))

	extra := map[string]any{}
	for k, v := range r {
		switch k {
		case "title", "artist", "album", "genre", "year", "duration", "path", "id", "_id":
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			song.MetaData = string(b)
		}
	}
	return song
}

func str(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func num(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
