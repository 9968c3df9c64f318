package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/igolaizola/mixtape/pkg/storage"
)

// ErrSourceUnavailable is returned when the catalog can't be read at all.
var ErrSourceUnavailable = errors.New("catalog: source unavailable")

// Record is an opaque song record. Title and artist are expected but not
// required.
type Record map[string]any

// Title returns the title field if it is a string.
func (r Record) Title() string {
	s, _ := r["title"].(string)
	return s
}

// Artist returns the artist field if it is a string.
func (r Record) Artist() string {
	s, _ := r["artist"].(string)
	return s
}

// Source provides the full catalog.
type Source interface {
	FetchAll(ctx context.Context) ([]Record, error)
}

// Fields stripped before records leave a source.
var internalFields = []string{"_id", "id", "meta_data"}

func strip(r Record) Record {
	for _, k := range internalFields {
		delete(r, k)
	}
	return r
}

// New returns a source for the given type. The db type reads from the store,
// the file type reads a json or csv file.
func New(typ, path string, store *storage.Store) (Source, error) {
	switch strings.ToLower(typ) {
	case "", "db":
		if store == nil {
			return nil, errors.New("catalog: db source requires a store")
		}
		return NewStore(store), nil
	case "file":
		if path == "" {
			return nil, errors.New("catalog: file source requires a path")
		}
		return NewFile(path), nil
	default:
		return nil, fmt.Errorf("catalog: unknown source type %q", typ)
	}
}
