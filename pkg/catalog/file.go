package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
)

type fileSource struct {
	path string
}

// NewFile returns a source that reads a json array of objects or a csv file
// with a header row.
func NewFile(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) FetchAll(ctx context.Context) ([]Record, error) {
	records, err := ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	for _, r := range records {
		strip(r)
	}
	return records, nil
}

// ReadFile reads records from a json or csv file, chosen by extension.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: couldn't open %s: %w", path, err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		var records []Record
		if err := json.NewDecoder(f).Decode(&records); err != nil {
			return nil, fmt.Errorf("catalog: couldn't decode %s: %w", path, err)
		}
		// Drop null entries
		out := records[:0]
		for _, r := range records {
			if r != nil {
				out = append(out, r)
			}
		}
		return out, nil
	case ".csv":
		rows, err := gocsv.CSVToMaps(f)
		if err != nil {
			return nil, fmt.Errorf("catalog: couldn't parse %s: %w", path, err)
		}
		records := make([]Record, 0, len(rows))
		for _, row := range rows {
			r := Record{}
			for k, v := range row {
				r[strings.ToLower(strings.TrimSpace(k))] = v
			}
			records = append(records, r)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("catalog: unsupported file extension %q", ext)
	}
}
