package filestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/igolaizola/mixtape/pkg/filestore/local"
	"github.com/igolaizola/mixtape/pkg/filestore/s3"
)

type fs interface {
	Upload(ctx context.Context, path, name string) error
	Download(ctx context.Context, path, name string) error
}

// Store keeps playlist artifacts.
type Store struct {
	fs fs
}

func (s *Store) SetPlaylist(ctx context.Context, path, name string) error {
	return s.fs.Upload(ctx, path, name)
}

func (s *Store) GetPlaylist(ctx context.Context, path, name string) error {
	return s.fs.Download(ctx, path, name)
}

// New returns a file store. The connection string is a directory for local
// and key:secret@bucket.region for s3.
func New(typ, conn string, debug bool) (*Store, error) {
	var fs fs
	switch typ {
	case "s3":
		split := strings.Split(conn, "@")
		if len(split) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 connection string %q", conn)
		}
		auth := strings.Split(split[0], ":")
		if len(auth) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 auth string %q", conn)
		}
		key := auth[0]
		secret := auth[1]
		loc := strings.Split(split[1], ".")
		if len(loc) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 location string %q", conn)
		}
		bucket := loc[0]
		region := loc[1]
		candidate, err := s3.New(key, secret, region, bucket, debug)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	case "local":
		candidate, err := local.New(conn)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	default:
		return nil, fmt.Errorf("filestore: unknown file storage type %q", typ)
	}
	return &Store{fs: fs}, nil
}
