package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Song struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Title    string  `gorm:"index;not null;default:''"`
	Artist   string  `gorm:"index;not null;default:''"`
	Album    string  `gorm:"not null;default:''"`
	Genre    string  `gorm:"not null;default:''"`
	Year     int     `gorm:"not null;default:0"`
	Duration float32 `gorm:"not null;default:0"`
	Path     string  `gorm:"not null;default:''"`

	// Raw tag dump, never leaves the storage layer through the catalog.
	MetaData string `gorm:"column:meta_data;not null;default:''"`
}

func (s *Store) GetSong(ctx context.Context, id string) (*Song, error) {
	var v Song
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get song %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) SetSong(ctx context.Context, v *Song) error {
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set song %s: %w", v.ID, err)
	}
	return nil
}

// SetSongs inserts songs in chunks.
func (s *Store) SetSongs(ctx context.Context, vs []*Song) error {
	if len(vs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(vs, 100).Error; err != nil {
		return fmt.Errorf("storage: failed to set %d songs: %w", len(vs), err)
	}
	return nil
}

func (s *Store) DeleteSong(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&Song{ID: id}, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("storage: failed to delete song %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListSongs(ctx context.Context, page, size int, orderBy string, filter ...Filter) ([]*Song, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size
	vs := []*Song{}

	q := s.db.WithContext(ctx).Omit("meta_data")
	q = q.Offset(offset).Limit(size)
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list songs: %w", err)
	}
	return vs, nil
}

// AllSongs returns every song without the meta_data column.
func (s *Store) AllSongs(ctx context.Context, filter ...Filter) ([]*Song, error) {
	vs := []*Song{}
	q := s.db.WithContext(ctx).Omit("meta_data")
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list all songs: %w", err)
	}
	return vs, nil
}

func (s *Store) CountSongs(ctx context.Context, filter ...Filter) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&Song{})
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("storage: failed to count songs: %w", err)
	}
	return n, nil
}
