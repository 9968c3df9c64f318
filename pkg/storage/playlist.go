package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Playlist is a saved compose run.
type Playlist struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Theme    string `gorm:"not null;default:''"`
	Selector string `gorm:"not null;default:''"`
	Model    string `gorm:"not null;default:''"`
	Count    int    `gorm:"not null;default:0"`

	// JSON array of the accepted songs, in acceptance order.
	Songs string `gorm:"type:text;not null"`
}

func (s *Store) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	var v Playlist
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get playlist %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) SetPlaylist(ctx context.Context, v *Playlist) error {
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set playlist %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&Playlist{ID: id}, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("storage: failed to delete playlist %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListPlaylists(ctx context.Context, page, size int, filter ...Filter) ([]*Playlist, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size
	vs := []*Playlist{}

	// Songs are omitted from listings
	q := s.db.WithContext(ctx).Omit("songs").Offset(offset).Limit(size)
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	q = q.Order("created_at desc")
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list playlists: %w", err)
	}
	return vs, nil
}
