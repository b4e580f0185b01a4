package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedsync/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contentRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false"`
	AuthorID  int64     `gorm:"index"`
	Posted    time.Time `gorm:"column:created_at"`
	Media     string    `gorm:"type:text"`
	Text      *string   `gorm:"type:text"`
	Latitude  *float64
	Longitude *float64
}

func (contentRow) TableName() string { return "cached_contents" }

type identityRow struct {
	ID             int64 `gorm:"primaryKey;autoIncrement:false"`
	DisplayName    string
	Bio            string
	BirthDate      string
	AvatarBlob     string    `gorm:"type:text"`
	Joined         time.Time `gorm:"column:created_at"`
	IsFollowedByMe bool
	IsFollowingMe  bool
	FollowerCount  int
	FollowingCount int
	ContentCount   int
}

func (identityRow) TableName() string { return "cached_identities" }

// SQLiteCache persists records on the device so they survive restarts.
type SQLiteCache struct {
	db *gorm.DB
}

func NewSQLite(db *gorm.DB) (*SQLiteCache, error) {
	if err := db.AutoMigrate(&contentRow{}, &identityRow{}); err != nil {
		return nil, fmt.Errorf("migrate cache tables: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (s *SQLiteCache) GetContent(ctx context.Context, id int64) (models.ContentItem, bool, error) {
	var row contentRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ContentItem{}, false, nil
	}
	if err != nil {
		return models.ContentItem{}, false, err
	}

	c := models.ContentItem{
		ID:        row.ID,
		AuthorID:  row.AuthorID,
		CreatedAt: row.Posted,
		Media:     row.Media,
		Text:      row.Text,
	}
	if row.Latitude != nil && row.Longitude != nil {
		c.Location = &models.Location{Latitude: *row.Latitude, Longitude: *row.Longitude}
	}
	return c, true, nil
}

func (s *SQLiteCache) PutContent(ctx context.Context, c models.ContentItem) error {
	row := contentRow{
		ID:       c.ID,
		AuthorID: c.AuthorID,
		Posted:   c.CreatedAt,
		Media:    c.Media,
		Text:     c.Text,
	}
	if c.Location != nil {
		lat, lng := c.Location.Latitude, c.Location.Longitude
		row.Latitude, row.Longitude = &lat, &lng
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *SQLiteCache) GetIdentity(ctx context.Context, id int64) (models.Identity, bool, error) {
	var row identityRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Identity{}, false, nil
	}
	if err != nil {
		return models.Identity{}, false, err
	}
	return models.Identity{
		ID:             row.ID,
		DisplayName:    row.DisplayName,
		Bio:            row.Bio,
		BirthDate:      row.BirthDate,
		AvatarBlob:     row.AvatarBlob,
		CreatedAt:      row.Joined,
		IsFollowedByMe: row.IsFollowedByMe,
		IsFollowingMe:  row.IsFollowingMe,
		FollowerCount:  row.FollowerCount,
		FollowingCount: row.FollowingCount,
		ContentCount:   row.ContentCount,
	}, true, nil
}

func (s *SQLiteCache) PutIdentity(ctx context.Context, u models.Identity) error {
	row := identityRow{
		ID:             u.ID,
		DisplayName:    u.DisplayName,
		Bio:            u.Bio,
		BirthDate:      u.BirthDate,
		AvatarBlob:     u.AvatarBlob,
		Joined:         u.CreatedAt,
		IsFollowedByMe: u.IsFollowedByMe,
		IsFollowingMe:  u.IsFollowingMe,
		FollowerCount:  u.FollowerCount,
		FollowingCount: u.FollowingCount,
		ContentCount:   u.ContentCount,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *SQLiteCache) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&contentRow{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&identityRow{}).Error
	})
}
