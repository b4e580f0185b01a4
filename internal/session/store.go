// Package session keeps the single signed-in account on the device.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedsync/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// slot is the only row key; a device holds one session at a time.
const slot = 1

type sessionRow struct {
	Slot       int    `gorm:"primaryKey;autoIncrement:false"`
	IdentityID int64  `gorm:"not null"`
	Token      string `gorm:"type:text;not null"`
	UpdatedAt  time.Time
}

func (sessionRow) TableName() string { return "sessions" }

var ErrNoSession = errors.New("no session")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns ErrNoSession when nobody has registered on this device.
func (s *Store) Load(ctx context.Context) (models.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Session{}, ErrNoSession
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("load session: %w", err)
	}
	return models.Session{IdentityID: row.IdentityID, Token: row.Token}, nil
}

func (s *Store) Save(ctx context.Context, sess models.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("save session: incomplete session for identity %d", sess.IdentityID)
	}
	row := sessionRow{Slot: slot, IdentityID: sess.IdentityID, Token: sess.Token}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete signs the device out. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&sessionRow{}, slot).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
