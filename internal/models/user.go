package models

import "time"

// User is the api server's row for an identity.
type User struct {
	ID             int64  `gorm:"primaryKey"`
	Username       string `gorm:"size:64"`
	Bio            string `gorm:"size:255"`
	DateOfBirth    string `gorm:"size:10"`
	ProfilePicture string `gorm:"type:text"`
	FollowerCount  int    `gorm:"default:0"`
	FollowingCount int    `gorm:"default:0"`
	PostCount      int    `gorm:"default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

type UserFollow struct {
	FollowerID int64 `gorm:"primaryKey"`
	FollowedID int64 `gorm:"primaryKey;index"`

	CreatedAt time.Time
}
