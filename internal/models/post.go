package models

import "time"

// Post is the api server's row for a content item. Media holds either the
// inline base64 payload or, when MediaKey is set, nothing.
type Post struct {
	ID        int64   `gorm:"primaryKey"`
	AuthorID  int64   `gorm:"index"`
	Text      *string `gorm:"type:text"`
	Media     string  `gorm:"type:longtext"`
	MediaKey  string  `gorm:"size:128"`
	Latitude  *float64
	Longitude *float64

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type FeedMsg struct {
	AuthorID int64 `json:"author_id"`
	PostID   int64 `json:"post_id"`
	PostTime int64 `json:"post_time"`
}
