package models

import "time"

// Location is present as a whole or not at all.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ContentItem is a post. It never changes once created.
type ContentItem struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	Media     string    `json:"media"`
	Text      *string   `json:"text,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

// Draft is the input of a new post.
type Draft struct {
	Text     *string
	Media    string
	Location *Location
}

// Clone copies the optional parts so a cached value can't be changed through
// a caller's pointer.
func (c ContentItem) Clone() ContentItem {
	if c.Text != nil {
		t := *c.Text
		c.Text = &t
	}
	if c.Location != nil {
		l := *c.Location
		c.Location = &l
	}
	return c
}
