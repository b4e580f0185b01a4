package models

// FeedItem joins a post with its author. It is computed on read and never stored.
type FeedItem struct {
	Content ContentItem `json:"content"`
	Author  Identity    `json:"author"`
	IsOwn   bool        `json:"isOwn"`
}

func NewFeedItem(c ContentItem, author Identity, viewerID int64) FeedItem {
	return FeedItem{
		Content: c,
		Author:  author,
		IsOwn:   viewerID != 0 && c.AuthorID == viewerID,
	}
}
