// Package remote talks to the social API that owns every record.
package remote

import (
	"context"
	"strconv"

	"feedsync/internal/models"
)

// Scope picks which id list ListIDs walks.
type Scope struct {
	AuthorID int64 // 0 selects the viewer's global feed
}

func GlobalFeed() Scope { return Scope{} }

func ByAuthor(id int64) Scope { return Scope{AuthorID: id} }

func (s Scope) IsGlobal() bool { return s.AuthorID == 0 }

func (s Scope) String() string {
	if s.IsGlobal() {
		return "feed"
	}
	return "author:" + strconv.FormatInt(s.AuthorID, 10)
}

// Source is the network side of the engine. Every error it returns matches
// one of apperr.ErrNetworkFailure, apperr.ErrServerRejected or apperr.ErrNotFound.
type Source interface {
	// ListIDs returns at most pageSize ids not above cursor, newest first.
	// A cursor of 0 starts from the newest id.
	ListIDs(ctx context.Context, scope Scope, cursor int64, pageSize int) ([]int64, error)
	GetContent(ctx context.Context, id int64) (models.ContentItem, error)
	GetIdentity(ctx context.Context, id int64) (models.Identity, error)
	MutateFollow(ctx context.Context, targetID int64, follow bool) error
	CreateContent(ctx context.Context, d models.Draft) (models.ContentItem, error)

	CreateUser(ctx context.Context) (models.Session, error)
	UpdateIdentity(ctx context.Context, name, bio, birthDate string) (models.Identity, error)
	UpdateAvatar(ctx context.Context, base64 string) (models.Identity, error)

	// UseSession sets the credential sent with every later call.
	UseSession(s models.Session)
}
