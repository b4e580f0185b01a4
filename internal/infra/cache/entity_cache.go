// Package cache stores the last known Content and Identity records.
package cache

import (
	"context"
	"fmt"

	"feedsync/internal/models"
)

// EntityCache never reaches the network. Puts are whole-record upserts and the
// last writer wins.
type EntityCache interface {
	GetContent(ctx context.Context, id int64) (models.ContentItem, bool, error)
	PutContent(ctx context.Context, c models.ContentItem) error

	GetIdentity(ctx context.Context, id int64) (models.Identity, bool, error)
	PutIdentity(ctx context.Context, u models.Identity) error

	Clear(ctx context.Context) error
}

type Kind string

const (
	KindContent  Kind = "content"
	KindIdentity Kind = "identity"
)

func Key(kind Kind, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}
