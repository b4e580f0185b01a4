// Package repository pairs the entity cache with the remote source.
//
// Every read looks in the cache first and, on a miss, fetches from the
// network and stores the result before returning it. Concurrent misses for
// the same id may each reach the network unless single-flight is enabled;
// the records are whole-entity upserts so the last write is as good as any.
package repository

import (
	"context"
	"errors"
	"fmt"

	"feedsync/internal/apperr"
	"feedsync/internal/infra/cache"
	"feedsync/internal/models"
	"feedsync/internal/remote"
	"feedsync/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Repository struct {
	cache  cache.EntityCache
	remote remote.Source
	logger *zap.Logger
	group  *singleflight.Group
}

type Option func(*Repository)

// WithSingleFlight collapses concurrent misses for one (kind, id) into a
// single fetch.
func WithSingleFlight() Option {
	return func(r *Repository) { r.group = &singleflight.Group{} }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

func New(c cache.EntityCache, src remote.Source, opts ...Option) *Repository {
	r := &Repository{cache: c, remote: src}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrGlobal(r.logger).Named("repository")
	return r
}

// --- Reads ---

func (r *Repository) Content(ctx context.Context, id int64) (models.ContentItem, error) {
	return readThrough(ctx, r, cache.KindContent, id, r.cache.GetContent, r.remote.GetContent, r.cache.PutContent)
}

func (r *Repository) Identity(ctx context.Context, id int64) (models.Identity, error) {
	return readThrough(ctx, r, cache.KindIdentity, id, r.cache.GetIdentity, r.remote.GetIdentity, r.cache.PutIdentity)
}

// CachedIdentity never touches the network.
func (r *Repository) CachedIdentity(ctx context.Context, id int64) (models.Identity, bool) {
	u, ok, err := r.cache.GetIdentity(ctx, id)
	if err != nil {
		r.logger.Warn("cache read failed", zap.Int64("identity", id), zap.Error(err))
		return models.Identity{}, false
	}
	return u, ok
}

func (r *Repository) StoreIdentity(ctx context.Context, u models.Identity) error {
	if err := r.cache.PutIdentity(ctx, u); err != nil {
		return fmt.Errorf("store identity %d: %w", u.ID, err)
	}
	return nil
}

// RefreshIdentity skips the cache and overwrites it with the server's record.
func (r *Repository) RefreshIdentity(ctx context.Context, id int64) (models.Identity, error) {
	u, err := r.remote.GetIdentity(ctx, id)
	if err != nil {
		return models.Identity{}, err
	}
	r.store(ctx, cache.KindIdentity, id, func() error { return r.cache.PutIdentity(ctx, u) })
	return u, nil
}

func readThrough[T any](
	ctx context.Context,
	r *Repository,
	kind cache.Kind,
	id int64,
	get func(context.Context, int64) (T, bool, error),
	fetch func(context.Context, int64) (T, error),
	put func(context.Context, T) error,
) (T, error) {
	v, err := lookup(ctx, get, id)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, apperr.ErrCacheMiss) {
		// a broken cache read counts as a miss
		r.logger.Warn("cache read failed", zap.String("kind", string(kind)), zap.Int64("id", id), zap.Error(err))
	}

	load := func() (T, error) {
		r.logger.Debug("cache miss, fetching", zap.String("kind", string(kind)), zap.Int64("id", id))
		v, err := fetch(ctx, id)
		if err != nil {
			return v, err
		}
		r.store(ctx, kind, id, func() error { return put(ctx, v) })
		return v, nil
	}

	if r.group == nil {
		return load()
	}
	shared, err, _ := r.group.Do(cache.Key(kind, id), func() (any, error) {
		return load()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return shared.(T), nil
}

// lookup reports an absent record as apperr.ErrCacheMiss.
func lookup[T any](ctx context.Context, get func(context.Context, int64) (T, bool, error), id int64) (T, error) {
	v, ok, err := get(ctx, id)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, apperr.ErrCacheMiss
	}
	return v, nil
}

// store writes through and only logs failures; the fetched record is still
// good for the caller.
func (r *Repository) store(ctx context.Context, kind cache.Kind, id int64, put func() error) {
	if err := put(); err != nil {
		r.logger.Warn("cache write failed", zap.String("kind", string(kind)), zap.Int64("id", id), zap.Error(err))
	}
}

// --- Writes ---

// CreateContent publishes a post and caches the server's copy. The viewer's
// own cached identity, when present, gets its content counter bumped.
func (r *Repository) CreateContent(ctx context.Context, viewerID int64, d models.Draft) (models.ContentItem, error) {
	if d.Media == "" {
		return models.ContentItem{}, fmt.Errorf("create content: media is required: %w", apperr.ErrInvalidInput)
	}

	c, err := r.remote.CreateContent(ctx, d)
	if err != nil {
		return models.ContentItem{}, err
	}
	r.store(ctx, cache.KindContent, c.ID, func() error { return r.cache.PutContent(ctx, c) })

	if self, ok := r.CachedIdentity(ctx, viewerID); ok {
		self.ContentCount++
		r.store(ctx, cache.KindIdentity, viewerID, func() error { return r.cache.PutIdentity(ctx, self) })
	}

	r.logger.Info("content created", zap.Int64("content", c.ID))
	return c, nil
}

// UpdateProfile sends the info first and the avatar second; a failed avatar
// upload fails the whole call but the info change has already landed.
func (r *Repository) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (models.Identity, error) {
	if upd.DisplayName == "" {
		return models.Identity{}, fmt.Errorf("update profile: display name is required: %w", apperr.ErrInvalidInput)
	}

	u, err := r.remote.UpdateIdentity(ctx, upd.DisplayName, upd.Bio, upd.BirthDate)
	if err != nil {
		return models.Identity{}, err
	}
	r.store(ctx, cache.KindIdentity, u.ID, func() error { return r.cache.PutIdentity(ctx, u) })

	if upd.Avatar != nil {
		u, err = r.remote.UpdateAvatar(ctx, *upd.Avatar)
		if err != nil {
			return models.Identity{}, err
		}
		r.store(ctx, cache.KindIdentity, u.ID, func() error { return r.cache.PutIdentity(ctx, u) })
	}
	return u, nil
}

// Register creates the account, then names it and sets its picture. Only the
// first step can fail registration; the other two are logged and skipped.
func (r *Repository) Register(ctx context.Context, displayName, avatar string) (models.Session, error) {
	sess, err := r.remote.CreateUser(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("register: %w", err)
	}
	r.remote.UseSession(sess)

	self := models.Identity{ID: sess.IdentityID, DisplayName: displayName, AvatarBlob: avatar}
	if u, err := r.remote.UpdateIdentity(ctx, displayName, "", ""); err != nil {
		r.logger.Error("display name not set, account created anyway", zap.Int64("identity", sess.IdentityID), zap.Error(err))
	} else {
		self = u
	}
	if avatar != "" {
		if u, err := r.remote.UpdateAvatar(ctx, avatar); err != nil {
			r.logger.Error("avatar not set, account created anyway", zap.Int64("identity", sess.IdentityID), zap.Error(err))
		} else {
			self = u
		}
	}

	r.store(ctx, cache.KindIdentity, self.ID, func() error { return r.cache.PutIdentity(ctx, self) })
	r.logger.Info("registered", zap.Int64("identity", sess.IdentityID))
	return sess, nil
}

func (r *Repository) ClearCache(ctx context.Context) error {
	if err := r.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	r.logger.Info("cache cleared")
	return nil
}
