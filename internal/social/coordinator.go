// Package social runs follow and unfollow actions against the shared cache.
package social

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"feedsync/internal/apperr"
	"feedsync/internal/models"
	"feedsync/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IdentityStore interface {
	Identity(ctx context.Context, id int64) (models.Identity, error)
	CachedIdentity(ctx context.Context, id int64) (models.Identity, bool)
	StoreIdentity(ctx context.Context, u models.Identity) error
}

type FollowMutator interface {
	MutateFollow(ctx context.Context, targetID int64, follow bool) error
}

// FollowEvent is published after a toggle has been written to the cache.
type FollowEvent struct {
	Target   models.Identity
	Followed bool
}

// Coordinator allows one follow toggle per target at a time and writes the
// result back to the cache before returning, so any later read of the target
// sees it.
type Coordinator struct {
	store  IdentityStore
	remote FollowMutator
	logger *zap.Logger
	tracer trace.Tracer

	viewer  atomic.Int64
	changed atomic.Bool

	mu      sync.Mutex
	pending map[int64]struct{}

	subMu   sync.Mutex
	subs    map[int]func(FollowEvent)
	nextSub int
}

func NewCoordinator(store IdentityStore, remote FollowMutator, viewerID int64, logger *zap.Logger) *Coordinator {
	c := &Coordinator{
		store:   store,
		remote:  remote,
		logger:  utils.OrGlobal(logger).Named("social"),
		tracer:  otel.Tracer("feedsync/social"),
		pending: make(map[int64]struct{}),
		subs:    make(map[int]func(FollowEvent)),
	}
	c.viewer.Store(viewerID)
	return c
}

func (c *Coordinator) SetViewer(id int64) { c.viewer.Store(id) }

// ToggleFollow follows the target if the cached record says the viewer
// doesn't, and unfollows it otherwise. A second call for the same target
// while the first is running returns apperr.ErrAlreadyInFlight. On failure
// nothing is written.
func (c *Coordinator) ToggleFollow(ctx context.Context, targetID int64) (models.Identity, error) {
	viewer := c.viewer.Load()
	if targetID <= 0 || targetID == viewer {
		return models.Identity{}, fmt.Errorf("toggle follow %d: %w", targetID, apperr.ErrInvalidTarget)
	}
	if !c.claim(targetID) {
		return models.Identity{}, apperr.ErrAlreadyInFlight
	}
	defer c.release(targetID)

	ctx, span := c.tracer.Start(ctx, "social.ToggleFollow", trace.WithAttributes(
		attribute.Int64("social.target", targetID),
	))
	defer span.End()

	current, err := c.store.Identity(ctx, targetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Identity{}, fmt.Errorf("toggle follow %d: %w", targetID, err)
	}
	follow := !current.IsFollowedByMe
	span.SetAttributes(attribute.Bool("social.follow", follow))

	if err := c.remote.MutateFollow(ctx, targetID, follow); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("follow change rejected", zap.Int64("target", targetID), zap.Bool("follow", follow), zap.Error(err))
		return models.Identity{}, err
	}

	// another component may have refreshed the record meanwhile
	latest, ok := c.store.CachedIdentity(ctx, targetID)
	if !ok {
		latest = current
	}
	updated := latest.WithFollow(follow)
	if err := c.store.StoreIdentity(ctx, updated); err != nil {
		c.logger.Error("follow applied but cache write failed", zap.Int64("target", targetID), zap.Error(err))
	}

	if viewer != 0 {
		if self, ok := c.store.CachedIdentity(ctx, viewer); ok {
			delta := 1
			if !follow {
				delta = -1
			}
			if err := c.store.StoreIdentity(ctx, self.WithFollowing(delta)); err != nil {
				c.logger.Warn("viewer counter not updated", zap.Int64("viewer", viewer), zap.Error(err))
			}
		}
	}

	c.changed.Store(true)
	c.logger.Info("follow changed", zap.Int64("target", targetID), zap.Bool("follow", follow))
	c.notify(FollowEvent{Target: updated, Followed: follow})
	return updated, nil
}

func (c *Coordinator) claim(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.pending[id]; busy {
		return false
	}
	c.pending[id] = struct{}{}
	return true
}

func (c *Coordinator) release(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Coordinator) IsFollowPending(targetID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.pending[targetID]
	return busy
}

// FollowChanged reports whether any toggle succeeded since the last reset.
// Lists that filter or highlight by follow state re-aggregate when it is set.
func (c *Coordinator) FollowChanged() bool { return c.changed.Load() }

func (c *Coordinator) ResetFollowChanged() { c.changed.Store(false) }

// Subscribe registers fn for every successful toggle. Callbacks run on the
// toggling goroutine before ToggleFollow returns.
func (c *Coordinator) Subscribe(fn func(FollowEvent)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Coordinator) notify(ev FollowEvent) {
	c.subMu.Lock()
	fns := make([]func(FollowEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
