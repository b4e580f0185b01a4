package feed

import (
	"context"
	"errors"
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
	"golang.org/x/sync/errgroup"
)

// Resolver reads records through the entity cache.
type Resolver interface {
	Content(ctx context.Context, id int64) (models.ContentItem, error)
	Identity(ctx context.Context, id int64) (models.Identity, error)
	CachedIdentity(ctx context.Context, id int64) (models.Identity, bool)
}

// Snapshot is the state of one feed at a point in time.
type Snapshot struct {
	Items   []models.FeedItem
	HasMore bool
	Loading bool
	Err     error
}

type AggregatorOption func(*Aggregator)

// WithConcurrency bounds how many ids of a page resolve at once.
func WithConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithAggregatorLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// Aggregator joins each id from its paginator with the content record and
// the author's identity. An id that fails to resolve is left out of the feed;
// only a failed page fetch is reported as an error.
type Aggregator struct {
	pager       *Paginator
	res         Resolver
	concurrency int
	logger      *zap.Logger
	tracer      trace.Tracer

	viewer atomic.Int64

	mu       sync.Mutex
	items    []models.FeedItem
	resolved map[int64]struct{}
	gen      uint64
	marks    uint64 // MarkStale calls so far
	stale    bool
	err      error

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

func NewAggregator(pager *Paginator, res Resolver, viewerID int64, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		pager:       pager,
		res:         res,
		concurrency: 4,
		tracer:      otel.Tracer("feedsync/feed"),
		resolved:    make(map[int64]struct{}),
		subs:        make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = utils.OrGlobal(a.logger).Named("aggregator").With(zap.Stringer("scope", pager.Scope()))
	a.viewer.Store(viewerID)
	return a
}

// SetViewer changes whose content counts as own. Already loaded items pick
// it up on the next read.
func (a *Aggregator) SetViewer(id int64) { a.viewer.Store(id) }

// LoadMore fetches the next page and resolves the ids it added.
func (a *Aggregator) LoadMore(ctx context.Context) (Snapshot, error) {
	ctx, span := a.tracer.Start(ctx, "feed.LoadMore", trace.WithAttributes(
		attribute.String("feed.scope", a.pager.Scope().String()),
		attribute.Int("feed.page_size", a.pager.PageSize()),
	))
	defer span.End()

	a.mu.Lock()
	gen, marks := a.gen, a.marks
	a.mu.Unlock()

	ids, err := a.pager.RequestMore(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyInFlight) {
			return a.Snapshot(ctx), err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.mu.Lock()
		a.err = err
		a.mu.Unlock()
		snap := a.Snapshot(ctx)
		a.notify(snap)
		return snap, err
	}

	items := a.resolve(ctx, ids)
	span.SetAttributes(attribute.Int("feed.ids", len(ids)), attribute.Int("feed.items", len(items)))

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		a.logger.Debug("discarding items resolved before a refresh")
		return a.Snapshot(ctx), nil
	}
	a.err = nil
	if a.marks != marks {
		// authors were read before a follow change landed
		a.stale = true
	}
	for _, it := range items {
		if _, dup := a.resolved[it.Content.ID]; dup {
			continue
		}
		a.resolved[it.Content.ID] = struct{}{}
		a.items = append(a.items, it)
	}
	a.mu.Unlock()

	snap := a.Snapshot(ctx)
	a.notify(snap)
	return snap, nil
}

// resolve looks up every id concurrently and returns the survivors in the
// order of ids.
func (a *Aggregator) resolve(ctx context.Context, ids []int64) []models.FeedItem {
	if len(ids) == 0 {
		return nil
	}

	slots := make([]*models.FeedItem, len(ids))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	viewer := a.viewer.Load()

	for i, id := range ids {
		g.Go(func() error {
			c, err := a.res.Content(ctx, id)
			if err != nil {
				a.logger.Warn("skipping content", zap.Int64("content", id), zap.Error(err))
				return nil
			}
			author, err := a.res.Identity(ctx, c.AuthorID)
			if err != nil {
				a.logger.Warn("skipping content, author unavailable",
					zap.Int64("content", id), zap.Int64("author", c.AuthorID), zap.Error(err))
				return nil
			}
			it := models.NewFeedItem(c, author, viewer)
			slots[i] = &it
			return nil
		})
	}
	_ = g.Wait() // workers never fail; skipped ids leave a nil slot

	out := make([]models.FeedItem, 0, len(ids))
	for _, it := range slots {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out
}

// Refresh forgets everything and loads the first page again.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	a.gen++
	a.items = nil
	a.resolved = make(map[int64]struct{})
	a.stale = false
	a.err = nil
	a.mu.Unlock()

	a.pager.Reset()
	return a.LoadMore(ctx)
}

// MarkStale makes the next read re-join every item with the latest cached
// author identity.
func (a *Aggregator) MarkStale() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.marks++
	a.stale = true
}

// CurrentItems returns the resolved feed, newest first.
func (a *Aggregator) CurrentItems(ctx context.Context) []models.FeedItem {
	items, _ := a.current(ctx)
	return items
}

// current returns the items together with the page error seen under the
// same lock. Cached identities are read without holding a.mu.
func (a *Aggregator) current(ctx context.Context) ([]models.FeedItem, error) {
	a.mu.Lock()
	items := make([]models.FeedItem, len(a.items))
	copy(items, a.items)
	stale, gen, marks, err := a.stale, a.gen, a.marks, a.err
	a.mu.Unlock()

	if stale {
		a.rejoin(ctx, items)

		a.mu.Lock()
		// a refresh or another follow change since the copy means the
		// re-joined authors may already be out of date
		if a.gen == gen && a.marks == marks {
			for i := range items {
				a.items[i].Author = items[i].Author
			}
			a.stale = false
		}
		a.mu.Unlock()
	}

	viewer := a.viewer.Load()
	for i, it := range items {
		items[i] = models.NewFeedItem(it.Content, it.Author, viewer)
	}
	return items, err
}

// rejoin replaces every author in items with its cached identity, reading
// each author once.
func (a *Aggregator) rejoin(ctx context.Context, items []models.FeedItem) {
	authors := make(map[int64]models.Identity)
	for i, it := range items {
		u, seen := authors[it.Author.ID]
		if !seen {
			var ok bool
			if u, ok = a.res.CachedIdentity(ctx, it.Author.ID); !ok {
				u = it.Author
			}
			authors[it.Author.ID] = u
		}
		items[i].Author = u
	}
}

func (a *Aggregator) HasMore() bool { return a.pager.HasMore() }

func (a *Aggregator) IsLoading() bool { return a.pager.IsLoading() }

// LastError is the last page failure, cleared by the next successful page.
func (a *Aggregator) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Snapshot reads the pager state once, so HasMore and Loading always agree.
func (a *Aggregator) Snapshot(ctx context.Context) Snapshot {
	items, err := a.current(ctx)
	state := a.pager.State()
	return Snapshot{
		Items:   items,
		HasMore: state != StateExhausted,
		Loading: state == StateLoading,
		Err:     err,
	}
}

// Subscribe registers fn for every snapshot produced by LoadMore and Refresh.
// The returned func removes it.
func (a *Aggregator) Subscribe(fn func(Snapshot)) func() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	return func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		delete(a.subs, id)
	}
}

func (a *Aggregator) notify(s Snapshot) {
	a.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
