// Package feed turns cursor-paged id lists into ordered, resolved feeds.
package feed

import (
	"context"
	"sort"
	"sync"

	"feedsync/internal/apperr"
	"feedsync/internal/remote"
	"feedsync/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateExhausted
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateExhausted:
		return "exhausted"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Lister is the part of remote.Source a paginator needs.
type Lister interface {
	ListIDs(ctx context.Context, scope remote.Scope, cursor int64, pageSize int) ([]int64, error)
}

// Paginator walks one id list backwards from the newest id. The ids it holds
// are strictly decreasing, so min(ids)-1 is always a safe next cursor.
type Paginator struct {
	src      Lister
	scope    remote.Scope
	pageSize int
	logger   *zap.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	state  State
	ids    []int64
	cursor int64
	gen    uint64
	err    error
}

func NewPaginator(src Lister, scope remote.Scope, pageSize int, logger *zap.Logger) *Paginator {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Paginator{
		src:      src,
		scope:    scope,
		pageSize: pageSize,
		logger:   utils.OrGlobal(logger).Named("paginator").With(zap.Stringer("scope", scope)),
		tracer:   otel.Tracer("feedsync/feed"),
	}
}

// RequestMore fetches the next page and returns the ids it appended.
//
// While a request is already in flight it returns apperr.ErrAlreadyInFlight
// without touching the network. Once the list is exhausted it returns an
// empty page. A failed fetch moves to StateError and leaves the cursor where
// it was, so the next call retries the same page.
func (p *Paginator) RequestMore(ctx context.Context) ([]int64, error) {
	p.mu.Lock()
	switch p.state {
	case StateLoading:
		p.mu.Unlock()
		return nil, apperr.ErrAlreadyInFlight
	case StateExhausted:
		p.mu.Unlock()
		return nil, nil
	}
	p.state = StateLoading
	gen, cursor := p.gen, p.cursor
	p.mu.Unlock()

	ctx, span := p.tracer.Start(ctx, "feed.RequestMore", trace.WithAttributes(
		attribute.String("feed.scope", p.scope.String()),
		attribute.Int64("feed.cursor", cursor),
	))
	defer span.End()

	raw, err := p.src.ListIDs(ctx, p.scope, cursor, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		// Reset ran while this page was on the wire.
		p.logger.Debug("discarding page from an earlier generation", zap.Uint64("gen", gen))
		return nil, nil
	}
	if err != nil {
		p.state = StateError
		p.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("page fetch failed", zap.Int64("cursor", cursor), zap.Error(err))
		return nil, err
	}

	p.err = nil
	appended := p.apply(raw)
	span.SetAttributes(attribute.Int("feed.appended", len(appended)), attribute.String("feed.state", p.state.String()))
	p.logger.Debug("page applied",
		zap.Int64("cursor", cursor),
		zap.Int("received", len(raw)),
		zap.Int("appended", len(appended)),
		zap.Stringer("state", p.state),
	)
	return appended, nil
}

// apply merges a page into the held ids and picks the next state. Caller
// holds p.mu.
func (p *Paginator) apply(raw []int64) []int64 {
	n := len(raw)
	if n == 0 {
		p.state = StateExhausted
		return nil
	}

	page := make([]int64, n)
	copy(page, raw)
	sort.Slice(page, func(i, j int) bool { return page[i] > page[j] })

	var appended []int64
	for _, id := range page {
		if len(p.ids) > 0 && id >= p.ids[len(p.ids)-1] {
			continue
		}
		p.ids = append(p.ids, id)
		appended = append(appended, id)
	}

	next := page[n-1] - 1
	if p.cursor != 0 && next >= p.cursor {
		// the server went backwards; stop rather than loop on the same range
		p.logger.Warn("page did not move the cursor", zap.Int64("cursor", p.cursor), zap.Int64("next", next))
		p.state = StateExhausted
		return appended
	}
	p.cursor = next

	switch {
	case n < p.pageSize, p.cursor <= 0:
		p.state = StateExhausted
	default:
		p.state = StateIdle
	}
	return appended
}

// Reset drops every held id and returns to StateIdle from any state. A
// request still in flight is not cancelled; its page is discarded on arrival.
func (p *Paginator) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.state = StateIdle
	p.ids = nil
	p.cursor = 0
	p.err = nil
}

func (p *Paginator) Scope() remote.Scope { return p.scope }

func (p *Paginator) PageSize() int { return p.pageSize }

func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Paginator) HasMore() bool { return p.State() != StateExhausted }

func (p *Paginator) IsLoading() bool { return p.State() == StateLoading }

func (p *Paginator) Cursor() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// IDs returns a copy of the held ids, newest first.
func (p *Paginator) IDs() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, len(p.ids))
	copy(out, p.ids)
	return out
}

// LastError is the failure that put the paginator in StateError, if any.
func (p *Paginator) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
