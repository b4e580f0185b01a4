// Package remotetest provides an in-memory remote.Source for tests.
package remotetest

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"feedsync/internal/apperr"
	"feedsync/internal/models"
	"feedsync/internal/remote"
)

// Fake serves records from maps and counts every call. Gates, when set, make
// the matching call block until a value is received, so tests can hold a
// request in flight.
type Fake struct {
	mu         sync.Mutex
	contents   map[int64]models.ContentItem
	identities map[int64]models.Identity
	lists      map[remote.Scope][]int64
	session    models.Session
	nextID     int64

	// ListFunc replaces the list lookup when set.
	ListFunc func(scope remote.Scope, cursor int64, pageSize int) ([]int64, error)

	FailContent  map[int64]error
	FailIdentity map[int64]error
	FollowErr    error

	ListGate   chan struct{}
	FollowGate chan struct{}

	ListCalls     atomic.Int32
	ContentCalls  atomic.Int32
	IdentityCalls atomic.Int32
	FollowCalls   atomic.Int32
}

func New() *Fake {
	return &Fake{
		contents:     make(map[int64]models.ContentItem),
		identities:   make(map[int64]models.Identity),
		lists:        make(map[remote.Scope][]int64),
		FailContent:  make(map[int64]error),
		FailIdentity: make(map[int64]error),
		nextID:       1000,
	}
}

// AddIdentity stores u as the server-side record.
func (f *Fake) AddIdentity(u models.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[u.ID] = u
}

// AddContent stores c and lists it in the global feed and its author's list.
func (f *Fake) AddContent(c models.ContentItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Unix(c.ID, 0).UTC()
	}
	f.contents[c.ID] = c
	f.lists[remote.GlobalFeed()] = insertDesc(f.lists[remote.GlobalFeed()], c.ID)
	f.lists[remote.ByAuthor(c.AuthorID)] = insertDesc(f.lists[remote.ByAuthor(c.AuthorID)], c.ID)
}

// Identity returns the server-side record.
func (f *Fake) Identity(id int64) models.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identities[id]
}

func (f *Fake) Session() models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *Fake) UseSession(s models.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = s
}

func (f *Fake) ListIDs(ctx context.Context, scope remote.Scope, cursor int64, pageSize int) ([]int64, error) {
	f.ListCalls.Add(1)
	if err := wait(ctx, f.ListGate); err != nil {
		return nil, err
	}
	if f.ListFunc != nil {
		return f.ListFunc(scope, cursor, pageSize)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for _, id := range f.lists[scope] {
		if cursor != 0 && id > cursor {
			continue
		}
		out = append(out, id)
		if len(out) == pageSize {
			break
		}
	}
	return out, nil
}

func (f *Fake) GetContent(ctx context.Context, id int64) (models.ContentItem, error) {
	f.ContentCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailContent[id]; err != nil {
		return models.ContentItem{}, err
	}
	c, ok := f.contents[id]
	if !ok {
		return models.ContentItem{}, apperr.NotFound("getContent")
	}
	return c.Clone(), nil
}

func (f *Fake) GetIdentity(ctx context.Context, id int64) (models.Identity, error) {
	f.IdentityCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailIdentity[id]; err != nil {
		return models.Identity{}, err
	}
	u, ok := f.identities[id]
	if !ok {
		return models.Identity{}, apperr.NotFound("getIdentity")
	}
	return u, nil
}

func (f *Fake) MutateFollow(ctx context.Context, targetID int64, follow bool) error {
	f.FollowCalls.Add(1)
	if err := wait(ctx, f.FollowGate); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FollowErr != nil {
		return f.FollowErr
	}
	u, ok := f.identities[targetID]
	if !ok {
		return apperr.NotFound("mutateFollow")
	}
	f.identities[targetID] = u.WithFollow(follow)
	return nil
}

func (f *Fake) CreateContent(ctx context.Context, d models.Draft) (models.ContentItem, error) {
	f.mu.Lock()
	f.nextID++
	c := models.ContentItem{
		ID:        f.nextID,
		AuthorID:  f.session.IdentityID,
		CreatedAt: time.Now().UTC(),
		Media:     d.Media,
		Text:      d.Text,
		Location:  d.Location,
	}
	f.mu.Unlock()

	f.AddContent(c)
	return c.Clone(), nil
}

func (f *Fake) CreateUser(ctx context.Context) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.identities[id] = models.Identity{ID: id, DisplayName: "user", CreatedAt: time.Now().UTC()}
	return models.Session{IdentityID: id, Token: "token-" + time.Now().Format("150405.000")}, nil
}

func (f *Fake) UpdateIdentity(ctx context.Context, name, bio, birthDate string) (models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.identities[f.session.IdentityID]
	u.DisplayName, u.Bio, u.BirthDate = name, bio, birthDate
	f.identities[u.ID] = u
	return u, nil
}

func (f *Fake) UpdateAvatar(ctx context.Context, base64 string) (models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.identities[f.session.IdentityID]
	u.AvatarBlob = base64
	f.identities[u.ID] = u
	return u, nil
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return apperr.Network("gate", ctx.Err())
	}
}

func insertDesc(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	ids = append(ids, id)
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids
}

var _ remote.Source = (*Fake)(nil)
