package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"feedsync/internal/apperr"
	"feedsync/internal/infra/cache"
	"feedsync/internal/models"
	"feedsync/internal/remote"
	"feedsync/internal/remote/remotetest"
	"feedsync/internal/repository"

	"go.uber.org/zap"
)

type fixture struct {
	fake  *remotetest.Fake
	cache *cache.MemoryCache
	repo  *repository.Repository
}

// newFixture serves posts from..to, all by author 7.
func newFixture(from, to int64) fixture {
	fake := remotetest.New()
	fake.AddIdentity(models.Identity{ID: 7, DisplayName: "ada", FollowerCount: 1})
	for id := from; id >= to; id-- {
		fake.AddContent(models.ContentItem{ID: id, AuthorID: 7, Media: "bQ=="})
	}
	mem := cache.NewMemory(0)
	return fixture{
		fake:  fake,
		cache: mem,
		repo:  repository.New(mem, fake, repository.WithLogger(zap.NewNop())),
	}
}

func (f fixture) aggregator(pageSize int, viewer int64) *Aggregator {
	p := NewPaginator(f.fake, remote.GlobalFeed(), pageSize, zap.NewNop())
	return NewAggregator(p, f.repo, viewer, WithConcurrency(4), WithAggregatorLogger(zap.NewNop()))
}

func TestAggregator_PartialPage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(109, 100)
	f.fake.FailContent[105] = apperr.Rejected("getContent", 500)
	agg := f.aggregator(10, 0)

	snap, err := agg.LoadMore(ctx)
	if err != nil {
		t.Fatalf("item failure surfaced as page failure: %v", err)
	}
	if len(snap.Items) != 9 {
		t.Fatalf("expected 9 items, got %d", len(snap.Items))
	}
	for _, it := range snap.Items {
		if it.Content.ID == 105 {
			t.Fatal("failed id present in feed")
		}
	}

	if _, err := agg.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	if n := f.fake.ContentCalls.Load(); n != 10 {
		t.Fatalf("failing id was retried: %d content calls", n)
	}
	if agg.HasMore() {
		t.Fatal("expected exhausted after the empty page")
	}
}

func TestAggregator_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(140, 101)
	agg := f.aggregator(40, 0)

	snap, err := agg.LoadMore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Items) != 40 {
		t.Fatalf("expected 40 items, got %d", len(snap.Items))
	}
	for i, it := range snap.Items {
		if want := int64(140 - i); it.Content.ID != want {
			t.Fatalf("position %d: expected %d, got %d", i, want, it.Content.ID)
		}
	}
}

func TestAggregator_AuthorFailureSkipsItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(12, 10)
	f.fake.AddIdentity(models.Identity{ID: 8, DisplayName: "bob"})
	f.fake.AddContent(models.ContentItem{ID: 13, AuthorID: 8, Media: "bQ=="})
	f.fake.FailIdentity[8] = apperr.Network("getIdentity", errors.New("timeout"))
	agg := f.aggregator(10, 0)

	snap, err := agg.LoadMore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Items) != 3 || snap.Items[0].Content.ID != 12 {
		t.Fatalf("unexpected items %+v", snap.Items)
	}
}

func TestAggregator_PageFailureIsDistinctFromEmpty(t *testing.T) {
	ctx := context.Background()

	failing := newFixture(0, 1)
	failing.fake.ListFunc = func(remote.Scope, int64, int) ([]int64, error) {
		return nil, apperr.Rejected("listIds", 503)
	}
	agg := failing.aggregator(10, 0)
	snap, err := agg.LoadMore(ctx)
	if !errors.Is(err, apperr.ErrServerRejected) {
		t.Fatalf("expected page failure, got %v", err)
	}
	if snap.Err == nil || !agg.HasMore() {
		t.Fatalf("failure should be retryable and reported: %+v", snap)
	}
	if !errors.Is(agg.LastError(), apperr.ErrServerRejected) {
		t.Fatalf("last error not kept: %v", agg.LastError())
	}

	empty := newFixture(0, 1)
	agg = empty.aggregator(10, 0)
	snap, err = agg.LoadMore(ctx)
	if err != nil || snap.Err != nil {
		t.Fatalf("empty feed is not a failure: %v", err)
	}
	if len(snap.Items) != 0 || snap.HasMore {
		t.Fatalf("expected empty exhausted feed: %+v", snap)
	}
}

func TestAggregator_IsOwnFollowsViewer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(3, 1)
	agg := f.aggregator(10, 0)

	snap, err := agg.LoadMore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Items[0].IsOwn {
		t.Fatal("no viewer yet, nothing is own")
	}

	agg.SetViewer(7)
	for _, it := range agg.CurrentItems(ctx) {
		if !it.IsOwn {
			t.Fatalf("item %d should be own", it.Content.ID)
		}
	}
}

func TestAggregator_MarkStaleRejoinsAuthors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(3, 1)
	agg := f.aggregator(10, 0)
	if _, err := agg.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}

	u, _, _ := f.cache.GetIdentity(ctx, 7)
	f.cache.PutIdentity(ctx, u.WithFollow(true))

	if agg.CurrentItems(ctx)[0].Author.IsFollowedByMe {
		t.Fatal("items changed before being marked stale")
	}
	agg.MarkStale()
	for _, it := range agg.CurrentItems(ctx) {
		if !it.Author.IsFollowedByMe || it.Author.FollowerCount != 2 {
			t.Fatalf("author not re-joined: %+v", it.Author)
		}
	}
}

func TestAggregator_RefreshAndSubscribe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(5, 1)
	agg := f.aggregator(2, 0)

	var got []Snapshot
	unsubscribe := agg.Subscribe(func(s Snapshot) { got = append(got, s) })

	agg.LoadMore(ctx)
	agg.LoadMore(ctx)
	if n := len(agg.CurrentItems(ctx)); n != 4 {
		t.Fatalf("expected 4 items, got %d", n)
	}

	f.fake.AddContent(models.ContentItem{ID: 6, AuthorID: 7, Media: "bQ=="})
	snap, err := agg.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Items) != 2 || snap.Items[0].Content.ID != 6 {
		t.Fatalf("refresh did not restart from the newest id: %+v", snap.Items)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(got))
	}

	unsubscribe()
	agg.LoadMore(ctx)
	if len(got) != 3 {
		t.Fatal("notified after unsubscribe")
	}
}

// heldResolver reads the author from the cache, then waits on release
// before handing it back.
type heldResolver struct {
	Resolver
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (h *heldResolver) Identity(ctx context.Context, id int64) (models.Identity, error) {
	u, err := h.Resolver.Identity(ctx, id)
	h.once.Do(func() { close(h.read) })
	<-h.release
	return u, err
}

func TestAggregator_FollowDuringLoadIsNotLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1, 1)
	res := &heldResolver{Resolver: f.repo, read: make(chan struct{}), release: make(chan struct{})}
	p := NewPaginator(f.fake, remote.GlobalFeed(), 10, zap.NewNop())
	agg := NewAggregator(p, res, 0, WithAggregatorLogger(zap.NewNop()))

	done := make(chan error, 1)
	go func() {
		_, err := agg.LoadMore(ctx)
		done <- err
	}()
	<-res.read

	// a follow toggle commits while the author lookup is still held
	u, _, _ := f.cache.GetIdentity(ctx, 7)
	f.cache.PutIdentity(ctx, u.WithFollow(true))
	agg.MarkStale()
	agg.CurrentItems(ctx)

	close(res.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	items := agg.CurrentItems(ctx)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if a := items[0].Author; !a.IsFollowedByMe || a.FollowerCount != 2 {
		t.Fatalf("feed kept the pre-follow author: %+v", a)
	}
	if snap := agg.Snapshot(ctx); !snap.Items[0].Author.IsFollowedByMe || snap.HasMore || snap.Loading {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
