package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"feedsync/internal/infra/db"
	"feedsync/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func backends(t *testing.T) map[string]EntityCache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	gdb, err := db.OpenLocal(filepath.Join(t.TempDir(), "cache.db"), "test")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	lite, err := NewSQLite(gdb)
	if err != nil {
		t.Fatalf("sqlite cache: %v", err)
	}

	return map[string]EntityCache{
		"memory": NewMemory(0),
		"redis":  NewRedisEntities(NewFromClient(client), "test:", time.Hour),
		"sqlite": lite,
	}
}

func sampleContent() models.ContentItem {
	text := "hello"
	return models.ContentItem{
		ID:        101,
		AuthorID:  7,
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Media:     "aW1hZ2U=",
		Text:      &text,
		Location:  &models.Location{Latitude: 45.46, Longitude: 9.19},
	}
}

func sampleIdentity() models.Identity {
	return models.Identity{
		ID:             7,
		DisplayName:    "ada",
		Bio:            "hi",
		BirthDate:      "1990-01-02",
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsFollowedByMe: true,
		FollowerCount:  3,
		FollowingCount: 2,
		ContentCount:   9,
	}
}

func sameContent(a, b models.ContentItem) bool {
	if a.ID != b.ID || a.AuthorID != b.AuthorID || a.Media != b.Media || !a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	if (a.Text == nil) != (b.Text == nil) || (a.Text != nil && *a.Text != *b.Text) {
		return false
	}
	if (a.Location == nil) != (b.Location == nil) || (a.Location != nil && *a.Location != *b.Location) {
		return false
	}
	return true
}

func sameIdentity(a, b models.Identity) bool {
	ca, cb := a.CreatedAt, b.CreatedAt
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	return a == b && ca.Equal(cb)
}

func TestEntityCache_MissIsNotAnError(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := c.GetContent(ctx, 1); ok || err != nil {
				t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
			}
			if _, ok, err := c.GetIdentity(ctx, 1); ok || err != nil {
				t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestEntityCache_IdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleContent()
			if err := c.PutContent(ctx, want); err != nil {
				t.Fatal(err)
			}
			first, ok, err := c.GetContent(ctx, want.ID)
			if err != nil || !ok {
				t.Fatalf("get after put: ok=%v err=%v", ok, err)
			}
			if err := c.PutContent(ctx, want); err != nil {
				t.Fatal(err)
			}
			second, _, _ := c.GetContent(ctx, want.ID)
			if !sameContent(first, second) || !sameContent(want, second) {
				t.Fatalf("repeated put changed the record: %+v vs %+v", first, second)
			}
		})
	}
}

func TestEntityCache_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			u := sampleIdentity()
			if err := c.PutIdentity(ctx, u); err != nil {
				t.Fatal(err)
			}
			u2 := u.WithFollow(false)
			u2.Bio = ""
			if err := c.PutIdentity(ctx, u2); err != nil {
				t.Fatal(err)
			}

			got, ok, err := c.GetIdentity(ctx, u.ID)
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if !sameIdentity(got, u2) {
				t.Fatalf("expected whole-record overwrite, got %+v", got)
			}
		})
	}
}

func TestEntityCache_ContentWithoutOptionals(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			item := models.ContentItem{ID: 5, AuthorID: 1, Media: "eA==", CreatedAt: time.Unix(0, 0).UTC()}
			if err := c.PutContent(ctx, item); err != nil {
				t.Fatal(err)
			}
			got, _, err := c.GetContent(ctx, 5)
			if err != nil {
				t.Fatal(err)
			}
			if got.Text != nil || got.Location != nil {
				t.Fatalf("optional fields should stay absent: %+v", got)
			}
		})
	}
}

func TestEntityCache_Clear(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = c.PutContent(ctx, sampleContent())
			_ = c.PutIdentity(ctx, sampleIdentity())

			if err := c.Clear(ctx); err != nil {
				t.Fatal(err)
			}
			if _, ok, _ := c.GetContent(ctx, sampleContent().ID); ok {
				t.Fatalf("content survived clear")
			}
			if _, ok, _ := c.GetIdentity(ctx, sampleIdentity().ID); ok {
				t.Fatalf("identity survived clear")
			}
		})
	}
}

func TestMemoryCache_LRUBound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	_ = m.PutIdentity(ctx, models.Identity{ID: 1})
	_ = m.PutIdentity(ctx, models.Identity{ID: 2})
	// touch 1 so 2 becomes the eviction candidate
	if _, ok, _ := m.GetIdentity(ctx, 1); !ok {
		t.Fatalf("expected 1 cached")
	}
	_ = m.PutIdentity(ctx, models.Identity{ID: 3})

	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
	if _, ok, _ := m.GetIdentity(ctx, 2); ok {
		t.Fatalf("expected 2 evicted")
	}
	if _, ok, _ := m.GetIdentity(ctx, 1); !ok {
		t.Fatalf("expected 1 kept")
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	item := sampleContent()
	_ = m.PutContent(ctx, item)

	got, _, _ := m.GetContent(ctx, item.ID)
	*got.Text = "mutated"
	got.Location.Latitude = 0

	again, _, _ := m.GetContent(ctx, item.ID)
	if *again.Text != "hello" || again.Location.Latitude != 45.46 {
		t.Fatalf("cached record changed through caller pointer: %+v", again)
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(50)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				id := int64((n*200 + j) % 80)
				_ = m.PutIdentity(ctx, models.Identity{ID: id, FollowerCount: j})
				_, _, _ = m.GetIdentity(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	if m.Len() > 50 {
		t.Fatalf("bound exceeded: %d", m.Len())
	}
}

func TestRedisEntityCache_Keys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisEntities(NewFromClient(client), "fs:", 0)
	if err := c.PutIdentity(context.Background(), models.Identity{ID: 9}); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("fs:identity:9") {
		t.Fatalf("expected key fs:identity:9, have %v", mr.Keys())
	}
	if ttl := mr.TTL("fs:identity:9"); ttl != 0 {
		t.Fatalf("zero ttl should keep the key forever, got %s", ttl)
	}
}

func TestSetWithRandomTTL_StaysWithinJitter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	rc := NewFromClient(client)

	base := 10 * time.Minute
	if err := rc.SetWithRandomTTL(context.Background(), "k", "v", base); err != nil {
		t.Fatal(err)
	}
	ttl := mr.TTL("k")
	if ttl < 9*time.Minute || ttl > 11*time.Minute {
		t.Fatalf("ttl %s outside +/-10%% of %s", ttl, base)
	}
}

func TestAllowRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	rc := NewFromClient(client)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := rc.AllowRequest(ctx, "rate:test", 2, time.Minute)
		if err != nil || !ok {
			t.Fatalf("request %d should pass: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := rc.AllowRequest(ctx, "rate:test", 2, time.Minute); ok {
		t.Fatalf("third request should be limited")
	}
}
