package models

import "testing"

func TestWithFollow(t *testing.T) {
	u := Identity{ID: 1, FollowerCount: 3}

	followed := u.WithFollow(true)
	if !followed.IsFollowedByMe || followed.FollowerCount != 4 {
		t.Fatalf("unexpected follow result: %+v", followed)
	}

	again := followed.WithFollow(true)
	if again.FollowerCount != 4 {
		t.Fatalf("repeating the same flag must not move the counter, got %d", again.FollowerCount)
	}

	back := followed.WithFollow(false)
	if back.IsFollowedByMe || back.FollowerCount != 3 {
		t.Fatalf("unexpected unfollow result: %+v", back)
	}
}

func TestWithFollow_NeverNegative(t *testing.T) {
	u := Identity{ID: 1, IsFollowedByMe: true, FollowerCount: 0}
	if got := u.WithFollow(false).FollowerCount; got != 0 {
		t.Fatalf("expected clamp at 0, got %d", got)
	}
}

func TestNewFeedItem_IsOwn(t *testing.T) {
	c := ContentItem{ID: 10, AuthorID: 5}
	if !NewFeedItem(c, Identity{ID: 5}, 5).IsOwn {
		t.Fatalf("expected own item")
	}
	if NewFeedItem(c, Identity{ID: 5}, 6).IsOwn {
		t.Fatalf("expected foreign item")
	}
	if NewFeedItem(c, Identity{ID: 5}, 0).IsOwn {
		t.Fatalf("unknown viewer never owns an item")
	}
}
