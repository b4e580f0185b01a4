package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// MaxTimelineLength caps each user's timeline list.
const MaxTimelineLength = 500

func TimelineKey(userID int64) string {
	return fmt.Sprintf("timeline:user:%d", userID)
}

// PushTimeline puts postID at the head of each user's timeline. Users without
// a timeline are skipped; theirs is rebuilt from the database on next read.
func (c *RedisCache) PushTimeline(ctx context.Context, userIDs []int64, postID int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, id := range userIDs {
		key := TimelineKey(id)
		pipe.LPushX(ctx, key, postID)
		pipe.LTrim(ctx, key, 0, MaxTimelineLength-1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Timeline returns the ids held for userID, newest first. ok is false when
// the user has no timeline yet.
func (c *RedisCache) Timeline(ctx context.Context, userID int64) ([]int64, bool, error) {
	key := TimelineKey(userID)
	ok, err := c.Exists(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	raw, err := c.LRange(ctx, key, 0, -1)
	if err != nil {
		return nil, false, err
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

// StoreTimeline replaces userID's timeline with ids, newest first.
func (c *RedisCache) StoreTimeline(ctx context.Context, userID int64, ids []int64) error {
	key := TimelineKey(userID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(ids) == 0 {
			return nil
		}
		vals := make([]any, len(ids))
		for i, id := range ids {
			vals[i] = id
		}
		pipe.RPush(ctx, key, vals...)
		pipe.LTrim(ctx, key, 0, MaxTimelineLength-1)
		return nil
	})
	return err
}

// DropTimeline forgets a timeline after the user's follow set changed.
func (c *RedisCache) DropTimeline(ctx context.Context, userID int64) error {
	return c.Del(ctx, TimelineKey(userID))
}
