package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"feedsync/internal/infra/cache"
	"feedsync/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Consumer pushes new posts into the timelines of the author's followers.
type Consumer struct {
	db     *gorm.DB
	cache  *cache.RedisCache
	rabbit *RabbitMQ
}

func NewConsumer(db *gorm.DB, cache *cache.RedisCache, rabbit *RabbitMQ) *Consumer {
	return &Consumer{
		db:     db,
		cache:  cache,
		rabbit: rabbit,
	}
}

// Start runs the feed consumer in the background. It is a no-op without
// RabbitMQ; the post handler then calls FanOut itself.
func (c *Consumer) Start() {
	if c.rabbit == nil {
		return
	}
	go c.consumeFeedPush()
}

func (c *Consumer) consumeFeedPush() {
	msgs, err := c.rabbit.Consume(FeedQueue)
	if err != nil {
		zap.L().Error("feed consumer start failed", zap.Error(err))
		return
	}

	zap.L().Info("waiting for feed messages")
	for d := range msgs {
		var msg models.FeedMsg
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			zap.L().Error("bad feed message", zap.Error(err))
			continue
		}
		if err := c.FanOut(context.Background(), msg); err != nil {
			zap.L().Error("feed push failed", zap.Int64("post_id", msg.PostID), zap.Error(err))
		}
	}
}

// FanOut adds the post to the author's own timeline and every follower's.
func (c *Consumer) FanOut(ctx context.Context, msg models.FeedMsg) error {
	if c.cache == nil {
		return nil
	}

	var fanIDs []int64
	err := c.db.WithContext(ctx).Model(&models.UserFollow{}).
		Where("followed_id = ?", msg.AuthorID).
		Pluck("follower_id", &fanIDs).Error
	if err != nil {
		return fmt.Errorf("load followers of %d: %w", msg.AuthorID, err)
	}

	targets := append(fanIDs, msg.AuthorID)
	if err := c.cache.PushTimeline(ctx, targets, msg.PostID); err != nil {
		return err
	}
	zap.L().Info("feed pushed to fans", zap.Int64("author_id", msg.AuthorID), zap.Int("fan_count", len(fanIDs)))
	return nil
}
