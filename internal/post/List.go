package post

import (
	"context"
	"net/http"

	"feedsync/internal/infra/cache"
	"feedsync/internal/models"
	"feedsync/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feed lists post ids by the caller and the people they follow, newest first.
func (h *PostHandler) Feed(c *gin.Context) {
	me, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	maxID, limit, ok := page(c)
	if !ok {
		utils.Error(c, http.StatusBadRequest, "invalid paging parameters")
		return
	}

	ctx := c.Request.Context()
	if ids, ok := h.timelinePage(ctx, me, maxID, limit); ok {
		utils.Success(c, ids)
		return
	}

	ids, err := h.feedIDs(ctx, me, maxID, limit)
	if err != nil {
		zap.L().Error("feed query failed", zap.Int64("user_id", me), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to load feed")
		return
	}
	utils.Success(c, ids)
}

// timelinePage serves a page from Redis, building the timeline first when
// it is missing. ok is false when the page runs past what the capped list
// holds and must come from the database.
func (h *PostHandler) timelinePage(ctx context.Context, me, maxID int64, limit int) ([]int64, bool) {
	if h.svc.Cache == nil {
		return nil, false
	}

	timeline, found, err := h.svc.Cache.Timeline(ctx, me)
	if err != nil {
		zap.L().Warn("read timeline failed", zap.Int64("user_id", me), zap.Error(err))
		return nil, false
	}
	if !found {
		timeline, err = h.feedIDs(ctx, me, 0, cache.MaxTimelineLength)
		if err != nil {
			return nil, false
		}
		if err := h.svc.Cache.StoreTimeline(ctx, me, timeline); err != nil {
			zap.L().Warn("store timeline failed", zap.Int64("user_id", me), zap.Error(err))
		}
	}

	ids := make([]int64, 0, limit)
	for _, id := range timeline {
		if maxID != 0 && id > maxID {
			continue
		}
		ids = append(ids, id)
		if len(ids) == limit {
			return ids, true
		}
	}
	// a short page is only the real end if the list was never trimmed
	return ids, len(timeline) < cache.MaxTimelineLength
}

func (h *PostHandler) feedIDs(ctx context.Context, me, maxID int64, limit int) ([]int64, error) {
	followed := h.svc.DB.Model(&models.UserFollow{}).Select("followed_id").Where("follower_id = ?", me)
	q := h.svc.DB.WithContext(ctx).Model(&models.Post{}).
		Where("author_id = ? OR author_id IN (?)", me, followed)
	return pluckIDs(q, maxID, limit)
}

// ListByAuthor lists the ids of one author's posts, newest first.
func (h *PostHandler) ListByAuthor(c *gin.Context) {
	authorID, ok := parseID(c)
	if !ok {
		utils.Error(c, http.StatusBadRequest, "invalid author id")
		return
	}
	maxID, limit, ok := page(c)
	if !ok {
		utils.Error(c, http.StatusBadRequest, "invalid paging parameters")
		return
	}

	q := h.svc.DB.WithContext(c.Request.Context()).Model(&models.Post{}).Where("author_id = ?", authorID)
	ids, err := pluckIDs(q, maxID, limit)
	if err != nil {
		zap.L().Error("list posts failed", zap.Int64("author_id", authorID), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to list posts")
		return
	}
	utils.Success(c, ids)
}

func pluckIDs(q *gorm.DB, maxID int64, limit int) ([]int64, error) {
	if maxID != 0 {
		q = q.Where("id <= ?", maxID)
	}
	ids := []int64{}
	err := q.Order("id DESC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}
