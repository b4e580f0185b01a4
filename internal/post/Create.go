package post

import (
	"context"
	"encoding/json"
	"net/http"

	"feedsync/internal/infra/mq"
	"feedsync/internal/models"
	"feedsync/internal/utils"
	"feedsync/internal/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req validators.NewPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid post")
		return
	}
	p := models.Post{AuthorID: userID, Text: req.ContentText}
	if loc := req.Location; loc != nil {
		if (loc.Latitude == nil) != (loc.Longitude == nil) {
			utils.Error(c, http.StatusBadRequest, "location needs both coordinates")
			return
		}
		p.Latitude, p.Longitude = loc.Latitude, loc.Longitude
	}

	ctx := c.Request.Context()
	if h.svc.Media != nil {
		key, err := h.svc.Media.PutBase64(ctx, req.ContentPicture)
		if err != nil {
			zap.L().Error("upload media failed", zap.Error(err))
			utils.Error(c, http.StatusInternalServerError, "failed to store media")
			return
		}
		p.MediaKey = key
	} else {
		p.Media = req.ContentPicture
	}

	err = h.svc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			Update("post_count", gorm.Expr("post_count + 1")).Error
	})
	if err != nil {
		zap.L().Error("create post db error", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to create post")
		return
	}

	h.fanOut(ctx, models.FeedMsg{AuthorID: userID, PostID: p.ID, PostTime: p.CreatedAt.Unix()})
	utils.Success(c, p.Response(req.ContentPicture))
}

// fanOut hands the new post to the feed consumer, or pushes it directly when
// RabbitMQ is not connected.
func (h *PostHandler) fanOut(ctx context.Context, msg models.FeedMsg) {
	if h.svc.Rabbit != nil {
		body, _ := json.Marshal(msg)
		err := h.svc.Rabbit.Publish(mq.FeedQueue, body)
		if err == nil {
			return
		}
		zap.L().Warn("publish feed message failed, pushing inline", zap.Error(err))
	}
	if h.svc.Consumer == nil {
		return
	}
	if err := h.svc.Consumer.FanOut(ctx, msg); err != nil {
		zap.L().Error("feed push failed", zap.Int64("post_id", msg.PostID), zap.Error(err))
	}
}
