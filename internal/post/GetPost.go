package post

import (
	"context"
	"errors"
	"net/http"

	"feedsync/internal/models"
	"feedsync/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *PostHandler) GetPost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		utils.Error(c, http.StatusBadRequest, "invalid post id")
		return
	}

	ctx := c.Request.Context()
	var p models.Post
	err := h.svc.DB.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(c, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		zap.L().Error("db query post failed", zap.Int64("post_id", id), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to load post")
		return
	}

	media, err := h.media(ctx, p)
	if err != nil {
		zap.L().Error("load media failed", zap.Int64("post_id", id), zap.String("key", p.MediaKey), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to load media")
		return
	}
	resp := p.Response(media)
	if p.MediaKey != "" {
		resp.MediaURL = h.svc.Media.URL(p.MediaKey)
	}
	utils.Success(c, resp)
}

func (h *PostHandler) media(ctx context.Context, p models.Post) (string, error) {
	if p.MediaKey == "" {
		return p.Media, nil
	}
	if h.svc.Media == nil {
		return "", errors.New("media stored in object storage but none is configured")
	}
	return h.svc.Media.GetBase64(ctx, p.MediaKey)
}
