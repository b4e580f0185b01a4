package user

import (
	"errors"
	"net/http"

	"feedsync/internal/models"
	"feedsync/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errAlreadyFollowed = errors.New("already followed")

// FollowUser answers 204 when the relation exists afterwards, including when
// it already did.
func (h *UserHandler) FollowUser(c *gin.Context) {
	targetID, ok := parseID(c)
	if !ok {
		utils.Error(c, http.StatusBadRequest, "invalid target id")
		return
	}
	me, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	if me == targetID {
		utils.Error(c, http.StatusBadRequest, "you can't follow yourself")
		return
	}

	db := h.svc.DB.WithContext(c.Request.Context())
	var exists int64
	if err := db.Model(&models.User{}).Where("id = ?", targetID).Count(&exists).Error; err != nil {
		zap.L().Error("look up follow target failed", zap.Error(err), zap.Int64("target", targetID))
		utils.Error(c, http.StatusInternalServerError, "failed to follow")
		return
	}
	if exists == 0 {
		utils.Error(c, http.StatusNotFound, "user not found")
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.UserFollow{}).
			Where("follower_id = ? AND followed_id = ?", me, targetID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errAlreadyFollowed
		}

		if err := tx.Create(&models.UserFollow{FollowerID: me, FollowedID: targetID}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", me).
			Update("following_count", gorm.Expr("following_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", targetID).
			Update("follower_count", gorm.Expr("follower_count + 1")).Error
	})

	switch {
	case errors.Is(err, errAlreadyFollowed):
	case err != nil:
		zap.L().Error("follow user failed", zap.Error(err), zap.Int64("me", me), zap.Int64("target", targetID))
		utils.Error(c, http.StatusInternalServerError, "failed to follow")
		return
	default:
		h.dropTimeline(c, me)
	}
	utils.NoContent(c)
}

func (h *UserHandler) UnfollowUser(c *gin.Context) {
	targetID, ok := parseID(c)
	if !ok {
		utils.Error(c, http.StatusBadRequest, "invalid target id")
		return
	}
	me, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}

	removed := false
	err = h.svc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("follower_id = ? AND followed_id = ?", me, targetID).Delete(&models.UserFollow{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		removed = true

		if err := tx.Model(&models.User{}).Where("id = ? AND following_count > 0", me).
			Update("following_count", gorm.Expr("following_count - 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ? AND follower_count > 0", targetID).
			Update("follower_count", gorm.Expr("follower_count - 1")).Error
	})
	if err != nil {
		zap.L().Error("unfollow user failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to unfollow")
		return
	}
	if removed {
		h.dropTimeline(c, me)
	}
	utils.NoContent(c)
}

// dropTimeline forces the next feed read to rebuild from the new follow set.
func (h *UserHandler) dropTimeline(c *gin.Context, userID int64) {
	if h.svc.Cache == nil {
		return
	}
	if err := h.svc.Cache.DropTimeline(c.Request.Context(), userID); err != nil {
		zap.L().Warn("drop timeline failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
