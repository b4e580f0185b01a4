package user

import (
	"net/http"

	"feedsync/internal/models"
	"feedsync/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateUser registers an anonymous account and hands back its session.
// The client names it afterwards with PUT /user.
func (h *UserHandler) CreateUser(c *gin.Context) {
	u := models.User{}
	if err := h.svc.DB.WithContext(c.Request.Context()).Create(&u).Error; err != nil {
		zap.L().Error("create user failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(h.svc.Config, u.ID)
	if err != nil {
		zap.L().Error("issue session failed", zap.Int64("user_id", u.ID), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to create session")
		return
	}

	zap.L().Info("user created", zap.Int64("user_id", u.ID))
	utils.Success(c, models.CreateUserResponse{SessionID: token, UserID: u.ID})
}
