package user

import (
	"net/http"

	"feedsync/internal/models"
	"feedsync/internal/utils"
	"feedsync/internal/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *UserHandler) GetUser(c *gin.Context) {
	viewerID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	targetID, ok := parseID(c)
	if !ok {
		utils.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	u, status, err := h.load(c, targetID)
	if err != nil {
		if status == http.StatusNotFound {
			utils.Error(c, status, "user not found")
		} else {
			zap.L().Error("db query user failed", zap.Error(err))
			utils.Error(c, status, "failed to load user")
		}
		return
	}

	resp, err := h.render(c, viewerID, u)
	if err != nil {
		zap.L().Error("db query follow relation failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to load user")
		return
	}
	utils.Success(c, resp)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req validators.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid profile")
		return
	}

	updates := map[string]any{"username": req.Username}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.DateOfBirth != nil {
		updates["date_of_birth"] = *req.DateOfBirth
	}
	h.updateSelf(c, updates)
}

func (h *UserHandler) UpdateImage(c *gin.Context) {
	var req validators.UpdateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid image")
		return
	}
	h.updateSelf(c, map[string]any{"profile_picture": req.Base64})
}

func (h *UserHandler) updateSelf(c *gin.Context, updates map[string]any) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}

	db := h.svc.DB.WithContext(c.Request.Context())
	res := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		zap.L().Error("update user failed", zap.Int64("user_id", userID), zap.Error(res.Error))
		utils.Error(c, http.StatusInternalServerError, "failed to update profile")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(c, http.StatusNotFound, "user not found")
		return
	}

	u, status, err := h.load(c, userID)
	if err != nil {
		utils.Error(c, status, "failed to load user")
		return
	}
	utils.Success(c, u.Response(false, false))
}
