package user

import (
	"errors"
	"net/http"
	"strconv"

	"feedsync/internal/models"
	"feedsync/internal/svc"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	svc *svc.ServiceContext
}

func NewUserHandler(svc *svc.ServiceContext) *UserHandler {
	return &UserHandler{svc: svc}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// relation reports whether a follows b and b follows a.
func (h *UserHandler) relation(db *gorm.DB, a, b int64) (aFollowsB, bFollowsA bool, err error) {
	var rows []models.UserFollow
	err = db.Where("(follower_id = ? AND followed_id = ?) OR (follower_id = ? AND followed_id = ?)", a, b, b, a).
		Find(&rows).Error
	for _, r := range rows {
		if r.FollowerID == a {
			aFollowsB = true
		} else {
			bFollowsA = true
		}
	}
	return aFollowsB, bFollowsA, err
}

func (h *UserHandler) render(c *gin.Context, viewerID int64, u models.User) (models.UserResponse, error) {
	if viewerID == u.ID {
		return u.Response(false, false), nil
	}
	following, follower, err := h.relation(h.svc.DB.WithContext(c.Request.Context()), viewerID, u.ID)
	if err != nil {
		return models.UserResponse{}, err
	}
	return u.Response(follower, following), nil
}

func (h *UserHandler) load(c *gin.Context, id int64) (models.User, int, error) {
	var u models.User
	err := h.svc.DB.WithContext(c.Request.Context()).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return u, http.StatusNotFound, err
	}
	if err != nil {
		return u, http.StatusInternalServerError, err
	}
	return u, http.StatusOK, nil
}
