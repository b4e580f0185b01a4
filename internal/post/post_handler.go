package post

import (
	"strconv"

	"feedsync/config"
	"feedsync/internal/svc"

	"github.com/gin-gonic/gin"
)

const defaultPageSize = 10

type PostHandler struct {
	svc *svc.ServiceContext
}

func NewPostHandler(svc *svc.ServiceContext) *PostHandler {
	return &PostHandler{svc: svc}
}

// page reads ?maxPostId and ?limit. A missing or zero maxPostId means "from
// the newest". A limit above config.MaxFeedPageSize is rejected, since a
// silently shortened page reads as the end of the list.
func page(c *gin.Context) (maxID int64, limit int, ok bool) {
	if raw := c.Query("maxPostId"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return 0, 0, false
		}
		maxID = v
	}

	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > config.MaxFeedPageSize {
			return 0, 0, false
		}
		limit = v
	}
	return maxID, limit, true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
