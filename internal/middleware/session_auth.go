package middleware

import (
	"net/http"

	"feedsync/config"
	"feedsync/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHeader carries the token returned by POST /user.
const SessionHeader = "x-session-id"

// SessionAuth rejects requests without a valid session token and stores the
// caller's user id on the context.
func SessionAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(SessionHeader)
		if token == "" {
			utils.Error(c, http.StatusUnauthorized, "missing session")
			return
		}

		userID, err := utils.ParseToken(cfg, token)
		if err != nil {
			zap.L().Debug("session rejected", zap.String("token", utils.GetTokenHash(token)), zap.Error(err))
			utils.Error(c, http.StatusUnauthorized, "invalid session")
			return
		}

		utils.SetUserID(c, userID)
		c.Next()
	}
}
