package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

func SetUserID(c *gin.Context, id int64) {
	c.Set(userIDKey, id)
}

func GetUserID(c *gin.Context) (int64, error) {
	uidRaw, exists := c.Get(userIDKey)
	if !exists {
		return 0, errors.New("not signed in")
	}

	uid, ok := uidRaw.(int64)
	if !ok {
		return 0, errors.New("user id has wrong type")
	}
	return uid, nil
}
