package utils

import (
	"github.com/gin-gonic/gin"
)

// Success writes v as the JSON body with status 200.
func Success(c *gin.Context, v any) {
	c.JSON(200, v)
}

// NoContent is used by mutations the remote contract answers with 204.
func NoContent(c *gin.Context) {
	c.Status(204)
}

func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
