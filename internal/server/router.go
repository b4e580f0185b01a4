// Package server wires the sandbox social API routes.
package server

import (
	"feedsync/internal/middleware"
	"feedsync/internal/post"
	"feedsync/internal/svc"
	"feedsync/internal/user"

	"github.com/gin-gonic/gin"
)

func NewRouter(s *svc.ServiceContext) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.TraceMiddleware("feedsync-apiserver"), middleware.LoggerMiddleware())

	userHandler := user.NewUserHandler(s)
	postHandler := post.NewPostHandler(s)

	r.POST("/user", userHandler.CreateUser)

	auth := r.Group("/")
	auth.Use(middleware.SessionAuth(s.Config))
	{
		auth.GET("/user/:id", userHandler.GetUser)
		auth.PUT("/user", userHandler.UpdateUser)
		auth.PUT("/user/image", userHandler.UpdateImage)

		follow := auth.Group("/follow")
		follow.Use(middleware.RateLimitMiddleware(s.Cache, "follow", s.Config.FollowRateLimit, s.Config.FollowRateWin))
		{
			follow.PUT("/:id", userHandler.FollowUser)
			follow.DELETE("/:id", userHandler.UnfollowUser)
		}

		auth.GET("/feed", postHandler.Feed)
		auth.POST("/post", postHandler.CreatePost)
		auth.GET("/post/:id", postHandler.GetPost)
		auth.GET("/post/list/:id", postHandler.ListByAuthor)
	}

	return r
}
