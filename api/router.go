package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures the HTTP routes
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	grp := r.Group("/api")
	grp.Use(APIKeyAuth())
	{
		grp.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		grp.POST("/post-content", h.postContent)
		grp.POST("/post-story", h.postStory)

		grp.GET("/tweets", h.recentTweets)
		grp.GET("/tweets/:id/video", h.tweetVideo)

		grp.POST("/story-prompts", h.createStoryPrompt)
		grp.GET("/story-prompts", h.listStoryPrompts)
		grp.GET("/story-prompts/active", h.activeStoryPrompt)
		grp.PUT("/story-prompts/:id", h.updateStoryPrompt)
		grp.DELETE("/story-prompts/:id", h.deleteStoryPrompt)
	}

	return r
}
