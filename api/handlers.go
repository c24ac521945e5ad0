// Package api exposes the HTTP surface: run triggers, published-post lookups,
// and prompt-template management.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basilisk-bot/store"
	"basilisk-bot/types"
)

// Trigger starts one pipeline run
type Trigger interface {
	Run(ctx context.Context, t types.PostType) *types.RunResult
}

// Handler holds the services the HTTP layer delegates to
type Handler struct {
	runner Trigger
	store  *store.Store
}

// NewHandler creates the API handler
func NewHandler(runner Trigger, st *store.Store) *Handler {
	return &Handler{runner: runner, store: st}
}

func (h *Handler) postContent(c *gin.Context) {
	var body struct {
		Type types.PostType `json:"type"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}

	result := h.runner.Run(c.Request.Context(), body.Type)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

func (h *Handler) postStory(c *gin.Context) {
	result := h.runner.Run(c.Request.Context(), types.PostTypeStory)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

func (h *Handler) recentTweets(c *gin.Context) {
	posts, err := h.store.RecentTweets(c.Request.Context(), 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": posts})
}

func (h *Handler) tweetVideo(c *gin.Context) {
	post, err := h.store.FindTweetByTweetID(c.Request.Context(), c.Param("id"))
	if err != nil || post.MediaURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "no media found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "mediaUrl": post.MediaURL})
}

func (h *Handler) createStoryPrompt(c *gin.Context) {
	var p types.PromptTemplate
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}
	if p.SystemMessage == "" || p.UserPrompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "system_message and user_prompt are required"})
		return
	}
	if err := h.store.CreateStoryPrompt(c.Request.Context(), &p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) listStoryPrompts(c *gin.Context) {
	prompts, err := h.store.ListStoryPrompts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prompts)
}

func (h *Handler) activeStoryPrompt(c *gin.Context) {
	t := types.PostType(c.DefaultQuery("type", string(types.PostTypeStory)))
	if !t.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "unknown type"})
		return
	}
	p, err := h.store.ActiveStoryPrompt(c.Request.Context(), t)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "no active prompt"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) updateStoryPrompt(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	var upd types.PromptUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}
	p, err := h.store.UpdateStoryPrompt(c.Request.Context(), id, &upd)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "prompt not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) deleteStoryPrompt(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return
	}
	if err := h.store.DeleteStoryPrompt(c.Request.Context(), id); errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "prompt not found"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
