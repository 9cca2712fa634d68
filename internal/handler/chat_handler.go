package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
	"github.com/nikspatil0120/eduplatform-sub001/internal/repo"
	"github.com/nikspatil0120/eduplatform-sub001/internal/service"
)

type ChatHandler interface {
	SendMessage(c *gin.Context)
	GetMessages(c *gin.Context)
	EditMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	AddReaction(c *gin.Context)
	RemoveReaction(c *gin.Context)
	GetAnalytics(c *gin.Context)
}

type chatHandler struct {
	service *service.ChatService
}

func NewChatHandler(svc *service.ChatService) ChatHandler {
	return &chatHandler{service: svc}
}

type sendMessageRequest struct {
	SenderID    string             `json:"senderId" binding:"required"`
	Content     string             `json:"content"`
	Type        string             `json:"type" binding:"required"`
	Attachments []model.Attachment `json:"attachments"`
	ReplyTo     string             `json:"replyTo"`
}

func (h *chatHandler) SendMessage(c *gin.Context) {
	groupID := c.Param("groupId")

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), service.SendParams{
		GroupID:     groupID,
		SenderID:    req.SenderID,
		Content:     req.Content,
		Type:        req.Type,
		Attachments: req.Attachments,
		ReplyTo:     req.ReplyTo,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *chatHandler) GetMessages(c *gin.Context) {
	groupID := c.Param("groupId")
	userID := c.Query("userId")
	if userID == "" {
		abortWithError(c, apperr.Validation("userId query parameter is required"))
		return
	}

	q := repo.MessageQuery{
		Search: c.Query("search"),
		Page:   parseInt64(c.DefaultQuery("page", "1"), 1),
		Limit:  parseInt64(c.DefaultQuery("limit", "50"), 50),
	}
	if before := c.Query("before"); before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			abortWithError(c, apperr.Validation("invalid before timestamp %q", before))
			return
		}
		q.Before = &t
	}
	if after := c.Query("after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			abortWithError(c, apperr.Validation("invalid after timestamp %q", after))
			return
		}
		q.After = &t
	}

	result, err := h.service.GetMessages(c.Request.Context(), groupID, userID, q)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": result.Data,
		"hasMore":  result.HasMore,
		"total":    result.Total,
		"page":     result.Page,
	})
}

type editMessageRequest struct {
	EditorID string `json:"editorId" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

func (h *chatHandler) EditMessage(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	msg, err := h.service.EditMessage(c.Request.Context(), c.Param("id"), req.EditorID, req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *chatHandler) DeleteMessage(c *gin.Context) {
	actorID := c.Query("actorId")
	if actorID == "" {
		abortWithError(c, apperr.Validation("actorId query parameter is required"))
		return
	}

	msg, err := h.service.DeleteMessage(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type reactionRequest struct {
	UserID string `json:"userId" binding:"required"`
	Emoji  string `json:"emoji"`
}

func (h *chatHandler) AddReaction(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	msg, err := h.service.AddReaction(c.Request.Context(), c.Param("id"), req.UserID, req.Emoji)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *chatHandler) RemoveReaction(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		abortWithError(c, apperr.Validation("userId query parameter is required"))
		return
	}

	msg, err := h.service.RemoveReaction(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *chatHandler) GetAnalytics(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	analytics, err := h.service.Analytics(c.Request.Context(), c.Param("groupId"), from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}

func parseInt64(s string, fallback int64) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// parseRange reads from/to query parameters, defaulting to the last 7 days.
func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)

	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return from, to, apperr.Validation("invalid from timestamp %q", s)
		}
		from = t
	}
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return from, to, apperr.Validation("invalid to timestamp %q", s)
		}
		to = t
	}
	if to.Before(from) {
		return from, to, apperr.Validation("to must not precede from")
	}
	return from, to, nil
}
