package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/notify"
	"github.com/nikspatil0120/eduplatform-sub001/internal/service"
)

type NotificationHandler interface {
	Create(c *gin.Context)
	Broadcast(c *gin.Context)
	MarkRead(c *gin.Context)
	List(c *gin.Context)
	GetAnalytics(c *gin.Context)
}

type notificationHandler struct {
	service *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) NotificationHandler {
	return &notificationHandler{service: svc}
}

type createNotificationRequest struct {
	UserID     string            `json:"userId"`
	Type       string            `json:"type" binding:"required"`
	Title      string            `json:"title" binding:"required"`
	Message    string            `json:"message"`
	Priority   string            `json:"priority" binding:"required"`
	ActionURL  string            `json:"actionUrl"`
	Metadata   map[string]string `json:"metadata"`
	Channels   []string          `json:"channels" binding:"required"`
	ScheduleAt string            `json:"scheduleAt"`
}

func (r *createNotificationRequest) params() (notify.CreateParams, error) {
	params := notify.CreateParams{
		UserID:    r.UserID,
		Type:      r.Type,
		Title:     r.Title,
		Message:   r.Message,
		Priority:  r.Priority,
		ActionURL: r.ActionURL,
		Metadata:  r.Metadata,
		Channels:  r.Channels,
	}
	if r.ScheduleAt != "" {
		t, err := time.Parse(time.RFC3339, r.ScheduleAt)
		if err != nil {
			return params, apperr.Scheduling("invalid scheduleAt %q: must be RFC3339", r.ScheduleAt)
		}
		params.ScheduleAt = &t
	}
	return params, nil
}

func (h *notificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	if req.UserID == "" {
		abortWithError(c, apperr.Validation("userId is required"))
		return
	}

	params, err := req.params()
	if err != nil {
		abortWithError(c, err)
		return
	}

	n, report, err := h.service.Create(c.Request.Context(), params)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"notification": n,
		"report":       report,
	})
}

type broadcastRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
	createNotificationRequest
}

func (h *notificationHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	if len(req.UserIDs) == 0 {
		abortWithError(c, apperr.Validation("userIds cannot be empty"))
		return
	}

	params, err := req.params()
	if err != nil {
		abortWithError(c, err)
		return
	}

	items := h.service.Broadcast(c.Request.Context(), req.UserIDs, params)
	c.JSON(http.StatusOK, gin.H{"results": items})
}

type markReadRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *notificationHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notification": n})
}

func (h *notificationHandler) List(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		abortWithError(c, apperr.Validation("userId query parameter is required"))
		return
	}

	result, err := h.service.List(
		c.Request.Context(),
		userID,
		c.Query("unread") == "true",
		parseInt64(c.DefaultQuery("page", "1"), 1),
		parseInt64(c.DefaultQuery("limit", "20"), 20),
	)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": result.Data,
		"hasMore":       result.HasMore,
		"total":         result.Total,
		"page":          result.Page,
	})
}

func (h *notificationHandler) GetAnalytics(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	analytics, err := h.service.Analytics(c.Request.Context(), from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}
