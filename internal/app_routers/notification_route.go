package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/nikspatil0120/eduplatform-sub001/internal/configuration"
)

func NotificationRouters(router *gin.Engine, container *configuration.Container) {
	notificationRoute := router.Group("/ep/api/notifications")
	{
		notificationRoute.POST("", container.NotificationHandler.Create)
		notificationRoute.GET("", container.NotificationHandler.List)
		notificationRoute.POST("/broadcast", container.NotificationHandler.Broadcast)
		notificationRoute.POST("/:id/read", container.NotificationHandler.MarkRead)
		notificationRoute.GET("/analytics", container.NotificationHandler.GetAnalytics)
	}
}
