package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/nikspatil0120/eduplatform-sub001/internal/configuration"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/ep/api/chat")
	{
		chatRoute.POST("/:groupId/messages", container.ChatHandler.SendMessage)
		chatRoute.GET("/:groupId/messages", container.ChatHandler.GetMessages)
		chatRoute.GET("/:groupId/analytics", container.ChatHandler.GetAnalytics)
		chatRoute.PATCH("/messages/:id", container.ChatHandler.EditMessage)
		chatRoute.DELETE("/messages/:id", container.ChatHandler.DeleteMessage)
		chatRoute.POST("/messages/:id/reactions", container.ChatHandler.AddReaction)
		chatRoute.DELETE("/messages/:id/reactions", container.ChatHandler.RemoveReaction)
	}
}
