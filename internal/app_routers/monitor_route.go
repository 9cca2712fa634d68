package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/nikspatil0120/eduplatform-sub001/internal/configuration"
)

func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorRoute := router.Group("/ep/api/monitor")
	{
		monitorRoute.GET("/stats", container.MonitorHandler.GetStats)
	}
}
