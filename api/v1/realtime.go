package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-console/internal/middleware"
	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/sse"
	"city.newnan/mc-console/internal/websocket"
)

// RealtimeController 实时通信相关API控制器
type RealtimeController struct {
	Broker *sse.Broker
	Hub    *websocket.Manager
}

// NewRealtimeController 创建实时通信控制器
func NewRealtimeController(broker *sse.Broker, hub *websocket.Manager) *RealtimeController {
	return &RealtimeController{
		Broker: broker,
		Hub:    hub,
	}
}

// GetRealtimeStats 获取实时连接统计
// @Summary 获取实时连接统计
// @Description 获取WebSocket和SSE的连接统计信息
// @Tags 实时通信
// @Produce json
// @Security ApiKeyAuth
// @Param channel query string false "频道"
// @Success 200 {object} model.Response "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 403 {object} model.Response "权限不足"
// @Router /api/v1/realtime/stats [get]
func (c *RealtimeController) GetRealtimeStats(ctx *gin.Context) {
	stats := map[string]interface{}{
		"websocket_total": c.Hub.GetClientCount(),
		"websocket_rooms": c.Hub.GetRoomCounts(),
		"sse_total":       c.Broker.GetClientCount(),
		"sse_crash":       c.Broker.GetTopicClientCount(sse.TopicCrash),
		"timestamp":       time.Now().Format(time.RFC3339),
		"username":        middleware.GetCurrentUsername(ctx),
	}
	if channel := ctx.Query("channel"); channel != "" {
		stats["sse_channel"] = c.Broker.GetTopicClientCount(channel)
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(stats))
}
