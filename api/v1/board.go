package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/service"
	"city.newnan/mc-console/internal/sse"
	"city.newnan/mc-console/internal/websocket"
	"city.newnan/mc-console/pkg/mccontrol"
)

// BoardController 状态面板
type BoardController struct {
	Board  *service.BoardService
	Broker *sse.Broker
	Hub    *websocket.Manager
}

// NewBoardController 创建状态面板控制器
func NewBoardController(board *service.BoardService, broker *sse.Broker, hub *websocket.Manager) *BoardController {
	return &BoardController{
		Board:  board,
		Broker: broker,
		Hub:    hub,
	}
}

// Get 获取频道的状态消息
// @Summary 获取状态消息
// @Tags 状态面板
// @Produce json
// @Security ApiKeyAuth
// @Param channel path string true "频道"
// @Success 200 {object} model.Response{data=model.BoardMessage} "获取成功"
// @Failure 404 {object} model.Response "频道中没有状态消息"
// @Router /api/v1/board/{channel} [get]
func (c *BoardController) Get(ctx *gin.Context) {
	message, err := c.Board.Get(ctx.Request.Context(), ctx.Param("channel"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrBoardEmpty) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, model.ErrorResponse(status, err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(message))
}

// Events 订阅频道的状态更新(SSE)
// @Summary 订阅状态更新
// @Tags 状态面板
// @Security ApiKeyAuth
// @Param channel path string true "频道"
// @Success 200 {string} string "SSE数据流"
// @Router /api/v1/board/{channel}/events [get]
func (c *BoardController) Events(ctx *gin.Context) {
	c.Broker.ServeTopic(ctx, ctx.Param("channel"))
}

// WebSocket 订阅频道的状态更新(WebSocket)
// @Summary WebSocket连接
// @Description 加入频道对应的房间；管理员可以发送 command 消息执行控制台命令
// @Tags 状态面板
// @Security ApiKeyAuth
// @Param channel path string true "频道"
// @Success 101 {string} string "切换为WebSocket协议"
// @Router /api/v1/board/{channel}/ws [get]
func (c *BoardController) WebSocket(ctx *gin.Context) {
	c.Hub.Serve(ctx, ctx.Param("channel"))
}

// DeleteMessage 删除状态消息
// @Summary 删除状态消息
// @Description 删除后控制循环会在下一次更新时重新创建
// @Tags 状态面板
// @Produce json
// @Security ApiKeyAuth
// @Param channel path string true "频道"
// @Param id path string true "消息ID"
// @Success 200 {object} model.Response "删除成功"
// @Failure 404 {object} model.Response "消息不存在"
// @Router /api/v1/board/{channel}/messages/{id} [delete]
func (c *BoardController) DeleteMessage(ctx *gin.Context) {
	err := c.Board.DeleteMessage(ctx.Request.Context(), ctx.Param("channel"), ctx.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mccontrol.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, model.ErrorResponse(status, err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}
