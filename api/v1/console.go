package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-console/internal/middleware"
	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/service"
)

// ConsoleController 控制台命令与计划重启
type ConsoleController struct {
	Console *service.ConsoleService
}

// NewConsoleController 创建控制台控制器
func NewConsoleController(console *service.ConsoleService) *ConsoleController {
	return &ConsoleController{Console: console}
}

// Run 执行控制台命令
// @Summary 执行控制台命令
// @Description 通过RCON执行一条命令，输出过长时截断
// @Tags 控制台
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param command body model.CommandRequest true "命令"
// @Success 200 {object} model.Response{data=model.CommandResult} "执行成功"
// @Failure 400 {object} model.Response "命令过长"
// @Failure 403 {object} model.Response "权限不足"
// @Failure 502 {object} model.Response "RCON认证失败"
// @Failure 503 {object} model.Response "服务器已关闭"
// @Router /api/v1/console/run [post]
func (c *ConsoleController) Run(ctx *gin.Context) {
	var req model.CommandRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	result, err := c.Console.Run(ctx.Request.Context(), middleware.GetCurrentUsername(ctx), req.Command)
	if err != nil {
		status := consoleStatus(err)
		ctx.JSON(status, model.ErrorResponse(status, err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.MessageResponse("Success", result))
}

// consoleStatus 控制台错误对应的HTTP状态码
func consoleStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrCommandTooLong):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRconAuth):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrServerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// State 获取控制台状态
// @Summary 获取控制台状态
// @Tags 控制台
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=model.ConsoleState} "获取成功"
// @Router /api/v1/console/state [get]
func (c *ConsoleController) State(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, model.SuccessResponse(c.Console.State()))
}

// ScheduleRestart 安排或取消重启
// @Summary 安排或取消重启
// @Description 所有玩家下线后服务器立即重启；cancel 为true时取消
// @Tags 控制台
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.RestartRequest false "是否取消"
// @Success 200 {object} model.Response{data=model.ConsoleState} "操作成功"
// @Failure 403 {object} model.Response "权限不足"
// @Router /api/v1/restart [post]
func (c *ConsoleController) ScheduleRestart(ctx *gin.Context) {
	var req model.RestartRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
			return
		}
	}

	outcome := c.Console.ScheduleRestart(middleware.GetCurrentUsername(ctx), req.Cancel)
	ctx.JSON(http.StatusOK, model.MessageResponse(outcome.Message(), c.Console.State()))
}
