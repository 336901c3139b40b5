package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/service"
)

// WhitelistController 白名单管理
type WhitelistController struct {
	Whitelist *service.WhitelistService
}

// NewWhitelistController 创建白名单控制器
func NewWhitelistController(whitelist *service.WhitelistService) *WhitelistController {
	return &WhitelistController{Whitelist: whitelist}
}

// List 获取白名单
// @Summary 获取白名单
// @Tags 白名单
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=[]model.WhitelistEntry} "获取成功"
// @Failure 500 {object} model.Response "无法读取白名单文件"
// @Router /api/v1/whitelist [get]
func (c *WhitelistController) List(ctx *gin.Context) {
	entries, err := c.Whitelist.List()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.MessageResponse(service.Summary(entries), entries))
}

// Add 添加玩家到白名单
// @Summary 添加玩家到白名单
// @Description mode 为 online 时向Mojang查询UUID，为 offline 时使用离线UUID
// @Tags 白名单
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.WhitelistAdd true "玩家信息"
// @Success 200 {object} model.Response{data=model.WhitelistEntry} "添加成功"
// @Failure 404 {object} model.Response "正版账号不存在"
// @Failure 409 {object} model.Response "玩家已在白名单中"
// @Failure 503 {object} model.Response "Mojang认证服务器不可用"
// @Router /api/v1/whitelist [post]
func (c *WhitelistController) Add(ctx *gin.Context) {
	var req model.WhitelistAdd
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	entry, err := c.Whitelist.Add(ctx.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrAlreadyWhitelisted):
			status = http.StatusConflict
		case errors.Is(err, service.ErrPlayerNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrMojangUnavailable):
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, model.ErrorResponse(status, fmt.Sprintf("添加玩家 %s 失败: %v", req.Username, err)))
		return
	}

	ctx.JSON(http.StatusOK, model.MessageResponse(fmt.Sprintf("玩家 %s 已加入白名单。", entry.Name), entry))
}

// Remove 将玩家移出白名单
// @Summary 将玩家移出白名单
// @Tags 白名单
// @Produce json
// @Security ApiKeyAuth
// @Param username path string true "玩家名"
// @Success 200 {object} model.Response "移除成功"
// @Failure 404 {object} model.Response "玩家不在白名单中"
// @Router /api/v1/whitelist/{username} [delete]
func (c *WhitelistController) Remove(ctx *gin.Context) {
	username := ctx.Param("username")
	if err := c.Whitelist.Remove(ctx.Request.Context(), username); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNotWhitelisted) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, model.ErrorResponse(status, fmt.Sprintf("移除玩家 %s 失败: %v", username, err)))
		return
	}

	ctx.JSON(http.StatusOK, model.MessageResponse(fmt.Sprintf("玩家 %s 已移出白名单。", username), nil))
}
