package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-console/internal/config"
	"city.newnan/mc-console/internal/middleware"
	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/service"
)

// OperatorController 操作员相关API控制器
type OperatorController struct {
	OperatorService *service.OperatorService
	Config          *config.Config
}

// NewOperatorController 创建操作员控制器
func NewOperatorController(cfg *config.Config) *OperatorController {
	return &OperatorController{
		OperatorService: service.NewOperatorService(cfg),
		Config:          cfg,
	}
}

// Login 操作员登录
// @Summary 操作员登录
// @Description 操作员登录并获取认证Token
// @Tags 操作员
// @Accept json
// @Produce json
// @Param login body model.OperatorLogin true "登录信息"
// @Success 200 {object} model.Response{data=map[string]interface{}} "登录成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 401 {object} model.Response "认证失败"
// @Router /api/v1/operator/login [post]
func (c *OperatorController) Login(ctx *gin.Context) {
	var req model.OperatorLogin
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	operator, token, err := c.OperatorService.Login(req)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, model.ErrorResponse(http.StatusUnauthorized, "登录失败: "+err.Error()))
		return
	}

	// 设置JWT Token到Cookie
	ctx.SetCookie(
		"token",
		token,
		int(c.Config.JWTExpireTime.Seconds()),
		"/",
		"",
		c.Config.JWTCookieSecure,
		c.Config.JWTCookieHTTPOnly,
	)

	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"operator": operator.ToOperatorResponse(),
		"token":    token,
	}))
}

// Logout 退出登录
// @Summary 退出登录
// @Description 清除Cookie中的Token
// @Tags 操作员
// @Produce json
// @Success 200 {object} model.Response "退出成功"
// @Router /api/v1/operator/logout [post]
func (c *OperatorController) Logout(ctx *gin.Context) {
	ctx.SetCookie("token", "", -1, "/", "", c.Config.JWTCookieSecure, c.Config.JWTCookieHTTPOnly)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// GetProfile 获取当前操作员信息
// @Summary 获取当前操作员信息
// @Tags 操作员
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=model.OperatorResponse} "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 404 {object} model.Response "操作员不存在"
// @Router /api/v1/operator/profile [get]
func (c *OperatorController) GetProfile(ctx *gin.Context) {
	operator, err := c.OperatorService.GetOperatorByID(middleware.GetCurrentOperatorID(ctx))
	if err != nil {
		ctx.JSON(http.StatusNotFound, model.ErrorResponse(http.StatusNotFound, "获取操作员信息失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(operator.ToOperatorResponse()))
}

// RefreshToken 刷新Token
// @Summary 刷新Token
// @Tags 操作员
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=map[string]string} "刷新成功"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/operator/refresh-token [get]
func (c *OperatorController) RefreshToken(ctx *gin.Context) {
	token, err := middleware.RefreshToken(ctx, c.Config)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "刷新Token失败: "+err.Error()))
		return
	}

	ctx.SetCookie(
		"token",
		token,
		int(c.Config.JWTExpireTime.Seconds()),
		"/",
		"",
		c.Config.JWTCookieSecure,
		c.Config.JWTCookieHTTPOnly,
	)

	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]string{
		"token": token,
	}))
}

// ListOperators 获取操作员列表
// @Summary 获取操作员列表
// @Tags 操作员管理
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(10)
// @Param query query string false "搜索关键词"
// @Success 200 {object} model.PagedResponse{items=[]model.OperatorResponse} "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 403 {object} model.Response "权限不足"
// @Router /api/v1/operators [get]
func (c *OperatorController) ListOperators(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	operators, total, err := c.OperatorService.ListOperators(page, pageSize, ctx.Query("query"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取操作员列表失败: "+err.Error()))
		return
	}

	items := make([]model.OperatorResponse, 0, len(operators))
	for _, operator := range operators {
		items = append(items, operator.ToOperatorResponse())
	}

	ctx.JSON(http.StatusOK, model.NewPagedResponse(total, pageSize, page, items))
}

// CreateOperator 创建操作员
// @Summary 创建操作员
// @Tags 操作员管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param operator body model.OperatorCreate true "操作员信息"
// @Success 200 {object} model.Response{data=model.OperatorResponse} "创建成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 409 {object} model.Response "用户名已存在"
// @Router /api/v1/operators [post]
func (c *OperatorController) CreateOperator(ctx *gin.Context) {
	var req model.OperatorCreate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	operator, err := c.OperatorService.CreateOperator(req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrOperatorExists) {
			status = http.StatusConflict
		}
		ctx.JSON(status, model.ErrorResponse(status, "创建操作员失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(operator.ToOperatorResponse()))
}

// GetOperator 获取指定操作员信息
// @Summary 获取指定操作员信息
// @Tags 操作员管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "操作员ID"
// @Success 200 {object} model.Response{data=model.OperatorResponse} "获取成功"
// @Failure 404 {object} model.Response "操作员不存在"
// @Router /api/v1/operators/{id} [get]
func (c *OperatorController) GetOperator(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	operator, err := c.OperatorService.GetOperatorByID(id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, model.ErrorResponse(http.StatusNotFound, "获取操作员信息失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(operator.ToOperatorResponse()))
}

// DeleteOperator 删除操作员
// @Summary 删除操作员
// @Tags 操作员管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "操作员ID"
// @Success 200 {object} model.Response "删除成功"
// @Failure 400 {object} model.Response "不能删除自己"
// @Failure 404 {object} model.Response "操作员不存在"
// @Router /api/v1/operators/{id} [delete]
func (c *OperatorController) DeleteOperator(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	if id == middleware.GetCurrentOperatorID(ctx) {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "不能删除自己"))
		return
	}

	if err := c.OperatorService.DeleteOperator(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrOperatorNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, model.ErrorResponse(status, "删除操作员失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// parseID 解析路径中的ID，失败时直接写入响应
func parseID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的ID"))
		return 0, false
	}
	return uint(id), true
}
