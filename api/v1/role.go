package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/service"
)

// RoleController 角色相关API控制器
// 角色固定为 op 与 member，只提供查询
type RoleController struct {
	RoleService *service.RoleService
}

// NewRoleController 创建角色控制器
func NewRoleController() *RoleController {
	return &RoleController{
		RoleService: service.NewRoleService(),
	}
}

// ListRoles 获取角色列表
// @Summary 获取角色列表
// @Tags 角色管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=[]model.Role} "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 403 {object} model.Response "权限不足"
// @Router /api/v1/roles [get]
func (c *RoleController) ListRoles(ctx *gin.Context) {
	roles, err := c.RoleService.ListRoles()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取角色列表失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(roles))
}

// GetRolePermissions 获取角色权限
// @Summary 获取角色权限
// @Description 获取角色的全部权限，包括继承的权限
// @Tags 角色管理
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "角色名称"
// @Success 200 {object} model.Response{data=[][]string} "获取成功"
// @Failure 404 {object} model.Response "角色不存在"
// @Router /api/v1/roles/{name}/permissions [get]
func (c *RoleController) GetRolePermissions(ctx *gin.Context) {
	role, err := c.RoleService.GetRoleByName(ctx.Param("name"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrRoleNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, model.ErrorResponse(status, "获取角色信息失败: "+err.Error()))
		return
	}

	permissions, err := c.RoleService.GetRolePermissions(role.Name)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取角色权限失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(permissions))
}
