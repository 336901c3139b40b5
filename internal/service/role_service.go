package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"city.newnan/mc-console/internal/db"
	"city.newnan/mc-console/internal/middleware"
	"city.newnan/mc-console/internal/model"
)

// ErrRoleNotFound 角色不存在
var ErrRoleNotFound = errors.New("角色不存在")

// memberPolicies 普通成员可以访问的API
var memberPolicies = [][]string{
	{"/api/v1/operator/profile", "GET"},
	{"/api/v1/operator/refresh-token", "GET"},
	{"/api/v1/console/state", "GET"},
	{"/api/v1/board/:channel", "GET"},
	{"/api/v1/board/:channel/events", "GET"},
	{"/api/v1/board/:channel/ws", "GET"},
	{"/api/v1/whitelist", "GET"},
}

// opPolicies 管理员额外可以访问的API
var opPolicies = [][]string{
	{"/api/v1/console/run", "POST"},
	{"/api/v1/restart", "POST"},
	{"/api/v1/whitelist", "POST"},
	{"/api/v1/whitelist/:username", "DELETE"},
	{"/api/v1/crash", "GET"},
	{"/api/v1/crash/events", "GET"},
	{"/api/v1/board/:channel/messages/:id", "DELETE"},
	{"/api/v1/operators", "*"},
	{"/api/v1/operators/:id", "*"},
	{"/api/v1/roles", "GET"},
	{"/api/v1/roles/:name/permissions", "GET"},
	{"/api/v1/realtime/stats", "GET"},
}

// RoleService 提供角色相关功能
type RoleService struct{}

// NewRoleService 创建角色服务实例
func NewRoleService() *RoleService {
	return &RoleService{}
}

// GetRoleByName 根据名称获取角色
func (s *RoleService) GetRoleByName(name string) (*model.Role, error) {
	var role model.Role
	if err := db.DB.Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles 获取全部角色
func (s *RoleService) ListRoles() ([]model.Role, error) {
	var roles []model.Role
	if err := db.DB.Order("id").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// ensureRole 角色不存在时创建
func (s *RoleService) ensureRole(name, description string) (*model.Role, error) {
	role, err := s.GetRoleByName(name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrRoleNotFound) {
		return nil, fmt.Errorf("检查角色 %s 失败: %w", name, err)
	}

	role = &model.Role{Name: name, Description: description}
	if err := db.DB.Create(role).Error; err != nil {
		return nil, fmt.Errorf("创建角色 %s 失败: %w", name, err)
	}
	return role, nil
}

// SetupInitialRoles 设置初始角色和权限
func (s *RoleService) SetupInitialRoles() error {
	if _, err := s.ensureRole(model.RoleOp, "服务器管理员"); err != nil {
		return err
	}
	if _, err := s.ensureRole(model.RoleMember, "普通成员"); err != nil {
		return err
	}

	enforcer := middleware.GetEnforcer()
	if enforcer == nil {
		return errors.New("权限系统未初始化")
	}

	// 先在内存中重建策略，再由 SavePolicy 整体覆盖数据库中的策略
	enforcer.EnableAutoSave(false)
	defer enforcer.EnableAutoSave(true)
	enforcer.ClearPolicy()

	for _, p := range memberPolicies {
		if _, err := enforcer.AddPolicy(model.RoleMember, p[0], p[1]); err != nil {
			return err
		}
	}
	for _, p := range opPolicies {
		if _, err := enforcer.AddPolicy(model.RoleOp, p[0], p[1]); err != nil {
			return err
		}
	}

	// 管理员继承普通成员的权限
	if _, err := enforcer.AddGroupingPolicy(model.RoleOp, model.RoleMember); err != nil {
		return err
	}

	// 保存策略
	return enforcer.SavePolicy()
}

// GetRolePermissions 获取角色权限（包括继承的权限）
func (s *RoleService) GetRolePermissions(roleName string) ([][]string, error) {
	enforcer := middleware.GetEnforcer()
	if enforcer == nil {
		return nil, errors.New("权限系统未初始化")
	}
	return enforcer.GetImplicitPermissionsForUser(roleName)
}
