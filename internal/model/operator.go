package model

import (
	"time"

	"gorm.io/gorm"
)

// 内置角色
const (
	RoleOp     = "op"     // 服务器管理员，可以执行控制台命令
	RoleMember = "member" // 普通成员，只能查看状态
)

// Operator 控制台操作员
type Operator struct {
	gorm.Model
	Username  string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	RoleID    uint      `json:"role_id"`
	Role      Role      `gorm:"foreignKey:RoleID" json:"role"`
	LastLogin time.Time `json:"last_login"`
	Status    int       `gorm:"default:1" json:"status"` // 1: 活跃, 0: 禁用
}

// Role 角色模型
type Role struct {
	gorm.Model
	Name        string     `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Description string     `gorm:"size:200" json:"description"`
	Operators   []Operator `gorm:"foreignKey:RoleID" json:"-"`
}

// OperatorLogin 登录请求
type OperatorLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// OperatorCreate 创建操作员请求
type OperatorCreate struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=op member"`
}

// OperatorResponse 操作员响应数据（不包含敏感信息）
type OperatorResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	RoleName  string    `json:"role_name"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
	Status    int       `json:"status"`
}

// ToOperatorResponse 将Operator转换为OperatorResponse
func (o *Operator) ToOperatorResponse() OperatorResponse {
	return OperatorResponse{
		ID:        o.ID,
		Username:  o.Username,
		RoleName:  o.Role.Name,
		CreatedAt: o.CreatedAt,
		LastLogin: o.LastLogin,
		Status:    o.Status,
	}
}
