package model

import (
	"time"

	"github.com/google/uuid"
)

// WhitelistEntry whitelist.json 中的一项
type WhitelistEntry struct {
	Name string    `json:"name"`
	UUID uuid.UUID `json:"uuid"`
}

// WhitelistAdd 添加白名单请求
type WhitelistAdd struct {
	Username string `json:"username" binding:"required"`
	Mode     string `json:"mode" binding:"required,oneof=online offline"` // 正版或离线模式
}

// CommandRequest 执行控制台命令请求
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// CommandResult 控制台命令的执行结果
type CommandResult struct {
	Output    string `json:"output"`
	Truncated bool   `json:"truncated"`
}

// RestartRequest 安排或取消重启
type RestartRequest struct {
	Cancel bool `json:"cancel"`
}

// ConsoleState 控制台的当前状态
type ConsoleState struct {
	Session          string `json:"session"`
	RestartRequested bool   `json:"restart_requested"`
	ChannelID        string `json:"channel_id,omitempty"`
	MessageID        string `json:"message_id,omitempty"`
}

// CrashReport 崩溃报告
type CrashReport struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Content   string    `json:"content,omitempty"`
}
