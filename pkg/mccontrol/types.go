package mccontrol

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Executor 控制台命令执行接口
// Session 与 SharedState 都实现了该接口
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// ErrorKind 表示控制台错误的分类
type ErrorKind int

const (
	// KindTransport 连接层错误（断开、超时、管道破裂），会话内自动重试一次
	KindTransport ErrorKind = iota + 1

	// KindAuth RCON密码被拒绝，不重试
	KindAuth

	// KindCommandTooLong 命令超过协议允许的长度，不重试
	KindCommandTooLong

	// KindParse 收到了响应但无法按当前语法解析
	KindParse
)

// String 返回错误分类名称
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindCommandTooLong:
		return "command_too_long"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// SessionError 会话执行命令时返回的错误
type SessionError struct {
	Kind ErrorKind // 错误分类
	Err  error     // 底层错误，可能为nil
}

// 可用于 errors.Is 比较的哨兵错误
var (
	ErrTransport      = &SessionError{Kind: KindTransport}
	ErrAuth           = &SessionError{Kind: KindAuth}
	ErrCommandTooLong = &SessionError{Kind: KindCommandTooLong}
)

func (e *SessionError) Error() string {
	var msg string
	switch e.Kind {
	case KindAuth:
		msg = "RCON认证失败: 密码错误"
	case KindCommandTooLong:
		msg = "命令过长"
	default:
		msg = "RCON连接失败"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Is 只比较错误分类
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ErrParse 用于 errors.Is 判断是否为解析错误
var ErrParse = errors.New("状态解析失败")

// ParseError 表示状态响应无法解析
// 服务器已经响应，因此不能当作离线处理
type ParseError struct {
	Mode ParseMode // 当前使用的语法
	Raw  string    // 原始响应
	Err  error     // 具体原因
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s错误（这是一个bug）: %v", e.Mode.label(), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrParse) 成立
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// TPSSample 5s/10s/1m/5m/15m 窗口的TPS采样
type TPSSample [5]float64

// PlayerEntry 在线玩家条目，每次轮询重新构建
type PlayerEntry struct {
	Name           string         `json:"name"`                      // 玩家名
	Nickname       string         `json:"nickname,omitempty"`        // 原始昵称，可能包含格式标签，空表示无
	NicknameStyled *TextComponent `json:"nickname_styled,omitempty"` // 富文本昵称
	UUID           *uuid.UUID     `json:"uuid,omitempty"`            // 玩家UUID
}

// OnlineStatus 服务器在线时的状态
// 不校验 CurrentPlayers <= MaxPlayers，由上游服务器负责
type OnlineStatus struct {
	CurrentPlayers int           // 当前在线玩家数
	MaxPlayers     int           // 最大玩家数
	List           []PlayerEntry // 玩家列表
	TPS            *TPSSample    // TPS采样，可能为nil
}

// ServerStatus 服务器状态：离线，或带有 OnlineStatus 的在线状态
// 构建后不再修改
type ServerStatus struct {
	online *OnlineStatus
}

// OfflineStatus 返回离线状态
func OfflineStatus() ServerStatus {
	return ServerStatus{}
}

// NewOnlineStatus 返回在线状态
func NewOnlineStatus(status OnlineStatus) ServerStatus {
	return ServerStatus{online: &status}
}

// Online 返回在线状态数据，离线时第二个返回值为false
func (s ServerStatus) Online() (OnlineStatus, bool) {
	if s.online == nil {
		return OnlineStatus{}, false
	}
	return *s.online, true
}

// IsOnline 服务器是否在线
func (s ServerStatus) IsOnline() bool {
	return s.online != nil
}

// MessageRef 已渲染状态消息的引用
type MessageRef struct {
	ChannelID string // 所属频道
	MessageID string // 消息ID
}

// RenderRequest 渲染请求
// MessageID 为空时创建新消息
type RenderRequest struct {
	ChannelID string
	MessageID string
	Text      string
}

// ErrMessageNotFound 编辑的消息已不存在
var ErrMessageNotFound = errors.New("消息不存在")

// Renderer 渲染状态文本的外部协作者
type Renderer interface {
	// Render 编辑已有消息或创建新消息，返回消息ID
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// MessageRefStore 持久化消息引用，使进程重启后继续编辑同一条消息
type MessageRefStore interface {
	LoadMessageRef(ctx context.Context) (*MessageRef, error)
	SaveMessageRef(ctx context.Context, ref MessageRef) error
}
