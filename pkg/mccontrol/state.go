package mccontrol

import (
	"context"
	"sync"
)

// RestartOutcome ScheduleRestart 的结果
type RestartOutcome int

const (
	RestartScheduled        RestartOutcome = iota // 已安排重启
	RestartAlreadyScheduled                       // 之前已经安排过
	RestartCancelled                              // 已取消重启
	RestartNotScheduled                           // 没有可取消的重启
)

// Message 返回面向操作员的提示文本
func (o RestartOutcome) Message() string {
	switch o {
	case RestartScheduled:
		return "已安排重启，所有玩家下线后服务器将立即重启。"
	case RestartAlreadyScheduled:
		return "已经安排过重启了。"
	case RestartCancelled:
		return "已取消计划中的重启。"
	default:
		return "当前没有计划中的重启。"
	}
}

// SharedState 控制循环与操作员命令共享的状态
//
// 控制台会话、重启标记、消息引用分别由独立的锁保护：
// 切换重启标记不会等待进行中的控制台调用。
type SharedState struct {
	consoleMu sync.Mutex
	session   *Session

	restartMu        sync.Mutex
	restartRequested bool

	refMu sync.Mutex
	ref   *MessageRef
}

// NewSharedState 创建共享状态，ref 为持久化存储中恢复的消息引用，可为nil
func NewSharedState(session *Session, ref *MessageRef) *SharedState {
	s := &SharedState{session: session}
	if ref != nil {
		r := *ref
		s.ref = &r
	}
	return s
}

// Execute 在控制台锁内执行一条命令（包括会话内部的重试）
func (s *SharedState) Execute(ctx context.Context, command string) (string, error) {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	return s.session.Execute(ctx, command)
}

// WithConsole 在一次加锁内连续执行多条命令
func (s *SharedState) WithConsole(fn func(exec Executor)) {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	fn(s.session)
}

// SessionState 返回控制台会话的连接状态
func (s *SharedState) SessionState() SessionState {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	return s.session.State()
}

// Close 断开控制台会话
func (s *SharedState) Close() {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	s.session.Close()
}

// RestartRequested 是否已安排重启
func (s *SharedState) RestartRequested() bool {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()
	return s.restartRequested
}

// SetRestartRequested 直接设置重启标记
func (s *SharedState) SetRestartRequested(requested bool) {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()
	s.restartRequested = requested
}

// ScheduleRestart 安排或取消重启
func (s *SharedState) ScheduleRestart(cancel bool) RestartOutcome {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	switch {
	case cancel && s.restartRequested:
		s.restartRequested = false
		return RestartCancelled
	case cancel:
		return RestartNotScheduled
	case s.restartRequested:
		return RestartAlreadyScheduled
	default:
		s.restartRequested = true
		return RestartScheduled
	}
}

// MessageRef 返回缓存的消息引用
func (s *SharedState) MessageRef() (MessageRef, bool) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if s.ref == nil {
		return MessageRef{}, false
	}
	return *s.ref, true
}

// withMessageRef 在消息引用锁内执行读后写
func (s *SharedState) withMessageRef(fn func(ref *MessageRef) *MessageRef) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.ref = fn(s.ref)
}
