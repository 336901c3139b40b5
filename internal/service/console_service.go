package service

import (
	"context"
	"errors"
	"log"
	"unicode/utf8"

	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/pkg/mccontrol"
)

// 命令输出最多保留的字符数：消息上限2000减去回复外壳 "Success:\n```\n\n```" 的长度
const (
	maxMessageLength = 2000
	replyEnvelope    = "Success:\n```\n\n```"
	MaxOutputLength  = maxMessageLength - len(replyEnvelope)
)

// 面向操作员的控制台错误
var (
	ErrRconAuth       = errors.New("RCON认证失败（请检查配置）")
	ErrCommandTooLong = errors.New("命令过长")
	ErrServerClosed   = errors.New("服务器已关闭")
)

// ConsoleService 操作员控制台
type ConsoleService struct {
	state     *mccontrol.SharedState
	channelID string
}

// NewConsoleService 创建控制台服务
func NewConsoleService(state *mccontrol.SharedState, channelID string) *ConsoleService {
	return &ConsoleService{
		state:     state,
		channelID: channelID,
	}
}

// Run 执行一条控制台命令，过长的输出会被截断
func (s *ConsoleService) Run(ctx context.Context, operator, command string) (*model.CommandResult, error) {
	log.Printf("操作员 %s 执行命令: %s", operator, command)

	output, err := s.state.Execute(ctx, command)
	if err != nil {
		log.Printf("执行命令失败: %v", err)
		return nil, consoleError(err)
	}

	result := &model.CommandResult{Output: output}
	if utf8.RuneCountInString(output) > MaxOutputLength {
		runes := []rune(output)
		result.Output = string(runes[:MaxOutputLength-3]) + "..."
		result.Truncated = true
	}
	return result, nil
}

// consoleError 将会话错误转换为面向操作员的错误
func consoleError(err error) error {
	switch {
	case errors.Is(err, mccontrol.ErrAuth):
		return ErrRconAuth
	case errors.Is(err, mccontrol.ErrCommandTooLong):
		return ErrCommandTooLong
	case errors.Is(err, mccontrol.ErrTransport):
		return ErrServerClosed
	default:
		return err
	}
}

// ScheduleRestart 安排或取消重启
func (s *ConsoleService) ScheduleRestart(operator string, cancel bool) mccontrol.RestartOutcome {
	outcome := s.state.ScheduleRestart(cancel)
	log.Printf("操作员 %s 重启请求(cancel=%t): %s", operator, cancel, outcome.Message())
	return outcome
}

// State 返回控制台当前状态
func (s *ConsoleService) State() model.ConsoleState {
	state := model.ConsoleState{
		Session:          s.state.SessionState().String(),
		RestartRequested: s.state.RestartRequested(),
		ChannelID:        s.channelID,
	}
	if ref, ok := s.state.MessageRef(); ok {
		state.ChannelID = ref.ChannelID
		state.MessageID = ref.MessageID
	}
	return state
}
