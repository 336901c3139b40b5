package mccontrol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// 控制循环的默认参数
const (
	DefaultInterval        = 5 * time.Second
	DefaultRenameCommand   = "styled-nicknames set {name} {placeholder}"
	DefaultKickCommand     = "kick {name} {reason}"
	DefaultKickReason      = "nice try"
	DefaultShutdownCommand = "stop"

	// OfflineText 服务器离线时渲染的文本
	OfflineText = "服务器离线。"

	timestampLayout = "2006-01-02 15:04:05"
)

// LoopConfig 控制循环配置
type LoopConfig struct {
	ChannelID string            // 状态消息所在频道
	Interval  time.Duration     // 轮询间隔
	Parser    StatusParser      // list 响应解析策略
	Filter    *ModerationFilter // 昵称审核

	// 命令模板，支持 {name}、{placeholder}、{reason} 占位符
	RenameCommand   string
	KickCommand     string
	KickReason      string
	ShutdownCommand string

	Now func() time.Time // 时间来源，测试时可替换
}

// ControlLoop 定期查询服务器状态、渲染状态消息、执行昵称审核和计划重启
//
// 每个tick互相独立，任何错误都渲染为文本，不会终止循环。
type ControlLoop struct {
	state    *SharedState
	renderer Renderer
	store    MessageRefStore
	cfg      LoopConfig
}

// NewControlLoop 创建控制循环，store 可为nil（不持久化消息引用）
func NewControlLoop(state *SharedState, renderer Renderer, store MessageRefStore, cfg LoopConfig) *ControlLoop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Filter == nil {
		cfg.Filter = NewModerationFilter("")
	}
	if cfg.RenameCommand == "" {
		cfg.RenameCommand = DefaultRenameCommand
	}
	if cfg.KickCommand == "" {
		cfg.KickCommand = DefaultKickCommand
	}
	if cfg.KickReason == "" {
		cfg.KickReason = DefaultKickReason
	}
	if cfg.ShutdownCommand == "" {
		cfg.ShutdownCommand = DefaultShutdownCommand
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &ControlLoop{
		state:    state,
		renderer: renderer,
		store:    store,
		cfg:      cfg,
	}
}

// RestoreMessageRef 从持久化存储恢复消息引用
// 频道与当前配置不一致时丢弃
func RestoreMessageRef(ctx context.Context, store MessageRefStore, channelID string) *MessageRef {
	if store == nil {
		return nil
	}
	ref, err := store.LoadMessageRef(ctx)
	if err != nil {
		log.Printf("读取消息引用失败: %v", err)
		return nil
	}
	if ref == nil || ref.ChannelID != channelID {
		return nil
	}
	return ref
}

// Run 立即执行一次，然后按固定间隔执行，直到 ctx 结束
func (l *ControlLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	log.Printf("状态轮询已启动，间隔: %v，查询命令: %s", l.cfg.Interval, l.cfg.Parser.Command())

	for {
		l.Tick(ctx)

		select {
		case <-ctx.Done():
			log.Println("状态轮询已停止")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick 执行一次轮询，返回发布的文本
func (l *ControlLoop) Tick(ctx context.Context) string {
	status, err := QueryStatus(ctx, l.state, l.cfg.Parser)
	if ctx.Err() != nil {
		return ""
	}

	var text string
	switch {
	case err != nil:
		text = err.Error()

	case !status.IsOnline():
		text = OfflineText
		// 服务器离线后，之前安排的重启已经没有意义
		l.state.SetRestartRequested(false)

	default:
		online, _ := status.Online()

		var violators []string
		text, violators = RenderOnline(online, l.cfg.Filter)
		l.enforce(ctx, violators)

		if online.CurrentPlayers == 0 && l.state.RestartRequested() {
			log.Println("已安排重启且当前没有在线玩家，正在关闭服务器")
			if _, err := l.state.Execute(ctx, l.cfg.ShutdownCommand); err != nil {
				log.Printf("发送关闭命令失败: %v", err)
			}
		}
	}

	text = fmt.Sprintf("%s\n\n最后更新: %s", text, l.cfg.Now().Format(timestampLayout))
	l.publish(ctx, text)
	return text
}

// RenderOnline 渲染在线状态，返回文本和违规玩家名
func RenderOnline(status OnlineStatus, filter *ModerationFilter) (string, []string) {
	var violators []string
	players := make([]string, 0, len(status.List))
	for _, entry := range status.List {
		display, violator := filter.DisplayName(entry)
		if violator {
			violators = append(violators, entry.Name)
		}
		players = append(players, display)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "服务器在线，当前在线玩家 %d/%d", status.CurrentPlayers, status.MaxPlayers)
	if status.CurrentPlayers > 0 {
		fmt.Fprintf(&b, ": ```\n%s```", strings.Join(players, "\n"))
	} else {
		b.WriteString("。\n")
	}

	if tps := status.TPS; tps != nil {
		fmt.Fprintf(&b, "\nTPS信息: ```\n5s    10s   1m    5m    15m  \n%5.2f %5.2f %5.2f %5.2f %5.2f```",
			tps[0], tps[1], tps[2], tps[3], tps[4])
	}

	return b.String(), violators
}

// enforce 对违规玩家改名并踢出，尽力而为，失败只记录日志
func (l *ControlLoop) enforce(ctx context.Context, violators []string) {
	if len(violators) == 0 {
		return
	}

	l.state.WithConsole(func(exec Executor) {
		for _, name := range violators {
			log.Printf("玩家 %s 的昵称违规，正在处理", name)
			for _, tmpl := range []string{l.cfg.RenameCommand, l.cfg.KickCommand} {
				if _, err := exec.Execute(ctx, l.command(tmpl, name)); err != nil {
					log.Printf("处理违规玩家 %s 失败: %v", name, err)
				}
			}
		}
	})
}

func (l *ControlLoop) command(tmpl, name string) string {
	return strings.NewReplacer(
		"{name}", name,
		"{placeholder}", l.cfg.Filter.Placeholder(),
		"{reason}", l.cfg.KickReason,
	).Replace(tmpl)
}

// publish 编辑已缓存的消息，没有缓存时创建新消息并保存引用
//
// 创建消息与保存引用之间进程崩溃会导致下次启动时重复创建消息。
func (l *ControlLoop) publish(ctx context.Context, text string) {
	l.state.withMessageRef(func(ref *MessageRef) *MessageRef {
		if ref != nil {
			_, err := l.renderer.Render(ctx, RenderRequest{
				ChannelID: ref.ChannelID,
				MessageID: ref.MessageID,
				Text:      text,
			})
			if err == nil {
				return ref
			}
			if !errors.Is(err, ErrMessageNotFound) {
				log.Printf("编辑状态消息失败: %v", err)
				return ref
			}
			log.Printf("状态消息 %s 已不存在，重新创建", ref.MessageID)
		}

		id, err := l.renderer.Render(ctx, RenderRequest{ChannelID: l.cfg.ChannelID, Text: text})
		if err != nil {
			log.Printf("发送状态消息失败: %v", err)
			return nil
		}

		created := &MessageRef{ChannelID: l.cfg.ChannelID, MessageID: id}
		if l.store != nil {
			if err := l.store.SaveMessageRef(ctx, *created); err != nil {
				log.Printf("保存消息引用失败: %v", err)
			}
		}
		return created
	})
}
