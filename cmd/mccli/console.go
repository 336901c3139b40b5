package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"city.newnan/mc-console/pkg/mccontrol"
)

// minecraftFormatCode Minecraft格式控制符对应的ANSI转义序列
var minecraftFormatCode = map[rune]string{
	// 颜色代码
	'0': "\033[30m",   // 黑色
	'1': "\033[34;1m", // 深蓝色
	'2': "\033[32;1m", // 深绿色
	'3': "\033[36;1m", // 湖蓝色
	'4': "\033[31;1m", // 深红色
	'5': "\033[35;1m", // 紫色
	'6': "\033[33m",   // 金色
	'7': "\033[37m",   // 灰色
	'8': "\033[30;1m", // 深灰色
	'9': "\033[34m",   // 蓝色
	'a': "\033[32m",   // 绿色
	'b': "\033[36m",   // 天蓝色
	'c': "\033[31m",   // 红色
	'd': "\033[35m",   // 粉红色
	'e': "\033[33m",   // 黄色
	'f': "\033[37;1m", // 白色

	// 格式化代码
	'k': "\033[5m", // 随机字符 (闪烁)
	'l': "\033[1m", // 粗体
	'm': "\033[9m", // 删除线
	'n': "\033[4m", // 下划线
	'o': "\033[3m", // 斜体
	'r': "\033[0m", // 重置
}

// formatMinecraft 将服务器响应中的 § 格式控制符转换为ANSI转义序列
// 不启用颜色时直接去掉控制符
func formatMinecraft(text string, enableColor bool) string {
	var b strings.Builder
	runes := []rune(text)
	styled := false

	for i := 0; i < len(runes); i++ {
		if runes[i] == '§' && i+1 < len(runes) {
			code := runes[i+1]
			if code >= 'A' && code <= 'Z' {
				code += 'a' - 'A'
			}
			if ansi, ok := minecraftFormatCode[code]; ok {
				if enableColor {
					b.WriteString(ansi)
					styled = code != 'r'
				}
				i++
				continue
			}
		}
		b.WriteRune(runes[i])
	}

	if styled {
		b.WriteString("\033[0m")
	}
	return b.String()
}

// console 交互式RCON控制台
type console struct {
	state       *mccontrol.SharedState
	parser      mccontrol.StatusParser
	filter      *mccontrol.ModerationFilter
	enableColor bool

	mu  sync.Mutex // 保护输出
	out io.Writer
}

func newConsole(state *mccontrol.SharedState, options cliOptions) *console {
	mode := mccontrol.ModeUnstructured
	if options.listJSON {
		mode = mccontrol.ModeStructured
	}
	return &console{
		state:       state,
		parser:      mccontrol.NewStatusParser(mode),
		filter:      mccontrol.NewModerationFilter(options.placeholder),
		enableColor: options.enableColor,
		out:         os.Stdout,
	}
}

func (c *console) printLog(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func (c *console) printInfo(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	infoColor.Fprintln(c.out, message)
}

func (c *console) printError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	errorColor.Fprintln(c.out, message)
}

// execute 发送一条RCON命令并打印响应，返回是否成功
func (c *console) execute(ctx context.Context, command string) bool {
	response, err := c.state.Execute(ctx, command)
	if err != nil {
		c.printError(fmt.Sprintf("执行命令失败: %v", err))
		return false
	}
	if response != "" {
		c.printLog(formatMinecraft(response, c.enableColor))
	}
	return true
}

// printStatus 查询并打印服务器状态
// 结构化模式下使用富文本昵称
func (c *console) printStatus(ctx context.Context) {
	status, err := mccontrol.QueryStatus(ctx, c.state, c.parser)
	if err != nil {
		c.printError(fmt.Sprintf("检查服务器状态失败: %v", err))
		return
	}
	online, ok := status.Online()
	if !ok {
		c.printError(mccontrol.OfflineText)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	successColor.Fprintf(c.out, "服务器在线! 玩家: %d/%d\n", online.CurrentPlayers, online.MaxPlayers)
	for _, entry := range online.List {
		fmt.Fprintf(c.out, "  %s\n", c.playerLine(entry))
	}
	if tps := online.TPS; tps != nil {
		fmt.Fprintf(c.out, "TPS: %.2f (5s) %.2f (1m) %.2f (15m)\n", tps[0], tps[2], tps[4])
	}
}

// playerLine 违规昵称显示替换文本，其余昵称尽量保留颜色
func (c *console) playerLine(entry mccontrol.PlayerEntry) string {
	display, violator := c.filter.DisplayName(entry)
	switch {
	case violator:
		display = errorColor.Sprint(display)
	case entry.NicknameStyled != nil && c.enableColor:
		display = entry.Name + " (" + entry.NicknameStyled.ANSI() + ")"
	}
	if entry.UUID != nil && *entry.UUID != uuid.Nil {
		display += " " + entry.UUID.String()
	}
	return display
}

// startWatch 在后台运行状态轮询，每次更新打印到终端
// 昵称违规的玩家会被改名并踢出，计划的重启也会在服务器空闲时执行
func (c *console) startWatch(ctx context.Context, interval time.Duration) {
	loop := mccontrol.NewControlLoop(c.state, &terminalRenderer{console: c}, nil, mccontrol.LoopConfig{
		ChannelID: "terminal",
		Interval:  interval,
		Parser:    c.parser,
		Filter:    c.filter,
	})
	go loop.Run(ctx)
}

// terminalRenderer 把状态消息打印到终端
type terminalRenderer struct {
	console *console
}

func (r *terminalRenderer) Render(_ context.Context, req mccontrol.RenderRequest) (string, error) {
	r.console.printInfo("---- 服务器状态 ----\n" + req.Text)
	if req.MessageID != "" {
		return req.MessageID, nil
	}
	return uuid.NewString(), nil
}

// repl 逐行读取输入，以 /local 开头的是本地命令，其余作为RCON命令发送
func (c *console) repl(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		c.prompt()
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			command := strings.TrimSpace(line)
			if command == "" {
				continue
			}
			if strings.HasPrefix(command, "/local") {
				if !c.handleLocalCommand(ctx, strings.TrimSpace(strings.TrimPrefix(command, "/local"))) {
					return
				}
				continue
			}
			c.execute(ctx, strings.TrimPrefix(command, "/"))
		}
	}
}

func (c *console) prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	promptColor.Fprint(c.out, "> ")
}

// handleLocalCommand 处理本地CLI命令，返回false表示退出
func (c *console) handleLocalCommand(ctx context.Context, command string) bool {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		parts = []string{"help"}
	}

	switch parts[0] {
	case "status":
		c.printStatus(ctx)

	case "restart":
		// /local restart cancel 取消已安排的重启
		cancel := len(parts) > 1 && parts[1] == "cancel"
		c.printInfo(c.state.ScheduleRestart(cancel).Message())

	case "session":
		c.printInfo(fmt.Sprintf("RCON会话状态: %s", c.state.SessionState()))

	case "help":
		c.printLog("可用的本地命令:")
		c.printLog("  /local status          - 显示服务器状态和在线玩家")
		c.printLog("  /local restart [cancel] - 在服务器空闲时重启（需要 --watch）")
		c.printLog("  /local session         - 显示RCON会话状态")
		c.printLog("  /local help            - 显示此帮助信息")
		c.printLog("  /local exit            - 退出程序")
		c.printLog("")
		c.printLog("所有其他输入将作为RCON命令发送到Minecraft服务器")

	case "exit", "quit":
		return false

	default:
		c.printError(fmt.Sprintf("未知的本地命令: %s", parts[0]))
		c.printLog("输入 '/local help' 获取可用命令列表")
	}
	return true
}
