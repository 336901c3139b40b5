package mccontrol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// ParseMode list 响应的语法，每个部署只协商一次
type ParseMode int

const (
	// ModeUnstructured 原版 "list" 命令的纯文本响应
	ModeUnstructured ParseMode = iota

	// ModeStructured 支持 "list json" 的服务器返回的JSON响应
	ModeStructured
)

// Command 返回该语法对应的状态查询命令
func (m ParseMode) Command() string {
	if m == ModeStructured {
		return "list json"
	}
	return "list"
}

func (m ParseMode) String() string {
	if m == ModeStructured {
		return "structured"
	}
	return "unstructured"
}

func (m ParseMode) label() string {
	if m == ModeStructured {
		return "反序列化"
	}
	return "正则匹配"
}

// listPattern 原版 list 命令的响应格式
var listPattern = regexp.MustCompile(`^There are (\d+) of a max of (\d+) players online:(?: ((?:\w+, )*\w+))?$`)

// StatusParser 把 list 响应转换为 ServerStatus
type StatusParser struct {
	mode ParseMode
}

// NewStatusParser 根据服务器能力选择解析策略
func NewStatusParser(mode ParseMode) StatusParser {
	return StatusParser{mode: mode}
}

// Mode 返回当前语法
func (p StatusParser) Mode() ParseMode {
	return p.mode
}

// Command 返回状态查询命令
func (p StatusParser) Command() string {
	return p.mode.Command()
}

// Parse 按当前语法解析响应
func (p StatusParser) Parse(raw string) (ServerStatus, error) {
	var (
		status ServerStatus
		err    error
	)
	if p.mode == ModeStructured {
		status, err = ParseStructured(raw)
	} else {
		status, err = ParseUnstructured(raw)
	}
	if err != nil {
		log.Printf("解析list响应失败: %v. 服务器响应: %s", err, raw)
	}
	return status, err
}

// QueryStatus 执行状态查询
//
// 只有传输错误才视为服务器离线；认证失败等协议错误和解析错误原样返回，
// 以免把"收到了无法理解的响应"误报为"服务器离线"。
func QueryStatus(ctx context.Context, exec Executor, parser StatusParser) (ServerStatus, error) {
	response, err := exec.Execute(ctx, parser.Command())
	if err != nil {
		if errors.Is(err, ErrTransport) {
			return OfflineStatus(), nil
		}
		return ServerStatus{}, err
	}
	return parser.Parse(response)
}

// listPayload "list json" 的响应结构
type listPayload struct {
	CurrentPlayers *int           `json:"current_players"`
	MaxPlayers     *int           `json:"max_players"`
	List           *[]PlayerEntry `json:"list"`
	TPS            []float64      `json:"tps"`
}

// ParseStructured 解析 "list json" 的响应
func ParseStructured(raw string) (ServerStatus, error) {
	fail := func(err error) (ServerStatus, error) {
		return ServerStatus{}, &ParseError{Mode: ModeStructured, Raw: raw, Err: err}
	}

	var payload listPayload
	if err := sonic.UnmarshalString(strings.TrimSpace(raw), &payload); err != nil {
		return fail(err)
	}

	switch {
	case payload.CurrentPlayers == nil:
		return fail(errors.New("缺少字段 current_players"))
	case payload.MaxPlayers == nil:
		return fail(errors.New("缺少字段 max_players"))
	case payload.List == nil:
		return fail(errors.New("缺少字段 list"))
	case *payload.CurrentPlayers < 0 || *payload.MaxPlayers < 0:
		return fail(errors.New("玩家数量不能为负数"))
	}

	for i, entry := range *payload.List {
		if entry.Name == "" {
			return fail(fmt.Errorf("list[%d] 缺少字段 name", i))
		}
	}

	status := OnlineStatus{
		CurrentPlayers: *payload.CurrentPlayers,
		MaxPlayers:     *payload.MaxPlayers,
		List:           *payload.List,
	}

	if payload.TPS != nil {
		if len(payload.TPS) != len(TPSSample{}) {
			return fail(fmt.Errorf("tps 应包含 %d 个元素，实际为 %d 个", len(TPSSample{}), len(payload.TPS)))
		}
		var tps TPSSample
		copy(tps[:], payload.TPS)
		status.TPS = &tps
	}

	return NewOnlineStatus(status), nil
}

// ParseUnstructured 解析原版 "list" 的响应
// 玩家名按字典序排序，该模式下没有昵称和UUID
func ParseUnstructured(raw string) (ServerStatus, error) {
	fail := func(err error) (ServerStatus, error) {
		return ServerStatus{}, &ParseError{Mode: ModeUnstructured, Raw: raw, Err: err}
	}

	matches := listPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if matches == nil {
		return fail(errors.New("响应与list格式不匹配"))
	}

	current, err := strconv.Atoi(matches[1])
	if err != nil {
		return fail(fmt.Errorf("在线玩家数无效: %w", err))
	}
	maxPlayers, err := strconv.Atoi(matches[2])
	if err != nil {
		return fail(fmt.Errorf("最大玩家数无效: %w", err))
	}

	var names []string
	if matches[3] != "" {
		names = strings.Split(matches[3], ", ")
		sort.Strings(names)
	}

	list := make([]PlayerEntry, 0, len(names))
	for _, name := range names {
		list = append(list, PlayerEntry{Name: name})
	}

	return NewOnlineStatus(OnlineStatus{
		CurrentPlayers: current,
		MaxPlayers:     maxPlayers,
		List:           list,
	}), nil
}
