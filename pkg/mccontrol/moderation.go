package mccontrol

import (
	"regexp"
	"strings"
)

// DefaultPlaceholder 违规昵称的默认替换文本
const DefaultPlaceholder = "I MADE BOOL SAD"

// formatTagPattern 昵称插件支持的格式标签，如 <red>、<gradient:#fff:#000>、</c>
var formatTagPattern = regexp.MustCompile(`</?(?:color|c|yellow|dark_blue|dark_purple|gold|red|aqua|gray|light_purple|white|dark_gray|green|dark_green|blue|dark_aqua|black|gradient|gr|rainbow|rb|reset)(?::[^>]*)?>`)

// noise 允许夹在关键字符之间的干扰字符：任何非字母数字
const noise = `[^\p{L}\p{N}]*`

// violationPattern 三个以上反引号、http(s)://链接、discord.gg邀请
var violationPattern = regexp.MustCompile(strings.Join([]string{
	interleave("```"),
	interleave("http") + noise + "s?" + noise + interleave("://"),
	interleave("discord.gg"),
}, "|"))

// interleave 在每个字符之间插入干扰字符类，对抗 d.i.s.c.o.r.d.gg 这类混淆
func interleave(literal string) string {
	parts := make([]string, 0, len(literal))
	for _, r := range literal {
		parts = append(parts, regexp.QuoteMeta(string(r)))
	}
	return strings.Join(parts, noise)
}

// Verdict 单个昵称的审核结果
type Verdict struct {
	Display  string // 用于展示的昵称（已去除格式标签，违规时为占位文本）
	Violator bool   // 是否违规
}

// ModerationFilter 昵称审核
type ModerationFilter struct {
	placeholder string
}

// NewModerationFilter 创建审核器，placeholder 为空时使用默认值
func NewModerationFilter(placeholder string) *ModerationFilter {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &ModerationFilter{placeholder: placeholder}
}

// Placeholder 返回违规昵称的替换文本
func (f *ModerationFilter) Placeholder() string {
	return f.placeholder
}

// StripFormatting 去除昵称中的格式标签
func StripFormatting(nickname string) string {
	return formatTagPattern.ReplaceAllString(nickname, "")
}

// IsViolation 判断去除格式后的文本是否违规
func IsViolation(text string) bool {
	return violationPattern.MatchString(text)
}

// Check 审核昵称
func (f *ModerationFilter) Check(nickname string) Verdict {
	stripped := StripFormatting(nickname)
	if IsViolation(stripped) {
		return Verdict{Display: f.placeholder, Violator: true}
	}
	return Verdict{Display: stripped}
}

// DisplayName 返回玩家在列表中的展示名
// 没有昵称的玩家只显示玩家名，不会被判定违规
func (f *ModerationFilter) DisplayName(entry PlayerEntry) (string, bool) {
	if entry.Nickname == "" {
		return entry.Name, false
	}
	verdict := f.Check(entry.Nickname)
	return entry.Name + " (" + verdict.Display + ")", verdict.Violator
}
