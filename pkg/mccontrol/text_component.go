package mccontrol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const ansiReset = "\x1b[m"

// namedColors Minecraft 命名颜色对应的RGB值
var namedColors = map[string]string{
	"black":        "#000000",
	"dark_blue":    "#0000AA",
	"dark_green":   "#00AA00",
	"dark_aqua":    "#00AAAA",
	"dark_red":     "#AA0000",
	"dark_purple":  "#AA00AA",
	"gold":         "#FFAA00",
	"gray":         "#AAAAAA",
	"dark_gray":    "#555555",
	"blue":         "#5555FF",
	"green":        "#55FF55",
	"aqua":         "#55FFFF",
	"red":          "#FF5555",
	"light_purple": "#FF55FF",
	"yellow":       "#FFFF55",
	"white":        "#FFFFFF",
}

// TextComponent Minecraft 聊天组件（富文本）
type TextComponent struct {
	Text  string          `json:"text"`            // 文本内容
	Color string          `json:"color,omitempty"` // 颜色，命名颜色或 #RRGGBB
	Extra []TextComponent `json:"extra,omitempty"` // 子组件，继承父组件的颜色
}

// UnmarshalJSON 组件可以是字符串、数组或对象
// 数组的第一个元素是父组件，其余元素是它的子组件
func (c *TextComponent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("空的聊天组件")
	}

	switch data[0] {
	case '"':
		var text string
		if err := sonic.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = TextComponent{Text: text}
		return nil
	case '[':
		var parts []TextComponent
		if err := sonic.Unmarshal(data, &parts); err != nil {
			return err
		}
		if len(parts) == 0 {
			*c = TextComponent{}
			return nil
		}
		root := parts[0]
		root.Extra = append(root.Extra, parts[1:]...)
		*c = root
		return nil
	default:
		type plain TextComponent
		var p plain
		if err := sonic.Unmarshal(data, &p); err != nil {
			return err
		}
		*c = TextComponent(p)
		return nil
	}
}

// PlainText 返回去掉格式的纯文本
func (c TextComponent) PlainText() string {
	var b strings.Builder
	c.writePlain(&b)
	return b.String()
}

func (c TextComponent) writePlain(b *strings.Builder) {
	b.WriteString(c.Text)
	for _, extra := range c.Extra {
		extra.writePlain(b)
	}
}

// ANSI 使用24位颜色转义序列渲染组件，用于终端显示
func (c TextComponent) ANSI() string {
	var b strings.Builder
	current := ""
	c.writeANSI(&b, "", &current)
	if current != "" {
		b.WriteString(ansiReset)
	}
	return b.String()
}

func (c TextComponent) writeANSI(b *strings.Builder, inherited string, current *string) {
	color := c.Color
	if color == "" {
		color = inherited
	}

	if c.Text != "" && color != *current {
		if code, ok := ansiColor(color); ok {
			b.WriteString(code)
			*current = color
		} else if *current != "" {
			b.WriteString(ansiReset)
			*current = ""
		}
	}
	b.WriteString(c.Text)

	for _, extra := range c.Extra {
		extra.writeANSI(b, color, current)
	}
}

// ansiColor 把颜色转换为ANSI前景色序列
func ansiColor(color string) (string, bool) {
	if hex, ok := namedColors[color]; ok {
		color = hex
	}
	if len(color) != 7 || color[0] != '#' {
		return "", false
	}
	rgb, err := strconv.ParseUint(color[1:], 16, 32)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", rgb>>16&0xFF, rgb>>8&0xFF, rgb&0xFF), true
}
