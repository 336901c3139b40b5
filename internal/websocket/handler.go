package websocket

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"city.newnan/mc-console/internal/middleware"
	"city.newnan/mc-console/internal/model"
)

// MessageType 消息类型
const (
	MessageTypePing     = "ping"     // 心跳消息
	MessageTypePong     = "pong"     // 心跳响应
	MessageTypeJoin     = "join"     // 加入房间
	MessageTypeLeave    = "leave"    // 离开房间
	MessageTypeBoard    = "board"    // 状态消息更新
	MessageTypeError    = "error"    // 错误
	MessageTypeCommand  = "command"  // 控制台命令
	MessageTypeResponse = "response" // 命令响应
)

// commandTimeout 单条命令的最长执行时间
const commandTimeout = 30 * time.Second

// Message WebSocket消息结构
type Message struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// HandleWebSocket 处理WebSocket连接，连接后加入 room 指定的房间
func HandleWebSocket(c *gin.Context, room string) {
	GlobalManager.Serve(c, room)
}

// Serve 升级连接并注册客户端
func (m *Manager) Serve(c *gin.Context, room string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级WebSocket连接失败: %v", err)
		return
	}

	username := middleware.GetCurrentUsername(c)
	client := &Client{
		ID:         uuid.New().String(),
		Conn:       conn,
		Send:       make(chan []byte, 256),
		OperatorID: middleware.GetCurrentOperatorID(c),
		Username:   username,
		RoleName:   middleware.GetCurrentRoleName(c),
		Room:       room,
		Manager:    m,
		lastPingAt: time.Now(),
	}

	m.Register(client)

	client.trySend(MarshalMessage(MessageTypeJoin, map[string]interface{}{
		"message":  fmt.Sprintf("欢迎 %s!", username),
		"clientID": client.ID,
		"room":     room,
	}))

	go client.writePump()
	go client.readPump()
}

// readPump 从WebSocket连接读取消息
func (c *Client) readPump() {
	defer func() {
		c.Manager.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		c.Conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("读取WebSocket消息错误: %v", err)
			}
			break
		}

		c.Conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
		c.handleMessage(message)
	}
}

// writePump 向WebSocket连接写入消息
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// 通道已关闭
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// 每条消息单独一帧
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(data []byte) {
	c.touch()

	var message Message
	if err := sonic.Unmarshal(data, &message); err != nil {
		log.Printf("解析消息失败: %v", err)
		c.trySend(MarshalMessage(MessageTypeError, "无效的消息格式"))
		return
	}

	switch message.Type {
	case MessageTypePing:
		c.trySend(MarshalMessage(MessageTypePong, nil))

	case MessageTypeJoin:
		content, _ := message.Content.(map[string]interface{})
		roomName, _ := content["room"].(string)
		if roomName == "" {
			c.trySend(MarshalMessage(MessageTypeError, "缺少房间名称"))
			return
		}
		c.Manager.JoinRoom(c, roomName)
		c.trySend(MarshalMessage(MessageTypeJoin, map[string]string{
			"room":    roomName,
			"message": fmt.Sprintf("已加入房间: %s", roomName),
		}))

	case MessageTypeLeave:
		if roomName := c.Manager.LeaveRoom(c); roomName != "" {
			c.trySend(MarshalMessage(MessageTypeLeave, map[string]string{
				"room":    roomName,
				"message": fmt.Sprintf("已离开房间: %s", roomName),
			}))
		}

	case MessageTypeCommand:
		c.handleCommand(message.Content)

	default:
		c.trySend(MarshalMessage(MessageTypeError, "不支持的消息类型"))
	}
}

// handleCommand 执行控制台命令，只有管理员可以执行
func (c *Client) handleCommand(content interface{}) {
	if c.RoleName != model.RoleOp {
		c.trySend(MarshalMessage(MessageTypeError, "权限不足: 你不是管理员"))
		return
	}

	command, _ := content.(string)
	if command == "" {
		c.trySend(MarshalMessage(MessageTypeError, "命令不能为空"))
		return
	}

	handler := c.Manager.getCommandHandler()
	if handler == nil {
		c.trySend(MarshalMessage(MessageTypeError, "当前不支持此操作"))
		return
	}

	// 命令可能等待控制台锁，不阻塞读循环
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		result, err := handler(ctx, c, command)
		if err != nil {
			c.trySend(MarshalMessage(MessageTypeError, err.Error()))
			return
		}
		c.trySend(MarshalMessage(MessageTypeResponse, result))
	}()
}

// MarshalMessage 将消息编码为JSON字符串
func MarshalMessage(msgType string, content interface{}) []byte {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		log.Printf("编码消息失败: %v", err)
		return []byte(`{"type":"error","content":"消息编码失败"}`)
	}
	return data
}
