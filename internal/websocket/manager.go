package websocket

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 设置 websocket 连接的配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由 CORS 中间件负责
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// heartbeatTimeout 超过该时间没有收到任何消息的客户端会被断开
const heartbeatTimeout = 60 * time.Second

// CommandHandler 处理客户端发来的控制台命令
type CommandHandler func(ctx context.Context, client *Client, command string) (interface{}, error)

// Client 表示 WebSocket 客户端
type Client struct {
	ID         string
	Conn       *websocket.Conn
	Send       chan []byte
	OperatorID uint
	Username   string
	RoleName   string
	Room       string
	Manager    *Manager

	mu         sync.Mutex
	lastPingAt time.Time
	closed     bool
}

// touch 更新最后活跃时间
func (c *Client) touch() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

// trySend 非阻塞写入发送通道，客户端已关闭或缓冲区已满时返回false
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// close 关闭发送通道，只执行一次
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.Send)
	return true
}

// Manager 管理 WebSocket 连接，房间对应状态消息频道
type Manager struct {
	// 所有客户端
	clients map[string]*Client
	// 按房间分组的客户端
	rooms map[string]map[string]*Client
	// 互斥锁
	mutex sync.RWMutex
	// 控制台命令处理函数，为nil时不支持命令
	commandHandler CommandHandler
}

// BroadcastMessage 广播消息结构
type BroadcastMessage struct {
	Room    string      `json:"room,omitempty"`
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
	Exclude string      `json:"exclude,omitempty"`
}

// 全局 WebSocket 管理器
var GlobalManager = NewManager()

// NewManager 创建新的管理器
func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// SetCommandHandler 设置控制台命令处理函数
func (m *Manager) SetCommandHandler(handler CommandHandler) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.commandHandler = handler
}

func (m *Manager) getCommandHandler() CommandHandler {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.commandHandler
}

// Start 启动心跳检测，ctx 结束时断开所有客户端
func (m *Manager) Start(ctx context.Context) {
	go func() {
		heartbeatTicker := time.NewTicker(10 * time.Second)
		defer heartbeatTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.closeAll()
				return
			case <-heartbeatTicker.C:
				m.checkHeartbeats()
			}
		}
	}()
}

// Register 注册客户端
func (m *Manager) Register(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.clients[client.ID] = client
	if client.Room != "" {
		m.joinLocked(client, client.Room)
	}
	log.Printf("客户端注册: %s, 用户: %s, 房间: %s", client.ID, client.Username, client.Room)
}

// Unregister 注销客户端，可重复调用
func (m *Manager) Unregister(client *Client) {
	if client == nil {
		return
	}
	m.mutex.Lock()
	m.removeLocked(client)
	m.mutex.Unlock()

	if client.close() {
		log.Printf("客户端注销: %s, 用户: %s, 房间: %s", client.ID, client.Username, client.Room)
	}
}

// JoinRoom 将客户端移到新房间
func (m *Manager) JoinRoom(client *Client, room string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.leaveLocked(client)
	m.joinLocked(client, room)
}

// LeaveRoom 将客户端移出当前房间，返回原房间名
func (m *Manager) LeaveRoom(client *Client) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	room := client.Room
	m.leaveLocked(client)
	return room
}

func (m *Manager) joinLocked(client *Client, room string) {
	client.Room = room
	if _, ok := m.rooms[room]; !ok {
		m.rooms[room] = make(map[string]*Client)
	}
	m.rooms[room][client.ID] = client
}

func (m *Manager) leaveLocked(client *Client) {
	if client.Room == "" {
		return
	}
	if room, ok := m.rooms[client.Room]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(m.rooms, client.Room)
		}
	}
	client.Room = ""
}

func (m *Manager) removeLocked(client *Client) {
	delete(m.clients, client.ID)
	if client.Room != "" {
		if room, ok := m.rooms[client.Room]; ok {
			delete(room, client.ID)
			if len(room) == 0 {
				delete(m.rooms, client.Room)
			}
		}
	}
}

// Broadcast 广播消息，缓冲区已满的客户端会被断开
func (m *Manager) Broadcast(message *BroadcastMessage) {
	data := MarshalMessage(message.Type, message.Content)

	m.mutex.RLock()
	targets := m.clients
	if message.Room != "" {
		targets = m.rooms[message.Room]
	}
	var slow []*Client
	for id, client := range targets {
		if id == message.Exclude {
			continue
		}
		if !client.trySend(data) {
			slow = append(slow, client)
		}
	}
	m.mutex.RUnlock()

	for _, client := range slow {
		m.Unregister(client)
	}
}

// checkHeartbeats 检查所有客户端的心跳
func (m *Manager) checkHeartbeats() {
	timeout := time.Now().Add(-heartbeatTimeout)

	var expired []*Client
	m.mutex.RLock()
	for _, client := range m.clients {
		client.mu.Lock()
		last := client.lastPingAt
		client.mu.Unlock()
		if last.Before(timeout) {
			expired = append(expired, client)
		}
	}
	m.mutex.RUnlock()

	for _, client := range expired {
		log.Printf("客户端 %s 心跳超时，正在断开连接", client.ID)
		m.Unregister(client)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
}

// closeAll 断开所有客户端
func (m *Manager) closeAll() {
	m.mutex.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.mutex.RUnlock()

	for _, client := range clients {
		m.Unregister(client)
	}
}

// GetRoomClients 获取房间中的所有客户端
func (m *Manager) GetRoomClients(room string) []*Client {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var clients []*Client
	if roomClients, ok := m.rooms[room]; ok {
		for _, client := range roomClients {
			clients = append(clients, client)
		}
	}
	return clients
}

// GetClientCount 获取连接的客户端总数
func (m *Manager) GetClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// GetRoomCounts 获取每个房间的客户端数
func (m *Manager) GetRoomCounts() map[string]int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counts := make(map[string]int, len(m.rooms))
	for name, room := range m.rooms {
		counts[name] = len(room)
	}
	return counts
}
