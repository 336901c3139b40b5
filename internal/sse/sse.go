package sse

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"city.newnan/mc-console/internal/middleware"
)

// 事件名称
const (
	EventConnected = "connected" // 连接建立
	EventBoard     = "board"     // 状态消息更新
	EventCrash     = "crash"     // 新的崩溃报告
)

// TopicCrash 崩溃报告主题
const TopicCrash = "crash"

// Client SSE客户端
type Client struct {
	ID         string
	Channel    chan []byte
	OperatorID uint
	Username   string
	RoleName   string
	Topic      string
	CreatedAt  time.Time
}

// Broker 管理所有SSE连接
type Broker struct {
	// 客户端映射表
	clients map[string]*Client
	// 按主题分组的客户端
	topics map[string]map[string]*Client
	// 新客户端通道
	newClients chan *Client
	// 关闭客户端通道
	closingClients chan string
	// 消息通道
	messages chan *Message
	// 互斥锁
	mutex sync.RWMutex
}

// Message SSE消息结构
type Message struct {
	Topic string      `json:"topic"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	ID    string      `json:"id,omitempty"`
	Retry int         `json:"retry,omitempty"`
}

// 全局SSE代理
var GlobalBroker = NewBroker()

// NewBroker 创建新的SSE代理
func NewBroker() *Broker {
	return &Broker{
		clients:        make(map[string]*Client),
		topics:         make(map[string]map[string]*Client),
		newClients:     make(chan *Client),
		closingClients: make(chan string),
		messages:       make(chan *Message, 64),
	}
}

// Start 启动SSE代理，ctx 结束时断开所有客户端
func (b *Broker) Start(ctx context.Context) {
	go b.listen(ctx)
}

// listen 监听SSE事件
func (b *Broker) listen(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mutex.Lock()
			for id := range b.clients {
				b.removeClient(id)
			}
			b.mutex.Unlock()
			return

		case client := <-b.newClients:
			b.mutex.Lock()
			b.clients[client.ID] = client
			if client.Topic != "" {
				if _, ok := b.topics[client.Topic]; !ok {
					b.topics[client.Topic] = make(map[string]*Client)
				}
				b.topics[client.Topic][client.ID] = client
			}
			b.mutex.Unlock()

			log.Printf("SSE客户端已连接: ID=%s, 用户=%s, 主题=%s", client.ID, client.Username, client.Topic)

		case clientID := <-b.closingClients:
			b.mutex.Lock()
			b.removeClient(clientID)
			b.mutex.Unlock()

		case message := <-b.messages:
			data, err := formatMessage(message)
			if err != nil {
				log.Printf("编码SSE消息失败: %v", err)
				continue
			}

			b.mutex.Lock()
			targets := b.clients
			if message.Topic != "" {
				targets = b.topics[message.Topic]
			}
			var slow []string
			for id, client := range targets {
				select {
				case client.Channel <- data:
				default:
					// 客户端消费过慢
					slow = append(slow, id)
				}
			}
			for _, id := range slow {
				b.removeClient(id)
			}
			b.mutex.Unlock()
		}
	}
}

// removeClient 移除客户端并关闭其通道，调用方需持有写锁
func (b *Broker) removeClient(clientID string) {
	client, ok := b.clients[clientID]
	if !ok {
		return
	}
	if client.Topic != "" {
		if topicClients, ok := b.topics[client.Topic]; ok {
			delete(topicClients, client.ID)
			if len(topicClients) == 0 {
				delete(b.topics, client.Topic)
			}
		}
	}
	close(client.Channel)
	delete(b.clients, clientID)

	log.Printf("SSE客户端已断开连接: ID=%s, 用户=%s, 主题=%s", client.ID, client.Username, client.Topic)
}

// formatMessage 按SSE协议格式化消息
func formatMessage(message *Message) ([]byte, error) {
	var b strings.Builder
	if message.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", message.Event)
	}
	if message.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", message.ID)
	}
	if message.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", message.Retry)
	}

	dataJSON, err := sonic.Marshal(message.Data)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&b, "data: %s\n\n", dataJSON)
	return []byte(b.String()), nil
}

// ServeTopic 处理订阅指定主题的SSE连接
func (b *Broker) ServeTopic(c *gin.Context, topic string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // Nginx特定头部，禁用代理缓冲

	clientID := uuid.New().String()
	client := &Client{
		ID:         clientID,
		Channel:    make(chan []byte, 256),
		OperatorID: middleware.GetCurrentOperatorID(c),
		Username:   middleware.GetCurrentUsername(c),
		RoleName:   middleware.GetCurrentRoleName(c),
		Topic:      topic,
		CreatedAt:  time.Now(),
	}

	// 注册前先放入连接成功的消息
	if hello, err := formatMessage(&Message{
		Event: EventConnected,
		Data: map[string]interface{}{
			"client_id": clientID,
			"topic":     topic,
			"message":   "已建立SSE连接",
			"time":      time.Now().Format(time.RFC3339),
		},
	}); err == nil {
		client.Channel <- hello
	}

	ctx := c.Request.Context()
	select {
	case b.newClients <- client:
	case <-ctx.Done():
		return
	}
	defer func() {
		select {
		case b.closingClients <- clientID:
		case <-time.After(time.Second):
		}
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-client.Channel:
			if !ok {
				return false
			}
			_, _ = w.Write(msg)
			return true
		}
	})
}

// ServeHTTP 处理SSE HTTP连接，主题来自查询参数
func (b *Broker) ServeHTTP(c *gin.Context) {
	b.ServeTopic(c, c.Query("topic"))
}

// Publish 发布消息到所有客户端或特定主题
// 消息队列已满时丢弃该消息，不阻塞发布方
func (b *Broker) Publish(message *Message) bool {
	select {
	case b.messages <- message:
		return true
	default:
		log.Printf("SSE消息队列已满，丢弃消息: 主题=%s, 事件=%s", message.Topic, message.Event)
		return false
	}
}

// GetClientCount 获取连接的客户端总数
func (b *Broker) GetClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// GetTopicClientCount 获取特定主题的客户端数
func (b *Broker) GetTopicClientCount(topic string) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if topicClients, ok := b.topics[topic]; ok {
		return len(topicClients)
	}
	return 0
}

// HandleSSE 处理SSE请求
func HandleSSE(c *gin.Context) {
	GlobalBroker.ServeHTTP(c)
}
