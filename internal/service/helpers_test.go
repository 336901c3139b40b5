package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"city.newnan/mc-console/internal/config"
	"city.newnan/mc-console/internal/db"
	"city.newnan/mc-console/internal/middleware"
	"city.newnan/mc-console/internal/sse"
	"city.newnan/mc-console/internal/websocket"
	"city.newnan/mc-console/pkg/mccontrol"
)

// setupTestDB 每个测试使用独立的内存数据库
func setupTestDB(t *testing.T) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db.DB = conn
	require.NoError(t, db.Migrate())

	t.Cleanup(func() {
		sqlDB.Close()
		db.DB = nil
	})
}

// setupRoles 初始化权限系统与内置角色
func setupRoles(t *testing.T) {
	t.Helper()
	require.NoError(t, middleware.InitCasbin(""))
	require.NoError(t, NewRoleService().SetupInitialRoles())
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test-secret",
		JWTIssuer:     "mcconsole-test",
		JWTExpireTime: time.Hour,
	}
}

// fakeConn 按命令返回预设响应的RCON连接
type fakeConn struct {
	console *fakeConsole
}

func (c *fakeConn) Connect() error {
	if c.console.isDown() {
		return errors.New("connection refused")
	}
	return nil
}

func (c *fakeConn) Authenticate(password string) (bool, error) {
	return password == c.console.password, nil
}

func (c *fakeConn) Command(cmd string) (string, error) {
	return c.console.handle(cmd)
}

func (c *fakeConn) Close() {}

// fakeConsole 模拟的服务器控制台
type fakeConsole struct {
	mu        sync.Mutex
	password  string
	down      bool
	responses map[string]string
	commands  []string
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{
		password:  "secret",
		responses: map[string]string{},
	}
}

func (f *fakeConsole) isDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.down
}

func (f *fakeConsole) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeConsole) handle(cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return "", errors.New("broken pipe")
	}
	f.commands = append(f.commands, cmd)
	if resp, ok := f.responses[cmd]; ok {
		return resp, nil
	}
	return "Unknown command: " + strings.Fields(cmd)[0], nil
}

func (f *fakeConsole) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// newState 创建连接到 fakeConsole 的共享状态
func (f *fakeConsole) newState(password string) *mccontrol.SharedState {
	session := mccontrol.NewSession(mccontrol.SessionConfig{
		Address:  mccontrol.StaticAddress("127.0.0.1:25575"),
		Password: password,
		Dialer: func(string, int) mccontrol.Conn {
			return &fakeConn{console: f}
		},
	})
	return mccontrol.NewSharedState(session, nil)
}

// recordingPublisher 记录SSE推送
type recordingPublisher struct {
	mu       sync.Mutex
	messages []*sse.Message
}

func (p *recordingPublisher) Publish(message *sse.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return true
}

func (p *recordingPublisher) all() []*sse.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*sse.Message(nil), p.messages...)
}

// recordingRooms 记录WebSocket推送
type recordingRooms struct {
	mu       sync.Mutex
	messages []*websocket.BroadcastMessage
}

func (r *recordingRooms) Broadcast(message *websocket.BroadcastMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// executorFunc 将函数适配为 mccontrol.Executor
type executorFunc func(ctx context.Context, command string) (string, error)

func (f executorFunc) Execute(ctx context.Context, command string) (string, error) {
	return f(ctx, command)
}

// testCount 统计表中的行数
func testCount(value interface{}, count *int64) error {
	return db.DB.Model(value).Count(count).Error
}
