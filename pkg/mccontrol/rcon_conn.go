package mccontrol

import (
	"sync/atomic"
	"time"

	"github.com/xrjr/mcutils/pkg/rcon"
)

// Conn 单条RCON连接
// Close 必须幂等，并且可以与进行中的调用并发执行，用于超时时打断阻塞的读写
type Conn interface {
	Connect() error
	Authenticate(password string) (bool, error)
	Command(cmd string) (string, error)
	Close()
}

// Dialer 创建一条尚未连接的RCON连接
type Dialer func(host string, port int) Conn

// rconConn 基于 mcutils 的RCON连接实现
type rconConn struct {
	client    *rcon.RCONClient // RCON客户端
	connected atomic.Bool      // 底层TCP连接是否已建立
}

// DialRcon 使用 mcutils 默认超时的 Dialer
func DialRcon(host string, port int) Conn {
	return &rconConn{client: rcon.NewClient(host, port)}
}

// NewRconDialer 返回拨号与读取超时均为 timeout 的 Dialer，timeout 为0时使用 mcutils 默认值
// 连接阶段无法通过 Close 打断，只能依赖 mcutils 自身的超时
func NewRconDialer(timeout time.Duration) Dialer {
	return func(host string, port int) Conn {
		client := rcon.NewClient(host, port)
		if timeout > 0 {
			client.DialTimeout = timeout
			client.ReadTimeout = timeout
		}
		return &rconConn{client: client}
	}
}

func (c *rconConn) Connect() error {
	if err := c.client.Connect(); err != nil {
		return err
	}
	c.connected.Store(true)
	return nil
}

func (c *rconConn) Authenticate(password string) (bool, error) {
	return c.client.Authenticate(password)
}

func (c *rconConn) Command(cmd string) (string, error) {
	return c.client.Command(cmd)
}

// Close 未建立连接时 mcutils 客户端没有底层连接，不能调用 Disconnect
func (c *rconConn) Close() {
	if c.connected.Swap(false) {
		c.client.Disconnect()
	}
}
