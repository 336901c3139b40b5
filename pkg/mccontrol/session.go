package mccontrol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"
)

const (
	// MaxCommandLength 单条RCON命令允许的最大字节数
	MaxCommandLength = 1413

	// DefaultRconPort 地址中未指定端口时使用的RCON端口
	DefaultRconPort = 25575
)

// SessionState 会话连接状态
type SessionState int

const (
	StateDisconnected SessionState = iota // 未连接
	StateConnecting                       // 正在连接并认证
	StateConnected                        // 已连接且已认证
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// AddressResolver 解析RCON服务器地址
// refresh 为true时表示上一次连接出现传输错误，应当忽略缓存
type AddressResolver interface {
	Resolve(ctx context.Context, refresh bool) (string, error)
}

// StaticAddress 固定的 host:port 地址
type StaticAddress string

// Resolve 直接返回地址本身
func (a StaticAddress) Resolve(context.Context, bool) (string, error) {
	return string(a), nil
}

// SessionConfig 会话配置
type SessionConfig struct {
	Address  AddressResolver // 服务器地址
	Password string          // RCON密码
	Dialer   Dialer          // 连接工厂，为nil时使用 NewRconDialer(Timeout)
	Timeout  time.Duration   // 单次调用超时，0表示不限制
}

// Session 持有唯一的一条RCON连接
//
// Session 本身不是并发安全的，调用方需要保证同一时刻只有一个调用，
// 通常通过 SharedState 的控制台锁来实现。
type Session struct {
	resolver AddressResolver
	password string
	dial     Dialer
	timeout  time.Duration

	conn        Conn         // 当前连接，仅在 StateConnected 时非nil
	state       SessionState // 连接状态
	refreshAddr bool         // 下次连接时是否强制刷新地址
}

// NewSession 创建一个尚未连接的会话，连接在第一次执行命令时建立
func NewSession(cfg SessionConfig) *Session {
	dial := cfg.Dialer
	if dial == nil {
		dial = NewRconDialer(cfg.Timeout)
	}
	return &Session{
		resolver: cfg.Address,
		password: cfg.Password,
		dial:     dial,
		timeout:  cfg.Timeout,
		state:    StateDisconnected,
	}
}

// State 返回当前连接状态
func (s *Session) State() SessionState {
	return s.state
}

// Execute 执行一条控制台命令并原样返回响应
//
// 传输错误时丢弃旧连接，重新连接后重试一次；
// 认证失败和命令过长属于协议错误，不重试。
func (s *Session) Execute(ctx context.Context, command string) (string, error) {
	if len(command) > MaxCommandLength {
		return "", &SessionError{
			Kind: KindCommandTooLong,
			Err:  fmt.Errorf("%d 字节，上限 %d 字节", len(command), MaxCommandLength),
		}
	}

	response, err := s.attempt(ctx, command)
	if err == nil || !retryable(err) || ctx.Err() != nil {
		return response, err
	}

	log.Printf("RCON连接中断，正在重新连接并重试命令: %v", err)
	return s.attempt(ctx, command)
}

// Close 断开连接，下次执行命令时会重新连接
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.state = StateDisconnected
}

// retryable 只有传输错误需要重连重试
func retryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// attempt 在必要时建立连接，然后发送一次命令
func (s *Session) attempt(ctx context.Context, command string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.state != StateConnected || s.conn == nil {
		if err := s.connect(ctx); err != nil {
			return "", err
		}
	}

	var response string
	err := guard(ctx, s.conn, func(c Conn) error {
		var err error
		response, err = c.Command(command)
		return err
	})
	if err != nil {
		s.drop()
		return "", &SessionError{Kind: KindTransport, Err: err}
	}

	return response, nil
}

// connect Disconnected -> Connecting -> Connected
func (s *Session) connect(ctx context.Context) error {
	s.state = StateConnecting

	addr, err := s.resolver.Resolve(ctx, s.refreshAddr)
	if err != nil {
		s.state = StateDisconnected
		return &SessionError{Kind: KindTransport, Err: fmt.Errorf("解析RCON地址失败: %w", err)}
	}
	host, port := splitHostPort(addr)

	conn := s.dial(host, port)
	if err := guard(ctx, conn, func(c Conn) error { return c.Connect() }); err != nil {
		conn.Close()
		s.state = StateDisconnected
		s.refreshAddr = true
		return &SessionError{Kind: KindTransport, Err: fmt.Errorf("连接RCON失败: %w", err)}
	}

	var ok bool
	err = guard(ctx, conn, func(c Conn) error {
		var err error
		ok, err = c.Authenticate(s.password)
		return err
	})
	if err != nil {
		conn.Close()
		s.state = StateDisconnected
		s.refreshAddr = true
		return &SessionError{Kind: KindTransport, Err: fmt.Errorf("RCON认证错误: %w", err)}
	}
	if !ok {
		// 认证失败的连接不保留，保持 Disconnected 以免状态不一致
		conn.Close()
		s.state = StateDisconnected
		return &SessionError{Kind: KindAuth}
	}

	s.conn = conn
	s.state = StateConnected
	s.refreshAddr = false
	log.Printf("已连接到RCON服务器: %s", addr)
	return nil
}

// drop 传输错误后丢弃连接
func (s *Session) drop() {
	s.Close()
	s.refreshAddr = true
}

// guard 在独立的goroutine中执行阻塞调用
// ctx 结束时关闭连接以打断调用，并等待调用返回
func guard(ctx context.Context, conn Conn, fn func(Conn) error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn(conn)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		conn.Close()
		<-done
		return fmt.Errorf("RCON调用超时: %w", ctx.Err())
	}
}

// splitHostPort 拆分 host:port，缺少端口时使用默认RCON端口
func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, DefaultRconPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, DefaultRconPort
	}
	return host, port
}
