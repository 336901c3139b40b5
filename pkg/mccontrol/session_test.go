package mccontrol

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer 模拟一台RCON服务器
// restart 之后，之前建立的连接全部失效
type fakeServer struct {
	mu sync.Mutex

	password    string
	down        bool                    // 服务器不可达
	failCommand int                     // 接下来多少次命令返回传输错误
	hang        bool                    // 命令一直阻塞直到连接被关闭
	respond     func(cmd string) string // 命令响应
	generation  int                     // 每次重启加一
	dials       int                     // 拨号次数
	commands    []string                // 收到的所有命令（包括失败的）
	addrs       []string                // 每次拨号的地址
}

func newFakeServer(password string) *fakeServer {
	return &fakeServer{
		password: password,
		respond: func(cmd string) string {
			return "ok: " + cmd
		},
	}
}

func (s *fakeServer) Dial(host string, port int) Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	s.addrs = append(s.addrs, joinAddr(host, port))
	return &fakeConn{srv: s, closed: make(chan struct{})}
}

func (s *fakeServer) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

func (s *fakeServer) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *fakeServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *fakeServer) count(cmd string) int {
	n := 0
	for _, c := range s.received() {
		if c == cmd {
			n++
		}
	}
	return n
}

type fakeConn struct {
	srv        *fakeServer
	generation int
	closed     chan struct{}
	once       sync.Once
}

var errBrokenPipe = errors.New("broken pipe")

func (c *fakeConn) Connect() error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if c.srv.down {
		return errors.New("connection refused")
	}
	c.generation = c.srv.generation
	return nil
}

func (c *fakeConn) Authenticate(password string) (bool, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return password == c.srv.password, nil
}

func (c *fakeConn) Command(cmd string) (string, error) {
	c.srv.mu.Lock()
	c.srv.commands = append(c.srv.commands, cmd)
	hang := c.srv.hang
	c.srv.mu.Unlock()

	if hang {
		<-c.closed
		return "", errBrokenPipe
	}

	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	select {
	case <-c.closed:
		return "", errBrokenPipe
	default:
	}
	if c.srv.down || c.generation != c.srv.generation {
		return "", errBrokenPipe
	}
	if c.srv.failCommand > 0 {
		c.srv.failCommand--
		return "", errBrokenPipe
	}
	return c.srv.respond(cmd), nil
}

func (c *fakeConn) Close() {
	c.once.Do(func() { close(c.closed) })
}

func joinAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// recordingResolver 记录每次解析时的 refresh 参数
type recordingResolver struct {
	mu        sync.Mutex
	refreshes []bool
}

func (r *recordingResolver) Resolve(_ context.Context, refresh bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes = append(r.refreshes, refresh)
	return "mc.local:25575", nil
}

func newTestSession(srv *fakeServer, password string) *Session {
	return NewSession(SessionConfig{
		Address:  StaticAddress("mc.local:25575"),
		Password: password,
		Dialer:   srv.Dial,
	})
}

func TestSessionConnectsLazily(t *testing.T) {
	srv := newFakeServer("secret")
	s := newTestSession(srv, "secret")

	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, 0, srv.dialCount())

	resp, err := s.Execute(context.Background(), "list")
	require.NoError(t, err)
	assert.Equal(t, "ok: list", resp)
	assert.Equal(t, StateConnected, s.State())

	_, err = s.Execute(context.Background(), "time query daytime")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.dialCount(), "已连接的会话应当复用连接")
	assert.Equal(t, []string{"mc.local:25575"}, srv.addrs)
}

func TestSessionReconnectsAfterServerRestart(t *testing.T) {
	srv := newFakeServer("secret")
	s := newTestSession(srv, "secret")

	_, err := s.Execute(context.Background(), "list")
	require.NoError(t, err)

	srv.restart()

	resp, err := s.Execute(context.Background(), "list")
	require.NoError(t, err)
	assert.Equal(t, "ok: list", resp)
	assert.Equal(t, 2, srv.dialCount())
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, []string{"list", "list", "list"}, srv.received())
}

func TestSessionRetriesOnlyOnce(t *testing.T) {
	srv := newFakeServer("secret")
	srv.failCommand = 2
	s := newTestSession(srv, "secret")

	_, err := s.Execute(context.Background(), "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 2, srv.dialCount())
	assert.Equal(t, 2, srv.count("list"))
	assert.Equal(t, StateDisconnected, s.State())

	// 下一次调用重新连接
	resp, err := s.Execute(context.Background(), "list")
	require.NoError(t, err)
	assert.Equal(t, "ok: list", resp)
}

func TestSessionServerDown(t *testing.T) {
	srv := newFakeServer("secret")
	srv.down = true
	s := newTestSession(srv, "secret")

	_, err := s.Execute(context.Background(), "list")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 2, srv.dialCount(), "连接失败应当重试一次")
	assert.Empty(t, srv.received())
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSessionAuthFailureIsNotRetried(t *testing.T) {
	srv := newFakeServer("secret")
	s := newTestSession(srv, "wrong")

	_, err := s.Execute(context.Background(), "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, srv.dialCount())
	assert.Empty(t, srv.received())
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSessionCommandTooLong(t *testing.T) {
	srv := newFakeServer("secret")
	s := newTestSession(srv, "secret")

	_, err := s.Execute(context.Background(), strings.Repeat("a", MaxCommandLength+1))
	assert.ErrorIs(t, err, ErrCommandTooLong)
	assert.Equal(t, 0, srv.dialCount(), "过长的命令不应触及网络")

	longest := strings.Repeat("a", MaxCommandLength)
	resp, err := s.Execute(context.Background(), longest)
	require.NoError(t, err)
	assert.Equal(t, "ok: "+longest, resp)

	// 过长的命令不影响已有连接
	_, err = s.Execute(context.Background(), strings.Repeat("b", MaxCommandLength+1))
	assert.ErrorIs(t, err, ErrCommandTooLong)
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, 1, srv.dialCount())
}

func TestSessionTimeout(t *testing.T) {
	srv := newFakeServer("secret")
	srv.hang = true
	s := NewSession(SessionConfig{
		Address:  StaticAddress("mc.local:25575"),
		Password: "secret",
		Dialer:   srv.Dial,
		Timeout:  20 * time.Millisecond,
	})

	start := time.Now()
	_, err := s.Execute(context.Background(), "list")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 2, srv.count("list"))
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSessionSkipsRetryWhenContextDone(t *testing.T) {
	srv := newFakeServer("secret")
	srv.hang = true
	s := newTestSession(srv, "secret")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Execute(ctx, "list")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, srv.count("list"))
}

func TestSessionRefreshesAddressAfterTransportError(t *testing.T) {
	srv := newFakeServer("secret")
	resolver := &recordingResolver{}
	s := NewSession(SessionConfig{
		Address:  resolver,
		Password: "secret",
		Dialer:   srv.Dial,
	})

	_, err := s.Execute(context.Background(), "list")
	require.NoError(t, err)

	srv.restart()
	_, err = s.Execute(context.Background(), "list")
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true}, resolver.refreshes)
}

func TestSessionClose(t *testing.T) {
	srv := newFakeServer("secret")
	s := newTestSession(srv, "secret")

	_, err := s.Execute(context.Background(), "list")
	require.NoError(t, err)

	s.Close()
	s.Close()
	assert.Equal(t, StateDisconnected, s.State())

	_, err = s.Execute(context.Background(), "list")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.dialCount())
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", &SessionError{Kind: KindTransport, Err: errBrokenPipe}, true},
		{"auth", &SessionError{Kind: KindAuth}, false},
		{"command too long", &SessionError{Kind: KindCommandTooLong}, false},
		{"parse", &ParseError{Mode: ModeStructured, Err: errors.New("bad")}, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		addr string
		host string
		port int
	}{
		{"127.0.0.1:25575", "127.0.0.1", 25575},
		{"mc.example.com:1234", "mc.example.com", 1234},
		{"mc.example.com", "mc.example.com", DefaultRconPort},
		{"[::1]:25575", "::1", 25575},
	}

	for _, tt := range tests {
		host, port := splitHostPort(tt.addr)
		assert.Equal(t, tt.host, host, tt.addr)
		assert.Equal(t, tt.port, port, tt.addr)
	}
}

func TestSessionErrorMessages(t *testing.T) {
	assert.Equal(t, "RCON认证失败: 密码错误", (&SessionError{Kind: KindAuth}).Error())
	assert.Equal(t, "RCON连接失败: broken pipe", (&SessionError{Kind: KindTransport, Err: errBrokenPipe}).Error())
	assert.ErrorIs(t, &SessionError{Kind: KindTransport, Err: errBrokenPipe}, errBrokenPipe)
}
