package mccontrol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRconDialerTimeouts(t *testing.T) {
	conn, ok := NewRconDialer(2*time.Second)("127.0.0.1", DefaultRconPort).(*rconConn)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, conn.client.DialTimeout)
	assert.Equal(t, 2*time.Second, conn.client.ReadTimeout)

	defaults := DialRcon("127.0.0.1", DefaultRconPort).(*rconConn)
	conn = NewRconDialer(0)("127.0.0.1", DefaultRconPort).(*rconConn)
	assert.Equal(t, defaults.client.DialTimeout, conn.client.DialTimeout)
	assert.Equal(t, defaults.client.ReadTimeout, conn.client.ReadTimeout)

	// 未建立连接时关闭不会调用 Disconnect
	conn.Close()
}

func TestSessionDefaultDialerUsesTimeout(t *testing.T) {
	s := NewSession(SessionConfig{
		Address:  StaticAddress("127.0.0.1:25575"),
		Password: "secret",
		Timeout:  1500 * time.Millisecond,
	})

	conn, ok := s.dial("127.0.0.1", DefaultRconPort).(*rconConn)
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, conn.client.DialTimeout)
	assert.Equal(t, 1500*time.Millisecond, conn.client.ReadTimeout)
}
