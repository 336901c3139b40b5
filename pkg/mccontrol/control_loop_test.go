package mccontrol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer 记录渲染请求，deleted 中的消息编辑时返回 ErrMessageNotFound
type fakeRenderer struct {
	mu       sync.Mutex
	requests []RenderRequest
	deleted  map[string]bool
	next     int
	err      error
}

func (r *fakeRenderer) Render(_ context.Context, req RenderRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return "", r.err
	}
	if req.MessageID != "" {
		if r.deleted[req.MessageID] {
			return "", ErrMessageNotFound
		}
		return req.MessageID, nil
	}
	r.next++
	return fmt.Sprintf("msg-%d", r.next), nil
}

func (r *fakeRenderer) last() RenderRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

// memoryStore 内存中的消息引用存储
type memoryStore struct {
	ref   *MessageRef
	saves int
}

func (s *memoryStore) LoadMessageRef(context.Context) (*MessageRef, error) {
	return s.ref, nil
}

func (s *memoryStore) SaveMessageRef(_ context.Context, ref MessageRef) error {
	s.ref = &ref
	s.saves++
	return nil
}

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type loopFixture struct {
	srv      *fakeServer
	state    *SharedState
	renderer *fakeRenderer
	store    *memoryStore
	loop     *ControlLoop
}

func newLoopFixture(mode ParseMode, listResponse string) *loopFixture {
	srv := newFakeServer("secret")
	srv.respond = func(cmd string) string {
		if cmd == mode.Command() {
			return listResponse
		}
		return ""
	}

	f := &loopFixture{
		srv:      srv,
		state:    NewSharedState(newTestSession(srv, "secret"), nil),
		renderer: &fakeRenderer{deleted: map[string]bool{}},
		store:    &memoryStore{},
	}
	f.loop = NewControlLoop(f.state, f.renderer, f.store, LoopConfig{
		ChannelID: "status",
		Parser:    NewStatusParser(mode),
		Now:       func() time.Time { return fixedNow },
	})
	return f
}

func TestTickOnlineUnstructured(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "There are 2 of a max of 20 players online: Steve, Alex")

	text := f.loop.Tick(context.Background())

	assert.Equal(t, "服务器在线，当前在线玩家 2/20: ```\nAlex\nSteve```\n\n最后更新: 2024-01-02 03:04:05", text)
	assert.Equal(t, []string{"list"}, f.srv.received())
	assert.Equal(t, RenderRequest{ChannelID: "status", Text: text}, f.renderer.last())
}

func TestTickEmptyServerWithTPS(t *testing.T) {
	f := newLoopFixture(ModeStructured, `{"current_players":0,"max_players":10,"list":[],"tps":[20,20,19.5,18.25,20]}`)

	text := f.loop.Tick(context.Background())

	assert.Equal(t, "服务器在线，当前在线玩家 0/10。\n"+
		"\nTPS信息: ```\n5s    10s   1m    5m    15m  \n20.00 20.00 19.50 18.25 20.00```"+
		"\n\n最后更新: 2024-01-02 03:04:05", text)
}

func TestTickOfflineClearsRestartFlag(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "")
	f.srv.down = true
	f.state.ScheduleRestart(false)

	text := f.loop.Tick(context.Background())

	assert.True(t, strings.HasPrefix(text, OfflineText))
	assert.False(t, f.state.RestartRequested())
	assert.Equal(t, 0, f.srv.count("stop"))
}

func TestTickShutsDownEmptyServerOnce(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "There are 0 of a max of 20 players online:")
	f.state.ScheduleRestart(false)

	f.loop.Tick(context.Background())
	assert.Equal(t, 1, f.srv.count("stop"))
	assert.Equal(t, []string{"list", "stop"}, f.srv.received())

	// 服务器离线后重启标记被清除，不再发送关闭命令
	f.srv.down = true
	f.srv.restart()
	f.loop.Tick(context.Background())
	f.srv.down = false
	f.loop.Tick(context.Background())

	assert.Equal(t, 1, f.srv.count("stop"))
	assert.False(t, f.state.RestartRequested())
}

func TestTickDoesNotShutDownWithPlayersOnline(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "There are 1 of a max of 20 players online: Steve")
	f.state.ScheduleRestart(false)

	f.loop.Tick(context.Background())

	assert.Equal(t, 0, f.srv.count("stop"))
	assert.True(t, f.state.RestartRequested())
}

func TestTickEnforcesModeration(t *testing.T) {
	f := newLoopFixture(ModeStructured, `{"current_players":2,"max_players":20,"list":[{"name":"Eve","nickname":"<blue>discord.gg/raid</blue>"},{"name":"Steve","nickname":"<red>Stevie</red>"}]}`)

	text := f.loop.Tick(context.Background())

	assert.Contains(t, text, "Eve (I MADE BOOL SAD)\nSteve (Stevie)")
	assert.NotContains(t, text, "discord")
	assert.Equal(t, []string{
		"list json",
		"styled-nicknames set Eve I MADE BOOL SAD",
		"kick Eve nice try",
	}, f.srv.received())
}

func TestTickEnforcementFailureIsNotFatal(t *testing.T) {
	const list = `{"current_players":1,"max_players":20,"list":[{"name":"Eve","nickname":"http://x"}]}`
	f := newLoopFixture(ModeStructured, list)
	f.srv.respond = func(cmd string) string {
		if cmd == "list json" {
			// 改名命令的两次尝试都失败
			f.srv.failCommand = 2
			return list
		}
		return ""
	}

	text := f.loop.Tick(context.Background())

	assert.Contains(t, text, "Eve (I MADE BOOL SAD)")
	assert.Equal(t, 2, f.srv.count("styled-nicknames set Eve I MADE BOOL SAD"))
	assert.Equal(t, 1, f.srv.count("kick Eve nice try"))
}

func TestTickRendersParseError(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "Unknown or incomplete command")
	f.state.ScheduleRestart(false)

	text := f.loop.Tick(context.Background())

	assert.True(t, strings.HasPrefix(text, "正则匹配错误"))
	assert.NotContains(t, text, OfflineText)
	assert.True(t, f.state.RestartRequested(), "解析错误不应视为离线")
}

func TestTickRendersAuthError(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "")
	f.srv.password = "rotated"

	text := f.loop.Tick(context.Background())

	assert.True(t, strings.HasPrefix(text, "RCON认证失败"))
}

func TestTickEditsCachedMessage(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "There are 0 of a max of 20 players online:")

	f.loop.Tick(context.Background())
	assert.Equal(t, "", f.renderer.last().MessageID)
	assert.Equal(t, &MessageRef{ChannelID: "status", MessageID: "msg-1"}, f.store.ref)

	f.loop.Tick(context.Background())
	assert.Equal(t, "msg-1", f.renderer.last().MessageID)
	assert.Equal(t, 1, f.store.saves)

	ref, ok := f.state.MessageRef()
	require.True(t, ok)
	assert.Equal(t, "msg-1", ref.MessageID)
}

func TestTickRecreatesDeletedMessage(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "There are 0 of a max of 20 players online:")

	f.loop.Tick(context.Background())
	f.renderer.deleted["msg-1"] = true
	f.loop.Tick(context.Background())

	ref, ok := f.state.MessageRef()
	require.True(t, ok)
	assert.Equal(t, "msg-2", ref.MessageID)
	assert.Equal(t, "msg-2", f.store.ref.MessageID)
	assert.Len(t, f.renderer.requests, 3)
}

func TestTickRendererFailureIsNotFatal(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "There are 0 of a max of 20 players online:")
	f.renderer.err = errors.New("rate limited")

	f.loop.Tick(context.Background())
	_, ok := f.state.MessageRef()
	assert.False(t, ok)
	assert.Nil(t, f.store.ref)

	f.renderer.err = nil
	f.loop.Tick(context.Background())
	_, ok = f.state.MessageRef()
	assert.True(t, ok)
}

func TestTickCustomCommands(t *testing.T) {
	srv := newFakeServer("secret")
	srv.respond = func(cmd string) string {
		if cmd == "list" {
			return "There are 0 of a max of 20 players online:"
		}
		return ""
	}
	state := NewSharedState(newTestSession(srv, "secret"), nil)
	state.ScheduleRestart(false)

	loop := NewControlLoop(state, &fakeRenderer{}, nil, LoopConfig{
		Parser:          NewStatusParser(ModeUnstructured),
		ShutdownCommand: "restart",
	})
	loop.Tick(context.Background())

	assert.Equal(t, []string{"list", "restart"}, srv.received())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	f := newLoopFixture(ModeUnstructured, "There are 0 of a max of 20 players online:")
	f.loop.cfg.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.srv.count("list") >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未在取消后返回")
	}
}

func TestRestoreMessageRef(t *testing.T) {
	store := &memoryStore{ref: &MessageRef{ChannelID: "old", MessageID: "m"}}

	assert.Nil(t, RestoreMessageRef(context.Background(), store, "status"))
	assert.Equal(t, &MessageRef{ChannelID: "old", MessageID: "m"}, RestoreMessageRef(context.Background(), store, "old"))
	assert.Nil(t, RestoreMessageRef(context.Background(), nil, "status"))
	assert.Nil(t, RestoreMessageRef(context.Background(), &memoryStore{}, "status"))
}
