package mccontrol

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRestart(t *testing.T) {
	state := NewSharedState(newTestSession(newFakeServer("secret"), "secret"), nil)

	assert.False(t, state.RestartRequested())
	assert.Equal(t, RestartNotScheduled, state.ScheduleRestart(true))
	assert.Equal(t, RestartScheduled, state.ScheduleRestart(false))
	assert.True(t, state.RestartRequested())
	assert.Equal(t, RestartAlreadyScheduled, state.ScheduleRestart(false))
	assert.Equal(t, RestartCancelled, state.ScheduleRestart(true))
	assert.False(t, state.RestartRequested())
}

func TestRestartOutcomeMessage(t *testing.T) {
	messages := map[string]bool{}
	for _, o := range []RestartOutcome{RestartScheduled, RestartAlreadyScheduled, RestartCancelled, RestartNotScheduled} {
		assert.NotEmpty(t, o.Message())
		messages[o.Message()] = true
	}
	assert.Len(t, messages, 4)
}

func TestRestartFlagDoesNotWaitForConsole(t *testing.T) {
	state := NewSharedState(newTestSession(newFakeServer("secret"), "secret"), nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	go state.WithConsole(func(Executor) {
		close(entered)
		<-release
	})
	<-entered
	defer close(release)

	done := make(chan RestartOutcome, 1)
	go func() { done <- state.ScheduleRestart(false) }()

	select {
	case outcome := <-done:
		assert.Equal(t, RestartScheduled, outcome)
	case <-time.After(time.Second):
		t.Fatal("切换重启标记时不应等待控制台锁")
	}
}

func TestSharedStateSerializesConsole(t *testing.T) {
	srv := newFakeServer("secret")
	state := NewSharedState(newTestSession(srv, "secret"), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := state.Execute(context.Background(), "list")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, srv.count("list"))
	assert.Equal(t, 1, srv.dialCount())
	assert.Equal(t, StateConnected, state.SessionState())

	state.Close()
	assert.Equal(t, StateDisconnected, state.SessionState())
}

func TestSharedStateMessageRef(t *testing.T) {
	state := NewSharedState(newTestSession(newFakeServer("secret"), "secret"), nil)
	_, ok := state.MessageRef()
	assert.False(t, ok)

	initial := &MessageRef{ChannelID: "c", MessageID: "m"}
	state = NewSharedState(newTestSession(newFakeServer("secret"), "secret"), initial)
	initial.MessageID = "changed"

	ref, ok := state.MessageRef()
	require.True(t, ok)
	assert.Equal(t, MessageRef{ChannelID: "c", MessageID: "m"}, ref)
}
