package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/sse"
)

func writeCrashReport(t *testing.T, dir, name string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, crashDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("---- Minecraft Crash Report ----\n"+name), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestCrashLatest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	writeCrashReport(t, dir, "crash-2024-05-01_12.00.00-server.txt", base)
	writeCrashReport(t, dir, "crash-2024-05-02_08.30.00-server.txt", base.Add(20*time.Hour))
	writeCrashReport(t, dir, "crash-2024-04-30_23.59.59-server.txt", base.Add(-time.Hour))
	require.NoError(t, os.Mkdir(filepath.Join(dir, crashDir, "zz-newer-dir"), 0o755))

	s := NewCrashService(dir, 30*time.Second)
	report, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "crash-2024-05-02_08.30.00-server.txt", report.Name)
	assert.True(t, report.CreatedAt.Equal(base.Add(20*time.Hour)))
	assert.Contains(t, report.Content, "Minecraft Crash Report")
	assert.EqualValues(t, len(report.Content), report.Size)
}

func TestCrashRateLimit(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewCrashService(dir, 30*time.Second)
	s.now = func() time.Time { return now }

	// 失败不计入限流
	_, err := s.Latest()
	assert.ErrorIs(t, err, ErrNoCrashReport)
	_, err = s.Latest()
	assert.ErrorIs(t, err, ErrNoCrashReport)

	writeCrashReport(t, dir, "crash.txt", now)
	_, err = s.Latest()
	require.NoError(t, err)

	now = now.Add(10 * time.Second)
	_, err = s.Latest()
	require.ErrorIs(t, err, ErrCrashRateLimited)
	var limited *RateLimitError
	require.ErrorAs(t, err, &limited)
	assert.InDelta(t, float64(20*time.Second), float64(limited.Wait), float64(time.Millisecond))
	assert.Equal(t, "请至少再等待 20.00000 秒后再使用该命令。", err.Error())

	// 被拒绝的请求不会推迟下次可用时间
	now = now.Add(21 * time.Second)
	_, err = s.Latest()
	require.NoError(t, err)
}

func TestCrashEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, crashDir), 0o755))

	_, err := NewCrashService(dir, 0).Latest()
	assert.ErrorIs(t, err, ErrNoCrashReport)
}

func TestCrashWatch(t *testing.T) {
	dir := t.TempDir()
	s := NewCrashService(dir, 0)
	events := &recordingPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, events)
	}()

	// 等待目录创建并开始监听
	require.Eventually(t, func() bool {
		_, err := os.Stat(s.Dir())
		return err == nil
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		name := filepath.Join(s.Dir(), "crash-"+time.Now().Format("150405.000000")+".txt")
		_ = os.WriteFile(name, []byte("crash"), 0o644)
		return len(events.all()) > 0
	}, 3*time.Second, 100*time.Millisecond)

	message := events.all()[0]
	assert.Equal(t, sse.TopicCrash, message.Topic)
	assert.Equal(t, sse.EventCrash, message.Event)
	assert.Contains(t, message.Data.(model.CrashReport).Name, "crash-")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch 没有在 ctx 结束后返回")
	}
}
