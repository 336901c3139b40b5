package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/sse"
)

// crashDir 崩溃报告所在的子目录
const crashDir = "crash-reports"

// ErrNoCrashReport 没有任何崩溃报告
var ErrNoCrashReport = errors.New("没有找到崩溃报告")

// ErrCrashRateLimited 用于 errors.Is 判断是否被限流
var ErrCrashRateLimited = errors.New("请求过于频繁")

// RateLimitError 距离下次可用还需等待的时间
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("请至少再等待 %.5f 秒后再使用该命令。", e.Wait.Seconds())
}

// Is 让 errors.Is(err, ErrCrashRateLimited) 成立
func (e *RateLimitError) Is(target error) bool {
	return target == ErrCrashRateLimited
}

// CrashService 读取并监听服务器的崩溃报告
type CrashService struct {
	dir     string
	limiter *rate.Limiter
	now     func() time.Time
}

// NewCrashService 创建崩溃报告服务，interval 为两次成功获取之间的最小间隔
func NewCrashService(serverDir string, interval time.Duration) *CrashService {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &CrashService{
		dir:     filepath.Join(serverDir, crashDir),
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Dir 崩溃报告目录
func (s *CrashService) Dir() string {
	return s.dir
}

// Latest 获取最新的崩溃报告，只有成功获取才计入限流
func (s *CrashService) Latest() (*model.CrashReport, error) {
	now := s.now()
	r := s.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return nil, &RateLimitError{Wait: delay}
	}

	report, err := s.latest()
	if err != nil {
		r.CancelAt(now)
		log.Printf("获取崩溃报告失败: %v", err)
		return nil, err
	}
	return report, nil
}

// latest 按修改时间找到最新的文件
func (s *CrashService) latest() (*model.CrashReport, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCrashReport
		}
		return nil, fmt.Errorf("读取崩溃报告目录失败: %w", err)
	}

	var newest os.FileInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("读取崩溃报告失败: %w", err)
		}
		if newest == nil || info.ModTime().After(newest.ModTime()) {
			newest = info
		}
	}
	if newest == nil {
		return nil, ErrNoCrashReport
	}

	content, err := os.ReadFile(filepath.Join(s.dir, newest.Name()))
	if err != nil {
		return nil, fmt.Errorf("读取崩溃报告失败: %w", err)
	}

	return &model.CrashReport{
		Name:      newest.Name(),
		CreatedAt: newest.ModTime(),
		Size:      newest.Size(),
		Content:   string(content),
	}, nil
}

// Watch 监听新的崩溃报告并推送通知，直到 ctx 结束
func (s *CrashService) Watch(ctx context.Context, events EventPublisher) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("创建崩溃报告目录失败: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听失败: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("监听崩溃报告目录失败: %w", err)
	}
	log.Printf("开始监听崩溃报告目录: %s", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}

			report := model.CrashReport{
				Name:      info.Name(),
				CreatedAt: info.ModTime(),
				Size:      info.Size(),
			}
			log.Printf("服务器崩溃，新的崩溃报告: %s", report.Name)
			if events != nil {
				events.Publish(&sse.Message{
					Topic: sse.TopicCrash,
					Event: sse.EventCrash,
					Data:  report,
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("崩溃报告监听出错: %v", err)
		}
	}
}
