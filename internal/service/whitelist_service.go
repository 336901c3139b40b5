package service

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/pkg/mccontrol"
)

// 白名单文件名
const whitelistFile = "whitelist.json"

// 白名单模式
const (
	ModeOnline  = "online"
	ModeOffline = "offline"
)

var (
	ErrAlreadyWhitelisted = errors.New("玩家已在白名单中")
	ErrNotWhitelisted     = errors.New("玩家不在白名单中")
)

// UUIDLookup 查询正版玩家UUID
type UUIDLookup interface {
	LookupUUID(ctx context.Context, username string) (uuid.UUID, error)
}

// WhitelistService 管理服务器目录下的 whitelist.json
type WhitelistService struct {
	path   string
	exec   mccontrol.Executor
	lookup UUIDLookup

	// 读-改-写 整个文件
	mu sync.Mutex
}

// NewWhitelistService 创建白名单服务
func NewWhitelistService(serverDir string, exec mccontrol.Executor, lookup UUIDLookup) *WhitelistService {
	return &WhitelistService{
		path:   filepath.Join(serverDir, whitelistFile),
		exec:   exec,
		lookup: lookup,
	}
}

// OfflineUUID 离线模式玩家的UUID：对 "OfflinePlayer:<name>" 取MD5，版本号3
func OfflineUUID(username string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + username))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	return uuid.UUID(sum)
}

// List 返回按名称排序的白名单
func (s *WhitelistService) List() ([]model.WhitelistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Add 添加玩家，mode 为 online 时向Mojang查询UUID
func (s *WhitelistService) Add(ctx context.Context, req model.WhitelistAdd) (*model.WhitelistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.Name == req.Username {
			return nil, ErrAlreadyWhitelisted
		}
	}

	var id uuid.UUID
	switch req.Mode {
	case ModeOnline:
		id, err = s.lookup.LookupUUID(ctx, req.Username)
		if err != nil {
			log.Printf("查询正版UUID失败: %s: %v", req.Username, err)
			return nil, err
		}
	case ModeOffline:
		id = OfflineUUID(req.Username)
	default:
		return nil, fmt.Errorf("不支持的模式: %s", req.Mode)
	}

	entry := model.WhitelistEntry{Name: req.Username, UUID: id}
	entries = append(entries, entry)
	if err := s.write(entries); err != nil {
		return nil, err
	}

	s.reload(ctx)
	return &entry, nil
}

// Remove 移除玩家
func (s *WhitelistService) Remove(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, entry := range entries {
		if entry.Name != username {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(entries) {
		return ErrNotWhitelisted
	}

	if err := s.write(kept); err != nil {
		return err
	}

	s.reload(ctx)
	return nil
}

// Summary 白名单的文本摘要
func Summary(entries []model.WhitelistEntry) string {
	if len(entries) == 0 {
		return "当前白名单中有 0 名玩家。"
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name
	}
	return fmt.Sprintf("当前白名单中有 %d 名玩家:\n```\n%s\n```", len(entries), strings.Join(names, ", "))
}

// read 读取并排序，文件不存在时视为空白名单
func (s *WhitelistService) read() ([]model.WhitelistEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.WhitelistEntry{}, nil
	}
	if err != nil {
		log.Printf("读取白名单文件失败: %v", err)
		return nil, fmt.Errorf("读取白名单文件失败: %w", err)
	}

	var entries []model.WhitelistEntry
	if err := sonic.Unmarshal(data, &entries); err != nil {
		log.Printf("解析白名单文件失败: %v", err)
		return nil, fmt.Errorf("解析白名单文件失败: %w", err)
	}
	if entries == nil {
		entries = []model.WhitelistEntry{}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func (s *WhitelistService) write(entries []model.WhitelistEntry) error {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	data, err := sonic.ConfigStd.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		log.Printf("写入白名单文件失败: %v", err)
		return fmt.Errorf("写入白名单文件失败: %w", err)
	}
	return nil
}

// reload 通知服务器重新加载白名单
// 失败说明服务器离线，上线时会自动加载，忽略错误
func (s *WhitelistService) reload(ctx context.Context) {
	if s.exec == nil {
		return
	}
	if _, err := s.exec.Execute(ctx, "whitelist reload"); err != nil {
		log.Printf("重新加载白名单失败（服务器可能离线）: %v", err)
	}
}
