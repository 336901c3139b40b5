package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
)

// ErrPlayerNotFound 正版账号不存在
var ErrPlayerNotFound = errors.New("正版账号不存在")

// ErrMojangUnavailable 查询接口不可用
var ErrMojangUnavailable = errors.New("Mojang认证服务器不可用")

// mojangProfile 查询接口的响应
type mojangProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MojangClient 查询正版玩家UUID，带缓存与熔断
type MojangClient struct {
	baseURL string
	http    *http.Client
	cache   *lru.Cache[string, uuid.UUID]
	breaker *gobreaker.CircuitBreaker
}

// NewMojangClient 创建查询客户端，baseURL 后直接拼接玩家名
func NewMojangClient(baseURL string, httpClient *http.Client) *MojangClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cache, _ := lru.New[string, uuid.UUID](1024)

	return &MojangClient{
		baseURL: baseURL,
		http:    httpClient,
		cache:   cache,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mojang",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			// 玩家不存在不算接口故障
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrPlayerNotFound)
			},
		}),
	}
}

// LookupUUID 查询正版玩家的UUID
func (m *MojangClient) LookupUUID(ctx context.Context, username string) (uuid.UUID, error) {
	key := strings.ToLower(username)
	if id, ok := m.cache.Get(key); ok {
		return id, nil
	}

	result, err := m.breaker.Execute(func() (interface{}, error) {
		return m.fetch(ctx, username)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return uuid.Nil, ErrMojangUnavailable
		}
		return uuid.Nil, err
	}

	id := result.(uuid.UUID)
	m.cache.Add(key, id)
	return id, nil
}

func (m *MojangClient) fetch(ctx context.Context, username string) (uuid.UUID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+url.PathEscape(username), nil)
	if err != nil {
		return uuid.Nil, err
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMojangUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return uuid.Nil, ErrPlayerNotFound
	default:
		return uuid.Nil, fmt.Errorf("%w: HTTP %d", ErrMojangUnavailable, resp.StatusCode)
	}

	var profile mojangProfile
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return uuid.Nil, fmt.Errorf("%w: 响应解析失败: %v", ErrMojangUnavailable, err)
	}
	if profile.ID == "" {
		return uuid.Nil, ErrPlayerNotFound
	}

	// 接口返回不带连字符的32位十六进制
	id, err := uuid.Parse(profile.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: 无效的UUID %q", ErrMojangUnavailable, profile.ID)
	}
	return id, nil
}
