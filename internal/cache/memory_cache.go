package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 基于go-cache的进程内缓存
// 单实例部署的默认选择，缓存的分块结果随进程生命周期存活
type MemoryCache struct {
	store      *gocache.Cache
	defaultTTL time.Duration
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(config Config) (Cache, error) {
	defaultTTL := config.DefaultTTL
	if defaultTTL == 0 {
		defaultTTL = 24 * time.Hour
	}

	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}

	return &MemoryCache{
		store:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
	}, nil
}

// Get 获取缓存内容
// 类型不匹配的值视为未命中，等待过期清理
func (m *MemoryCache) Get(key string) (string, bool, error) {
	value, found := m.store.Get(key)
	if !found {
		return "", false, nil
	}

	str, ok := value.(string)
	if !ok {
		return "", false, nil
	}
	return str, true, nil
}

// Set 设置缓存内容，ttl为0时使用默认过期时间
func (m *MemoryCache) Set(key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	m.store.Set(key, value, ttl)
	return nil
}

// Delete 删除缓存项
func (m *MemoryCache) Delete(key string) error {
	m.store.Delete(key)
	return nil
}

// Clear 清空所有缓存
func (m *MemoryCache) Clear() error {
	m.store.Flush()
	return nil
}

// 在包初始化时注册内存缓存
func init() {
	RegisterCache("memory", NewMemoryCache)
}
