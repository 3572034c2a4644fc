package cache

import (
	"context"
	"sync"
	"time"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// LocalCache 进程内邮箱缓存，未启用 Redis 时替代其作为查询缓存
//
// 特点：
// - 条目按 TTL 过期，后台协程定期清理
// - 超过容量时先清理过期条目，仍然超出则拒绝写入
// - 缓存的是邮箱副本，调用方修改不会影响缓存内容
type LocalCache struct {
	mu      sync.RWMutex
	data    map[string]cacheEntry
	maxSize int
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

type cacheEntry struct {
	mailbox   domain.Mailbox
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxSize: 最大缓存条目数
//   - cleanupInterval: 过期条目清理间隔，<=0 时不启动后台清理
func NewLocalCache(maxSize int, cleanupInterval time.Duration) *LocalCache {
	c := &LocalCache{
		data:    make(map[string]cacheEntry),
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// GetMailbox 获取缓存的邮箱，未命中或已过期时返回 storage.ErrCacheMiss
func (c *LocalCache) GetMailbox(_ context.Context, key string) (*domain.Mailbox, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, storage.ErrCacheMiss
	}
	mailbox := entry.mailbox
	return &mailbox, nil
}

// SetMailbox 设置缓存值
func (c *LocalCache) SetMailbox(_ context.Context, key string, mailbox *domain.Mailbox, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxSize {
		c.evictExpiredLocked()
		if len(c.data) >= c.maxSize {
			return nil
		}
	}

	c.data[key] = cacheEntry{
		mailbox:   *mailbox,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Delete 删除缓存值
func (c *LocalCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.data, key)
	}
	return nil
}

// Len 返回当前条目数（含尚未清理的过期条目）
func (c *LocalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Ping 本地缓存始终可用
func (c *LocalCache) Ping(context.Context) error {
	return nil
}

// Close 停止后台清理并清空缓存
func (c *LocalCache) Close() error {
	c.once.Do(func() {
		close(c.stop)

		c.mu.Lock()
		c.data = make(map[string]cacheEntry)
		c.mu.Unlock()
	})
	return nil
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpiredLocked()
			c.mu.Unlock()
		}
	}
}

func (c *LocalCache) evictExpiredLocked() {
	now := c.now()
	for key, entry := range c.data {
		if !now.Before(entry.expiresAt) {
			delete(c.data, key)
		}
	}
}
