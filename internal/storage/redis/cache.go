package redis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// MailboxCache 是 CachedStore 依赖的缓存操作集合，由 *Client 和 cache.LocalCache 实现
type MailboxCache interface {
	GetMailbox(ctx context.Context, key string) (*domain.Mailbox, error)
	SetMailbox(ctx context.Context, key string, mailbox *domain.Mailbox, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

var _ MailboxCache = (*Client)(nil)

// CachedStore 在底层存储之前缓存按地址查询邮箱的结果
//
// 只有收件解析路径上的 GetMailboxByAddress 走缓存；缓存出错时直接回源，不影响业务。
type CachedStore struct {
	storage.Store
	cache MailboxCache
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// NewCachedStore 创建带缓存的存储
func NewCachedStore(store storage.Store, cache MailboxCache, ttl time.Duration, log *zap.Logger) *CachedStore {
	return &CachedStore{
		Store: store,
		cache: cache,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
	}
}

func mailboxKey(address string) string {
	return "mailbox:addr:" + address
}

// GetMailboxByAddress 先查缓存，缓存中的邮箱仍需通过有效期检查
func (s *CachedStore) GetMailboxByAddress(ctx context.Context, address string) (*domain.Mailbox, error) {
	key := mailboxKey(address)
	now := s.now()

	cached, err := s.cache.GetMailbox(ctx, key)
	switch {
	case err == nil:
		if cached.IsLive(now) {
			return cached, nil
		}
		s.invalidate(ctx, address)
		return nil, storage.ErrMailboxNotFound
	case !errors.Is(err, storage.ErrCacheMiss):
		s.log.Warn("mailbox cache read failed", zap.String("address", address), zap.Error(err))
	}

	mailbox, err := s.Store.GetMailboxByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	ttl := s.ttl
	if remaining := mailbox.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		if err := s.cache.SetMailbox(ctx, key, mailbox, ttl); err != nil {
			s.log.Warn("mailbox cache write failed", zap.String("address", address), zap.Error(err))
		}
	}
	return mailbox, nil
}

// TouchMailbox 更新最后访问时间并使缓存失效
func (s *CachedStore) TouchMailbox(ctx context.Context, address string, at time.Time) error {
	if err := s.Store.TouchMailbox(ctx, address, at); err != nil {
		return err
	}
	s.invalidate(ctx, address)
	return nil
}

// CreateMailbox 创建邮箱；同地址的旧缓存可能指向已被替换的过期邮箱
func (s *CachedStore) CreateMailbox(ctx context.Context, mailbox *domain.Mailbox) error {
	if err := s.Store.CreateMailbox(ctx, mailbox); err != nil {
		return err
	}
	s.invalidate(ctx, mailbox.Address)
	return nil
}

// DeleteMailbox 删除邮箱并使缓存失效
func (s *CachedStore) DeleteMailbox(ctx context.Context, address string) error {
	if err := s.Store.DeleteMailbox(ctx, address); err != nil {
		return err
	}
	s.invalidate(ctx, address)
	return nil
}

// DeleteExpiredMailboxes 清理过期邮箱并批量使缓存失效
func (s *CachedStore) DeleteExpiredMailboxes(ctx context.Context, now time.Time) ([]string, error) {
	removed, err := s.Store.DeleteExpiredMailboxes(ctx, now)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, removed...)
	return removed, nil
}

// Health 同时检查底层存储和 Redis
func (s *CachedStore) Health(ctx context.Context) error {
	if err := s.Store.Health(ctx); err != nil {
		return err
	}
	return s.cache.Ping(ctx)
}

// Close 依次关闭 Redis 和底层存储
func (s *CachedStore) Close() error {
	cacheErr := s.cache.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}

func (s *CachedStore) invalidate(ctx context.Context, addresses ...string) {
	if len(addresses) == 0 {
		return
	}
	keys := make([]string, len(addresses))
	for i, address := range addresses {
		keys[i] = mailboxKey(address)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("mailbox cache invalidation failed", zap.Strings("addresses", addresses), zap.Error(err))
	}
}
