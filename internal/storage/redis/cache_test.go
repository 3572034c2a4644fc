package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
	"tempmail/inbox/internal/storage/memory"
)

// MockCache 模拟 Redis 缓存
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetMailbox(ctx context.Context, key string) (*domain.Mailbox, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Mailbox), args.Error(1)
}

func (m *MockCache) SetMailbox(ctx context.Context, key string, mailbox *domain.Mailbox, ttl time.Duration) error {
	args := m.Called(ctx, key, mailbox, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCache) Close() error {
	return m.Called().Error(0)
}

func setup(t *testing.T) (*CachedStore, *MockCache, *memory.Store, time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	backing := memory.NewStore()
	cache := new(MockCache)
	store := NewCachedStore(backing, cache, 5*time.Minute, zap.NewNop())
	store.now = func() time.Time { return now }
	return store, cache, backing, now
}

func TestCachedStore_GetMailboxByAddress(t *testing.T) {
	ctx := context.Background()

	t.Run("缓存命中直接返回", func(t *testing.T) {
		store, cache, _, now := setup(t)
		cached := &domain.Mailbox{ID: "mb-1", Address: "a@temp.mail", ExpiresAt: now.Add(time.Hour)}
		cache.On("GetMailbox", ctx, "mailbox:addr:a@temp.mail").Return(cached, nil)

		mailbox, err := store.GetMailboxByAddress(ctx, "a@temp.mail")

		require.NoError(t, err)
		assert.Equal(t, "mb-1", mailbox.ID)
		cache.AssertExpectations(t)
	})

	t.Run("缓存中的过期邮箱视为不存在", func(t *testing.T) {
		store, cache, _, now := setup(t)
		cached := &domain.Mailbox{ID: "mb-1", Address: "a@temp.mail", ExpiresAt: now.Add(-time.Second)}
		cache.On("GetMailbox", ctx, "mailbox:addr:a@temp.mail").Return(cached, nil)
		cache.On("Delete", ctx, []string{"mailbox:addr:a@temp.mail"}).Return(nil)

		_, err := store.GetMailboxByAddress(ctx, "a@temp.mail")

		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
		cache.AssertExpectations(t)
	})

	t.Run("未命中时回源并按剩余有效期缓存", func(t *testing.T) {
		store, cache, backing, _ := setup(t)
		now := time.Now()
		store.now = func() time.Time { return now }
		require.NoError(t, backing.CreateMailbox(ctx, &domain.Mailbox{ID: "mb-2", Address: "b@temp.mail", ExpiresAt: now.Add(2 * time.Minute)}))

		cache.On("GetMailbox", ctx, "mailbox:addr:b@temp.mail").Return(nil, storage.ErrCacheMiss)
		cache.On("SetMailbox", ctx, "mailbox:addr:b@temp.mail", mock.AnythingOfType("*domain.Mailbox"), 2*time.Minute).Return(nil)

		mailbox, err := store.GetMailboxByAddress(ctx, "b@temp.mail")

		require.NoError(t, err)
		assert.Equal(t, "mb-2", mailbox.ID)
		cache.AssertExpectations(t)
	})

	t.Run("缓存故障时仍然回源", func(t *testing.T) {
		store, cache, backing, _ := setup(t)
		require.NoError(t, backing.CreateMailbox(ctx, &domain.Mailbox{ID: "mb-3", Address: "c@temp.mail", ExpiresAt: time.Now().Add(24 * time.Hour)}))

		cache.On("GetMailbox", ctx, "mailbox:addr:c@temp.mail").Return(nil, errors.New("connection refused"))
		cache.On("SetMailbox", ctx, "mailbox:addr:c@temp.mail", mock.Anything, 5*time.Minute).Return(errors.New("connection refused"))

		mailbox, err := store.GetMailboxByAddress(ctx, "c@temp.mail")

		require.NoError(t, err)
		assert.Equal(t, "mb-3", mailbox.ID)
	})

	t.Run("回源未找到时不写缓存", func(t *testing.T) {
		store, cache, _, _ := setup(t)
		cache.On("GetMailbox", ctx, "mailbox:addr:none@temp.mail").Return(nil, storage.ErrCacheMiss)

		_, err := store.GetMailboxByAddress(ctx, "none@temp.mail")

		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
		cache.AssertNotCalled(t, "SetMailbox", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCachedStore_Invalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("删除邮箱使缓存失效", func(t *testing.T) {
		store, cache, backing, _ := setup(t)
		require.NoError(t, backing.CreateMailbox(ctx, &domain.Mailbox{ID: "mb-1", Address: "a@temp.mail", ExpiresAt: time.Now().Add(time.Hour)}))
		cache.On("Delete", ctx, []string{"mailbox:addr:a@temp.mail"}).Return(nil)

		require.NoError(t, store.DeleteMailbox(ctx, "a@temp.mail"))
		cache.AssertExpectations(t)
	})

	t.Run("清理过期邮箱批量失效", func(t *testing.T) {
		store, cache, backing, _ := setup(t)
		past := time.Now().Add(-time.Hour)
		require.NoError(t, backing.CreateMailbox(ctx, &domain.Mailbox{ID: "x", Address: "x@temp.mail", ExpiresAt: past}))
		require.NoError(t, backing.CreateMailbox(ctx, &domain.Mailbox{ID: "y", Address: "y@temp.mail", ExpiresAt: past}))
		cache.On("Delete", ctx, []string{"mailbox:addr:x@temp.mail", "mailbox:addr:y@temp.mail"}).Return(nil)

		removed, err := store.DeleteExpiredMailboxes(ctx, time.Now())

		require.NoError(t, err)
		assert.Len(t, removed, 2)
		cache.AssertExpectations(t)
	})

	t.Run("没有过期邮箱时不访问缓存", func(t *testing.T) {
		store, cache, _, _ := setup(t)

		removed, err := store.DeleteExpiredMailboxes(ctx, time.Now())

		require.NoError(t, err)
		assert.Empty(t, removed)
		cache.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("底层删除失败时不失效缓存", func(t *testing.T) {
		store, cache, _, _ := setup(t)

		err := store.DeleteMailbox(ctx, "missing@temp.mail")

		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
		cache.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestCachedStore_Health(t *testing.T) {
	ctx := context.Background()
	store, cache, _, _ := setup(t)
	cache.On("Ping", ctx).Return(errors.New("redis down")).Once()

	assert.EqualError(t, store.Health(ctx), "redis down")
}
