package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage/memory"
)

type failingLookup struct{}

func (failingLookup) GetMailboxByAddress(context.Context, string) (*domain.Mailbox, error) {
	return nil, errors.New("connection reset")
}

func TestNormalizeRecipients(t *testing.T) {
	got := NormalizeRecipients([]Address{
		{Address: " Alice@Temp.Mail "},
		{Address: ""},
		{Address: "   "},
		{Address: "user+tag@temp.mail"},
	})
	assert.Equal(t, []string{"alice@temp.mail", "user+tag@temp.mail"}, got)
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedMailbox(t, store, "mb-b", "b@temp.mail", time.Now().Add(time.Hour))
	seedMailbox(t, store, "mb-c", "c@temp.mail", time.Now().Add(time.Hour))
	resolver := NewResolver(store)

	t.Run("返回第一个命中的地址", func(t *testing.T) {
		mailbox, addr, err := resolver.Resolve(ctx, []string{"a@temp.mail", "c@temp.mail", "b@temp.mail"})
		require.NoError(t, err)
		assert.Equal(t, "mb-c", mailbox.ID)
		assert.Equal(t, "c@temp.mail", addr)
	})

	t.Run("空列表", func(t *testing.T) {
		_, _, err := resolver.Resolve(ctx, nil)
		assert.ErrorIs(t, err, ErrNoRecipient)
	})

	t.Run("全部未命中", func(t *testing.T) {
		_, _, err := resolver.Resolve(ctx, []string{"x@temp.mail", "y@temp.mail"})
		assert.ErrorIs(t, err, ErrMailboxNotFound)
	})

	t.Run("不做子地址折叠", func(t *testing.T) {
		_, _, err := resolver.Resolve(ctx, []string{"b+news@temp.mail"})
		assert.ErrorIs(t, err, ErrMailboxNotFound)
	})

	t.Run("存储故障直接中止", func(t *testing.T) {
		_, _, err := NewResolver(failingLookup{}).Resolve(ctx, []string{"a@temp.mail"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMailboxNotFound)
		assert.Equal(t, "lookup_error", reason(err))
	})
}
