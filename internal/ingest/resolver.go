package ingest

import (
	"context"
	"errors"
	"fmt"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// MailboxLookup 按地址查找有效邮箱
type MailboxLookup interface {
	GetMailboxByAddress(ctx context.Context, address string) (*domain.Mailbox, error)
}

// NormalizeRecipients 规范化收件人列表并去掉空地址，保持原有顺序
func NormalizeRecipients(to []Address) []string {
	out := make([]string, 0, len(to))
	for _, rcpt := range to {
		if addr := domain.NormalizeAddress(rcpt.Address); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Resolver 在收件人中找出第一个对应有效邮箱的地址
type Resolver struct {
	lookup MailboxLookup
}

// NewResolver 创建邮箱解析器
func NewResolver(lookup MailboxLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve 按输入顺序逐个查找，返回第一个命中的邮箱及其地址
func (r *Resolver) Resolve(ctx context.Context, candidates []string) (*domain.Mailbox, string, error) {
	if len(candidates) == 0 {
		return nil, "", ErrNoRecipient
	}

	for _, addr := range candidates {
		mailbox, err := r.lookup.GetMailboxByAddress(ctx, addr)
		if err == nil {
			return mailbox, addr, nil
		}
		if !errors.Is(err, storage.ErrMailboxNotFound) {
			return nil, "", fmt.Errorf("lookup mailbox %s: %w", addr, err)
		}
	}
	return nil, "", ErrMailboxNotFound
}
