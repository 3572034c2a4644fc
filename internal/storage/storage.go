package storage

import (
	"context"
	"errors"
	"time"

	"tempmail/inbox/internal/domain"
)

var (
	// ErrMailboxNotFound 邮箱不存在或已过期
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrAddressTaken 地址已被有效邮箱占用
	ErrAddressTaken = errors.New("address already exists")
	// ErrEmailNotFound 邮件未找到错误
	ErrEmailNotFound = errors.New("email not found")
	// ErrAttachmentNotFound 附件未找到错误
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errors.New("cache miss")
)

// MailboxRepository 定义邮箱数据存取操作。
type MailboxRepository interface {
	// CreateMailbox 保存新邮箱；同地址的过期邮箱会连同邮件一起被替换。
	CreateMailbox(ctx context.Context, mailbox *domain.Mailbox) error
	// GetMailboxByAddress 只返回仍然有效的邮箱。
	GetMailboxByAddress(ctx context.Context, address string) (*domain.Mailbox, error)
	TouchMailbox(ctx context.Context, address string, at time.Time) error
	DeleteMailbox(ctx context.Context, address string) error
	// DeleteExpiredMailboxes 删除 now 时刻已过期的邮箱，返回被删除的地址。
	DeleteExpiredMailboxes(ctx context.Context, now time.Time) ([]string, error)
}

// EmailRepository 定义邮件数据存取操作。
type EmailRepository interface {
	CreateEmail(ctx context.Context, email *domain.Email) error
	GetEmail(ctx context.Context, id string) (*domain.Email, error)
	// ListEmails 按接收时间倒序返回邮箱内的邮件。
	ListEmails(ctx context.Context, mailboxID string) ([]domain.Email, error)
	MarkEmailRead(ctx context.Context, id string) error
	DeleteEmail(ctx context.Context, id string) error
}

// AttachmentRepository 定义附件数据存取操作。
type AttachmentRepository interface {
	CreateAttachment(ctx context.Context, attachment *domain.Attachment) error
	GetAttachment(ctx context.Context, id string) (*domain.Attachment, error)
	ListAttachments(ctx context.Context, emailID string) ([]domain.Attachment, error)
}

// Store 定义完整的存储接口。
type Store interface {
	MailboxRepository
	EmailRepository
	AttachmentRepository

	Close() error
	Health(ctx context.Context) error
}
