package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// Store 使用内存保存邮箱、邮件和附件，主要用于开发验证和测试。
type Store struct {
	mu          sync.RWMutex
	mailboxes   map[string]*domain.Mailbox     // mailboxID -> mailbox
	byAddress   map[string]string              // address -> mailboxID
	emails      map[string]*domain.Email       // emailID -> email
	byMailbox   map[string]map[string]struct{} // mailboxID -> emailIDs
	attachments map[string]*domain.Attachment  // attachmentID -> attachment
	byEmail     map[string][]string            // emailID -> attachmentIDs（按插入顺序）

	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		mailboxes:   make(map[string]*domain.Mailbox),
		byAddress:   make(map[string]string),
		emails:      make(map[string]*domain.Email),
		byMailbox:   make(map[string]map[string]struct{}),
		attachments: make(map[string]*domain.Attachment),
		byEmail:     make(map[string][]string),
		now:         time.Now,
	}
}

// CreateMailbox 保存新邮箱。
func (s *Store) CreateMailbox(_ context.Context, mailbox *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byAddress[mailbox.Address]; ok {
		if s.mailboxes[id].IsLive(s.now()) {
			return storage.ErrAddressTaken
		}
		s.deleteMailboxLocked(id)
	}

	stored := *mailbox
	s.mailboxes[stored.ID] = &stored
	s.byAddress[stored.Address] = stored.ID
	return nil
}

// GetMailboxByAddress 根据完整地址获取有效邮箱。
func (s *Store) GetMailboxByAddress(_ context.Context, address string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, storage.ErrMailboxNotFound
	}
	mailbox := s.mailboxes[id]
	if !mailbox.IsLive(s.now()) {
		return nil, storage.ErrMailboxNotFound
	}
	out := *mailbox
	return &out, nil
}

// TouchMailbox 更新邮箱的最后访问时间。
func (s *Store) TouchMailbox(_ context.Context, address string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byAddress[address]
	if !ok {
		return storage.ErrMailboxNotFound
	}
	s.mailboxes[id].LastAccessed = at
	return nil
}

// DeleteMailbox 删除指定邮箱及其邮件和附件。
func (s *Store) DeleteMailbox(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byAddress[address]
	if !ok {
		return storage.ErrMailboxNotFound
	}
	s.deleteMailboxLocked(id)
	return nil
}

// DeleteExpiredMailboxes 删除所有过期的邮箱，返回被删除的地址。
func (s *Store) DeleteExpiredMailboxes(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, mb := range s.mailboxes {
		if !mb.IsLive(now) {
			removed = append(removed, mb.Address)
			s.deleteMailboxLocked(id)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

func (s *Store) deleteMailboxLocked(id string) {
	if mb, ok := s.mailboxes[id]; ok {
		delete(s.byAddress, mb.Address)
	}
	for emailID := range s.byMailbox[id] {
		s.deleteEmailLocked(emailID)
	}
	delete(s.byMailbox, id)
	delete(s.mailboxes, id)
}

// CreateEmail 保存邮件，所属邮箱必须存在。
func (s *Store) CreateEmail(_ context.Context, email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[email.MailboxID]; !ok {
		return storage.ErrMailboxNotFound
	}

	stored := *email
	s.emails[stored.ID] = &stored
	if _, ok := s.byMailbox[stored.MailboxID]; !ok {
		s.byMailbox[stored.MailboxID] = make(map[string]struct{})
	}
	s.byMailbox[stored.MailboxID][stored.ID] = struct{}{}
	return nil
}

// GetEmail 获取单封邮件。
func (s *Store) GetEmail(_ context.Context, id string) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[id]
	if !ok {
		return nil, storage.ErrEmailNotFound
	}
	out := *email
	return &out, nil
}

// ListEmails 返回某个邮箱下的全部邮件，最新的在前。
func (s *Store) ListEmails(_ context.Context, mailboxID string) ([]domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byMailbox[mailboxID]
	result := make([]domain.Email, 0, len(ids))
	for id := range ids {
		result = append(result, *s.emails[id])
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ReceivedAt.Equal(result[j].ReceivedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})
	return result, nil
}

// MarkEmailRead 将邮件标记为已读。
func (s *Store) MarkEmailRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[id]
	if !ok {
		return storage.ErrEmailNotFound
	}
	email.IsRead = true
	return nil
}

// DeleteEmail 删除指定邮件及其附件。
func (s *Store) DeleteEmail(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[id]
	if !ok {
		return storage.ErrEmailNotFound
	}
	delete(s.byMailbox[email.MailboxID], id)
	s.deleteEmailLocked(id)
	return nil
}

func (s *Store) deleteEmailLocked(id string) {
	for _, attachmentID := range s.byEmail[id] {
		delete(s.attachments, attachmentID)
	}
	delete(s.byEmail, id)
	delete(s.emails, id)
}

// CreateAttachment 保存附件，所属邮件必须存在。
func (s *Store) CreateAttachment(_ context.Context, attachment *domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[attachment.EmailID]; !ok {
		return storage.ErrEmailNotFound
	}

	stored := *attachment
	s.attachments[stored.ID] = &stored
	s.byEmail[stored.EmailID] = append(s.byEmail[stored.EmailID], stored.ID)
	return nil
}

// GetAttachment 获取单个附件（含内容）。
func (s *Store) GetAttachment(_ context.Context, id string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attachment, ok := s.attachments[id]
	if !ok {
		return nil, storage.ErrAttachmentNotFound
	}
	out := *attachment
	return &out, nil
}

// ListAttachments 按保存顺序返回邮件的附件。
func (s *Store) ListAttachments(_ context.Context, emailID string) ([]domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byEmail[emailID]
	result := make([]domain.Attachment, 0, len(ids))
	for _, id := range ids {
		result = append(result, *s.attachments[id])
	}
	return result, nil
}

// Close 内存存储无需释放资源。
func (s *Store) Close() error {
	return nil
}

// Health 内存存储始终健康。
func (s *Store) Health(context.Context) error {
	return nil
}
