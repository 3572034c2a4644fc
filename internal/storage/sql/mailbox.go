package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// ========== Mailbox Repository ==========

// CreateMailbox 保存新邮箱，同地址的过期邮箱会在同一事务内被清除
func (s *Store) CreateMailbox(ctx context.Context, mailbox *domain.Mailbox) error {
	row := *mailbox
	row.CreatedAt = row.CreatedAt.UTC()
	row.ExpiresAt = row.ExpiresAt.UTC()
	row.LastAccessed = row.LastAccessed.UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Mailbox
		err := tx.Where("address = ?", row.Address).First(&existing).Error
		switch {
		case err == nil:
			if existing.IsLive(s.now()) {
				return storage.ErrAddressTaken
			}
			if err := deleteMailboxTx(tx, existing.ID); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(&row).Error
	})
}

// GetMailboxByAddress 根据完整地址获取有效邮箱
func (s *Store) GetMailboxByAddress(ctx context.Context, address string) (*domain.Mailbox, error) {
	var mailbox domain.Mailbox
	err := s.db.WithContext(ctx).
		Where("address = ? AND expires_at > ?", address, s.now().UTC()).
		First(&mailbox).Error
	if err != nil {
		return nil, notFound(err, storage.ErrMailboxNotFound)
	}
	return &mailbox, nil
}

// TouchMailbox 更新邮箱的最后访问时间
func (s *Store) TouchMailbox(ctx context.Context, address string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mailbox domain.Mailbox
		if err := tx.Select("id").Where("address = ?", address).First(&mailbox).Error; err != nil {
			return notFound(err, storage.ErrMailboxNotFound)
		}
		return tx.Model(&domain.Mailbox{}).
			Where("id = ?", mailbox.ID).
			Update("last_accessed", at.UTC()).Error
	})
}

// DeleteMailbox 删除指定邮箱及其邮件和附件
func (s *Store) DeleteMailbox(ctx context.Context, address string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mailbox domain.Mailbox
		if err := tx.Select("id").Where("address = ?", address).First(&mailbox).Error; err != nil {
			return notFound(err, storage.ErrMailboxNotFound)
		}
		return deleteMailboxTx(tx, mailbox.ID)
	})
}

// DeleteExpiredMailboxes 删除所有过期的邮箱，返回被删除的地址
func (s *Store) DeleteExpiredMailboxes(ctx context.Context, now time.Time) ([]string, error) {
	var removed []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []domain.Mailbox
		if err := tx.Select("id", "address").
			Where("expires_at <= ?", now.UTC()).
			Order("address").
			Find(&expired).Error; err != nil {
			return err
		}

		for _, mb := range expired {
			if err := deleteMailboxTx(tx, mb.ID); err != nil {
				return err
			}
			removed = append(removed, mb.Address)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// deleteMailboxTx 依次删除附件、邮件和邮箱本身
func deleteMailboxTx(tx *gorm.DB, mailboxID string) error {
	emailIDs := tx.Model(&domain.Email{}).Select("id").Where("mailbox_id = ?", mailboxID)
	if err := tx.Where("email_id IN (?)", emailIDs).Delete(&domain.Attachment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("mailbox_id = ?", mailboxID).Delete(&domain.Email{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", mailboxID).Delete(&domain.Mailbox{}).Error
}
