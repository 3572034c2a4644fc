package sql

import (
	"context"

	"gorm.io/gorm"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// ========== Email Repository ==========

// CreateEmail 保存邮件，所属邮箱必须存在
func (s *Store) CreateEmail(ctx context.Context, email *domain.Email) error {
	row := *email
	row.ReceivedAt = row.ReceivedAt.UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Mailbox{}).Where("id = ?", row.MailboxID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrMailboxNotFound
		}
		return tx.Create(&row).Error
	})
}

// GetEmail 获取单封邮件
func (s *Store) GetEmail(ctx context.Context, id string) (*domain.Email, error) {
	var email domain.Email
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		return nil, notFound(err, storage.ErrEmailNotFound)
	}
	return &email, nil
}

// ListEmails 返回某个邮箱下的全部邮件，最新的在前
func (s *Store) ListEmails(ctx context.Context, mailboxID string) ([]domain.Email, error) {
	emails := make([]domain.Email, 0)
	err := s.db.WithContext(ctx).
		Where("mailbox_id = ?", mailboxID).
		Order("received_at DESC, id DESC").
		Find(&emails).Error
	return emails, err
}

// MarkEmailRead 将邮件标记为已读
func (s *Store) MarkEmailRead(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var email domain.Email
		if err := tx.Select("id").Where("id = ?", id).First(&email).Error; err != nil {
			return notFound(err, storage.ErrEmailNotFound)
		}
		return tx.Model(&domain.Email{}).Where("id = ?", id).Update("is_read", true).Error
	})
}

// DeleteEmail 删除指定邮件及其附件
func (s *Store) DeleteEmail(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email_id = ?", id).Delete(&domain.Attachment{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.Email{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrEmailNotFound
		}
		return nil
	})
}

// ========== Attachment Repository ==========

// CreateAttachment 保存附件，所属邮件必须存在
func (s *Store) CreateAttachment(ctx context.Context, attachment *domain.Attachment) error {
	row := *attachment
	row.CreatedAt = row.CreatedAt.UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Email{}).Where("id = ?", row.EmailID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrEmailNotFound
		}
		return tx.Create(&row).Error
	})
}

// GetAttachment 获取单个附件（含内容）
func (s *Store) GetAttachment(ctx context.Context, id string) (*domain.Attachment, error) {
	var attachment domain.Attachment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error; err != nil {
		return nil, notFound(err, storage.ErrAttachmentNotFound)
	}
	return &attachment, nil
}

// ListAttachments 返回邮件的附件元数据，不含内容
func (s *Store) ListAttachments(ctx context.Context, emailID string) ([]domain.Attachment, error) {
	attachments := make([]domain.Attachment, 0)
	err := s.db.WithContext(ctx).
		Omit("content").
		Where("email_id = ?", emailID).
		Order("created_at, id").
		Find(&attachments).Error
	return attachments, err
}
