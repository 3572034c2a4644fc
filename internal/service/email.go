package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/ingest"
	"tempmail/inbox/internal/storage"
)

// EmailService 封装邮件和附件的读取与删除。
type EmailService struct {
	store storage.Store
	log   *zap.Logger
}

// NewEmailService 创建邮件业务服务。
func NewEmailService(store storage.Store, log *zap.Logger) *EmailService {
	return &EmailService{store: store, log: log}
}

// List 返回邮箱内的邮件列表，最新的在前，不含正文。
func (s *EmailService) List(ctx context.Context, address string) ([]domain.Email, error) {
	mailbox, err := s.store.GetMailboxByAddress(ctx, domain.NormalizeAddress(address))
	if err != nil {
		return nil, err
	}

	emails, err := s.store.ListEmails(ctx, mailbox.ID)
	if err != nil {
		return nil, err
	}
	for i := range emails {
		emails[i].TextContent = ""
		emails[i].HTMLContent = ""
	}
	return emails, nil
}

// Get 返回邮件详情并标记为已读。
func (s *EmailService) Get(ctx context.Context, id string) (*domain.Email, error) {
	email, err := s.store.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}

	if !email.IsRead {
		if err := s.store.MarkEmailRead(ctx, id); err != nil {
			return nil, err
		}
		email.IsRead = true
	}
	return email, nil
}

// Delete 删除邮件及其附件。
func (s *EmailService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteEmail(ctx, id)
}

// ListAttachments 返回邮件的附件元数据，不含内容。
func (s *EmailService) ListAttachments(ctx context.Context, emailID string) ([]domain.Attachment, error) {
	if _, err := s.store.GetEmail(ctx, emailID); err != nil {
		return nil, err
	}

	attachments, err := s.store.ListAttachments(ctx, emailID)
	if err != nil {
		return nil, err
	}
	for i := range attachments {
		attachments[i].Content = ""
	}
	return attachments, nil
}

// AttachmentFile 是解码后的附件内容
type AttachmentFile struct {
	Filename string
	MimeType string
	Data     []byte
}

// Download 读取附件并还原为原始字节。
func (s *EmailService) Download(ctx context.Context, id string) (*AttachmentFile, error) {
	attachment, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := ingest.DecodeContent(attachment.Content)
	if err != nil {
		s.log.Error("stored attachment is not valid base64",
			zap.String("attachment_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("decode attachment %s: %w", id, err)
	}

	mimeType := attachment.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &AttachmentFile{
		Filename: attachment.Filename,
		MimeType: mimeType,
		Data:     data,
	}, nil
}
