package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/ingest"
	"tempmail/inbox/internal/storage"
	"tempmail/inbox/internal/storage/memory"
)

type emailFixture struct {
	store   *memory.Store
	service *EmailService
	mailbox *domain.Mailbox
}

func newEmailFixture(t *testing.T) *emailFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Now().UTC()

	mailbox := &domain.Mailbox{
		ID:           "mb-1",
		Address:      "alice@temp.mail",
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
		LastAccessed: now,
	}
	require.NoError(t, store.CreateMailbox(ctx, mailbox))

	for i, id := range []string{"old", "new"} {
		require.NoError(t, store.CreateEmail(ctx, &domain.Email{
			ID:          id,
			MailboxID:   mailbox.ID,
			FromAddress: "bob@example.com",
			ToAddress:   mailbox.Address,
			Subject:     "subject " + id,
			TextContent: "text " + id,
			HTMLContent: "<p>" + id + "</p>",
			ReceivedAt:  now.Add(time.Duration(i) * time.Minute),
		}))
	}

	require.NoError(t, store.CreateAttachment(ctx, &domain.Attachment{
		ID:        "att-1",
		EmailID:   "new",
		Filename:  "hello.txt",
		MimeType:  "text/plain",
		Content:   ingest.EncodeContent([]byte("hello world")),
		Size:      11,
		CreatedAt: now,
	}))

	return &emailFixture{
		store:   store,
		service: NewEmailService(store, zap.NewNop()),
		mailbox: mailbox,
	}
}

func TestEmailService_List(t *testing.T) {
	f := newEmailFixture(t)
	ctx := context.Background()

	t.Run("按时间倒序且不含正文", func(t *testing.T) {
		emails, err := f.service.List(ctx, "ALICE@temp.mail")

		require.NoError(t, err)
		require.Len(t, emails, 2)
		assert.Equal(t, "new", emails[0].ID)
		assert.Equal(t, "old", emails[1].ID)
		for _, e := range emails {
			assert.Empty(t, e.TextContent)
			assert.Empty(t, e.HTMLContent)
			assert.NotEmpty(t, e.Subject)
		}
	})

	t.Run("邮箱不存在", func(t *testing.T) {
		_, err := f.service.List(ctx, "nobody@temp.mail")
		assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
	})
}

func TestEmailService_Get(t *testing.T) {
	f := newEmailFixture(t)
	ctx := context.Background()

	t.Run("获取详情并标记已读", func(t *testing.T) {
		email, err := f.service.Get(ctx, "new")

		require.NoError(t, err)
		assert.Equal(t, "text new", email.TextContent)
		assert.True(t, email.IsRead)

		stored, err := f.store.GetEmail(ctx, "new")
		require.NoError(t, err)
		assert.True(t, stored.IsRead)
	})

	t.Run("邮件不存在", func(t *testing.T) {
		_, err := f.service.Get(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)
	})
}

func TestEmailService_Delete(t *testing.T) {
	f := newEmailFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Delete(ctx, "new"))

	_, err := f.store.GetAttachment(ctx, "att-1")
	assert.ErrorIs(t, err, storage.ErrAttachmentNotFound, "删除邮件时一并删除附件")

	assert.ErrorIs(t, f.service.Delete(ctx, "new"), storage.ErrEmailNotFound)
}

func TestEmailService_Attachments(t *testing.T) {
	f := newEmailFixture(t)
	ctx := context.Background()

	t.Run("附件列表不含内容", func(t *testing.T) {
		attachments, err := f.service.ListAttachments(ctx, "new")

		require.NoError(t, err)
		require.Len(t, attachments, 1)
		assert.Equal(t, "hello.txt", attachments[0].Filename)
		assert.Equal(t, int64(11), attachments[0].Size)
		assert.Empty(t, attachments[0].Content)
	})

	t.Run("没有附件的邮件返回空列表", func(t *testing.T) {
		attachments, err := f.service.ListAttachments(ctx, "old")

		require.NoError(t, err)
		assert.Empty(t, attachments)
	})

	t.Run("邮件不存在", func(t *testing.T) {
		_, err := f.service.ListAttachments(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)
	})

	t.Run("下载还原原始字节", func(t *testing.T) {
		file, err := f.service.Download(ctx, "att-1")

		require.NoError(t, err)
		assert.Equal(t, []byte("hello world"), file.Data)
		assert.Equal(t, "text/plain", file.MimeType)
		assert.Equal(t, "hello.txt", file.Filename)
	})

	t.Run("损坏的内容返回错误", func(t *testing.T) {
		require.NoError(t, f.store.CreateAttachment(ctx, &domain.Attachment{
			ID:      "att-bad",
			EmailID: "old",
			Content: "%%%not-base64",
		}))

		_, err := f.service.Download(ctx, "att-bad")
		assert.Error(t, err)
	})
}
