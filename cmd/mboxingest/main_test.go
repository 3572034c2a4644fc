package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/di"
	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage/memory"
)

const archive = "From sender@example.com Mon Jan  1 00:00:00 2024\n" +
	"From: sender@example.com\n" +
	"To: box@temp.mail\n" +
	"Subject: archived\n" +
	"\n" +
	"hello\n"

func TestCheckConfig(t *testing.T) {
	t.Run("未配置数据库时拒绝回放", func(t *testing.T) {
		err := checkConfig(&config.Config{})
		assert.ErrorIs(t, err, errNoDatabase)
	})

	t.Run("配置数据库时允许回放", func(t *testing.T) {
		cfg := &config.Config{Database: config.DatabaseConfig{Type: "sqlite", DSN: "file:inbox.db"}}
		assert.NoError(t, checkConfig(cfg))
	})

	t.Run("通过容器加载默认配置时拒绝回放", func(t *testing.T) {
		t.Setenv("TEMPMAIL_DATABASE_TYPE", "")
		t.Setenv("TEMPMAIL_LOG_FILE", "")
		t.Setenv("TEMPMAIL_LOG_LEVEL", "error")

		container, err := di.BuildContainer()
		require.NoError(t, err)

		err = container.Invoke(checkConfig)
		assert.ErrorContains(t, err, "database.type is empty")
	})
}

func TestReplay(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.CreateMailbox(context.Background(), &domain.Mailbox{
		ID:        "mb-1",
		Address:   "box@temp.mail",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	path := filepath.Join(t.TempDir(), "archive.mbox")
	require.NoError(t, os.WriteFile(path, []byte(archive), 0o600))

	require.NoError(t, replay(path, newReplayService(store, zap.NewNop()), zap.NewNop()))

	emails, err := store.ListEmails(context.Background(), "mb-1")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "archived", emails[0].Subject)
}

func TestReplay_MissingFile(t *testing.T) {
	err := replay(filepath.Join(t.TempDir(), "missing.mbox"), newReplayService(memory.NewStore(), zap.NewNop()), zap.NewNop())
	assert.ErrorContains(t, err, "open mbox")
}
