package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/inbox/internal/storage/memory"
)

const sampleMbox = "From sender@example.com Mon Jan  1 00:00:00 2024\n" +
	"From: Sender <sender@example.com>\n" +
	"To: box@temp.mail\n" +
	"Subject: first\n" +
	"\n" +
	"hello one\n" +
	"\n" +
	"From other@example.com Mon Jan  1 00:01:00 2024\n" +
	"From: other@example.com\n" +
	"To: nobody@temp.mail\n" +
	"Subject: second\n" +
	"\n" +
	"hello two\n" +
	"\n" +
	"From sender@example.com Mon Jan  1 00:02:00 2024\n" +
	"From: sender@example.com\n" +
	"To: BOX@temp.mail\n" +
	"Subject: third\n" +
	"\n" +
	"hello three\n"

func TestReplayMbox(t *testing.T) {
	t.Run("逐封回放并汇总结果", func(t *testing.T) {
		store := memory.NewStore()
		seedMailbox(t, store, "mb-1", "box@temp.mail", time.Now().Add(time.Hour))
		svc := NewService(store, NewEnmimeParser(), zap.NewNop())

		var states []State
		summary, err := ReplayMbox(context.Background(), strings.NewReader(sampleMbox), svc,
			func(_ int, out Outcome, err error) {
				require.NoError(t, err)
				states = append(states, out.State)
			})
		require.NoError(t, err)

		assert.Equal(t, ReplaySummary{Total: 3, Done: 2, Abandoned: 1}, summary)
		assert.Equal(t, []State{StateDone, StateAbandoned, StateDone}, states)

		emails, err := store.ListEmails(context.Background(), "mb-1")
		require.NoError(t, err)
		assert.Len(t, emails, 2)
	})

	t.Run("空文件不处理任何邮件", func(t *testing.T) {
		svc := NewService(memory.NewStore(), NewEnmimeParser(), zap.NewNop())

		summary, err := ReplayMbox(context.Background(), strings.NewReader(""), svc, nil)

		require.NoError(t, err)
		assert.Zero(t, summary.Total)
	})

	t.Run("上下文取消时停止回放", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		svc := NewService(memory.NewStore(), NewEnmimeParser(), zap.NewNop())

		summary, err := ReplayMbox(ctx, strings.NewReader(sampleMbox), svc, nil)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, summary.Total)
	})
}
