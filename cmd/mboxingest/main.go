package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/di"
	"tempmail/inbox/internal/ingest"
	"tempmail/inbox/internal/storage"
)

func main() {
	path := flag.String("file", "", "要回放的 mbox 文件路径")
	flag.Parse()

	if *path == "" {
		fmt.Println("用法:")
		fmt.Println("  go run ./cmd/mboxingest -file=/var/mail/archive.mbox")
		os.Exit(1)
	}

	container, err := di.BuildContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(checkConfig); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		fmt.Println("请设置 TEMPMAIL_DATABASE_TYPE 和 TEMPMAIL_DATABASE_DSN 指向已有邮箱的数据库")
		os.Exit(1)
	}

	err = container.Invoke(func(store storage.Store, log *zap.Logger) error {
		defer func() { _ = log.Sync() }()
		defer store.Close()
		return replay(*path, newReplayService(store, log), log)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

var errNoDatabase = errors.New("database.type is empty, replaying into an in-memory store would discard every message")

// checkConfig 回放必须写入持久化数据库
func checkConfig(cfg *config.Config) error {
	if cfg.Database.Type == "" {
		return errNoDatabase
	}
	return nil
}

// newReplayService 创建不带实时通知的收信服务
func newReplayService(store storage.Store, log *zap.Logger) *ingest.Service {
	return ingest.NewService(store, ingest.NewEnmimeParser(), log.Named("ingest"))
}

func replay(path string, svc *ingest.Service, log *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := ingest.ReplayMbox(ctx, f, svc, func(index int, out ingest.Outcome, readErr error) {
		if readErr != nil {
			fmt.Printf("#%d\tunreadable\t%v\n", index, readErr)
			return
		}
		line := fmt.Sprintf("#%d\t%s\tto=%s\tattachments=%d/%d", index, out.State, out.Recipient, out.Persisted(), len(out.Attachments))
		if out.Err != nil {
			line += "\terror=" + out.Err.Error()
		}
		fmt.Println(line)
	})

	log.Info("mbox replay finished",
		zap.String("file", path),
		zap.Int("total", summary.Total),
		zap.Int("done", summary.Done),
		zap.Int("abandoned", summary.Abandoned),
		zap.Int("unread", summary.Unread),
	)
	return err
}
