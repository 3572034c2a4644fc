package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/di"
	"tempmail/inbox/internal/pool"
	"tempmail/inbox/internal/service"
	"tempmail/inbox/internal/storage"
	"tempmail/inbox/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// serverDeps 是服务进程运行所需的全部组件
type serverDeps struct {
	dig.In

	Config    *config.Config
	Logger    *zap.Logger
	Store     storage.Store
	Router    *gin.Engine
	SMTP      *gosmtp.Server
	Workers   *pool.WorkerPool
	Hub       *websocket.Hub
	Mailboxes *service.MailboxService
}

func run(deps serverDeps) error {
	cfg, log := deps.Config, deps.Logger
	defer func() { _ = log.Sync() }()

	log.Info("starting tempmail inbox",
		zap.Strings("domains", cfg.Mailbox.AllowedDomains),
		zap.Duration("default_ttl", cfg.Mailbox.DefaultTTL),
		zap.Duration("max_ttl", cfg.Mailbox.MaxTTL),
		zap.Int("workers", cfg.Ingest.Workers),
	)

	deps.Workers.Start()

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           deps.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting SMTP server",
			zap.String("address", cfg.SMTP.BindAddr),
			zap.String("domain", cfg.SMTP.Domain),
		)
		if err := deps.SMTP.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
			log.Error("SMTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		deps.Hub.Run(groupCtx)
		return nil
	})

	// 定时清理过期邮箱 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Mailbox.CleanupInterval)
		defer ticker.Stop()

		log.Info("starting expired mailbox cleanup task", zap.Duration("interval", cfg.Mailbox.CleanupInterval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				if _, err := deps.Mailboxes.PurgeExpired(groupCtx); err != nil && groupCtx.Err() == nil {
					log.Error("failed to cleanup expired mailboxes", zap.Error(err))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// 先停止接收新邮件，再等待队列中的邮件处理完
		if err := deps.SMTP.Shutdown(shutdownCtx); err != nil {
			log.Warn("SMTP server shutdown warning", zap.Error(err))
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		deps.Workers.Stop()

		log.Info("servers stopped")
		return nil
	})

	err := group.Wait()

	if closeErr := deps.Store.Close(); closeErr != nil {
		log.Error("failed to close storage", zap.Error(closeErr))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("server exited cleanly")
	return nil
}
