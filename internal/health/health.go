package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 是可以报告自身健康状态的依赖
type Pinger interface {
	Health(ctx context.Context) error
}

const (
	checkTimeout       = 5 * time.Second
	maxGoroutines      = 10000
	checkNameStorage   = "storage"
	checkNameGoroutine = "goroutines"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  Pinger
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store Pinger, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	hc.addChecks()

	return hc
}

func (hc *HealthChecker) addChecks() {
	hc.health.AddLivenessCheck(checkNameGoroutine, healthcheck.GoroutineCountCheck(maxGoroutines))

	// 存储不可用时不接收流量，但进程本身仍然存活
	hc.health.AddReadinessCheck(checkNameStorage, StorageCheck(hc.store))
}

// LiveHandler 存活检查
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪检查
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行健康检查，返回每个检查项的状态
func (hc *HealthChecker) CheckHealth() (map[string]string, bool) {
	results := make(map[string]string)
	healthy := true

	if err := StorageCheck(hc.store)(); err != nil {
		hc.logger.Warn("storage health check failed", zap.Error(err))
		results[checkNameStorage] = fmt.Sprintf("ERROR: %v", err)
		healthy = false
	} else {
		results[checkNameStorage] = "OK"
	}

	results["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	return results, healthy
}

// StorageCheck 存储健康检查
func StorageCheck(store Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		return store.Health(ctx)
	}
}
