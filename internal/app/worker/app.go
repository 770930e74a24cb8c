// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"career-platform/internal/app"
	"career-platform/internal/registry"
	"career-platform/pkg/config"
	"career-platform/pkg/log"
	"career-platform/pkg/tracing"
)

// App 独立 Worker 应用：从共享 Job 存储认领并执行，不暴露 HTTP 接口。
// 与 API 进程共用 postgres/redis 存储时构成控制面/数据面分离部署。
type App struct {
	config   *config.Config
	logger   *log.Logger
	registry *registry.Registry
	sweeper  *registry.Sweeper
	tracer   *sdktrace.TracerProvider

	cancel context.CancelFunc
}

// NewApp 创建新的 Worker 应用
func NewApp(cfg *config.Config) (*App, error) {
	bootstrap, err := app.NewBootstrap(cfg)
	if err != nil {
		return nil, err
	}
	logger := bootstrap.Logger

	if cfg == nil || cfg.Registry.Store == "" || cfg.Registry.Store == "memory" {
		// 内存存储只在本进程可见，独立 Worker 认领不到 API 写入的 job
		logger.Warn("Worker 使用内存 Job 存储，仅适用于单进程调试")
	}

	engine, err := app.NewEngineFromConfig(cfg, logger, bootstrap.LLM)
	if err != nil {
		return nil, fmt.Errorf("装配工作流引擎failed: %w", err)
	}

	workerID := ""
	concurrency := 0
	pollInterval := config.WorkerConfig{}.PollIntervalDuration()
	if cfg != nil {
		workerID = cfg.Worker.WorkerID
		concurrency = cfg.Worker.Concurrency
		pollInterval = cfg.Worker.PollIntervalDuration()
	}
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}
	reg := registry.NewRegistry(bootstrap.Store, engine, registry.NewWakeupQueueMem(0), logger, registry.Config{
		Workers:      concurrency,
		PollInterval: pollInterval,
		WorkerID:     workerID,
	})

	retention := registry.RetentionConfig{}
	if cfg != nil {
		retention = registry.RetentionConfig{
			Terminal:  cfg.Registry.RetentionDuration(),
			Suspended: cfg.Registry.SuspendedRetentionDuration(),
			Stale:     cfg.Registry.StaleRunningDuration(),
			Interval:  cfg.Registry.SweepIntervalDuration(),
		}
	}

	appObj := &App{
		config:   cfg,
		logger:   logger,
		registry: reg,
		sweeper:  registry.NewSweeper(bootstrap.Store, retention, logger),
	}

	if cfg != nil && cfg.Monitoring.Tracing.Enable && cfg.Monitoring.Tracing.ExportEndpoint != "" {
		serviceName := cfg.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "career-worker"
		}
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    serviceName,
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			logger.Warn("初始化链路追踪failed，将不启用", "err", err)
		} else {
			appObj.tracer = tp
			logger.Info("链路追踪已启用", "service_name", serviceName)
		}
	}

	return appObj, nil
}

// Start 启动 worker 池与保留清理循环
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.registry.Start(ctx)
	a.sweeper.Start(ctx)
	a.logger.Info("Worker 已启动")
	return nil
}

// Shutdown 优雅关闭：等待在途 job 的当前节点收尾
func (a *App) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.sweeper.Stop()
	a.registry.Stop()
	if a.tracer != nil {
		_ = a.tracer.Shutdown(ctx)
	}
	return nil
}
