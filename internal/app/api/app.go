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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	apihttp "career-platform/internal/api/http"
	"career-platform/internal/api/http/middleware"
	"career-platform/internal/app"
	"career-platform/internal/registry"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与进程内 worker 池）
type App struct {
	bootstrap    *app.Bootstrap
	registry     *registry.Registry
	sweeper      *registry.Sweeper
	router       *apihttp.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown

	workers      int
	workerCancel context.CancelFunc
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config

	engine, err := app.NewEngineFromConfig(cfg, bootstrap.Logger, bootstrap.LLM)
	if err != nil {
		return nil, fmt.Errorf("装配工作流引擎failed: %w", err)
	}

	// registry.workers=0：API 仅做控制面（提交/查询/审批），执行交给独立 Worker 进程
	workers := 2
	if cfg != nil && cfg.Registry.Workers >= 0 {
		workers = cfg.Registry.Workers
	}
	reg := registry.NewRegistry(bootstrap.Store, engine, registry.NewWakeupQueueMem(0), bootstrap.Logger, registry.Config{
		Workers:  workers,
		WorkerID: "api",
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
	sweeper := registry.NewSweeper(bootstrap.Store, retention, bootstrap.Logger)

	handler := apihttp.NewHandler(reg, bootstrap.Logger)
	router := apihttp.NewRouter(handler, middleware.NewMiddleware())

	return &App{
		bootstrap: bootstrap,
		registry:  reg,
		sweeper:   sweeper,
		router:    router,
		workers:   workers,
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 日志配置对齐
	output := os.Stdout
	if cfg != nil && cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件failed: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	if cfg != nil {
		switch cfg.Log.Level {
		case "debug":
			levelVar.Set(slog.LevelDebug)
		case "warn":
			levelVar.Set(slog.LevelWarn)
		case "error":
			levelVar.Set(slog.LevelError)
		default:
			levelVar.Set(slog.LevelInfo)
		}
	} else {
		levelVar.Set(slog.LevelInfo)
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	if cfg != nil && cfg.Monitoring.Tracing.Enable {
		serviceName := cfg.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "career-api"
		}
		exportEndpoint := cfg.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if cfg.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	if a.workers > 0 {
		a.registry.Start(workerCtx)
		a.bootstrap.Logger.Info("进程内 worker 池已启动", "workers", a.workers)
	} else {
		a.bootstrap.Logger.Info("本进程不执行 Job（registry.workers=0），等待独立 Worker 认领")
	}
	a.sweeper.Start(workerCtx)

	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.workerCancel != nil {
		a.workerCancel()
	}
	a.sweeper.Stop()
	if a.workers > 0 {
		a.registry.Stop()
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		return a.hertz.Shutdown(ctx)
	}
	return nil
}
