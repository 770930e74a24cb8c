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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"career-platform/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// Build 创建 Hertz server 并挂载全部路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	hertzOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	s := server.New(hertzOpts...)

	s.Use(r.middleware.CORS())
	s.Use(r.middleware.RequestLog())

	api := s.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/examples", r.handler.Examples)

	api.POST("/process", r.handler.Process)
	api.GET("/status/:job_id", r.handler.JobStatus)
	api.POST("/approve/:job_id", r.handler.ApproveJob)

	system := api.Group("/system")
	system.GET("/metrics", r.handler.SystemMetrics)

	return s
}
