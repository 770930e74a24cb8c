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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"career-platform/internal/registry"
	"career-platform/internal/workflow"
	"career-platform/pkg/log"
	"career-platform/pkg/metrics"
)

// JobService Handler 依赖的 job 生命周期接口，由 registry.Registry 实现
type JobService interface {
	Submit(ctx context.Context, userRequest, resumeRef string) (string, error)
	Status(ctx context.Context, id string) (*registry.StatusView, error)
	Approve(ctx context.Context, id string, resp workflow.Resume) (*registry.StatusView, error)
}

// Handler HTTP 处理器
type Handler struct {
	jobs   JobService
	logger *log.Logger
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(jobs JobService, logger *log.Logger) *Handler {
	return &Handler{jobs: jobs, logger: logger}
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "career-platform",
	})
}

// processRequest POST /api/process 请求体。prompt/request/message 三个键等价
type processRequest struct {
	Prompt     string `json:"prompt"`
	Request    string `json:"request"`
	Message    string `json:"message"`
	ResumePath string `json:"resume_path"`
}

func (r *processRequest) userPrompt() string {
	switch {
	case r.Prompt != "":
		return r.Prompt
	case r.Request != "":
		return r.Request
	default:
		return r.Message
	}
}

// Process 提交 job，立即返回 job_id（执行在后台 worker 池进行）
// POST /api/process
func (h *Handler) Process(c context.Context, ctx *app.RequestContext) {
	var req processRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "invalid JSON body",
		})
		return
	}
	prompt := req.userPrompt()
	if prompt == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "No prompt provided. Please include 'prompt', 'request', or 'message' in your request.",
		})
		return
	}
	if req.ResumePath != "" {
		if _, err := os.Stat(req.ResumePath); err != nil {
			ctx.JSON(consts.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("Resume file not found: %s", req.ResumePath),
			})
			return
		}
	}

	jobID, err := h.jobs.Submit(c, prompt, req.ResumePath)
	if err != nil {
		hlog.CtxErrorf(c, "提交 job failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "failed to submit job",
		})
		return
	}

	ctx.JSON(consts.StatusAccepted, map[string]any{
		"message":          "Request is being processed in the background.",
		"job_id":           jobID,
		"status":           string(registry.StatusQueued),
		"status_check_url": "/api/status/" + jobID,
	})
}

// JobStatus 轮询 job 状态
// GET /api/status/:job_id
func (h *Handler) JobStatus(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("job_id")
	view, err := h.jobs.Status(c, jobID)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownJob) {
			ctx.JSON(consts.StatusNotFound, map[string]string{
				"error": "job not found: " + jobID,
			})
			return
		}
		hlog.CtxErrorf(c, "查询 job 状态failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "failed to query job status",
		})
		return
	}
	ctx.JSON(consts.StatusOK, view)
}

// approveRequest POST /api/approve/:job_id 请求体。
// approved 非空视为计划审批，clarified_role 非空视为职位澄清。
type approveRequest struct {
	Approved      *bool  `json:"approved"`
	Feedback      string `json:"feedback"`
	ClarifiedRole string `json:"clarified_role"`
}

// ApproveJob 提交检查点响应并恢复 job 执行
// POST /api/approve/:job_id
func (h *Handler) ApproveJob(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("job_id")
	var req approveRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "invalid JSON body",
		})
		return
	}
	resp := workflow.Resume{
		Approved:      req.Approved,
		Feedback:      req.Feedback,
		ClarifiedRole: req.ClarifiedRole,
	}

	view, err := h.jobs.Approve(c, jobID, resp)
	switch {
	case err == nil:
		ctx.JSON(consts.StatusOK, view)
	case errors.Is(err, registry.ErrUnknownJob):
		ctx.JSON(consts.StatusNotFound, map[string]string{
			"error": "job not found: " + jobID,
		})
	case errors.Is(err, registry.ErrNotAwaiting), errors.Is(err, workflow.ErrCheckpointMismatch):
		ctx.JSON(consts.StatusConflict, map[string]string{
			"error": err.Error(),
		})
	default:
		hlog.CtxErrorf(c, "恢复 job failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "failed to resume job",
		})
	}
}

// SystemMetrics Prometheus 文本格式指标
// GET /api/system/metrics
func (h *Handler) SystemMetrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "failed to gather metrics",
		})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// Examples 示例请求与预期 specialist 组合
// GET /api/examples
func (h *Handler) Examples(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]any{
		"resume_analysis": map[string]any{
			"prompt":          "Please analyze my resume and tell me how I can improve it",
			"expected_agents": []string{"resume_analyst"},
		},
		"job_search": map[string]any{
			"prompt":          "Find me software engineering jobs that match my background",
			"expected_agents": []string{"resume_analyst", "job_researcher"},
		},
		"cv_creation": map[string]any{
			"prompt":          "Create a professional CV optimized for tech companies",
			"expected_agents": []string{"resume_analyst", "job_researcher", "cv_creator"},
		},
		"job_matching": map[string]any{
			"prompt":          "Compare my resume against the jobs you find and tell me which ones are the best fit",
			"expected_agents": []string{"resume_analyst", "job_researcher", "job_matcher"},
		},
		"complete_workflow": map[string]any{
			"prompt":          "I need complete job hunting help - analyze my resume, find jobs, and create an optimized CV",
			"expected_agents": []string{"resume_analyst", "job_researcher", "cv_creator", "job_matcher"},
		},
	})
}
