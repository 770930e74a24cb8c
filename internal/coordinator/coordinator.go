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

// Package coordinator 工作流的规划权威：分析用户请求，产出有序的
// specialist 执行计划。拒绝后的 re-plan 以结构化反馈与上一版计划为输入，
// 产出全新计划而非原地修改。
package coordinator

import (
	"context"

	"career-platform/internal/workflow"
)

// PlanRequest 一次规划请求。Feedback/Previous 仅在 re-plan 时非空。
type PlanRequest struct {
	UserRequest    string
	ResumeProvided bool
	Feedback       string
	Previous       *workflow.Plan
}

// Coordinator 规划接口。空或不可路由的请求返回 execution_order 为空的计划；
// 无法产出可用计划时返回错误，job 立即失败，不执行任何 specialist。
type Coordinator interface {
	Plan(ctx context.Context, req PlanRequest) (*workflow.Plan, error)
}
