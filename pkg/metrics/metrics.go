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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		JobDuration, JobTotal, JobsAwaitingApproval,
		SpecialistDuration, SpecialistFailTotal,
		LLMTokensTotal, WorkerBusy,
	)
}

// JobDuration Job 端到端执行耗时（秒，不含挂起等待人工的时间）
var JobDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "career_job_duration_seconds",
		Help:    "Job 执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// JobTotal Job 总数（按终态）
var JobTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "career_job_total",
		Help: "Job 总数（按状态）",
	},
	[]string{"status"}, // completed | failed
)

// JobsAwaitingApproval 当前挂起等待人工审批的 Job 数
var JobsAwaitingApproval = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "career_jobs_awaiting_approval",
		Help: "当前处于 awaiting_approval 的 Job 数",
	},
)

// SpecialistDuration 单个 specialist 节点执行耗时（秒）
var SpecialistDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "career_specialist_duration_seconds",
		Help:    "Specialist 节点执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"specialist"},
)

// SpecialistFailTotal specialist 节点失败总数
var SpecialistFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "career_specialist_fail_total",
		Help: "Specialist 节点失败总数",
	},
	[]string{"specialist"},
)

// LLMTokensTotal LLM 调用 token 数（估算）
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "career_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// WorkerBusy 当前正在执行的 Job 数（每 Worker）
var WorkerBusy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "career_worker_busy",
		Help: "当前正在执行的 Job 数",
	},
	[]string{"worker_id"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
