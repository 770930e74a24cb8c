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

package specialist

import (
	"strings"

	"career-platform/internal/workflow"
)

// extractJSON 从模型回复中提取 JSON 对象（可能被 markdown 代码块包裹）
func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	if idx := strings.Index(reply, "{"); idx >= 0 {
		if end := strings.LastIndex(reply, "}"); end > idx {
			return reply[idx : end+1]
		}
	}
	return reply
}

// finish 标记 specialist 完成并通过路由函数计算下一跳
func finish(st *workflow.State, id workflow.NodeID, d workflow.Delta) workflow.Delta {
	d.Completed = append(d.Completed, id)
	completed := append([]workflow.NodeID{}, st.CompletedTasks...)
	completed = append(completed, id)
	d.NextAgent = workflow.Route(st.Plan, completed)
	return d
}
