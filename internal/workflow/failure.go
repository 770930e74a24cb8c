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

package workflow

import "fmt"

// FailureKind 失败分类。路由类失败属于构图缺陷（工程错误），
// 与 specialist 业务失败区分记录。
type FailureKind string

const (
	// FailurePlanning coordinator 无法产出可用计划，job 立即失败，不执行任何 specialist
	FailurePlanning FailureKind = "planning_failure"
	// FailureSpecialist specialist 执行出错，job 失败但保留已写入的部分状态
	FailureSpecialist FailureKind = "specialist_failure"
	// FailureRouting next_agent 解析到未知节点，构图/计划不一致的缺陷
	FailureRouting FailureKind = "routing_failure"
)

// NodeFailure 带分类的节点失败，Registry 据此写入 job 的错误信息
type NodeFailure struct {
	Kind FailureKind
	Node NodeID
	Err  error
}

func (f *NodeFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s at node %s", f.Kind, f.Node)
	}
	return fmt.Sprintf("%s at node %s: %v", f.Kind, f.Node, f.Err)
}

func (f *NodeFailure) Unwrap() error { return f.Err }

// KindOf 从错误中提取失败分类；非 NodeFailure 一律视为 specialist 失败
func KindOf(err error) FailureKind {
	if nf, ok := err.(*NodeFailure); ok {
		return nf.Kind
	}
	return FailureSpecialist
}
