package workflow

import (
	"errors"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func suspendedState() *State {
	st := NewState("analyze my resume", "/tmp/r.pdf")
	st.Plan = &Plan{
		PrimaryGoal:    "analysis",
		ExecutionOrder: []NodeID{NodeResumeAnalyst, NodeJobMatcher},
		Revision:       1,
	}
	st.NextAgent = NodeResumeAnalyst
	st.Checkpoint = CheckpointCoordinatorPlan
	st.CheckpointPayload = map[string]any{"plan_summary": "x"}
	return st
}

func TestApplyResume_Approve(t *testing.T) {
	st := suspendedState()
	err := ApplyResume(st, CheckpointCoordinatorPlan, Resume{Approved: boolPtr(true)})
	if err != nil {
		t.Fatalf("ApplyResume: %v", err)
	}
	if st.Checkpoint != "" || st.CheckpointPayload != nil {
		t.Fatalf("suspension markers not cleared: %+v", st)
	}
	// 批准后从 execution_order[0] 恢复，completed_tasks 不变
	if st.NextAgent != NodeResumeAnalyst {
		t.Fatalf("next_agent: %v", st.NextAgent)
	}
	if len(st.CompletedTasks) != 0 {
		t.Fatalf("completed_tasks changed: %v", st.CompletedTasks)
	}
}

func TestApplyResume_RejectWithFeedback(t *testing.T) {
	st := suspendedState()
	st.CompletedTasks = []NodeID{NodeResumeAnalyst}
	err := ApplyResume(st, CheckpointCoordinatorPlan, Resume{
		Approved: boolPtr(false),
		Feedback: "also search for jobs",
	})
	if err != nil {
		t.Fatalf("ApplyResume: %v", err)
	}
	// 拒绝后路由回 coordinator re-plan，completed_tasks 清空
	if st.NextAgent != NodeCoordinator {
		t.Fatalf("next_agent: %v", st.NextAgent)
	}
	if st.PlanFeedback != "also search for jobs" {
		t.Fatalf("feedback: %q", st.PlanFeedback)
	}
	if len(st.CompletedTasks) != 0 {
		t.Fatalf("completed_tasks not reset: %v", st.CompletedTasks)
	}
	if st.Checkpoint != "" {
		t.Fatalf("checkpoint not cleared: %v", st.Checkpoint)
	}
}

func TestApplyResume_Clarification(t *testing.T) {
	st := NewState("find jobs", "")
	st.NextAgent = NodeJobResearcher
	st.Checkpoint = CheckpointJobRoleClarification
	st.CheckpointPayload = map[string]any{"question": "which role?"}

	err := ApplyResume(st, CheckpointJobRoleClarification, Resume{ClarifiedRole: "backend engineer"})
	if err != nil {
		t.Fatalf("ApplyResume: %v", err)
	}
	if st.TargetRole != "backend engineer" {
		t.Fatalf("target_role: %q", st.TargetRole)
	}
	// 从发起澄清的节点恢复
	if st.NextAgent != NodeJobResearcher {
		t.Fatalf("next_agent: %v", st.NextAgent)
	}
	if st.Checkpoint != "" {
		t.Fatalf("checkpoint not cleared: %v", st.Checkpoint)
	}
}

func TestApplyResume_Mismatch(t *testing.T) {
	// 未挂起
	st := NewState("req", "")
	err := ApplyResume(st, CheckpointCoordinatorPlan, Resume{Approved: boolPtr(true)})
	if !errors.Is(err, ErrCheckpointMismatch) {
		t.Fatalf("expected ErrCheckpointMismatch, got %v", err)
	}

	// 挂起于另一个检查点
	st = suspendedState()
	err = ApplyResume(st, CheckpointJobRoleClarification, Resume{ClarifiedRole: "x"})
	if !errors.Is(err, ErrCheckpointMismatch) {
		t.Fatalf("expected ErrCheckpointMismatch, got %v", err)
	}
	if st.Checkpoint != CheckpointCoordinatorPlan {
		t.Fatalf("state mutated on mismatch: %v", st.Checkpoint)
	}

	// 响应缺少必需字段
	st = suspendedState()
	err = ApplyResume(st, CheckpointCoordinatorPlan, Resume{})
	if !errors.Is(err, ErrCheckpointMismatch) {
		t.Fatalf("expected ErrCheckpointMismatch, got %v", err)
	}
}

func TestResume_CheckpointFor(t *testing.T) {
	if got := (Resume{Approved: boolPtr(true)}).CheckpointFor(); got != CheckpointCoordinatorPlan {
		t.Fatalf("CheckpointFor: %v", got)
	}
	if got := (Resume{ClarifiedRole: "pm"}).CheckpointFor(); got != CheckpointJobRoleClarification {
		t.Fatalf("CheckpointFor: %v", got)
	}
	if got := (Resume{}).CheckpointFor(); got != "" {
		t.Fatalf("CheckpointFor: %v", got)
	}
}
