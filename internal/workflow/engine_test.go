package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"career-platform/pkg/log"
)

type fakeNode struct {
	id  NodeID
	run func(ctx context.Context, st *State) (Delta, error)
}

func (f *fakeNode) ID() NodeID { return f.id }
func (f *fakeNode) Run(ctx context.Context, st *State) (Delta, error) {
	return f.run(ctx, st)
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	l, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return l
}

// planNode 产出固定计划并按需挂起审批
func planNode(order []NodeID, requireApproval bool) *fakeNode {
	return &fakeNode{id: NodeCoordinator, run: func(_ context.Context, st *State) (Delta, error) {
		rev := 1
		if st.Plan != nil {
			rev = st.Plan.Revision + 1
		}
		p := &Plan{PrimaryGoal: "goal", ExecutionOrder: order, Revision: rev}
		d := Delta{Plan: p, NextAgent: Route(p, st.CompletedTasks)}
		if requireApproval && len(order) > 0 {
			d.Checkpoint = CheckpointCoordinatorPlan
			d.CheckpointPayload = map[string]any{"plan_summary": p.Summary()}
		}
		return d, nil
	}}
}

// doneNode 写一个结果槽位并把路由交还给计划
func doneNode(id NodeID) *fakeNode {
	return &fakeNode{id: id, run: func(_ context.Context, st *State) (Delta, error) {
		completed := append([]NodeID{}, st.CompletedTasks...)
		completed = append(completed, id)
		return Delta{
			Messages:  []string{string(id) + ": done"},
			Completed: []NodeID{id},
			NextAgent: Route(st.Plan, completed),
		}, nil
	}}
}

func TestEngine_RunToCompletion(t *testing.T) {
	eng, err := NewEngine(testLogger(t), 0,
		planNode([]NodeID{NodeResumeAnalyst, NodeJobMatcher}, false),
		doneNode(NodeResumeAnalyst),
		doneNode(NodeJobMatcher),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := NewState("analyze and match", "")
	susp, err := eng.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if susp != nil {
		t.Fatalf("unexpected suspension: %+v", susp)
	}
	if st.NextAgent != NodeTerminal {
		t.Fatalf("next_agent: %v", st.NextAgent)
	}
	if !st.IsCompleted(NodeResumeAnalyst) || !st.IsCompleted(NodeJobMatcher) {
		t.Fatalf("completed_tasks: %v", st.CompletedTasks)
	}
	// messages 严格按执行顺序追加
	if st.Messages[0] != "resume_analyst: done" || st.Messages[1] != "job_matcher: done" {
		t.Fatalf("messages: %v", st.Messages)
	}
}

func TestEngine_EmptyPlanCompletesImmediately(t *testing.T) {
	eng, err := NewEngine(testLogger(t), 0, planNode(nil, true))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := NewState("", "")
	susp, err := eng.Run(context.Background(), st)
	if err != nil || susp != nil {
		t.Fatalf("Run: susp=%+v err=%v", susp, err)
	}
	if st.NextAgent != NodeTerminal || len(st.CompletedTasks) != 0 {
		t.Fatalf("state: next=%v completed=%v", st.NextAgent, st.CompletedTasks)
	}
}

func TestEngine_SuspendResumeApprove(t *testing.T) {
	eng, err := NewEngine(testLogger(t), 0,
		planNode([]NodeID{NodeResumeAnalyst}, true),
		doneNode(NodeResumeAnalyst),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := NewState("analyze my resume", "/tmp/r.pdf")
	susp, err := eng.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if susp == nil || susp.Checkpoint != CheckpointCoordinatorPlan || susp.Node != NodeCoordinator {
		t.Fatalf("suspension: %+v", susp)
	}

	// 快照往返后在"另一进程"恢复
	data, err := st.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	st2, err := RestoreState(data)
	if err != nil {
		t.Fatalf("RestoreState: %v", err)
	}
	if err := ApplyResume(st2, CheckpointCoordinatorPlan, Resume{Approved: boolPtr(true)}); err != nil {
		t.Fatalf("ApplyResume: %v", err)
	}
	susp, err = eng.Run(context.Background(), st2)
	if err != nil || susp != nil {
		t.Fatalf("resumed Run: susp=%+v err=%v", susp, err)
	}
	if !st2.IsCompleted(NodeResumeAnalyst) || st2.NextAgent != NodeTerminal {
		t.Fatalf("resumed state: %+v", st2)
	}
}

func TestEngine_RejectYieldsNewApprovalRound(t *testing.T) {
	eng, err := NewEngine(testLogger(t), 0,
		planNode([]NodeID{NodeResumeAnalyst}, true),
		doneNode(NodeResumeAnalyst),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := NewState("analyze", "")
	if _, err := eng.Run(context.Background(), st); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := ApplyResume(st, CheckpointCoordinatorPlan, Resume{Approved: boolPtr(false), Feedback: "redo"}); err != nil {
		t.Fatalf("ApplyResume: %v", err)
	}
	susp, err := eng.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("re-plan Run: %v", err)
	}
	// 拒绝永远产生新一轮审批，绝不直接恢复执行
	if susp == nil || susp.Checkpoint != CheckpointCoordinatorPlan {
		t.Fatalf("expected new approval round, got %+v", susp)
	}
	if st.Plan.Revision != 2 {
		t.Fatalf("plan revision: %d", st.Plan.Revision)
	}
	if st.IsCompleted(NodeResumeAnalyst) {
		t.Fatalf("completed_tasks survived re-plan: %v", st.CompletedTasks)
	}
}

func TestEngine_SpecialistFailureKeepsPartialState(t *testing.T) {
	failing := &fakeNode{id: NodeJobResearcher, run: func(_ context.Context, _ *State) (Delta, error) {
		return Delta{}, fmt.Errorf("search backend unavailable")
	}}
	eng, err := NewEngine(testLogger(t), 0,
		planNode([]NodeID{NodeResumeAnalyst, NodeJobResearcher, NodeJobMatcher}, false),
		doneNode(NodeResumeAnalyst),
		failing,
		doneNode(NodeJobMatcher),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := NewState("full flow", "")
	_, err = eng.Run(context.Background(), st)
	var nf *NodeFailure
	if !errors.As(err, &nf) || nf.Kind != FailureSpecialist || nf.Node != NodeJobResearcher {
		t.Fatalf("failure: %v", err)
	}
	// 失败保留已完成 specialist 的结果，未执行者无结果
	if !st.IsCompleted(NodeResumeAnalyst) {
		t.Fatalf("partial state lost: %v", st.CompletedTasks)
	}
	if st.IsCompleted(NodeJobResearcher) || st.IsCompleted(NodeJobMatcher) {
		t.Fatalf("failed/unexecuted nodes marked completed: %v", st.CompletedTasks)
	}
}

func TestEngine_PlanningFailure(t *testing.T) {
	coord := &fakeNode{id: NodeCoordinator, run: func(_ context.Context, _ *State) (Delta, error) {
		return Delta{}, fmt.Errorf("model returned malformed plan")
	}}
	eng, err := NewEngine(testLogger(t), 0, coord)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := NewState("req", "")
	_, err = eng.Run(context.Background(), st)
	var nf *NodeFailure
	if !errors.As(err, &nf) || nf.Kind != FailurePlanning {
		t.Fatalf("failure: %v", err)
	}
}

func TestEngine_UnknownNodeIsRoutingFailure(t *testing.T) {
	coord := &fakeNode{id: NodeCoordinator, run: func(_ context.Context, _ *State) (Delta, error) {
		return Delta{NextAgent: NodeCVCreator}, nil // 节点表中未注册
	}}
	eng, err := NewEngine(testLogger(t), 0, coord)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := NewState("req", "")
	_, err = eng.Run(context.Background(), st)
	var nf *NodeFailure
	if !errors.As(err, &nf) || nf.Kind != FailureRouting || nf.Node != NodeCVCreator {
		t.Fatalf("failure: %v", err)
	}
}

func TestEngine_RoutingLoopGuard(t *testing.T) {
	// specialist 不标记完成且把路由指回自己
	looper := &fakeNode{id: NodeResumeAnalyst, run: func(_ context.Context, _ *State) (Delta, error) {
		return Delta{NextAgent: NodeResumeAnalyst}, nil
	}}
	eng, err := NewEngine(testLogger(t), 0,
		planNode([]NodeID{NodeResumeAnalyst}, false),
		looper,
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := NewState("req", "")
	_, err = eng.Run(context.Background(), st)
	var nf *NodeFailure
	if !errors.As(err, &nf) || nf.Kind != FailureRouting {
		t.Fatalf("failure: %v", err)
	}
}

func TestEngine_NodeTimeout(t *testing.T) {
	slow := &fakeNode{id: NodeCoordinator, run: func(ctx context.Context, _ *State) (Delta, error) {
		select {
		case <-time.After(5 * time.Second):
			return Delta{NextAgent: NodeTerminal}, nil
		case <-ctx.Done():
			return Delta{}, ctx.Err()
		}
	}}
	eng, err := NewEngine(testLogger(t), 20*time.Millisecond, slow)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := NewState("req", "")
	start := time.Now()
	_, err = eng.Run(context.Background(), st)
	if err == nil {
		t.Fatal("expected timeout failure")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestNewEngine_RejectsInvalidNodes(t *testing.T) {
	bad := &fakeNode{id: NodeID("stylist"), run: nil}
	if _, err := NewEngine(testLogger(t), 0, bad); err == nil {
		t.Fatal("expected error for invalid node id")
	}
	a := doneNode(NodeResumeAnalyst)
	if _, err := NewEngine(testLogger(t), 0, a, doneNode(NodeResumeAnalyst)); err == nil {
		t.Fatal("expected error for duplicate node")
	}
}
