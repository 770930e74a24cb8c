package specialist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"career-platform/internal/model/llm"
	"career-platform/internal/resume"
	"career-platform/internal/workflow"
)

type fakeLLM struct {
	replies []string
	calls   int
	err     error
}

func (f *fakeLLM) ChatWithContext(_ context.Context, _ []llm.Message, _ llm.GenerateOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return reply, nil
}
func (f *fakeLLM) GenerateWithContext(ctx context.Context, p string, o llm.GenerateOptions) (string, error) {
	return f.ChatWithContext(ctx, nil, o)
}
func (f *fakeLLM) Model() string    { return "fake" }
func (f *fakeLLM) Provider() string { return "fake" }

type fakeSearch struct {
	jobs []Listing
	err  error
}

func (f *fakeSearch) Search(_ context.Context, _, _ string, _ int) ([]Listing, error) {
	return f.jobs, f.err
}

func writeResume(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.txt")
	if err := os.WriteFile(path, []byte("Go developer, 5 years backend experience"), 0o644); err != nil {
		t.Fatalf("write resume: %v", err)
	}
	return path
}

func TestResumeAnalyst_Run(t *testing.T) {
	client := &fakeLLM{replies: []string{"```json\n" +
		`{"overall_score": 88, "target_roles": ["backend engineer"], "career_level": "senior"}` +
		"\n```"}}
	a := NewResumeAnalyst(client, resume.NewParser(0))
	st := workflow.NewState("analyze my resume", writeResume(t))
	st.Plan = &workflow.Plan{ExecutionOrder: []workflow.NodeID{workflow.NodeResumeAnalyst}, Revision: 1}

	d, err := a.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.ResumeAnalysis["overall_score"] != float64(88) {
		t.Fatalf("resume_analysis: %v", d.ResumeAnalysis)
	}
	if d.ResumeContent == "" {
		t.Fatal("resume_content not extracted")
	}
	if d.TargetRole != "backend engineer" {
		t.Fatalf("target_role: %q", d.TargetRole)
	}
	if len(d.Completed) != 1 || d.Completed[0] != workflow.NodeResumeAnalyst {
		t.Fatalf("completed: %v", d.Completed)
	}
	if d.NextAgent != workflow.NodeTerminal {
		t.Fatalf("next_agent: %v", d.NextAgent)
	}
}

func TestResumeAnalyst_MissingResume(t *testing.T) {
	a := NewResumeAnalyst(&fakeLLM{replies: []string{"{}"}}, resume.NewParser(0))
	st := workflow.NewState("analyze", "")
	if _, err := a.Run(context.Background(), st); err == nil {
		t.Fatal("expected error without resume")
	}
}

func sampleJobs(n int) []Listing {
	jobs := make([]Listing, n)
	for i := range jobs {
		jobs[i] = Listing{
			Title:       fmt.Sprintf("Backend Engineer %d", i),
			Company:     fmt.Sprintf("Company%d", i%4),
			Location:    "Remote",
			Description: "golang kubernetes postgres distributed systems experience required",
			Salary:      "$150k",
			ApplyURL:    "https://example.com/apply",
		}
	}
	return jobs
}

func TestJobResearcher_RoleFromClarifiedTarget(t *testing.T) {
	// target_role 已有值时不得调用 LLM 提取
	client := &fakeLLM{err: fmt.Errorf("must not be called")}
	r := NewJobResearcher(client, &fakeSearch{jobs: sampleJobs(12)}, 15)
	st := workflow.NewState("find jobs", "")
	st.TargetRole = "backend engineer"
	st.Plan = &workflow.Plan{ExecutionOrder: []workflow.NodeID{workflow.NodeJobResearcher}, Revision: 1}

	d, err := r.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	market := d.JobMarketData
	if market["role_researched"] != "backend engineer" || market["total_jobs_found"] != 12 {
		t.Fatalf("market: %v", market)
	}
	insights := market["market_insights"].(map[string]any)
	if insights["demand_level"] != "High" {
		t.Fatalf("demand: %v", insights)
	}
	if len(d.JobListings) != 10 {
		t.Fatalf("listings capped at 10, got %d", len(d.JobListings))
	}
}

func TestJobResearcher_DescriptionTruncationKeepsValidUTF8(t *testing.T) {
	jobs := sampleJobs(1)
	// 每个汉字 3 字节，299 字节后接一个汉字使 300 字节边界落在 rune 中间
	jobs[0].Description = strings.Repeat("a", 299) + strings.Repeat("岗位职责与任职要求", 20)

	r := NewJobResearcher(&fakeLLM{err: fmt.Errorf("must not be called")}, &fakeSearch{jobs: jobs}, 15)
	st := workflow.NewState("find jobs", "")
	st.TargetRole = "backend engineer"
	st.Plan = &workflow.Plan{ExecutionOrder: []workflow.NodeID{workflow.NodeJobResearcher}, Revision: 1}

	d, err := r.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	desc := d.JobListings[0]["description"].(string)
	if !utf8.ValidString(desc) {
		t.Fatalf("truncated description is not valid UTF-8: %q", desc)
	}
	if !strings.HasSuffix(desc, "...") || len(desc) > 303 {
		t.Fatalf("description not truncated: len=%d", len(desc))
	}
}

func TestJobResearcher_UnclearRoleSuspends(t *testing.T) {
	client := &fakeLLM{replies: []string{"UNCLEAR"}}
	r := NewJobResearcher(client, &fakeSearch{}, 15)
	st := workflow.NewState("help me please", "")

	d, err := r.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.Checkpoint != workflow.CheckpointJobRoleClarification {
		t.Fatalf("checkpoint: %v", d.Checkpoint)
	}
	// 未完成，恢复后从本节点重跑
	if len(d.Completed) != 0 {
		t.Fatalf("completed: %v", d.Completed)
	}
	if d.NextAgent != workflow.NodeJobResearcher {
		t.Fatalf("next_agent: %v", d.NextAgent)
	}
	if msg, ok := d.CheckpointPayload["clarification_message"].(string); !ok || msg == "" {
		t.Fatal("missing clarification_message")
	}
}

func TestJobResearcher_SearchFailureIsError(t *testing.T) {
	r := NewJobResearcher(&fakeLLM{replies: []string{"engineer"}}, &fakeSearch{err: fmt.Errorf("upstream down")}, 15)
	st := workflow.NewState("find engineer jobs", "")
	st.TargetRole = "engineer"
	if _, err := r.Run(context.Background(), st); err == nil {
		t.Fatal("expected error on search failure")
	}
}

func TestCVCreator_Run(t *testing.T) {
	client := &fakeLLM{replies: []string{"**SUMMARY**\nSenior Go engineer..."}}
	store := NewLocalArtifactStore(t.TempDir())
	c := NewCVCreator(client, store)
	st := workflow.NewState("create a cv", "/tmp/r.pdf")
	st.ResumeContent = "Go developer"
	st.ResumeAnalysis = map[string]any{"overall_score": 80}
	st.Plan = &workflow.Plan{ExecutionOrder: []workflow.NodeID{workflow.NodeCVCreator}, Revision: 1}

	d, err := c.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.CVArtifactRef == "" {
		t.Fatal("missing cv_artifact_reference")
	}
	data, err := os.ReadFile(d.CVArtifactRef)
	if err != nil || len(data) == 0 {
		t.Fatalf("artifact not written: %v", err)
	}
}

func TestCVCreator_MissingAnalysis(t *testing.T) {
	c := NewCVCreator(&fakeLLM{replies: []string{"cv"}}, NewLocalArtifactStore(t.TempDir()))
	st := workflow.NewState("create a cv", "")
	st.ResumeContent = "content"
	if _, err := c.Run(context.Background(), st); err == nil {
		t.Fatal("expected error without analysis")
	}
}

func TestJobMatcher_Run(t *testing.T) {
	client := &fakeLLM{replies: []string{
		`{"match_percentage": 90, "fit_level": "excellent"}`,
		`{"match_percentage": 60, "fit_level": "fair"}`,
		`{"match_percentage": 75, "fit_level": "good"}`,
	}}
	m := NewJobMatcher(client)
	st := workflow.NewState("match me", "/tmp/r.pdf")
	st.ResumeContent = "Go developer"
	st.JobListings = []map[string]any{
		{"title": "Backend Engineer", "company": "A", "location": "Remote", "description": "go"},
		{"title": "Platform Engineer", "company": "B", "location": "Remote", "description": "go"},
		{"title": "SRE", "company": "C", "location": "Remote", "description": "go"},
		{"title": "Ignored", "company": "D", "location": "Remote", "description": "go"},
	}
	st.Plan = &workflow.Plan{ExecutionOrder: []workflow.NodeID{workflow.NodeJobMatcher}, Revision: 1}

	d, err := m.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := d.ComparisonResults
	if results["jobs_analyzed"] != 3 {
		t.Fatalf("jobs_analyzed: %v", results["jobs_analyzed"])
	}
	if avg := results["average_match"].(float64); avg != 75 {
		t.Fatalf("average_match: %v", avg)
	}
	best := results["best_match"].(map[string]any)
	if best["job_title"] != "Backend Engineer" {
		t.Fatalf("best_match: %v", best)
	}
	if results["high_match_count"] != 2 {
		t.Fatalf("high_match_count: %v", results["high_match_count"])
	}
}

func TestJobMatcher_MissingDependencies(t *testing.T) {
	m := NewJobMatcher(&fakeLLM{replies: []string{"{}"}})
	st := workflow.NewState("match", "")
	if _, err := m.Run(context.Background(), st); err == nil {
		t.Fatal("expected error without resume content")
	}
	st.ResumeContent = "content"
	if _, err := m.Run(context.Background(), st); err == nil {
		t.Fatal("expected error without job listings")
	}
}
