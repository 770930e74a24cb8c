package http

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"career-platform/internal/api/http/middleware"
	"career-platform/internal/registry"
	"career-platform/internal/workflow"
	"career-platform/pkg/log"
)

type fakeJobService struct {
	submitted  []string
	statusView *registry.StatusView
	statusErr  error
	approveErr error
}

func (f *fakeJobService) Submit(_ context.Context, userRequest, resumeRef string) (string, error) {
	f.submitted = append(f.submitted, userRequest)
	return "job-123", nil
}

func (f *fakeJobService) Status(_ context.Context, id string) (*registry.StatusView, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.statusView, nil
}

func (f *fakeJobService) Approve(_ context.Context, id string, resp workflow.Resume) (*registry.StatusView, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return f.statusView, nil
}

func buildServerForTest(t *testing.T, jobs JobService) *server.Hertz {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	h := NewHandler(jobs, logger)
	r := NewRouter(h, middleware.NewMiddleware())
	return r.Build(":0")
}

func postJSON(s *server.Hertz, url string, body []byte) *ut.ResponseRecorder {
	return ut.PerformRequest(s.Engine, "POST", url,
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func TestProcess_NoPrompt(t *testing.T) {
	s := buildServerForTest(t, &fakeJobService{})
	w := postJSON(s, "/api/process", []byte(`{"resume_path":""}`))
	if got := w.Result().StatusCode(); got != 400 {
		t.Fatalf("status = %d, want 400", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte("No prompt provided")) {
		t.Fatalf("body: %s", w.Result().Body())
	}
}

func TestProcess_MessageKeyAccepted(t *testing.T) {
	jobs := &fakeJobService{}
	s := buildServerForTest(t, jobs)
	w := postJSON(s, "/api/process", []byte(`{"message":"analyze my resume"}`))
	if got := w.Result().StatusCode(); got != 202 {
		t.Fatalf("status = %d, want 202", got)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Result().Body(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["job_id"] != "job-123" {
		t.Fatalf("job_id: %v", resp["job_id"])
	}
	if !strings.HasSuffix(resp["status_check_url"].(string), "/api/status/job-123") {
		t.Fatalf("status_check_url: %v", resp["status_check_url"])
	}
	if len(jobs.submitted) != 1 || jobs.submitted[0] != "analyze my resume" {
		t.Fatalf("submitted: %v", jobs.submitted)
	}
}

func TestProcess_ResumePathMissing(t *testing.T) {
	s := buildServerForTest(t, &fakeJobService{})
	w := postJSON(s, "/api/process", []byte(`{"prompt":"analyze","resume_path":"/nonexistent/r.pdf"}`))
	if got := w.Result().StatusCode(); got != 400 {
		t.Fatalf("status = %d, want 400", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte("Resume file not found")) {
		t.Fatalf("body: %s", w.Result().Body())
	}
}

func TestProcess_ResumePathExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.txt")
	if err := os.WriteFile(path, []byte("resume text"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := buildServerForTest(t, &fakeJobService{})
	body, _ := json.Marshal(map[string]string{"prompt": "analyze", "resume_path": path})
	w := postJSON(s, "/api/process", body)
	if got := w.Result().StatusCode(); got != 202 {
		t.Fatalf("status = %d, want 202: %s", got, w.Result().Body())
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	s := buildServerForTest(t, &fakeJobService{statusErr: registry.ErrUnknownJob})
	w := ut.PerformRequest(s.Engine, "GET", "/api/status/job-missing", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 404 {
		t.Fatalf("status = %d, want 404", got)
	}
}

func TestJobStatus_Awaiting(t *testing.T) {
	s := buildServerForTest(t, &fakeJobService{statusView: &registry.StatusView{
		JobID:      "job-123",
		Status:     registry.StatusAwaitingApproval,
		Checkpoint: workflow.CheckpointCoordinatorPlan,
		CheckpointPayload: map[string]any{
			"plan_summary": "1. resume_analyst",
		},
	}})
	w := ut.PerformRequest(s.Engine, "GET", "/api/status/job-123", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("status = %d, want 200", got)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Result().Body(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "awaiting_approval" || resp["checkpoint"] != "coordinator_plan" {
		t.Fatalf("resp: %v", resp)
	}
}

func TestApproveJob_Conflicts(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"not awaiting", registry.ErrNotAwaiting},
		{"checkpoint mismatch", workflow.ErrCheckpointMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := buildServerForTest(t, &fakeJobService{approveErr: tc.err})
			w := postJSON(s, "/api/approve/job-123", []byte(`{"approved":true}`))
			if got := w.Result().StatusCode(); got != 409 {
				t.Fatalf("status = %d, want 409", got)
			}
		})
	}
}

func TestApproveJob_NotFound(t *testing.T) {
	s := buildServerForTest(t, &fakeJobService{approveErr: registry.ErrUnknownJob})
	w := postJSON(s, "/api/approve/job-missing", []byte(`{"approved":true}`))
	if got := w.Result().StatusCode(); got != 404 {
		t.Fatalf("status = %d, want 404", got)
	}
}

func TestApproveJob_OK(t *testing.T) {
	s := buildServerForTest(t, &fakeJobService{statusView: &registry.StatusView{
		JobID:  "job-123",
		Status: registry.StatusRunning,
	}})
	w := postJSON(s, "/api/approve/job-123", []byte(`{"approved":false,"feedback":"shorter plan please"}`))
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("status = %d, want 200", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte(`"status":"running"`)) {
		t.Fatalf("body: %s", w.Result().Body())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := buildServerForTest(t, &fakeJobService{})

	w := ut.PerformRequest(s.Engine, "GET", "/api/health", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("health status = %d, want 200", got)
	}

	w = ut.PerformRequest(s.Engine, "GET", "/api/system/metrics", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("metrics status = %d, want 200", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte("career_")) {
		t.Fatalf("metrics body missing registered collectors: %.200s", w.Result().Body())
	}
}
