package cron

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewCronJob(t *testing.T) {
	job := NewCronJob("nightly", Schedule{Kind: KindCron, Expr: "0 0 4 * * *"}, Payload{Action: "backup"})
	if job.ID == "" {
		t.Error("job ID should not be empty")
	}
	if job.Name != "nightly" {
		t.Errorf("name = %q, want nightly", job.Name)
	}
	if !job.Enabled {
		t.Error("job should be enabled by default")
	}
	if job.Payload.Action != "backup" {
		t.Errorf("action = %q, want backup", job.Payload.Action)
	}
	if job.CreatedAtMs == 0 {
		t.Error("createdAtMs should be set")
	}
	other := NewCronJob("nightly", job.Schedule, job.Payload)
	if other.ID == job.ID {
		t.Error("job IDs should be unique")
	}
}

func TestService_AddAndListJobs(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "jobs.json")
	s := NewService(storePath)

	job, err := s.AddJob("presence", Schedule{Kind: KindEvery, EveryMs: 60000}, Payload{Action: "presence"})
	if err != nil {
		t.Fatalf("AddJob error: %v", err)
	}
	if job.Name != "presence" {
		t.Errorf("name = %q, want presence", job.Name)
	}

	jobs := s.ListJobs()
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}

	data, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var stored []CronJob
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(stored) != 1 || stored[0].Payload.Action != "presence" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestService_AddJob_InvalidSchedule(t *testing.T) {
	s := NewService("")
	tests := []Schedule{
		{Kind: KindCron, Expr: "not a cron"},
		{Kind: KindEvery, EveryMs: 0},
		{Kind: "at"},
	}
	for _, sched := range tests {
		if _, err := s.AddJob("bad", sched, Payload{Action: "backup"}); err == nil {
			t.Errorf("AddJob(%+v) should fail", sched)
		}
	}
	if len(s.ListJobs()) != 0 {
		t.Error("invalid jobs should not be stored")
	}
}

func TestService_InMemoryStore(t *testing.T) {
	s := NewService("")
	if _, err := s.AddJob("mem", Schedule{Kind: KindEvery, EveryMs: 1000}, Payload{Action: "presence"}); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}
	if err := s.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(s.ListJobs()) != 1 {
		t.Error("Load without a store should keep in-memory jobs")
	}
}

func TestService_RemoveJob(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	job, _ := s.AddJob("rm-test", Schedule{Kind: KindEvery, EveryMs: 1000}, Payload{Action: "presence"})

	if !s.RemoveJob(job.ID) {
		t.Error("RemoveJob returned false")
	}
	if len(s.ListJobs()) != 0 {
		t.Error("job not removed")
	}
	if s.RemoveJob("nonexistent") {
		t.Error("RemoveJob should return false for nonexistent")
	}
}

func TestService_EnableJob(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	job, _ := s.AddJob("toggle", Schedule{Kind: KindEvery, EveryMs: 1000}, Payload{Action: "presence"})

	updated, err := s.EnableJob(job.ID, false)
	if err != nil {
		t.Fatalf("EnableJob error: %v", err)
	}
	if updated.Enabled {
		t.Error("job should be disabled")
	}

	if _, err := s.EnableJob("nonexistent", true); err == nil {
		t.Error("expected error for nonexistent job")
	}
}

func TestService_EnsureJob_UpsertsByName(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "jobs.json")
	s := NewService(storePath)

	first, err := s.EnsureJob("backup", Schedule{Kind: KindCron, Expr: "0 0 4 * * *"}, Payload{Action: "backup"})
	if err != nil {
		t.Fatalf("EnsureJob error: %v", err)
	}

	second, err := s.EnsureJob("backup", Schedule{Kind: KindCron, Expr: "0 30 3 * * *"}, Payload{Action: "backup"})
	if err != nil {
		t.Fatalf("EnsureJob error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("ID changed from %s to %s", first.ID, second.ID)
	}

	jobs := s.ListJobs()
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	if jobs[0].Schedule.Expr != "0 30 3 * * *" {
		t.Errorf("expr = %q, want updated schedule", jobs[0].Schedule.Expr)
	}

	// A restarted service sees the same job and does not duplicate it.
	s2 := NewService(storePath)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if _, err := s2.EnsureJob("backup", Schedule{Kind: KindCron, Expr: "0 30 3 * * *"}, Payload{Action: "backup"}); err != nil {
		t.Fatalf("EnsureJob error: %v", err)
	}
	if got := len(s2.ListJobs()); got != 1 {
		t.Errorf("len(jobs) after reload = %d, want 1", got)
	}
}

func TestService_EnsureJob_ReenablesDisabled(t *testing.T) {
	s := NewService("")
	job, _ := s.AddJob("presence", Schedule{Kind: KindEvery, EveryMs: 1000}, Payload{Action: "presence"})
	if _, err := s.EnableJob(job.ID, false); err != nil {
		t.Fatal(err)
	}
	updated, err := s.EnsureJob("presence", Schedule{Kind: KindEvery, EveryMs: 2000}, Payload{Action: "presence"})
	if err != nil {
		t.Fatalf("EnsureJob error: %v", err)
	}
	if !updated.Enabled || updated.Schedule.EveryMs != 2000 {
		t.Errorf("updated = %+v", updated)
	}
}

func TestService_StartStop(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	ctx, cancel := context.WithCancel(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	cancel()
	s.Stop()
}

func TestService_Start_ParentCancelInvokesStop(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		stopped := s.cancel == nil && s.stopCh == nil
		s.mu.Unlock()
		if stopped {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	s.Stop()
	t.Fatal("expected parent context cancellation to trigger Stop")
}

func TestService_Stop_StopsTickLoopWithoutParentCancel(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	var executeCount atomic.Int32
	s.OnJob = func(ctx context.Context, job CronJob) (string, error) {
		executeCount.Add(1)
		return "ok", nil
	}

	job := NewCronJob("manual-stop", Schedule{Kind: KindEvery, EveryMs: 100}, Payload{Action: "presence"})
	job.State.LastRunAtMs = time.Now().UnixMilli() - 200
	s.jobs = append(s.jobs, job)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for executeCount.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if executeCount.Load() == 0 {
		t.Fatal("expected at least one tick execution before Stop")
	}

	s.Stop()
	countAfterStop := executeCount.Load()
	time.Sleep(1300 * time.Millisecond)

	if executeCount.Load() != countAfterStop {
		t.Fatalf("tickLoop should stop after Stop; count changed from %d to %d", countAfterStop, executeCount.Load())
	}
}

func TestService_Persistence(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "jobs.json")

	s1 := NewService(storePath)
	s1.AddJob("persist1", Schedule{Kind: KindEvery, EveryMs: 1000}, Payload{Action: "presence"})
	s1.AddJob("persist2", Schedule{Kind: KindCron, Expr: "0 0 4 * * *"}, Payload{Action: "backup"})

	s2 := NewService(storePath)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(s2.ListJobs()) != 2 {
		t.Errorf("loaded %d jobs, want 2", len(s2.ListJobs()))
	}

	jobs, err := LoadJobs(storePath)
	if err != nil {
		t.Fatalf("LoadJobs error: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("LoadJobs returned %d jobs, want 2", len(jobs))
	}
}

func TestLoadJobs_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	jobs, err := LoadJobs(filepath.Join(dir, "missing.json"))
	if err != nil || jobs != nil {
		t.Errorf("missing store = %v, %v; want nil, nil", jobs, err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{nope"), 0644)
	if _, err := LoadJobs(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestService_ExecuteJob_WithHandler(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	var gotAction string
	s.OnJob = func(ctx context.Context, job CronJob) (string, error) {
		gotAction = job.Payload.Action
		return "archived", nil
	}

	job, _ := s.AddJob("exec", Schedule{Kind: KindEvery, EveryMs: 60000}, Payload{Action: "backup"})
	s.executeJob(*job)

	if gotAction != "backup" {
		t.Errorf("handler saw action %q, want backup", gotAction)
	}
	jobs := s.ListJobs()
	if jobs[0].State.LastStatus != "ok" {
		t.Errorf("lastStatus = %q, want ok", jobs[0].State.LastStatus)
	}
	if jobs[0].State.LastResult != "archived" {
		t.Errorf("lastResult = %q, want archived", jobs[0].State.LastResult)
	}
	if jobs[0].State.LastRunAtMs == 0 {
		t.Error("lastRunAtMs should be set")
	}
}

func TestService_ExecuteJob_NoHandler(t *testing.T) {
	s := NewService("")
	job, _ := s.AddJob("nohandler", Schedule{Kind: KindEvery, EveryMs: 60000}, Payload{Action: "backup"})
	s.executeJob(*job)
	if s.ListJobs()[0].State.LastStatus != "" {
		t.Error("job without handler should not record a status")
	}
}

func TestService_ExecuteJob_HandlerError(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	s.OnJob = func(ctx context.Context, job CronJob) (string, error) {
		return "", errors.New("server is online")
	}

	job, _ := s.AddJob("err", Schedule{Kind: KindEvery, EveryMs: 60000}, Payload{Action: "backup"})
	s.executeJob(*job)

	jobs := s.ListJobs()
	if jobs[0].State.LastStatus != "error" {
		t.Errorf("lastStatus = %q, want error", jobs[0].State.LastStatus)
	}
	if jobs[0].State.LastError != "server is online" {
		t.Errorf("lastError = %q", jobs[0].State.LastError)
	}
}

func TestService_TickLoop_EverySchedule(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	var executeCount atomic.Int32
	s.OnJob = func(ctx context.Context, job CronJob) (string, error) {
		executeCount.Add(1)
		return "tick", nil
	}

	job := NewCronJob("fast-tick", Schedule{Kind: KindEvery, EveryMs: 100}, Payload{Action: "presence"})
	job.State.LastRunAtMs = time.Now().UnixMilli() - 200
	s.jobs = append(s.jobs, job)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(1500 * time.Millisecond)

	cancel()
	s.Stop()

	if executeCount.Load() == 0 {
		t.Error("expected at least one execution from tickLoop")
	}
}

func TestService_RunDueIntervals_SkipsDisabledAndNotDue(t *testing.T) {
	s := NewService("")
	var ran []string
	s.OnJob = func(ctx context.Context, job CronJob) (string, error) {
		ran = append(ran, job.Name)
		return "", nil
	}

	now := time.Now().UnixMilli()
	due := NewCronJob("due", Schedule{Kind: KindEvery, EveryMs: 100}, Payload{Action: "presence"})
	due.State.LastRunAtMs = now - 500
	notDue := NewCronJob("not-due", Schedule{Kind: KindEvery, EveryMs: 60000}, Payload{Action: "presence"})
	notDue.State.LastRunAtMs = now
	disabled := NewCronJob("disabled", Schedule{Kind: KindEvery, EveryMs: 100}, Payload{Action: "presence"})
	disabled.Enabled = false
	cronJob := NewCronJob("cron", Schedule{Kind: KindCron, Expr: "* * * * * *"}, Payload{Action: "backup"})
	s.jobs = []CronJob{due, notDue, disabled, cronJob}

	s.runDueIntervals(now)

	if len(ran) != 1 || ran[0] != "due" {
		t.Errorf("ran = %v, want [due]", ran)
	}
}

func TestService_CronJobWithInvalidExprInStore(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "jobs.json")

	jobs := []CronJob{{
		ID:       "bad-cron",
		Name:     "bad-cron-job",
		Enabled:  true,
		Schedule: Schedule{Kind: KindCron, Expr: "invalid cron"},
		Payload:  Payload{Action: "backup"},
	}}
	data, _ := json.MarshalIndent(jobs, "", "  ")
	os.WriteFile(storePath, data, 0644)

	s := NewService(storePath)
	if err := s.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Errorf("Start should not error on invalid cron: %v", err)
	}
	if len(s.entryMap) != 0 {
		t.Errorf("invalid cron should not be registered, entryMap has %d", len(s.entryMap))
	}

	s.Stop()
}

func TestService_RegisterCronJob_Success(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "jobs.json")

	jobs := []CronJob{{
		ID:       "valid-cron",
		Name:     "valid-cron-job",
		Enabled:  true,
		Schedule: Schedule{Kind: KindCron, Expr: "0 0 * * * *"},
		Payload:  Payload{Action: "backup"},
	}}
	data, _ := json.MarshalIndent(jobs, "", "  ")
	os.WriteFile(storePath, data, 0644)

	s := NewService(storePath)
	if err := s.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	s.OnJob = func(ctx context.Context, job CronJob) (string, error) {
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	if len(s.entryMap) != 1 {
		t.Errorf("expected 1 entry in entryMap, got %d", len(s.entryMap))
	}

	s.Stop()
}

func TestService_CronFires(t *testing.T) {
	s := NewService("")

	fired := make(chan string, 4)
	s.OnJob = func(ctx context.Context, job CronJob) (string, error) {
		select {
		case fired <- job.Payload.Action:
		default:
		}
		return "", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop()

	if _, err := s.AddJob("every-second", Schedule{Kind: KindCron, Expr: "* * * * * *"}, Payload{Action: "presence"}); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}

	select {
	case action := <-fired:
		if action != "presence" {
			t.Errorf("action = %q, want presence", action)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cron job did not fire")
	}
}

func TestService_RemoveJob_WithCron(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	job, _ := s.AddJob("remove-cron", Schedule{Kind: KindCron, Expr: "0 0 * * * *"}, Payload{Action: "backup"})

	if len(s.entryMap) != 1 {
		t.Errorf("expected 1 entry in entryMap, got %d", len(s.entryMap))
	}

	if !s.RemoveJob(job.ID) {
		t.Error("RemoveJob returned false")
	}

	if len(s.entryMap) != 0 {
		t.Errorf("expected 0 entries in entryMap, got %d", len(s.entryMap))
	}

	s.Stop()
}

func TestService_EnableJob_CronToggleUpdatesEntryMap(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop()

	job, err := s.AddJob("toggle-cron", Schedule{Kind: KindCron, Expr: "*/5 * * * * *"}, Payload{Action: "presence"})
	if err != nil {
		t.Fatalf("AddJob error: %v", err)
	}

	if len(s.entryMap) != 1 {
		t.Fatalf("expected 1 cron entry after add, got %d", len(s.entryMap))
	}

	updated, err := s.EnableJob(job.ID, false)
	if err != nil {
		t.Fatalf("EnableJob(false) error: %v", err)
	}
	if updated.Enabled {
		t.Fatalf("job should be disabled")
	}
	if len(s.entryMap) != 0 {
		t.Fatalf("expected 0 cron entries after disable, got %d", len(s.entryMap))
	}

	updated, err = s.EnableJob(job.ID, true)
	if err != nil {
		t.Fatalf("EnableJob(true) error: %v", err)
	}
	if !updated.Enabled {
		t.Fatalf("job should be enabled")
	}
	if len(s.entryMap) != 1 {
		t.Fatalf("expected 1 cron entry after re-enable, got %d", len(s.entryMap))
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		spec    string
		kind    string
		everyMs int64
		wantErr bool
	}{
		{spec: "0 0 4 * * *", kind: KindCron},
		{spec: "@daily", kind: KindCron},
		{spec: "@every 5m", kind: KindEvery, everyMs: 300000},
		{spec: "@every soon", wantErr: true},
		{spec: "@every -1s", wantErr: true},
		{spec: "whenever", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			sched, err := ParseSchedule(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseSchedule(%q) should fail", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.spec, err)
			}
			if sched.Kind != tt.kind || sched.EveryMs != tt.everyMs {
				t.Errorf("ParseSchedule(%q) = %+v", tt.spec, sched)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}
