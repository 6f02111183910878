package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// JobHandler runs one job and returns a short human-readable result.
type JobHandler func(ctx context.Context, job CronJob) (string, error)

type Service struct {
	storePath string
	mu        sync.Mutex
	jobs      []CronJob
	OnJob     JobHandler
	cron      *rcron.Cron
	entryMap  map[string]rcron.EntryID // job ID -> cron entry ID
	runCtx    context.Context
	cancel    context.CancelFunc
	stopCh    chan struct{}
}

// NewService creates a scheduler whose job state is stored at storePath.
// An empty storePath keeps everything in memory.
func NewService(storePath string) *Service {
	return &Service{
		storePath: storePath,
		entryMap:  make(map[string]rcron.EntryID),
		runCtx:    context.Background(),
	}
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	stopCh := make(chan struct{})

	s.mu.Lock()
	s.runCtx = runCtx
	s.cancel = cancel
	s.stopCh = stopCh
	if s.cron == nil {
		s.cron = rcron.New(rcron.WithSeconds())
	}
	for i := range s.jobs {
		if s.jobs[i].Enabled && s.jobs[i].Schedule.Kind == KindCron {
			if _, ok := s.entryMap[s.jobs[i].ID]; !ok {
				s.registerJob(&s.jobs[i])
			}
		}
	}
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("[cron] started with %d jobs", count)

	go s.tickLoop(runCtx)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
		}
	}()

	return nil
}

// Load reads persisted jobs. A missing store is not an error.
func (s *Service) Load() error {
	if s.storePath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := LoadJobs(s.storePath)
	if err != nil {
		return err
	}
	s.jobs = jobs
	return nil
}

// LoadJobs reads a job store without starting a scheduler.
func LoadJobs(storePath string) ([]CronJob, error) {
	if storePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read job store: %w", err)
	}
	var jobs []CronJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse job store: %w", err)
	}
	return jobs, nil
}

// registerJob must be called with s.mu held.
func (s *Service) registerJob(job *CronJob) {
	if s.cron == nil {
		return
	}
	jobCopy := *job
	id, err := s.cron.AddFunc(job.Schedule.Expr, func() {
		s.executeJob(jobCopy)
	})
	if err != nil {
		log.Printf("[cron] failed to register job %s (%s): %v", job.Name, job.Schedule.Expr, err)
		return
	}
	s.entryMap[job.ID] = id
}

func (s *Service) unregisterJob(id string) {
	if entryID, ok := s.entryMap[id]; ok {
		if s.cron != nil {
			s.cron.Remove(entryID)
		}
		delete(s.entryMap, id)
	}
}

func (s *Service) executeJob(job CronJob) {
	log.Printf("[cron] executing job %s (%s)", job.Name, job.ID)

	s.mu.Lock()
	handler := s.OnJob
	ctx := s.runCtx
	s.mu.Unlock()

	if handler == nil {
		log.Printf("[cron] no OnJob handler set")
		return
	}

	result, err := handler(ctx, job)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID != job.ID {
			continue
		}
		st := &s.jobs[i].State
		st.LastRunAtMs = time.Now().UnixMilli()
		if err != nil {
			st.LastStatus = "error"
			st.LastError = err.Error()
			st.LastResult = ""
			log.Printf("[cron] job %s error: %v", job.Name, err)
		} else {
			st.LastStatus = "ok"
			st.LastError = ""
			st.LastResult = truncate(result, 200)
			log.Printf("[cron] job %s result: %s", job.Name, truncate(result, 100))
		}
		break
	}

	if err := s.save(); err != nil {
		log.Printf("[cron] save job state: %v", err)
	}
}

func (s *Service) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runDueIntervals(time.Now().UnixMilli())
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) runDueIntervals(now int64) {
	s.mu.Lock()
	var due []CronJob
	for i := range s.jobs {
		job := &s.jobs[i]
		if !job.Enabled || job.Schedule.Kind != KindEvery || job.Schedule.EveryMs <= 0 {
			continue
		}
		if now >= job.State.LastRunAtMs+job.Schedule.EveryMs {
			// mark before running so a slow job is not picked up again next tick
			job.State.LastRunAtMs = now
			due = append(due, *job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.executeJob(job)
	}
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	stopCh := s.stopCh
	s.cancel = nil
	s.stopCh = nil
	c := s.cron
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopCh != nil {
		close(stopCh)
	}

	if c != nil {
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[cron] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[cron] stopped")
}

func (s *Service) AddJob(name string, schedule Schedule, payload Payload) (*CronJob, error) {
	if err := validateSchedule(schedule); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job := NewCronJob(name, schedule, payload)
	s.jobs = append(s.jobs, job)
	if job.Schedule.Kind == KindCron {
		s.registerJob(&s.jobs[len(s.jobs)-1])
	}

	if err := s.save(); err != nil {
		return nil, fmt.Errorf("save jobs: %w", err)
	}
	return &job, nil
}

// EnsureJob installs a job by name. An existing job with that name keeps its
// ID and run state but takes the new schedule and payload, so jobs declared
// in configuration do not pile up across restarts.
func (s *Service) EnsureJob(name string, schedule Schedule, payload Payload) (*CronJob, error) {
	if err := validateSchedule(schedule); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range s.jobs {
		if s.jobs[i].Name != name {
			continue
		}
		s.unregisterJob(s.jobs[i].ID)
		s.jobs[i].Schedule = schedule
		s.jobs[i].Payload = payload
		s.jobs[i].Enabled = true
		if schedule.Kind == KindCron {
			s.registerJob(&s.jobs[i])
		}
		job := s.jobs[i]
		err := s.save()
		s.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("save jobs: %w", err)
		}
		return &job, nil
	}
	s.mu.Unlock()

	return s.AddJob(name, schedule, payload)
}

func (s *Service) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.jobs {
		if job.ID == id {
			s.unregisterJob(id)
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			_ = s.save()
			return true
		}
	}
	return false
}

func (s *Service) ListJobs() []CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]CronJob, len(s.jobs))
	copy(result, s.jobs)
	return result
}

func (s *Service) EnableJob(id string, enabled bool) (*CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID != id {
			continue
		}
		s.jobs[i].Enabled = enabled
		if s.jobs[i].Schedule.Kind == KindCron {
			if enabled {
				if _, ok := s.entryMap[id]; !ok {
					s.registerJob(&s.jobs[i])
				}
			} else {
				s.unregisterJob(id)
			}
		}
		_ = s.save()
		job := s.jobs[i]
		return &job, nil
	}
	return nil, fmt.Errorf("job %s not found", id)
}

func validateSchedule(schedule Schedule) error {
	switch schedule.Kind {
	case KindCron:
		parser := rcron.NewParser(rcron.Second | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor)
		if _, err := parser.Parse(schedule.Expr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", schedule.Expr, err)
		}
	case KindEvery:
		if schedule.EveryMs <= 0 {
			return fmt.Errorf("interval must be positive, got %dms", schedule.EveryMs)
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", schedule.Kind)
	}
	return nil
}

// ParseSchedule accepts either a cron expression with seconds
// ("0 0 4 * * *", "@daily") or a Go duration prefixed with "@every "
// handled as a fixed interval ("@every 5m").
func ParseSchedule(spec string) (Schedule, error) {
	const everyPrefix = "@every "
	if len(spec) > len(everyPrefix) && spec[:len(everyPrefix)] == everyPrefix {
		d, err := time.ParseDuration(spec[len(everyPrefix):])
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid interval %q: %w", spec, err)
		}
		sched := Schedule{Kind: KindEvery, EveryMs: d.Milliseconds()}
		return sched, validateSchedule(sched)
	}
	sched := Schedule{Kind: KindCron, Expr: spec}
	return sched, validateSchedule(sched)
}

// save must be called with s.mu held.
func (s *Service) save() error {
	if s.storePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.storePath, data, 0644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
