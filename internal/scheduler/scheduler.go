package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler owns periodic job registration. Each job carries a single-flight
// guard: if a tick fires while the previous invocation of the same job is
// still running, the tick is skipped rather than overlapped. Without this,
// two concurrent runs could select and act on the same rows.
type Scheduler struct {
	cron *cron.Cron
	jobs []*job
}

type job struct {
	name    string
	every   time.Duration
	fn      func(context.Context)
	running sync.Mutex
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
	}
}

// Register adds a named periodic job
func (s *Scheduler) Register(name string, every time.Duration, fn func(context.Context)) error {
	if every <= 0 {
		return fmt.Errorf("register job %s: interval must be positive", name)
	}

	j := &job{
		name:  name,
		every: every,
		fn:    fn,
	}

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", every), func() {
		s.runJob(j)
	})
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}

	s.jobs = append(s.jobs, j)
	log.Printf("[Scheduler] Registered job %s (every %v)", name, every)
	return nil
}

// RunNow invokes a registered job immediately, respecting its guard.
// Used for the initial sweep at startup.
func (s *Scheduler) RunNow(name string) {
	for _, j := range s.jobs {
		if j.name == name {
			go s.runJob(j)
			return
		}
	}
	log.Printf("[Scheduler] RunNow: no job named %s", name)
}

func (s *Scheduler) runJob(j *job) {
	if !j.running.TryLock() {
		log.Printf("[Scheduler] Skipping %s: previous run still in progress", j.name)
		return
	}
	defer j.running.Unlock()

	start := time.Now()
	log.Printf("[Scheduler] Running %s", j.name)
	j.fn(context.Background())
	log.Printf("[Scheduler] Finished %s in %v", j.name, time.Since(start).Round(time.Millisecond))
}

// Start begins firing registered jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[Scheduler] Started with %d job(s)", len(s.jobs))
}

// Stop halts the scheduler; running jobs finish on their own
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Scheduler] Stopped")
}
