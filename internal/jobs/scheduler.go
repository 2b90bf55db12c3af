package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// Job is a unit of periodic background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs on interval or cron schedules, in UTC.
type Scheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler creates a UTC job scheduler.
func NewScheduler() (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: scheduler,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// RegisterInterval schedules a job at a fixed interval.
func (s *Scheduler) RegisterInterval(every time.Duration, job Job) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() { s.runJob(job) }),
		gocron.WithName(job.Name()),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}
	log.Printf("✅ [SCHEDULER] Registered job %s (every %v)", job.Name(), every)
	return nil
}

// RegisterCron schedules a job with a standard 5-field cron expression,
// validated before registration.
func (s *Scheduler) RegisterCron(expr string, job Job) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q for job %s: %w", expr, job.Name(), err)
	}

	_, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(func() { s.runJob(job) }),
		gocron.WithName(job.Name()),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}
	log.Printf("✅ [SCHEDULER] Registered job %s (cron %q)", job.Name(), expr)
	return nil
}

func (s *Scheduler) runJob(job Job) {
	start := time.Now()
	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job %s failed: %v", job.Name(), err)
		return
	}
	log.Printf("✅ [SCHEDULER] Job %s completed in %v", job.Name(), time.Since(start))
}

// Start begins running all registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	log.Println("🚀 [SCHEDULER] Job scheduler started")
}

// Stop gracefully stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() error {
	log.Println("🛑 [SCHEDULER] Stopping job scheduler...")
	s.cancel()
	return s.scheduler.Shutdown()
}
