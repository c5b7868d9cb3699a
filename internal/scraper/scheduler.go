package scraper

import (
	"context"
	"time"

	"abogacia-chatbot/internal/logger"

	"github.com/go-co-op/gocron"
)

// Scheduler runs acquisition jobs on a cron schedule.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

// NewScheduler returns a UTC scheduler that never overlaps runs of the same job.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels running jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleJob schedules job under a cron expression. The job receives a
// context canceled by Stop.
func (s *Scheduler) ScheduleJob(tag, cronExpr string, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(func() {
		if err := job(s.ctx); err != nil {
			logger.Error("Scheduled job failed", "tag", tag, "error", err)
		}
	})
	return err
}

const acquisitionTag = "acquisition"

// ScheduleAcquisition runs h over topics on cronExpr.
func (s *Scheduler) ScheduleAcquisition(cronExpr string, h *Harvester, topics map[string]int) error {
	return s.ScheduleJob(acquisitionTag, cronExpr, func(ctx context.Context) error {
		logger.Info("Scheduled acquisition starting", "topics", len(topics))
		_, err := h.Run(ctx, topics)
		return err
	})
}
