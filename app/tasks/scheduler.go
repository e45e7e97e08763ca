package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const tickTimeout = 5 * time.Minute

// Scheduler runs the two independent fixed-interval pipeline tasks: feed
// ingestion on a coarse interval and the publish cycle on a fine one. The
// ticks interleave freely; within each task, a tick that fires while the
// previous run is still in flight is dropped by the ticker, never stacked.
type Scheduler struct {
	ingestor        Runner
	cycle           Runner
	ingestInterval  time.Duration
	publishInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(ingestor, cycle Runner, ingestInterval, publishInterval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		ingestor:        ingestor,
		cycle:           cycle,
		ingestInterval:  ingestInterval,
		publishInterval: publishInterval,
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.loop(TaskTypeIngest, s.ingestor, s.ingestInterval, true)
	go s.loop(TaskTypePublish, s.cycle, s.publishInterval, false)

	slog.Info("Scheduler started",
		"ingest_interval", s.ingestInterval.String(),
		"publish_interval", s.publishInterval.String())
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) loop(taskType TaskType, runner Runner, interval time.Duration, runAtStart bool) {
	defer s.wg.Done()

	if runAtStart {
		s.execute(taskType, runner)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.execute(taskType, runner)
		}
	}
}

func (s *Scheduler) execute(taskType TaskType, runner Runner) {
	task := NewTask(taskType)

	taskCtx, cancel := context.WithTimeout(s.ctx, tickTimeout)
	defer cancel()

	if err := runner.Run(taskCtx); err != nil {
		slog.Error("Task execution failed", "type", string(task.Type), "duration", task.Duration().String(), "error", err)
		return
	}

	slog.Debug("Task completed", "type", string(task.Type), "duration", task.Duration().String())
}
