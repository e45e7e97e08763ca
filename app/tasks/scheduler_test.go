package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockRunner counts executions and optionally fails.
type MockRunner struct {
	mu          sync.Mutex
	runs        int
	shouldError bool
}

func (m *MockRunner) Run(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	if m.shouldError {
		return errors.New("mock run error")
	}
	return nil
}

func (m *MockRunner) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

func TestNewScheduler(t *testing.T) {
	ingestor := &MockRunner{}
	cycle := &MockRunner{}

	scheduler := NewScheduler(ingestor, cycle, time.Hour, time.Second)

	if scheduler == nil {
		t.Fatal("Expected scheduler to be created")
	}
	if scheduler.ingestInterval != time.Hour {
		t.Errorf("Expected ingest interval 1h, got %v", scheduler.ingestInterval)
	}
	if scheduler.publishInterval != time.Second {
		t.Errorf("Expected publish interval 1s, got %v", scheduler.publishInterval)
	}
}

func TestSchedulerRunsIngestAtStart(t *testing.T) {
	ingestor := &MockRunner{}
	cycle := &MockRunner{}

	// Long intervals: only the startup ingest run can fire.
	scheduler := NewScheduler(ingestor, cycle, time.Hour, time.Hour)
	scheduler.Start()
	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	if ingestor.Runs() != 1 {
		t.Errorf("Expected 1 startup ingest run, got %d", ingestor.Runs())
	}
	if cycle.Runs() != 0 {
		t.Errorf("Expected no publish runs before first tick, got %d", cycle.Runs())
	}
}

func TestSchedulerTicksBothLoops(t *testing.T) {
	ingestor := &MockRunner{}
	cycle := &MockRunner{}

	scheduler := NewScheduler(ingestor, cycle, 50*time.Millisecond, 20*time.Millisecond)
	scheduler.Start()
	time.Sleep(200 * time.Millisecond)
	scheduler.Stop()

	if ingestor.Runs() < 2 {
		t.Errorf("Expected repeated ingest runs, got %d", ingestor.Runs())
	}
	if cycle.Runs() < 2 {
		t.Errorf("Expected repeated publish runs, got %d", cycle.Runs())
	}
}

func TestSchedulerStopTerminatesLoops(t *testing.T) {
	ingestor := &MockRunner{}
	cycle := &MockRunner{}

	scheduler := NewScheduler(ingestor, cycle, 10*time.Millisecond, 10*time.Millisecond)
	scheduler.Start()
	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	ingestRuns := ingestor.Runs()
	cycleRuns := cycle.Runs()
	time.Sleep(50 * time.Millisecond)

	if ingestor.Runs() != ingestRuns {
		t.Error("Expected no ingest runs after stop")
	}
	if cycle.Runs() != cycleRuns {
		t.Error("Expected no publish runs after stop")
	}
}

func TestSchedulerKeepsTickingAfterError(t *testing.T) {
	ingestor := &MockRunner{shouldError: true}
	cycle := &MockRunner{}

	scheduler := NewScheduler(ingestor, cycle, 20*time.Millisecond, time.Hour)
	scheduler.Start()
	time.Sleep(100 * time.Millisecond)
	scheduler.Stop()

	if ingestor.Runs() < 2 {
		t.Errorf("Expected failing task to keep ticking, got %d runs", ingestor.Runs())
	}
}

func TestTaskDuration(t *testing.T) {
	task := NewTask(TaskTypeIngest)

	if task.Type != TaskTypeIngest {
		t.Errorf("Expected ingest task type, got %s", task.Type)
	}

	time.Sleep(10 * time.Millisecond)
	if task.Duration() < 10*time.Millisecond {
		t.Errorf("Expected duration of at least 10ms, got %v", task.Duration())
	}
}
