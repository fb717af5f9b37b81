package scheduling

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddTaskUnknownAction(t *testing.T) {
	s := New(testLogger())
	err := s.AddTask(Task{Name: "x", Schedule: "30s", Action: Action("bogus")})
	if err == nil {
		t.Fatal("expected error for unregistered action")
	}
}

func TestAddTaskInvalidSchedule(t *testing.T) {
	s := New(testLogger())
	s.RegisterAction(ActionDrainQueues, func(context.Context) error { return nil })
	if err := s.AddTask(Task{Name: "x", Schedule: "not-a-schedule", Action: ActionDrainQueues}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if err := s.AddTask(Task{Name: "x", Schedule: "-5s", Action: ActionDrainQueues}); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestDurationScheduleFires(t *testing.T) {
	s := New(testLogger())
	var fired atomic.Int32
	s.RegisterAction(ActionDrainQueues, func(context.Context) error {
		fired.Add(1)
		return nil
	})
	if err := s.AddTask(Task{Name: "drain", Schedule: "20ms", Action: ActionDrainQueues}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for fired.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("task never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStopPreventsFurtherRuns(t *testing.T) {
	s := New(testLogger())
	var fired atomic.Int32
	s.RegisterAction(ActionRunGeneration, func(context.Context) error {
		fired.Add(1)
		return nil
	})
	if err := s.AddTask(Task{Name: "evolve", Schedule: "20ms", Action: ActionRunGeneration}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	after := fired.Load()
	time.Sleep(60 * time.Millisecond)
	if fired.Load() != after {
		t.Error("task fired after Stop")
	}
}

func TestCronExpressionParses(t *testing.T) {
	if _, err := parseSchedule("*/5 * * * *"); err != nil {
		t.Errorf("cron expression rejected: %v", err)
	}
	if _, err := parseSchedule("@hourly"); err != nil {
		t.Errorf("descriptor rejected: %v", err)
	}
}
