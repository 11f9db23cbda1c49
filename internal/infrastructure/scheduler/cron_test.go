package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler("not a cron line", time.UTC, nil)

	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCronSchedulerTriggersJob(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	s := NewCronScheduler("@every 1s", loc, nil)
	fired := make(chan time.Time, 1)

	if err := s.Start(context.Background(), func(at time.Time) {
		select {
		case fired <- at:
		default:
		}
	}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case at := <-fired:
		if at.Location().String() != "Asia/Shanghai" {
			t.Fatalf("trigger time in %s, want Asia/Shanghai", at.Location())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("job never triggered")
	}
}

func TestCronSchedulerStopIsIdempotent(t *testing.T) {
	s := NewCronScheduler("@daily", nil, nil)
	if err := s.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestCronSchedulerStopsWithContext(t *testing.T) {
	s := NewCronScheduler("@daily", time.UTC, nil)
	ctx, cancel := context.WithCancel(context.Background())

	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		stopped := s.cron == nil
		s.mu.Unlock()
		if stopped {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("scheduler still running after context cancel")
}
