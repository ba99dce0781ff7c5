package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"tutormula/internal/logger"
	"tutormula/internal/service"
)

type fakeRunner struct {
	reportTime string
	lastRun    string
	runErr     error
	runs       int
}

func (f *fakeRunner) RunDailyPass(context.Context) (*service.DailyPassResult, error) {
	f.runs++
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &service.DailyPassResult{}, nil
}

func (f *fakeRunner) ReportTime(context.Context) (string, error) { return f.reportTime, nil }

func (f *fakeRunner) LastRunDate(context.Context) (string, error) { return f.lastRun, nil }

func (f *fakeRunner) MarkRun(_ context.Context, date string) error {
	f.lastRun = date
	return nil
}

func TestDailyTick(t *testing.T) {
	tests := []struct {
		name       string
		now        string
		reportTime string
		lastRun    string
		runErr     error
		wantRan    bool
		wantRuns   int
		wantMarked string
	}{
		{"before target", "2025-03-10 07:59", "08:00", "", nil, false, 0, ""},
		{"at target", "2025-03-10 08:00", "08:00", "", nil, true, 1, "2025-03-10"},
		{"late start still runs", "2025-03-10 21:30", "08:00", "2025-03-09", nil, true, 1, "2025-03-10"},
		{"already ran today", "2025-03-10 09:00", "08:00", "2025-03-10", nil, false, 0, "2025-03-10"},
		{"reconfigured later", "2025-03-10 09:00", "18:30", "", nil, false, 0, ""},
		{"invalid time falls back to default", "2025-03-10 08:01", "25:00", "", nil, true, 1, "2025-03-10"},
		{"failed run is retried", "2025-03-10 08:05", "08:00", "", errors.New("db down"), false, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now, err := time.ParseInLocation("2006-01-02 15:04", tt.now, time.UTC)
			if err != nil {
				t.Fatalf("bad fixture: %v", err)
			}
			r := &fakeRunner{reportTime: tt.reportTime, lastRun: tt.lastRun, runErr: tt.runErr}
			d := NewDaily(r, time.Minute, time.Minute, logger.Discard())
			d.now = func() time.Time { return now }

			if got := d.tick(context.Background()); got != tt.wantRan {
				t.Errorf("tick() = %v, want %v", got, tt.wantRan)
			}
			if r.runs != tt.wantRuns {
				t.Errorf("runs = %d, want %d", r.runs, tt.wantRuns)
			}
			if r.lastRun != tt.wantMarked {
				t.Errorf("last run = %q, want %q", r.lastRun, tt.wantMarked)
			}
		})
	}
}

func TestDailyRunsOncePerDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	r := &fakeRunner{reportTime: "08:00"}
	d := NewDaily(r, time.Minute, time.Minute, logger.Discard())
	d.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		d.tick(context.Background())
		now = now.Add(30 * time.Minute)
	}
	if r.runs != 1 {
		t.Errorf("expected one run on the same day, got %d", r.runs)
	}

	now = time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	d.tick(context.Background())
	if r.runs != 2 {
		t.Errorf("expected a second run on the next day, got %d", r.runs)
	}
}

func TestDailyRunStopsWithContext(t *testing.T) {
	r := &fakeRunner{reportTime: "00:00"}
	d := NewDaily(r, 5*time.Millisecond, time.Second, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
