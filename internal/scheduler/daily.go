package scheduler

import (
	"context"
	"log/slog"
	"time"

	"tutormula/internal/logger/sl"
	"tutormula/internal/service"
	"tutormula/internal/utils"
)

const dateLayout = "2006-01-02"

// Runner is the daily digest job
type Runner interface {
	RunDailyPass(ctx context.Context) (*service.DailyPassResult, error)
	ReportTime(ctx context.Context) (string, error)
	LastRunDate(ctx context.Context) (string, error)
	MarkRun(ctx context.Context, date string) error
}

// Daily runs the parent digest once per UTC day at the configured time.
// The time of day is re-read on every tick so admins can change it at runtime.
type Daily struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewDaily(runner Runner, interval, timeout time.Duration, log *slog.Logger) *Daily {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Daily{
		runner:   runner,
		interval: interval,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With(slog.String("component", "scheduler")),
	}
}

// Run ticks until ctx is cancelled
func (d *Daily) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("daily report scheduler started", slog.Duration("interval", d.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, d.timeout)
			d.tick(tickCtx)
			cancel()
		}
	}
}

// tick runs the pass if today's target time has passed and it has not run today
func (d *Daily) tick(ctx context.Context) bool {
	const op = "scheduler.Daily.tick"
	log := d.log.With(slog.String("op", op))

	now := d.now()
	today := now.Format(dateLayout)

	last, err := d.runner.LastRunDate(ctx)
	if err != nil {
		log.Error("failed to read last run", sl.Err(err))
		return false
	}
	if last == today {
		return false
	}

	at, err := d.runner.ReportTime(ctx)
	if err != nil {
		log.Error("failed to read report time", sl.Err(err))
		return false
	}
	hour, minute, err := utils.ParseHHMM(at)
	if err != nil {
		log.Warn("invalid report time, using default", slog.String("value", at))
		hour, minute, _ = utils.ParseHHMM(service.DefaultReportTime)
	}

	due := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if now.Before(due) {
		return false
	}

	log.Info("running daily report pass", slog.String("date", today))
	if _, err := d.runner.RunDailyPass(ctx); err != nil {
		// not marked, so the next tick retries
		log.Error("daily report pass failed", sl.Err(err))
		return false
	}
	if err := d.runner.MarkRun(ctx, today); err != nil {
		log.Error("failed to record daily run", sl.Err(err))
	}
	return true
}
