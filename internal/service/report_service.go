package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tutormula/internal/database"
	"tutormula/internal/logger/sl"
	"tutormula/internal/metrics"
	"tutormula/internal/models"
	"tutormula/internal/repository"
)

const (
	// ReportWindow is how far back a daily digest looks
	ReportWindow = 24 * time.Hour
	// DefaultReportTime applies when daily_report_time is unset
	DefaultReportTime = "08:00"
)

// ReportMailer sends an email copy of a digest
type ReportMailer interface {
	IsEnabled() bool
	SendParentReport(ctx context.Context, toEmail, toName, subject, text string) error
}

// DailyPassResult summarises one run of the daily digest
type DailyPassResult struct {
	Parents int `json:"parents"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ReportService builds and delivers the daily parent digest
type ReportService struct {
	db        *database.DB
	store     *repository.Store
	deliverer Deliverer
	mailer    ReportMailer
	timeout   time.Duration
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// NewReportService creates a new report service. mailer may be nil.
func NewReportService(db *database.DB, deliverer Deliverer, mailer ReportMailer, timeout time.Duration, m *metrics.Metrics, log *slog.Logger) *ReportService {
	return &ReportService{
		db:        db,
		store:     repository.NewStore(db),
		deliverer: deliverer,
		mailer:    mailer,
		timeout:   timeout,
		metrics:   m,
		log:       log.With(slog.String("component", "daily_report")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type digest struct {
	parent models.Account
	email  string
	text   string
}

// RunDailyPass sends each parent a digest of their children's reports from the last day.
// Every parent is read in its own transaction; a failure for one parent does not stop the pass.
func (s *ReportService) RunDailyPass(ctx context.Context) (*DailyPassResult, error) {
	const op = "service.ReportService.RunDailyPass"
	log := s.log.With(slog.String("op", op), slog.String("trace_id", uuid.NewString()))

	parents, err := s.store.Parents.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	since := s.now().Add(-ReportWindow)
	result := &DailyPassResult{Parents: len(parents)}

	for _, p := range parents {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%s: %w", op, err)
		}

		d, err := s.collect(ctx, p, since)
		if err != nil {
			log.Error("failed to collect digest", slog.Int64("parent_id", p.AccountID), sl.Err(err))
			result.Failed++
			s.metrics.DailyReport("error")
			continue
		}
		if d == nil {
			result.Skipped++
			continue
		}

		if s.send(ctx, log, d) {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	log.Info("daily report pass finished",
		slog.Int("parents", result.Parents),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// collect returns nil when the parent has nothing to report
func (s *ReportService) collect(ctx context.Context, p models.ParentProfile, since time.Time) (*digest, error) {
	var d *digest
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)

		parent, err := st.Accounts.GetByID(ctx, p.AccountID)
		if err != nil || parent == nil {
			return err
		}
		children, err := st.Students.ListByParent(ctx, p.AccountID)
		if err != nil {
			return err
		}

		var b strings.Builder
		count := 0
		for _, child := range children {
			reports, err := st.Reports.ListByProfile(ctx, child.ID, since)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n👤 %s\n", child.FullName)
			for _, r := range reports {
				detail, err := sessionDetail(ctx, st, r.SessionID)
				if err != nil {
					return err
				}
				b.WriteString(digestLine(detail))
				count++
			}
		}
		if count == 0 {
			return nil
		}

		d = &digest{
			parent: *parent,
			email:  p.Email,
			text:   fmt.Sprintf("📊 Daily report for %s\n%s", parent.FullName, b.String()),
		}
		return nil
	})
	return d, err
}

func digestLine(d *models.SessionDetail) string {
	tutor := "-"
	if d.Tutor != nil {
		tutor = d.Tutor.FullName
	}
	status := "not marked"
	if d.Attendance != nil {
		status = string(d.Attendance.Status)
	}
	line := fmt.Sprintf("• %s (%s) with %s: %s",
		d.Session.Topic, d.Session.ScheduledAt.UTC().Format(models.SessionTimeLayout), tutor, status)
	if d.Report != nil {
		line += fmt.Sprintf(", %d/%d\n  %s", d.Report.Score, models.MaxReportScore, d.Report.Content)
	}
	return line + "\n"
}

func (s *ReportService) send(ctx context.Context, log *slog.Logger, d *digest) bool {
	log = log.With(slog.Int64("parent_id", d.parent.ID))

	dctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout())
	err := s.deliverer.Deliver(dctx, d.parent.ExternalID, d.text)
	cancel()

	if err == nil && d.email != "" && s.mailer != nil && s.mailer.IsEnabled() {
		// email failures leave the report status untouched
		if merr := s.mailer.SendParentReport(ctx, d.email, d.parent.FullName, "Daily tutoring report", d.text); merr != nil {
			log.Warn("report email failed", sl.Err(merr))
		}
	}

	entry := &models.ParentReportLog{ParentAccountID: d.parent.ID, Status: models.ReportLogSuccess, SentAt: s.now()}
	if err != nil {
		derr := &DeliveryError{Recipient: d.parent.ExternalID, Err: err}
		entry.Status = models.ReportLogFailed
		entry.ErrorMessage = derr.Error()
		log.Warn("daily report delivery failed", sl.Err(derr))
	}

	werr := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		if err := st.ReportLogs.Append(ctx, entry); err != nil {
			return err
		}
		if entry.Status == models.ReportLogSuccess {
			return st.Parents.SetLastReportSent(ctx, d.parent.ID, entry.SentAt)
		}
		return nil
	})
	if werr != nil {
		log.Error("failed to record report log", sl.Err(werr))
	}

	if err != nil {
		s.metrics.DailyReport("failed")
		return false
	}
	s.metrics.DailyReport("sent")
	return true
}

// ReportTime returns the configured HH:MM of the daily pass
func (s *ReportService) ReportTime(ctx context.Context) (string, error) {
	return s.store.Settings.GetValue(ctx, repository.SettingDailyReportTime, DefaultReportTime)
}

// LastRunDate returns the YYYY-MM-DD of the last completed pass, or "" if none
func (s *ReportService) LastRunDate(ctx context.Context) (string, error) {
	return s.store.Settings.GetValue(ctx, repository.SettingDailyReportLastRun, "")
}

// MarkRun records date as the last completed pass
func (s *ReportService) MarkRun(ctx context.Context, date string) error {
	return s.store.Settings.Set(ctx, repository.SettingDailyReportLastRun, date)
}

func (s *ReportService) deliveryTimeout() time.Duration {
	if s.timeout <= 0 {
		return 5 * time.Second
	}
	return s.timeout
}
