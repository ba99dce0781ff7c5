package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tutormula/internal/database"
	"tutormula/internal/logger/sl"
	"tutormula/internal/metrics"
	"tutormula/internal/models"
	"tutormula/internal/repository"
)

// Deliverer sends text to a chat identity
type Deliverer interface {
	Deliver(ctx context.Context, externalID int64, text string) error
}

// NotifyService tells a managing parent about a completed session
type NotifyService struct {
	store     *repository.Store
	deliverer Deliverer
	timeout   time.Duration
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewNotifyService creates a new notify service. timeout bounds each delivery.
func NewNotifyService(db *database.DB, deliverer Deliverer, timeout time.Duration, m *metrics.Metrics, log *slog.Logger) *NotifyService {
	return &NotifyService{
		store:     repository.NewStore(db),
		deliverer: deliverer,
		timeout:   timeout,
		metrics:   m,
		log:       log.With(slog.String("component", "notify")),
	}
}

// CheckAndNotifyParent delivers the session summary to the profile's managing parent
// once the session has both attendance and a report. It reports whether a message
// was delivered; failures are logged and never returned.
func (s *NotifyService) CheckAndNotifyParent(ctx context.Context, sessionID int64) bool {
	const op = "service.NotifyService.CheckAndNotifyParent"
	log := s.log.With(slog.String("op", op), slog.Int64("session_id", sessionID))

	detail, err := sessionDetail(ctx, s.store, sessionID)
	if err != nil {
		log.Error("failed to load session", sl.Err(err))
		s.metrics.Notification("error")
		return false
	}
	if !detail.Complete() {
		log.Debug("session not complete")
		return false
	}
	if detail.Student == nil || detail.Student.ParentAccountID == nil {
		log.Debug("no managing parent")
		s.metrics.Notification("skipped")
		return false
	}

	parent, err := s.store.Accounts.GetByID(ctx, *detail.Student.ParentAccountID)
	if err != nil {
		log.Error("failed to load parent", sl.Err(err))
		s.metrics.Notification("error")
		return false
	}
	if parent == nil || parent.ExternalID == 0 {
		log.Warn("managing parent has no chat identity")
		s.metrics.Notification("skipped")
		return false
	}

	dctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.deliverer.Deliver(dctx, parent.ExternalID, SessionSummary(detail)); err != nil {
		derr := &DeliveryError{Recipient: parent.ExternalID, Err: err}
		log.Warn("parent notification failed", sl.Err(derr))
		s.metrics.Notification("failed")
		return false
	}

	log.Info("parent notified", slog.Int64("parent_id", parent.ID))
	s.metrics.Notification("sent")
	return true
}

// SessionSummary formats a completed session for a parent
func SessionSummary(d *models.SessionDetail) string {
	var b strings.Builder
	b.WriteString("📚 Session Report\n\n")
	if d.Student != nil {
		fmt.Fprintf(&b, "Student: %s\n", d.Student.FullName)
	}
	fmt.Fprintf(&b, "Topic: %s\n", d.Session.Topic)
	if d.Tutor != nil {
		fmt.Fprintf(&b, "Tutor: %s\n", d.Tutor.FullName)
	}
	fmt.Fprintf(&b, "Date: %s\n", d.Session.ScheduledAt.UTC().Format(models.SessionTimeLayout))
	if d.Attendance != nil {
		fmt.Fprintf(&b, "Attendance: %s\n", d.Attendance.Status)
	}
	if d.Report != nil {
		fmt.Fprintf(&b, "Score: %d/%d\n", d.Report.Score, models.MaxReportScore)
		fmt.Fprintf(&b, "\nReport:\n%s", d.Report.Content)
	}
	return b.String()
}
