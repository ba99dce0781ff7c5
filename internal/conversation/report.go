package conversation

import (
	"context"
	"fmt"

	"tutormula/internal/models"
	"tutormula/internal/utils"
)

const (
	repSession = "session"
	repContent = "content"
	repScore   = "score"

	keySession = "session_id"
)

func (e *Engine) startCreateReport(ctx context.Context, t *turn) ([]Reply, error) {
	if err := require(t, models.RoleTutor, "creating a report"); err != nil {
		return nil, err
	}

	sessions, err := e.scheduling.UnreportedTutorSessions(ctx, t.account.ID, recentSessionLimit)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return e.menu(t, "You have no sessions waiting for a report."), nil
	}

	book := e.names()
	labels := make([]string, len(sessions))
	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		name, err := book.student(ctx, s.StudentProfileID)
		if err != nil {
			return nil, err
		}
		labels[i] = fmt.Sprintf("%s with %s (ID: %d)", s.Topic, name, s.ID)
		ids[i] = s.ID
	}

	t.state.start(FlowCreateReport, repSession)
	t.state.setIDs(keyChoices, ids)
	return ask("Which session would you like to report on?", choices(labels)), nil
}

func (e *Engine) createReportStep(ctx context.Context, t *turn) ([]Reply, error) {
	switch t.state.Node {
	case repSession:
		id, ok := refID(idRef, t.text)
		if !ok || !t.state.hasID(keyChoices, id) {
			return t.retry("Please pick a session from the keyboard.")
		}
		t.state.setInt(keySession, id)
		t.state.Node = repContent
		return prompt("Please provide the report content (summary of progress, etc.):"), nil

	case repContent:
		content, err := utils.RequireText("content", t.text)
		if err != nil {
			return t.retry("Please enter the report content.")
		}
		t.state.set(repContent, content)
		t.state.Node = repScore
		return prompt(fmt.Sprintf("How would you score the student's performance? (%d-%d)", models.MinReportScore, models.MaxReportScore)), nil

	case repScore:
		score, err := utils.ParseScore(t.text)
		if err != nil {
			return t.retry(fmt.Sprintf("Please enter a valid number (%d-%d).", models.MinReportScore, models.MaxReportScore))
		}
		sessionID := t.state.int64(keySession)
		if _, err := e.scheduling.CreateReport(ctx, sessionID, t.account.ID, t.state.get(repContent), score); err != nil {
			return e.abandon(t, err)
		}

		text := "✅ Report created successfully!"
		if e.notifier != nil && e.notifier.CheckAndNotifyParent(ctx, sessionID) {
			text += "\n📨 The parent has been notified."
		}
		e.completed(FlowCreateReport)
		return e.done(t, text), nil
	}
	return e.lost(t)
}
