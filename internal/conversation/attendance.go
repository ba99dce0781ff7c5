package conversation

import (
	"context"
	"fmt"

	"tutormula/internal/models"
	"tutormula/internal/service"
)

const (
	attGroup  = "group"
	attSelect = "select"
	attStatus = "status"
	attChild  = "child"

	keyGroups   = "groups"
	keyRoster   = "roster"
	keySelected = "selected"

	recentSessionLimit = 50
	maxSessionGroups   = 10
)

// sessionGroup is every session sharing a topic and start time, so a class
// can be marked at once
type sessionGroup struct {
	Label    string  `json:"label"`
	Sessions []int64 `json:"sessions"`
}

type rosterEntry struct {
	SessionID int64  `json:"session_id"`
	ProfileID int64  `json:"profile_id"`
	Name      string `json:"name"`
}

func groupSessions(sessions []models.Session) []sessionGroup {
	var groups []sessionGroup
	index := make(map[string]int)
	for _, s := range sessions {
		if s.StudentProfileID == 0 {
			continue
		}
		label := fmt.Sprintf("%s - %s", s.Topic, s.ScheduledAt.UTC().Format(models.SessionTimeLayout))
		if i, ok := index[label]; ok {
			groups[i].Sessions = append(groups[i].Sessions, s.ID)
			continue
		}
		if len(groups) == maxSessionGroups {
			continue
		}
		index[label] = len(groups)
		groups = append(groups, sessionGroup{Label: label, Sessions: []int64{s.ID}})
	}
	return groups
}

func (e *Engine) startMarkAttendance(ctx context.Context, t *turn) ([]Reply, error) {
	if err := require(t, models.RoleTutor, "marking attendance"); err != nil {
		return nil, err
	}

	sessions, err := e.scheduling.RecentTutorSessions(ctx, t.account.ID, recentSessionLimit)
	if err != nil {
		return nil, err
	}
	groups := groupSessions(sessions)
	if len(groups) == 0 {
		return e.menu(t, "You have no sessions to mark attendance for."), nil
	}

	t.state.start(FlowMarkAttendance, attGroup)
	if err := t.state.setJSON(keyGroups, groups); err != nil {
		return nil, err
	}
	labels := make([]string, len(groups))
	for i, g := range groups {
		labels[i] = g.Label
	}
	return ask("Select a session (or group) to mark attendance for:", choices(labels)), nil
}

func (e *Engine) markAttendanceStep(ctx context.Context, t *turn) ([]Reply, error) {
	switch t.state.Node {
	case attGroup:
		return e.pickGroup(ctx, t)

	case attSelect:
		if t.text == CmdMarkSelected {
			if len(t.state.ids(keySelected)) == 0 {
				return t.retry("Select at least one student.")
			}
			t.state.Node = attStatus
			return ask("Select status for these students:", statusKeyboard()), nil
		}

		var roster []rosterEntry
		if err := t.state.decode(keyRoster, &roster); err != nil {
			return nil, err
		}
		sid, ok := refID(sessRef, t.text)
		if !ok || !inRoster(roster, sid) {
			return t.retry("Use the keyboard.")
		}
		t.state.toggleID(keySelected, sid)
		return selectionReply(t.state, roster), nil

	case attStatus:
		var roster []rosterEntry
		if err := t.state.decode(keyRoster, &roster); err != nil {
			return nil, err
		}
		if t.text == CmdBack {
			t.state.Node = attSelect
			return selectionReply(t.state, roster), nil
		}
		status, ok := parseStatus(t.text)
		if !ok {
			return t.retry("Please select a valid status.")
		}
		return e.finishAttendance(ctx, t, roster, status)
	}
	return e.lost(t)
}

func (e *Engine) pickGroup(ctx context.Context, t *turn) ([]Reply, error) {
	var groups []sessionGroup
	if err := t.state.decode(keyGroups, &groups); err != nil {
		return nil, err
	}

	var picked *sessionGroup
	for i := range groups {
		if groups[i].Label == t.text {
			picked = &groups[i]
			break
		}
	}
	if picked == nil {
		return t.retry("Please select a session from the keyboard.")
	}

	var roster []rosterEntry
	for _, sid := range picked.Sessions {
		d, err := e.scheduling.SessionDetail(ctx, sid)
		if err != nil {
			return nil, err
		}
		if d.Student == nil {
			continue
		}
		roster = append(roster, rosterEntry{SessionID: sid, ProfileID: d.Student.ID, Name: d.Student.FullName})
	}
	if len(roster) == 0 {
		return e.done(t, "No students found for that session."), nil
	}

	if err := t.state.setJSON(keyRoster, roster); err != nil {
		return nil, err
	}
	t.state.set(keySelected, "")
	t.state.Node = attSelect
	return selectionReply(t.state, roster), nil
}

func selectionReply(st *State, roster []rosterEntry) []Reply {
	labels := make([]string, 0, len(roster))
	for _, r := range roster {
		mark := "⬜"
		if st.hasID(keySelected, r.SessionID) {
			mark = "✅"
		}
		labels = append(labels, fmt.Sprintf("%s %s (Ref: %d)", mark, r.Name, r.SessionID))
	}

	keyboard := make([][]string, 0, len(labels)+2)
	for _, l := range labels {
		keyboard = append(keyboard, []string{l})
	}
	keyboard = append(keyboard, []string{CmdMarkSelected}, []string{CmdBack})

	text := fmt.Sprintf("Select students to apply status to (%d selected):", len(st.ids(keySelected)))
	return ask(text, keyboard)
}

func inRoster(roster []rosterEntry, sessionID int64) bool {
	for _, r := range roster {
		if r.SessionID == sessionID {
			return true
		}
	}
	return false
}

func (e *Engine) finishAttendance(ctx context.Context, t *turn, roster []rosterEntry, status models.AttendanceStatus) ([]Reply, error) {
	var marks []service.AttendanceMark
	for _, r := range roster {
		if t.state.hasID(keySelected, r.SessionID) {
			marks = append(marks, service.AttendanceMark{SessionID: r.SessionID, StudentProfileID: r.ProfileID})
		}
	}

	if err := e.scheduling.MarkAttendanceBatch(ctx, t.account.ID, marks, status); err != nil {
		return nil, err
	}

	notified := 0
	for _, m := range marks {
		if e.notifier != nil && e.notifier.CheckAndNotifyParent(ctx, m.SessionID) {
			notified++
		}
	}

	e.completed(FlowMarkAttendance)
	text := fmt.Sprintf("✅ Marked %d students as %s!", len(marks), capitalize(string(status)))
	if notified > 0 {
		text += fmt.Sprintf("\n📨 %d parent notification(s) sent.", notified)
	}
	return e.done(t, text), nil
}
