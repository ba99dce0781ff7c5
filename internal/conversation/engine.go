package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tutormula/internal/logger/sl"
	"tutormula/internal/metrics"
	"tutormula/internal/models"
	"tutormula/internal/service"
	"tutormula/internal/utils"
)

// Message is one inbound chat text
type Message struct {
	ExternalID int64
	Name       string
	Text       string
}

// Reply is one outbound chat text. A nil Keyboard leaves the current keyboard in place.
type Reply struct {
	Text     string
	Keyboard [][]string
}

// Notifier is called after attendance or a report is recorded
type Notifier interface {
	CheckAndNotifyParent(ctx context.Context, sessionID int64) bool
}

// Services are the domain operations the engine drives
type Services struct {
	Identity   *service.IdentityService
	Enrollment *service.EnrollmentService
	Scheduling *service.SchedulingService
	Notifier   Notifier
}

// Engine runs one dialog state machine per chat user
type Engine struct {
	identity   *service.IdentityService
	enrollment *service.EnrollmentService
	scheduling *service.SchedulingService
	notifier   Notifier
	states     StateStore
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func NewEngine(svc Services, states StateStore, m *metrics.Metrics, log *slog.Logger) *Engine {
	return &Engine{
		identity:   svc.Identity,
		enrollment: svc.Enrollment,
		scheduling: svc.Scheduling,
		notifier:   svc.Notifier,
		states:     states,
		metrics:    m,
		log:        log.With(slog.String("component", "conversation")),
	}
}

type turn struct {
	msg     Message
	text    string
	account *models.Account
	roles   models.RoleSet
	state   *State
	// keep leaves the stored state untouched
	keep bool
}

func (t *turn) retry(text string) ([]Reply, error) {
	t.keep = true
	return []Reply{{Text: "⚠️ " + text}}, nil
}

// Handle advances the sender's dialog by one message.
// Errors are returned only for storage failures; the stored state is then unchanged.
func (e *Engine) Handle(ctx context.Context, msg Message) ([]Reply, error) {
	const op = "conversation.Engine.Handle"

	t := &turn{msg: msg, text: strings.TrimSpace(msg.Text)}
	if err := e.loadAccount(ctx, t); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stored, err := e.states.Get(ctx, msg.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.state = stored.clone()

	log := e.log.With(
		slog.String("op", op),
		slog.Int64("external_id", msg.ExternalID),
		slog.String("flow", string(stored.Flow)),
		slog.String("node", stored.Node),
	)

	var replies []Reply
	switch {
	case t.text == CmdBack && !localBack(stored):
		t.state.reset()
		replies = e.menu(t, "Main Menu:")
	case t.text == CmdStart:
		t.state.reset()
		replies = e.start(t)
	case !stored.Idle():
		replies, err = e.continueFlow(ctx, t)
	default:
		replies, err = e.command(ctx, t)
	}

	if err != nil {
		var handled bool
		if replies, handled = e.explain(t, err); !handled {
			log.Error("failed to handle message", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Debug("flow error", sl.Err(err))
	}

	if t.keep {
		return replies, nil
	}
	if t.state.Idle() {
		if !stored.Idle() {
			if err := e.states.Clear(ctx, msg.ExternalID); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		return replies, nil
	}

	t.state.UpdatedAt = time.Now().UTC()
	if err := e.states.Save(ctx, msg.ExternalID, t.state); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return replies, nil
}

func (e *Engine) loadAccount(ctx context.Context, t *turn) error {
	account, err := e.identity.AccountByExternalID(ctx, t.msg.ExternalID)
	if err != nil {
		return err
	}
	t.account = account
	t.roles = models.NewRoleSet()
	if account == nil {
		return nil
	}
	t.roles, err = e.identity.GetRolesFor(ctx, account.ID)
	return err
}

// refreshRoles reloads the sender after a registration changed them
func (e *Engine) refreshRoles(ctx context.Context, t *turn, account *models.Account) error {
	t.account = account
	roles, err := e.identity.GetRolesFor(ctx, account.ID)
	if err != nil {
		return err
	}
	t.roles = roles
	return nil
}

// localBack reports whether Back is handled by the flow itself at this node
func localBack(st *State) bool {
	return st.Flow == FlowMarkAttendance && st.Node == attStatus
}

// explain turns domain errors into user-facing replies
func (e *Engine) explain(t *turn, err error) ([]Reply, bool) {
	var verr utils.ValidationError
	switch {
	case errors.As(err, &verr):
		replies, _ := t.retry(capitalize(verr.Message))
		return replies, true
	case service.IsAuthorization(err):
		t.state.reset()
		return e.menu(t, "⛔ "+capitalize(err.Error())+"."), true
	case service.IsNotFound(err):
		t.state.reset()
		return e.menu(t, "❌ "+capitalize(err.Error())+"."), true
	}
	return nil, false
}

// abandon ends the flow when finalize rejects data that no further input can fix.
// Other errors go through explain as usual.
func (e *Engine) abandon(t *turn, err error) ([]Reply, error) {
	var verr utils.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}
	return e.done(t, "⚠️ "+capitalize(verr.Message)+"."), nil
}

func (e *Engine) menu(t *turn, text string) []Reply {
	if t.account == nil {
		if text == "Main Menu:" {
			text = "Please register:"
		}
		return []Reply{{Text: text, Keyboard: roleKeyboard()}}
	}
	return []Reply{{Text: text, Keyboard: mainMenu(t.roles)}}
}

// done ends the current flow and shows the main menu
func (e *Engine) done(t *turn, text string) []Reply {
	t.state.reset()
	return e.menu(t, text)
}

func (e *Engine) lost(t *turn) ([]Reply, error) {
	return e.done(t, "Something went wrong with this dialog. Let's start over."), nil
}

func (e *Engine) completed(flow Flow) {
	e.metrics.FlowCompleted(string(flow))
}

func (e *Engine) start(t *turn) []Reply {
	if t.account == nil {
		t.state.start(FlowRegistration, regRole)
		return []Reply{{
			Text:     "Welcome to Tutormula! 🎓\n\nPlease select your role to begin registration:",
			Keyboard: roleKeyboard(),
		}}
	}
	return e.menu(t, fmt.Sprintf("Welcome back, %s!", t.account.FullName))
}

func (e *Engine) continueFlow(ctx context.Context, t *turn) ([]Reply, error) {
	switch t.state.Flow {
	case FlowRegistration:
		return e.registrationStep(ctx, t)
	case FlowAddStudent:
		return e.addStudentStep(ctx, t)
	case FlowLinkChild:
		return e.linkChildStep(ctx, t)
	case FlowCreateSession:
		return e.createSessionStep(ctx, t)
	case FlowMarkAttendance:
		return e.markAttendanceStep(ctx, t)
	case FlowCreateReport:
		return e.createReportStep(ctx, t)
	case FlowEnroll:
		return e.enrollStep(ctx, t)
	case FlowChildAttendance:
		return e.childAttendanceStep(ctx, t)
	}
	return e.lost(t)
}

func (e *Engine) command(ctx context.Context, t *turn) ([]Reply, error) {
	if t.account == nil {
		return e.guestCommand(t)
	}

	switch t.text {
	case CmdHelp:
		return e.help(t), nil
	case CmdProfile:
		return e.profile(ctx, t)
	case CmdSearchTutors:
		return e.searchTutors(ctx, t)
	case CmdCreateSession:
		return e.startCreateSession(ctx, t)
	case CmdMySessions:
		return e.mySessions(ctx, t)
	case CmdCreateReport:
		return e.startCreateReport(ctx, t)
	case CmdMarkAttendance:
		return e.startMarkAttendance(ctx, t)
	case CmdMyStudents:
		return e.myStudents(ctx, t)
	case CmdMyAttendance:
		return e.myAttendance(ctx, t)
	case CmdAddStudent:
		return e.startAddStudent(t)
	case CmdLinkChild:
		return e.startLinkChild(t)
	case CmdMyChildren:
		return e.myChildren(ctx, t)
	case CmdChildReports:
		return e.childReports(ctx, t)
	}

	if strings.HasPrefix(t.text, registerPrefix) {
		if role, ok := models.ParseRoleKind(strings.TrimPrefix(t.text, registerPrefix)); ok && role != models.RoleAdmin {
			return e.startRegistration(t, role), nil
		}
	}
	if id, ok := refID(enrollID, t.text); ok {
		return e.enroll(ctx, t, id)
	}

	return e.menu(t, "Sorry, I didn't understand that. Please use the menu below."), nil
}

func (e *Engine) guestCommand(t *turn) ([]Reply, error) {
	if t.text == CmdHelp {
		return e.help(t), nil
	}
	name := strings.TrimPrefix(t.text, registerPrefix)
	if role, ok := models.ParseRoleKind(name); ok && role != models.RoleAdmin {
		return e.startRegistration(t, role), nil
	}
	return e.menu(t, "Please register first. Choose your role:"), nil
}

// require is the capability check every restricted flow runs before it starts
func require(t *turn, role models.RoleKind, action string) error {
	if t.roles.Has(role) {
		return nil
	}
	return &service.AuthorizationError{Action: action, Role: role}
}

func prompt(text string) []Reply {
	return []Reply{{Text: text, Keyboard: backOnly()}}
}

func ask(text string, keyboard [][]string) []Reply {
	return []Reply{{Text: text, Keyboard: keyboard}}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
