package conversation

import (
	"fmt"
	"regexp"
	"strconv"

	"tutormula/internal/models"
)

// Menu commands
const (
	CmdStart          = "/start"
	CmdBack           = "Back"
	CmdHelp           = "Help"
	CmdProfile        = "Profile"
	CmdSearchTutors   = "Search Tutors"
	CmdCreateSession  = "Create Session"
	CmdMySessions     = "My Sessions"
	CmdCreateReport   = "Create Report"
	CmdMarkAttendance = "Mark Attendance"
	CmdMyStudents     = "My Students"
	CmdMyAttendance   = "My Attendance"
	CmdAddStudent     = "Add New Student"
	CmdLinkChild      = "Link Child"
	CmdMyChildren     = "My Children"
	CmdChildReports   = "Child Reports"
	CmdMarkSelected   = "Mark Selected"

	registerPrefix = "Register as "
	enrollPrefix   = "Enroll "
)

var (
	idRef    = regexp.MustCompile(`\(ID: (\d+)\)$`)
	sessRef  = regexp.MustCompile(`\(Ref: (\d+)\)$`)
	hashRef  = regexp.MustCompile(`#(\d+)$`)
	enrollID = regexp.MustCompile(`^Enroll (\d+)$`)
)

// refID extracts the trailing id a choice label carries
func refID(re *regexp.Regexp, text string) (int64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil
}

func roleKeyboard() [][]string {
	return [][]string{{"Student", "Tutor", "Parent"}}
}

// mainMenu lays out the commands available to roles. Roles not yet held
// are offered as "Register as" buttons.
func mainMenu(roles models.RoleSet) [][]string {
	if roles.Empty() {
		return roleKeyboard()
	}

	rows := [][]string{
		{CmdProfile, CmdSearchTutors},
		{CmdCreateSession, CmdMySessions},
	}
	if roles.Has(models.RoleTutor) {
		rows = append(rows, []string{CmdCreateReport, CmdMarkAttendance}, []string{CmdMyStudents})
	}
	if roles.Has(models.RoleStudent) || roles.Has(models.RoleParent) {
		rows = append(rows, []string{CmdMyAttendance})
	}
	if roles.Has(models.RoleParent) {
		rows = append(rows, []string{CmdAddStudent, CmdLinkChild}, []string{CmdMyChildren, CmdChildReports})
	}

	var register []string
	for _, r := range []models.RoleKind{models.RoleStudent, models.RoleTutor, models.RoleParent} {
		if !roles.Has(r) {
			register = append(register, registerPrefix+r.Title())
		}
	}
	if len(register) > 0 {
		rows = append(rows, register)
	}
	return append(rows, []string{CmdHelp})
}

// choices puts one label per row and appends Back
func choices(labels []string) [][]string {
	rows := make([][]string, 0, len(labels)+1)
	for _, l := range labels {
		rows = append(rows, []string{l})
	}
	return append(rows, []string{CmdBack})
}

func backOnly() [][]string {
	return [][]string{{CmdBack}}
}

func statusKeyboard() [][]string {
	row := make([]string, 0, len(models.AttendanceStatuses))
	for _, s := range models.AttendanceStatuses {
		row = append(row, s.Label())
	}
	return [][]string{row, {CmdBack}}
}

func parseStatus(label string) (models.AttendanceStatus, bool) {
	for _, s := range models.AttendanceStatuses {
		if s.Label() == label {
			return s, true
		}
	}
	return "", false
}

func studentChoice(p models.StudentProfile) string {
	return fmt.Sprintf("Student: %s (ID: %d)", p.FullName, p.ID)
}

func tutorChoice(a models.Account) string {
	return fmt.Sprintf("Tutor: %s (ID: %d)", a.FullName, a.ID)
}

func childChoice(p models.StudentProfile) string {
	return fmt.Sprintf("Child: %s (ID: %d)", p.FullName, p.ID)
}

// matchChoice is the label used when several profiles share a name
func matchChoice(p models.StudentProfile) string {
	grade, school := p.Grade, p.School
	if grade == "" {
		grade = "-"
	}
	if school == "" {
		school = "-"
	}
	return fmt.Sprintf("%s (Grade %s, School %s) #%d", p.FullName, grade, school, p.ID)
}
