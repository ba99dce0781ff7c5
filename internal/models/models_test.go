package models

import "testing"

func TestParseRoleKind(t *testing.T) {
	tests := []struct {
		input string
		want  RoleKind
		ok    bool
	}{
		{"Student", RoleStudent, true},
		{" tutor ", RoleTutor, true},
		{"PARENT", RoleParent, true},
		{"admin", RoleAdmin, true},
		{"teacher", RoleKind("teacher"), false},
		{"", RoleKind(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRoleKind(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseRoleKind(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRoleSet(t *testing.T) {
	set := NewRoleSet(RoleTutor, RoleStudent, RoleTutor)

	if len(set) != 2 {
		t.Errorf("expected 2 roles, got %d", len(set))
	}
	if !set.Has(RoleTutor) || !set.Has(RoleStudent) {
		t.Error("expected tutor and student in set")
	}
	if set.Has(RoleParent) {
		t.Error("parent should not be in set")
	}
	if got := set.String(); got != "student, tutor" {
		t.Errorf("String() = %q, want %q", got, "student, tutor")
	}
	if !NewRoleSet().Empty() {
		t.Error("empty set should report Empty")
	}
}

func TestRoleKindTitle(t *testing.T) {
	if got := RoleParent.Title(); got != "Parent" {
		t.Errorf("Title() = %q, want Parent", got)
	}
}

func TestStudentProfileValid(t *testing.T) {
	owner := int64(1)
	parent := int64(2)

	tests := []struct {
		name    string
		profile StudentProfile
		want    bool
	}{
		{"owner only", StudentProfile{AccountID: &owner}, true},
		{"parent only", StudentProfile{ParentAccountID: &parent}, true},
		{"both", StudentProfile{AccountID: &owner, ParentAccountID: &parent}, true},
		{"neither", StudentProfile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}

	p := StudentProfile{ParentAccountID: &parent}
	if !p.ManagedBy(2) || p.ManagedBy(1) {
		t.Error("ManagedBy should match only the managing parent")
	}
}

func TestAttendanceStatus(t *testing.T) {
	tests := []struct {
		status AttendanceStatus
		valid  bool
		label  string
	}{
		{AttendancePresent, true, "Present ✅"},
		{AttendanceAbsent, true, "Absent ❌"},
		{AttendanceLate, true, "Late ⏰"},
		{AttendanceStatus("excused"), false, "excused"},
		{AttendanceStatus("Present"), false, "Present"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.status.Label(); got != tt.label {
				t.Errorf("Label() = %q, want %q", got, tt.label)
			}
		})
	}
}

func TestSessionDetailComplete(t *testing.T) {
	d := SessionDetail{}
	if d.Complete() {
		t.Error("empty detail should not be complete")
	}
	d.Attendance = &Attendance{Status: AttendancePresent}
	if d.Complete() {
		t.Error("attendance alone should not be complete")
	}
	d.Report = &Report{Score: 8}
	if !d.Complete() {
		t.Error("attendance and report should be complete")
	}
}
