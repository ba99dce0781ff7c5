package models

import (
	"sort"
	"strings"
	"time"
)

// Account is one external chat identity.
// ExternalID is the chat platform user id and needs the full 64-bit range.
type Account struct {
	ID         int64     `json:"id"`
	ExternalID int64     `json:"external_id"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RoleKind is one of the roles an account may hold
type RoleKind string

const (
	RoleStudent RoleKind = "student"
	RoleTutor   RoleKind = "tutor"
	RoleParent  RoleKind = "parent"
	RoleAdmin   RoleKind = "admin"
)

// Valid reports whether r is a known role
func (r RoleKind) Valid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleParent, RoleAdmin:
		return true
	}
	return false
}

// Title returns the capitalised role name used in chat labels
func (r RoleKind) Title() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// ParseRoleKind accepts "Student", "tutor", " PARENT " and similar
func ParseRoleKind(s string) (RoleKind, bool) {
	r := RoleKind(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Role is an (account, role) assignment
type Role struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Role      RoleKind  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleSet is the set of roles held by one account
type RoleSet map[RoleKind]struct{}

// NewRoleSet builds a set from role kinds
func NewRoleSet(roles ...RoleKind) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports whether the set contains r
func (s RoleSet) Has(r RoleKind) bool {
	_, ok := s[r]
	return ok
}

// Empty reports whether no role is held
func (s RoleSet) Empty() bool {
	return len(s) == 0
}

// Sorted returns the roles in a stable order
func (s RoleSet) Sorted() []RoleKind {
	out := make([]RoleKind, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String joins the roles with ", "
func (s RoleSet) String() string {
	roles := s.Sorted()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
