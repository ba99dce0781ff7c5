package conversation

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Flow names a multi-turn dialog
type Flow string

const (
	FlowNone           Flow = ""
	FlowRegistration   Flow = "registration"
	FlowAddStudent     Flow = "add_student"
	FlowLinkChild      Flow = "link_child"
	FlowCreateSession  Flow = "create_session"
	FlowMarkAttendance Flow = "mark_attendance"
	FlowCreateReport   Flow = "create_report"
	FlowEnroll         Flow = "enroll"

	FlowChildAttendance Flow = "child_attendance"
)

// State is the dialog position of one chat user. Data holds the fields
// collected so far; it is discarded when the flow ends.
type State struct {
	Flow      Flow              `json:"flow"`
	Node      string            `json:"node"`
	Data      map[string]string `json:"data"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StateStore persists State per external identity.
// Get returns an idle state when nothing is stored.
type StateStore interface {
	Get(ctx context.Context, externalID int64) (*State, error)
	Save(ctx context.Context, externalID int64, st *State) error
	Clear(ctx context.Context, externalID int64) error
}

func idle() *State {
	return &State{Data: map[string]string{}}
}

// Idle reports whether no flow is in progress
func (s *State) Idle() bool {
	return s.Flow == FlowNone
}

func (s *State) start(flow Flow, node string) {
	s.Flow = flow
	s.Node = node
	s.Data = map[string]string{}
}

func (s *State) reset() {
	s.Flow = FlowNone
	s.Node = ""
	s.Data = map[string]string{}
}

func (s *State) clone() *State {
	c := &State{Flow: s.Flow, Node: s.Node, UpdatedAt: s.UpdatedAt, Data: make(map[string]string, len(s.Data))}
	for k, v := range s.Data {
		c.Data[k] = v
	}
	return c
}

func (s *State) set(key, value string) {
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	s.Data[key] = value
}

func (s *State) get(key string) string {
	return s.Data[key]
}

func (s *State) setInt(key string, v int64) {
	s.set(key, strconv.FormatInt(v, 10))
}

func (s *State) int64(key string) int64 {
	v, _ := strconv.ParseInt(s.Data[key], 10, 64)
	return v
}

func (s *State) int(key string) int {
	return int(s.int64(key))
}

// setIDs stores ids as a comma-separated list
func (s *State) setIDs(key string, ids []int64) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	s.set(key, strings.Join(parts, ","))
}

func (s *State) ids(key string) []int64 {
	raw := s.Data[key]
	if raw == "" {
		return nil
	}
	var out []int64
	for _, p := range strings.Split(raw, ",") {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func (s *State) hasID(key string, id int64) bool {
	for _, v := range s.ids(key) {
		if v == id {
			return true
		}
	}
	return false
}

// toggleID adds id to the set under key, or removes it if present
func (s *State) toggleID(key string, id int64) {
	current := s.ids(key)
	out := current[:0]
	found := false
	for _, v := range current {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	s.setIDs(key, out)
}

func (s *State) setJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, string(raw))
	return nil
}

func (s *State) decode(key string, v interface{}) error {
	raw := s.Data[key]
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}
