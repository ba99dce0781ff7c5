package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tutormula/internal/repository"
)

// SQLStore keeps dialog state in the dialog_states table
type SQLStore struct {
	dialogs *repository.DialogRepository
}

func NewSQLStore(dialogs *repository.DialogRepository) *SQLStore {
	return &SQLStore{dialogs: dialogs}
}

func (s *SQLStore) Get(ctx context.Context, externalID int64) (*State, error) {
	const op = "conversation.SQLStore.Get"

	rec, err := s.dialogs.Get(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rec == nil {
		return idle(), nil
	}

	st := &State{Flow: Flow(rec.Flow), Node: rec.Node, UpdatedAt: rec.UpdatedAt}
	if err := json.Unmarshal([]byte(rec.Data), &st.Data); err != nil {
		return nil, fmt.Errorf("%s: decode data: %w", op, err)
	}
	if st.Data == nil {
		st.Data = map[string]string{}
	}
	return st, nil
}

func (s *SQLStore) Save(ctx context.Context, externalID int64, st *State) error {
	const op = "conversation.SQLStore.Save"

	data, err := json.Marshal(st.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	err = s.dialogs.Save(ctx, &repository.DialogRecord{
		ExternalID: externalID,
		Flow:       string(st.Flow),
		Node:       st.Node,
		Data:       string(data),
		UpdatedAt:  st.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, externalID int64) error {
	if err := s.dialogs.Delete(ctx, externalID); err != nil {
		return fmt.Errorf("conversation.SQLStore.Clear: %w", err)
	}
	return nil
}

// Expire removes dialogs untouched for longer than ttl
func (s *SQLStore) Expire(ctx context.Context, ttl time.Duration) (int64, error) {
	return s.dialogs.DeleteOlderThan(ctx, time.Now().UTC().Add(-ttl))
}
