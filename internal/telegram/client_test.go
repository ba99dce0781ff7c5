package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tutormula/internal/logger"
)

type recordedCall struct {
	Path string
	Body map[string]any
}

// fakeBotAPI answers Bot API calls with canned bodies, one per call in order
type fakeBotAPI struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses []string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Path: r.URL.Path, Body: body})
	resp := `{"ok":true,"result":true}`
	if len(f.responses) > 0 {
		resp, f.responses = f.responses[0], f.responses[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

func newTestClient(t *testing.T, responses ...string) (*Client, *fakeBotAPI) {
	t.Helper()
	fake := &fakeBotAPI{responses: responses}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "TOKEN", logger.Discard()), fake
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name         string
		keyboard     [][]string
		wantMarkup   bool
		wantKeyboard int
	}{
		{"with keyboard", [][]string{{"Student", "Tutor"}, {"Back"}}, true, 2},
		{"keeps current keyboard", nil, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t)
			if err := c.SendMessage(context.Background(), 42, "hello", tt.keyboard); err != nil {
				t.Fatalf("SendMessage: %v", err)
			}

			if len(fake.calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(fake.calls))
			}
			call := fake.calls[0]
			if call.Path != "/botTOKEN/sendMessage" {
				t.Errorf("path = %q", call.Path)
			}
			if call.Body["chat_id"] != float64(42) || call.Body["text"] != "hello" {
				t.Errorf("unexpected body %v", call.Body)
			}
			markup, ok := call.Body["reply_markup"].(map[string]any)
			if ok != tt.wantMarkup {
				t.Fatalf("reply_markup present = %v, want %v", ok, tt.wantMarkup)
			}
			if ok {
				rows := markup["keyboard"].([]any)
				if len(rows) != tt.wantKeyboard || markup["resize_keyboard"] != true {
					t.Errorf("unexpected markup %v", markup)
				}
			}
		})
	}
}

func TestSendMessageFallsBackToPlainText(t *testing.T) {
	c, fake := newTestClient(t,
		`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`,
		`{"ok":true,"result":{}}`,
	)

	if err := c.SendText(context.Background(), 7, "snake_case_name"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected a retry, got %d calls", len(fake.calls))
	}
	if fake.calls[0].Body["parse_mode"] != "Markdown" {
		t.Errorf("first attempt should use Markdown")
	}
	if _, ok := fake.calls[1].Body["parse_mode"]; ok {
		t.Errorf("retry should drop parse_mode")
	}
}

func TestAPIError(t *testing.T) {
	c, _ := newTestClient(t, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)

	err := c.Deliver(context.Background(), 99, "report")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != http.StatusForbidden || apiErr.Method != "sendMessage" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestGetUpdates(t *testing.T) {
	c, fake := newTestClient(t, `{"ok":true,"result":[
		{"update_id":10,"message":{"message_id":1,"from":{"id":5,"first_name":"Ada","last_name":"King"},"chat":{"id":5},"text":"/start"}},
		{"update_id":11}
	]}`)

	updates, err := c.GetUpdates(context.Background(), 10, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	m := updates[0].Message
	if m == nil || m.Text != "/start" || m.From.FullName() != "Ada King" || m.Chat.ID != 5 {
		t.Errorf("unexpected message %+v", m)
	}
	if updates[1].Message != nil {
		t.Error("non-message update should have nil Message")
	}
	if fake.calls[0].Body["offset"] != float64(10) || fake.calls[0].Body["timeout"] != float64(1) {
		t.Errorf("unexpected request %v", fake.calls[0].Body)
	}
}
