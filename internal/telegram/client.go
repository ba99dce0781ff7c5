package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds every non-polling call
const DefaultRequestTimeout = 10 * time.Second

// Client is a minimal Bot API client: long polling, text messages and reply keyboards
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

// NewClient builds a client. Deadlines are set per call, since long polls outlive DefaultRequestTimeout.
func NewClient(baseURL, token string, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
		timeout: DefaultRequestTimeout,
		log:     log.With(slog.String("component", "telegram")),
	}
}

// APIError is an ok=false answer from the Bot API
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// FullName joins first and last name
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

type keyboardButton struct {
	Text string `json:"text"`
}

type replyMarkup struct {
	Keyboard       [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64        `json:"chat_id"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// GetUpdates long-polls for new messages starting at offset
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout+c.timeout)
	defer cancel()

	var updates []Update
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message"},
	}
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends text with an optional reply keyboard. A nil keyboard leaves the client's keyboard unchanged.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard [][]string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "Markdown"}
	if keyboard != nil {
		markup := &replyMarkup{ResizeKeyboard: true}
		for _, row := range keyboard {
			buttons := make([]keyboardButton, len(row))
			for i, label := range row {
				buttons[i] = keyboardButton{Text: label}
			}
			markup.Keyboard = append(markup.Keyboard, buttons)
		}
		req.ReplyMarkup = markup
	}

	err := c.call(ctx, "sendMessage", req, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Description, "parse entities") {
		// user-supplied names can break Markdown; resend as plain text
		req.ParseMode = ""
		err = c.call(ctx, "sendMessage", req, nil)
	}
	return err
}

// SendText sends a message without touching the keyboard
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.SendMessage(ctx, chatID, text, nil)
}

// Deliver sends an out-of-band notification; in private chats the chat id is the user id
func (c *Client) Deliver(ctx context.Context, externalID int64, text string) error {
	return c.SendText(ctx, externalID, text)
}

func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var r apiResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("failed to decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !r.OK {
		code := r.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: r.Description}
	}

	if out != nil && len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}
