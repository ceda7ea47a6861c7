package tg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	hc      *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		baseURL: fmt.Sprintf("https://api.telegram.org/bot%s", token),
		hc:      &http.Client{Timeout: 9 * time.Second},
	}
}

// NewClientWithBase is used by tests to point the client at a fake server.
func NewClientWithBase(baseURL string) *Client {
	return &Client{baseURL: baseURL, hc: &http.Client{Timeout: 9 * time.Second}}
}

// APIError is a non-2xx reply from the Bot API. Code and Description come from
// the Telegram error payload when it can be decoded.
type APIError struct {
	Method      string
	Status      int
	Code        int
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram api %s status %d: %s", e.Method, e.Status, e.Description)
	}
	return fmt.Sprintf("telegram api %s status %d", e.Method, e.Status)
}

// IsForbidden reports whether err means the bot lacks rights in the target chat
// (not an admin, kicked, or never added).
func IsForbidden(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == 403 || ae.Status == 403
}

// IsNotFound reports whether err means the chat or message does not exist.
func IsNotFound(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == 404 || ae.Status == 404
}

// IsRetryable reports whether err is transient (rate limit, server side, or a
// network-level failure that never produced an API reply).
func IsRetryable(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return true
	}
	return ae.Code == 429 || ae.Status >= 500
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

func NewInlineKeyboardMarkup(rows [][]InlineKeyboardButton) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

type KeyboardButton struct {
	Text string `json:"text"`
}

// ReplyKeyboardMarkup is the persistent keyboard under the input box; the
// ingestion flows use it for the cancel/skip/continue tokens.
type ReplyKeyboardMarkup struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard,omitempty"`
}

func NewReplyKeyboard(rows ...[]string) *ReplyKeyboardMarkup {
	kb := &ReplyKeyboardMarkup{ResizeKeyboard: true}
	for _, row := range rows {
		buttons := make([]KeyboardButton, 0, len(row))
		for _, text := range row {
			buttons = append(buttons, KeyboardButton{Text: text})
		}
		kb.Keyboard = append(kb.Keyboard, buttons)
	}
	return kb
}

type SendMessageRequest struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ParseMode   string `json:"parse_mode,omitempty"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) error {
	return c.post(ctx, "/sendMessage", req)
}

// Channel-targeted requests carry the chat reference as a string so both
// numeric ids and @usernames work.
type SendPhotoRequest struct {
	ChatID      string `json:"chat_id"`
	Photo       string `json:"photo"`
	Caption     string `json:"caption,omitempty"`
	ParseMode   string `json:"parse_mode,omitempty"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

// SendPhoto posts a photo by file id and returns the resulting message id.
func (c *Client) SendPhoto(ctx context.Context, req SendPhotoRequest) (int, error) {
	return c.postForMessageID(ctx, "/sendPhoto", req)
}

type SendVideoRequest struct {
	ChatID      string `json:"chat_id"`
	Video       string `json:"video"`
	Caption     string `json:"caption,omitempty"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

// SendVideo posts a video by file id and returns the resulting message id.
func (c *Client) SendVideo(ctx context.Context, req SendVideoRequest) (int, error) {
	return c.postForMessageID(ctx, "/sendVideo", req)
}

func (c *Client) postForMessageID(ctx context.Context, method string, payload any) (int, error) {
	resp, err := c.postWithResult(ctx, method, payload)
	if err != nil {
		return 0, err
	}
	var result struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

func (c *Client) post(ctx context.Context, method string, payload any) error {
	_, err := c.postWithResult(ctx, method, payload)
	return err
}

func (c *Client) postWithResult(ctx context.Context, method string, payload any) ([]byte, error) {
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Method: method, Status: resp.StatusCode}
		var failure struct {
			OK          bool   `json:"ok"`
			ErrorCode   int    `json:"error_code"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(body, &failure); err == nil && failure.ErrorCode != 0 {
			apiErr.Code = failure.ErrorCode
			apiErr.Description = failure.Description
		} else {
			apiErr.Description = string(body)
		}
		return nil, apiErr
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Ok     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Ok {
		return wrapper.Result, nil
	}
	return body, nil
}
