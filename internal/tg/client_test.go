package tg

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendPhotoReturnsMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendPhoto" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req SendPhotoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.ChatID != "@storage" || req.Photo != "file-1" {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL)
	id, err := c.SendPhoto(context.Background(), SendPhotoRequest{ChatID: "@storage", Photo: "file-1"})
	if err != nil {
		t.Fatal(err)
	}
	if id != 42 {
		t.Errorf("message id = %d, want 42", id)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot is not a member of the channel chat"}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL)
	_, err := c.SendVideo(context.Background(), SendVideoRequest{ChatID: "@storage", Video: "file-1"})
	if err == nil {
		t.Fatal("expected an error")
	}
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %T", err)
	}
	if ae.Code != 403 || ae.Description == "" {
		t.Errorf("APIError = %+v", ae)
	}
}

func TestErrorClassification(t *testing.T) {
	forbidden := &APIError{Status: 403, Code: 403}
	notFound := &APIError{Status: 404, Code: 404}
	rateLimited := &APIError{Status: 429, Code: 429}
	serverSide := &APIError{Status: 502}
	badRequest := &APIError{Status: 400, Code: 400}
	network := errors.New("dial tcp: connection refused")

	if !IsForbidden(forbidden) || IsForbidden(notFound) || IsForbidden(network) {
		t.Error("IsForbidden misclassified")
	}
	if !IsNotFound(notFound) || IsNotFound(forbidden) {
		t.Error("IsNotFound misclassified")
	}
	if !IsRetryable(rateLimited) || !IsRetryable(serverSide) || !IsRetryable(network) {
		t.Error("IsRetryable rejected a transient failure")
	}
	if IsRetryable(forbidden) || IsRetryable(badRequest) {
		t.Error("IsRetryable accepted a permanent failure")
	}
}

func TestSendMessageUsesNumericChatID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatal(err)
		}
		if _, ok := raw["chat_id"].(float64); !ok {
			t.Errorf("chat_id = %v (%T), want a number", raw["chat_id"], raw["chat_id"])
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL)
	if err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 12345, Text: "hi"}); err != nil {
		t.Fatal(err)
	}
}
