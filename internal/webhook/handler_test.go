package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const (
	testVerifyToken = "my_test_verify_token"
	testAppSecret   = "my_test_app_secret"
)

func signPayload(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) consume(ctx context.Context, events []Event) error {
	s.events = append(s.events, events...)
	return s.err
}

func TestVerification(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  int
		body  string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=" + testVerifyToken + "&hub.challenge=1158201444", http.StatusOK, "1158201444"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", http.StatusForbidden, ""},
		{"missing mode", "hub.verify_token=" + testVerifyToken + "&hub.challenge=1", http.StatusBadRequest, ""},
		{"missing challenge", "hub.mode=subscribe&hub.verify_token=" + testVerifyToken, http.StatusBadRequest, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=" + testVerifyToken + "&hub.challenge=1", http.StatusBadRequest, ""},
	}
	h := NewHandler(testVerifyToken, testAppSecret, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook/instagram?"+tt.query, nil))
			if rr.Code != tt.code {
				t.Errorf("status = %d, want %d", rr.Code, tt.code)
			}
			if tt.body != "" && rr.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.body)
			}
		})
	}
}

const commentPayload = `{"object":"instagram","entry":[{"id":"17841400000000000","time":1700000000,"changes":[
{"field":"comments","value":{"id":"c-1","text":"Price please?","from":{"id":"9","username":"buyer"},"media":{"id":"m-42"}}},
{"field":"mentions","value":{"media_id":"m-7","comment_id":"c-9"}}]}]}`

func post(h http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/instagram", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNotification_ParsesEvents(t *testing.T) {
	sink := &recordingSink{}
	h := NewHandler(testVerifyToken, testAppSecret, sink.consume)

	rr := post(h, commentPayload, signPayload(testAppSecret, commentPayload))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if len(sink.events) != 2 {
		t.Fatalf("events = %d, want 2", len(sink.events))
	}
	c := sink.events[0]
	if c.Field != "comments" || c.MediaID != "m-42" || c.CommentID != "c-1" || c.Username != "buyer" || c.Text != "Price please?" {
		t.Errorf("comment event = %+v", c)
	}
	if c.AccountID != "17841400000000000" || c.Time.Unix() != 1700000000 {
		t.Errorf("entry fields = %s %v", c.AccountID, c.Time)
	}
	m := sink.events[1]
	if m.Field != "mentions" || m.MediaID != "m-7" || m.CommentID != "c-9" {
		t.Errorf("mention event = %+v", m)
	}
}

func TestNotification_SinkErrorStillAcknowledged(t *testing.T) {
	sink := &recordingSink{err: errors.New("queue full")}
	h := NewHandler(testVerifyToken, testAppSecret, sink.consume)
	if rr := post(h, commentPayload, signPayload(testAppSecret, commentPayload)); rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestNotification_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature string
		code      int
	}{
		{"missing signature", commentPayload, "", http.StatusForbidden},
		{"wrong secret", commentPayload, signPayload("other", commentPayload), http.StatusForbidden},
		{"no prefix", commentPayload, strings.TrimPrefix(signPayload(testAppSecret, commentPayload), "sha256="), http.StatusForbidden},
		{"bad hex", commentPayload, "sha256=zz", http.StatusForbidden},
		{"empty body", "", signPayload(testAppSecret, ""), http.StatusBadRequest},
		{"malformed", "not json", signPayload(testAppSecret, "not json"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			h := NewHandler(testVerifyToken, testAppSecret, sink.consume)
			if rr := post(h, tt.body, tt.signature); rr.Code != tt.code {
				t.Errorf("status = %d, want %d", rr.Code, tt.code)
			}
			if len(sink.events) != 0 {
				t.Errorf("events = %d, want 0", len(sink.events))
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewHandler(testVerifyToken, testAppSecret, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/webhook/instagram", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}
