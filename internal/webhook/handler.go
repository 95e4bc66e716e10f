// Package webhook receives Instagram webhook callbacks for published media.
//
// Verification (GET) echoes hub.challenge when hub.verify_token matches.
// Notifications (POST) must carry X-Hub-Signature-256, an HMAC-SHA256 of the
// body keyed by the app secret. Accepted notifications are flattened into
// Events and handed to a Sink.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// maxBodySize bounds a notification body. Meta batches up to 1000 changes.
const maxBodySize = 1 << 20

// Event is one change on an Instagram account, such as a new comment.
type Event struct {
	AccountID string          `json:"accountId"`
	Field     string          `json:"field"`
	MediaID   string          `json:"mediaId,omitempty"`
	CommentID string          `json:"commentId,omitempty"`
	Text      string          `json:"text,omitempty"`
	Username  string          `json:"username,omitempty"`
	Time      time.Time       `json:"time"`
	Raw       json.RawMessage `json:"raw"`
}

// Sink consumes accepted events. Errors are logged; Meta still receives 200
// so it does not redeliver the batch.
type Sink func(ctx context.Context, events []Event) error

// LogSink logs each event.
func LogSink(ctx context.Context, events []Event) error {
	for _, e := range events {
		log.Info().
			Str("account_id", e.AccountID).
			Str("field", e.Field).
			Str("media_id", e.MediaID).
			Str("comment_id", e.CommentID).
			Str("username", e.Username).
			Msg("Instagram engagement event")
	}
	return nil
}

// Handler serves the webhook endpoint.
type Handler struct {
	verifyToken string
	appSecret   string
	sink        Sink
}

// NewHandler creates a webhook handler. A nil sink logs events.
func NewHandler(verifyToken, appSecret string, sink Sink) *Handler {
	if sink == nil {
		sink = LogSink
	}
	return &Handler{verifyToken: verifyToken, appSecret: appSecret, sink: sink}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerification(w, r)
	case http.MethodPost:
		h.handleNotification(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, token, challenge := q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge")

	if mode == "" || challenge == "" {
		http.Error(w, "missing required parameters", http.StatusBadRequest)
		return
	}
	if mode != "subscribe" {
		log.Warn().Str("mode", mode).Msg("Webhook verification unexpected mode")
		http.Error(w, "invalid mode", http.StatusBadRequest)
		return
	}
	if !hmac.Equal([]byte(token), []byte(h.verifyToken)) {
		log.Warn().Msg("Webhook verification failed: invalid verify token")
		http.Error(w, "invalid verify token", http.StatusForbidden)
		return
	}

	log.Info().Msg("Webhook verification successful")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil || len(body) == 0 {
		http.Error(w, "empty or unreadable body", http.StatusBadRequest)
		return
	}
	if !validSignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		log.Warn().Msg("Webhook notification: invalid signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	events, err := parseNotification(body)
	if err != nil {
		log.Warn().Err(err).Int("bodySize", len(body)).Msg("Webhook notification: malformed payload")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if len(events) > 0 {
		if err := h.sink(r.Context(), events); err != nil {
			log.Error().Err(err).Int("events", len(events)).Msg("Webhook sink failed")
		}
	}
	w.WriteHeader(http.StatusOK)
}

// validSignature checks a "sha256=<hex>" header in constant time.
func validSignature(secret string, body []byte, header string) bool {
	hexSig, ok := strings.CutPrefix(header, "sha256=")
	if !ok || hexSig == "" {
		return false
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

type notification struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Time    int64  `json:"time"`
		Changes []struct {
			Field string          `json:"field"`
			Value json.RawMessage `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type changeValue struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	MediaID   string `json:"media_id"`
	CommentID string `json:"comment_id"`
	From      struct {
		Username string `json:"username"`
	} `json:"from"`
	Media struct {
		ID string `json:"id"`
	} `json:"media"`
}

func parseNotification(body []byte) ([]Event, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	var events []Event
	for _, entry := range n.Entry {
		for _, ch := range entry.Changes {
			var v changeValue
			// Unknown value shapes are kept raw.
			_ = json.Unmarshal(ch.Value, &v)
			e := Event{
				AccountID: entry.ID,
				Field:     ch.Field,
				MediaID:   v.Media.ID,
				CommentID: v.CommentID,
				Text:      v.Text,
				Username:  v.From.Username,
				Time:      time.Unix(entry.Time, 0).UTC(),
				Raw:       ch.Value,
			}
			if e.MediaID == "" {
				e.MediaID = v.MediaID
			}
			if e.CommentID == "" && ch.Field == "comments" {
				e.CommentID = v.ID
			}
			events = append(events, e)
		}
	}
	return events, nil
}
