// Package telegram posts campaign media to a Telegram channel through the
// Bot API. A multi-item campaign becomes one caption-bearing head message
// followed by caption-less replies threaded to it.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/media"
	"github.com/fpang/prachar/internal/publish"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	// defaultTimeout bounds a single send; video uploads dominate.
	defaultTimeout = 120 * time.Second

	parseModeHTML = "HTML"
)

// SendOptions are the optional fields of a media send.
type SendOptions struct {
	Caption string
	// ReplyTo threads the message under an existing message id.
	ReplyTo int64
}

// Client is a minimal Bot API client for sendPhoto and sendVideo.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

// NewClient creates a Bot API client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		token:      token,
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL targets a self-hosted Bot API server or a test fake.
// A nil hc uses the default timeout client.
func NewClientWithBaseURL(token, baseURL string, hc *http.Client) *Client {
	c := NewClient(token)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool        `json:"ok"`
	Result      *apiMessage `json:"result,omitempty"`
	Description string      `json:"description,omitempty"`
	ErrorCode   int         `json:"error_code,omitempty"`
}

type apiMessage struct {
	MessageID int64 `json:"message_id"`
}

// SendMedia sends one photo or video to chatID and returns the new message id.
// Local files and inline payloads are uploaded as multipart file parts;
// remote refs are passed by URL for Telegram to fetch.
func (c *Client) SendMedia(ctx context.Context, chatID string, ref media.Ref, opts SendOptions) (int64, error) {
	method, field := "sendPhoto", "photo"
	if ref.IsVideo() {
		method, field = "sendVideo", "video"
	}

	fields := map[string]string{"chat_id": chatID}
	if opts.Caption != "" {
		fields["caption"] = opts.Caption
		fields["parse_mode"] = parseModeHTML
	}
	if opts.ReplyTo != 0 {
		fields["reply_to_message_id"] = strconv.FormatInt(opts.ReplyTo, 10)
	}

	var (
		body        io.Reader
		contentType string
	)
	switch ref.Source() {
	case media.SourceRemote:
		form := url.Values{}
		for k, v := range fields {
			form.Set(k, v)
		}
		form.Set(field, ref.URL())
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case media.SourceLocal, media.SourceInline:
		src, err := ref.Open()
		if err != nil {
			return 0, publish.Wrap(publish.KindNoUsableMedia, err, "open "+ref.Name())
		}
		defer src.Close()
		pr, ct := multipartBody(fields, field, ref.Name(), src)
		defer pr.Close()
		body, contentType = pr, ct
	default:
		return 0, publish.Errorf(publish.KindNoUsableMedia, "invalid media reference")
	}

	log.Debug().Str("method", method).Str("chat_id", chatID).Str("source", ref.Source().String()).
		Int64("reply_to", opts.ReplyTo).Msg("Telegram API request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, publish.Wrap(publish.KindNetworkFailure, redact(err, c.token), method)
	}
	defer httpResp.Body.Close()
	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", time.Since(start)).Msg("Telegram API response")

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return 0, publish.Wrap(publish.KindNetworkFailure, err, "read response")
	}

	var resp apiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		if httpResp.StatusCode >= http.StatusInternalServerError {
			return 0, &publish.Error{Kind: publish.KindNetworkFailure, StatusCode: httpResp.StatusCode,
				Message: fmt.Sprintf("%s: HTTP %d", method, httpResp.StatusCode)}
		}
		return 0, &publish.Error{Kind: publish.KindProviderRejected, StatusCode: httpResp.StatusCode,
			Message: fmt.Sprintf("%s: unparseable response: %s", method, truncate(string(respBody), 200))}
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return 0, &publish.Error{Kind: publish.KindNetworkFailure, StatusCode: httpResp.StatusCode,
			Code: resp.ErrorCode, Message: method + ": " + resp.Description}
	}
	if httpResp.StatusCode/100 != 2 || !resp.OK || resp.Result == nil {
		log.Error().Int("statusCode", httpResp.StatusCode).Int("errorCode", resp.ErrorCode).
			Str("description", resp.Description).Msg("Telegram API error")
		return 0, &publish.Error{Kind: publish.KindProviderRejected, StatusCode: httpResp.StatusCode,
			Code: resp.ErrorCode, Message: method + ": " + resp.Description}
	}

	return resp.Result.MessageID, nil
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// multipartBody streams a multipart form with one file part.
func multipartBody(fields map[string]string, fileField, fileName string, src io.Reader) (*io.PipeReader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()
	return pr, mw.FormDataContentType()
}

// redact strips the bot token from transport errors, which embed the URL.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<redacted>"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
