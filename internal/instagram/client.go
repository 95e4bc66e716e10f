// Package instagram publishes campaign media through the Instagram Graph API
// content publishing endpoints: single images, reels, and carousels.
//
// Publishing is two-phase:
//  1. Create media containers (one per item, uploaded via public URL), plus
//     a carousel container referencing the children for multi-item posts
//  2. Publish the caption-bearing container
//
// Video containers are processed asynchronously. A publish call made before
// processing completes fails with a "media not ready" error, which the
// Publisher retries under its backoff policy.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/publish"
)

const (
	// defaultBaseURL is the Graph API base URL.
	defaultBaseURL = "https://graph.facebook.com/v21.0"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 60 * time.Second

	// MaxCarouselItems is the Instagram carousel size limit.
	MaxCarouselItems = 10
	minCarouselItems = 2

	// Graph API error identifying a container that is still processing.
	codeMediaNotReady    = 9007
	subcodeMediaNotReady = 2207027
)

// Container media types.
const (
	MediaTypeImage    = "IMAGE"
	MediaTypeVideo    = "VIDEO"
	MediaTypeReels    = "REELS"
	MediaTypeCarousel = "CAROUSEL"
)

// Container processing states reported by status_code.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusFinished   = "FINISHED"
	StatusPublished  = "PUBLISHED"
	StatusError      = "ERROR"
	StatusExpired    = "EXPIRED"
)

// Credentials identify the Instagram business account and the Meta app.
type Credentials struct {
	AccessToken string
	UserID      string
	// AppID and AppSecret are only needed for token exchange.
	AppID     string
	AppSecret string
}

// Client provides methods for publishing to Instagram via the Graph API.
type Client struct {
	httpClient  *http.Client
	accessToken string
	userID      string
	appID       string
	appSecret   string
	baseURL     string
}

// NewClient creates a Graph API client.
func NewClient(creds Credentials) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		accessToken: creds.AccessToken,
		userID:      creds.UserID,
		appID:       creds.AppID,
		appSecret:   creds.AppSecret,
		baseURL:     defaultBaseURL,
	}
}

// --- API response types ---

// apiResponse is the generic Graph API response.
type apiResponse struct {
	ID    string      `json:"id"`
	Error *GraphError `json:"error,omitempty"`
}

// GraphError is the error object of a Graph API response.
type GraphError struct {
	Message     string `json:"message"`
	Type        string `json:"type"`
	Code        int    `json:"code"`
	Subcode     int    `json:"error_subcode,omitempty"`
	UserMessage string `json:"error_user_msg,omitempty"`
	IsTransient bool   `json:"is_transient,omitempty"`
	FBTraceID   string `json:"fbtrace_id,omitempty"`
}

func (e *GraphError) Error() string {
	msg := fmt.Sprintf("%s (type: %s, code: %d", e.Message, e.Type, e.Code)
	if e.Subcode != 0 {
		msg += fmt.Sprintf(", subcode: %d", e.Subcode)
	}
	return msg + ")"
}

// Temporary reports whether the request may succeed later unchanged: the
// container is still processing or Meta flagged the error as transient.
func (e *GraphError) Temporary() bool {
	return e.IsTransient || e.notReady()
}

func (e *GraphError) notReady() bool {
	return e.Code == codeMediaNotReady || e.Subcode == subcodeMediaNotReady
}

// IsMediaNotReady reports whether err is the Graph API's "media not ready
// for publishing" error, matched by code rather than message text.
func IsMediaNotReady(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.notReady()
}

// containerStatusResponse is the response from GET /{container_id}?fields=status_code,status.
type containerStatusResponse struct {
	ID         string      `json:"id"`
	StatusCode string      `json:"status_code"`
	Status     string      `json:"status,omitempty"`
	Error      *GraphError `json:"error,omitempty"`
}

// --- Container creation ---

// ContainerRequest describes one POST /{user}/media call.
type ContainerRequest struct {
	MediaType string
	// MediaURL is a publicly reachable image or video URL. Unused for carousels.
	MediaURL       string
	Caption        string
	IsCarouselItem bool
	Children       []string
	ShareToFeed    bool
	ThumbOffsetMs  int
	LocationID     string
}

func (r ContainerRequest) params() url.Values {
	params := url.Values{}
	if r.MediaType != "" && !(r.MediaType == MediaTypeImage && !r.IsCarouselItem) {
		params.Set("media_type", r.MediaType)
	}
	switch r.MediaType {
	case MediaTypeCarousel:
		params.Set("children", strings.Join(r.Children, ","))
	case MediaTypeVideo, MediaTypeReels:
		params.Set("video_url", r.MediaURL)
	default:
		params.Set("image_url", r.MediaURL)
	}
	if r.IsCarouselItem {
		params.Set("is_carousel_item", "true")
	}
	if r.Caption != "" {
		params.Set("caption", r.Caption)
	}
	if r.MediaType == MediaTypeReels {
		params.Set("share_to_feed", strconv.FormatBool(r.ShareToFeed))
		if r.ThumbOffsetMs > 0 {
			params.Set("thumb_offset", strconv.Itoa(r.ThumbOffsetMs))
		}
	}
	if r.LocationID != "" && !r.IsCarouselItem {
		params.Set("location_id", r.LocationID)
	}
	return params
}

// CreateContainer creates a media container and returns its id.
func (c *Client) CreateContainer(ctx context.Context, req ContainerRequest) (string, error) {
	if req.MediaType == MediaTypeCarousel {
		if n := len(req.Children); n < minCarouselItems || n > MaxCarouselItems {
			return "", publish.Errorf(publish.KindTooManyItems,
				"carousel requires %d-%d items, got %d", minCarouselItems, MaxCarouselItems, n)
		}
	}
	log.Debug().Str("media_type", req.MediaType).Bool("is_carousel_item", req.IsCarouselItem).Msg("Creating container")

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.userID), req.params())
	if err != nil {
		return "", fmt.Errorf("create %s container: %w", strings.ToLower(req.MediaType), err)
	}
	log.Info().Str("container_id", resp.ID).Str("media_type", req.MediaType).Msg("Container created")
	return resp.ID, nil
}

// --- Publishing ---

// Publish makes one media_publish attempt for a container and returns the
// published media id. A still-processing container yields an error for which
// IsMediaNotReady is true.
func (c *Client) Publish(ctx context.Context, containerID string) (string, error) {
	log.Debug().Str("container_id", containerID).Msg("Publishing container")
	params := url.Values{"creation_id": {containerID}}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media_publish", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("publish container %s: %w", containerID, err)
	}
	log.Info().Str("container_id", containerID).Str("media_id", resp.ID).Msg("Container published")
	return resp.ID, nil
}

// --- Status polling ---

// ContainerStatus returns the processing status of a media container:
// IN_PROGRESS, FINISHED, PUBLISHED, ERROR, or EXPIRED.
func (c *Client) ContainerStatus(ctx context.Context, containerID string) (string, error) {
	var status containerStatusResponse
	query := url.Values{"fields": {"status_code,status"}}
	if err := c.getJSON(ctx, "/"+containerID, query, &status); err != nil {
		return "", fmt.Errorf("container status: %w", err)
	}
	if status.Error != nil {
		return "", classify(http.StatusOK, status.Error)
	}
	return status.StatusCode, nil
}

// --- Internal helpers ---

// postForm sends a form-encoded POST. The access token is added here so it
// never appears in logged parameters.
func (c *Client) postForm(ctx context.Context, endpoint string, params url.Values) (*apiResponse, error) {
	startTime := time.Now()

	paramNames := make([]string, 0, len(params))
	for key := range params {
		paramNames = append(paramNames, key)
	}
	log.Trace().Strs("formParams", paramNames).Msg("Form parameters")

	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("access_token", c.accessToken)

	log.Debug().Str("method", http.MethodPost).Str("path", endpoint).Msg("Instagram API request")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Msg("Instagram API response")
		return nil, publish.Wrap(publish.KindNetworkFailure, stripToken(err), "request failed")
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Instagram API response")

	var resp apiResponse
	if err := decode(httpResp, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		log.Error().Str("errorMessage", resp.Error.Message).Str("errorType", resp.Error.Type).
			Int("errorCode", resp.Error.Code).Int("errorSubcode", resp.Error.Subcode).Msg("Instagram API error")
		return nil, classify(httpResp.StatusCode, resp.Error)
	}
	if resp.ID == "" {
		return nil, &publish.Error{Kind: publish.KindProviderRejected, StatusCode: httpResp.StatusCode,
			Message: "unexpected response: no ID returned"}
	}
	return &resp, nil
}

// getJSON issues an authenticated GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("access_token", c.accessToken)

	log.Debug().Str("method", http.MethodGet).Str("path", endpoint).Msg("Instagram API request")
	return c.doGet(ctx, c.baseURL+endpoint+"?"+q.Encode(), out)
}

// doGet issues a GET for a fully built URL and decodes the body into out.
func (c *Client) doGet(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return publish.Wrap(publish.KindNetworkFailure, stripToken(err), "request failed")
	}
	defer httpResp.Body.Close()
	return decode(httpResp, out)
}

// decode reads a Graph API body. Any error object is classified by the
// caller; here only transport-level problems are handled.
func decode(httpResp *http.Response, out any) error {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return publish.Wrap(publish.KindNetworkFailure, err, "read response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		kind := publish.KindProviderRejected
		if httpResp.StatusCode >= http.StatusInternalServerError {
			kind = publish.KindNetworkFailure
		}
		return &publish.Error{Kind: kind, StatusCode: httpResp.StatusCode,
			Message: fmt.Sprintf("parse response: %v (body: %s)", err, truncate(string(body), 200))}
	}

	// A 4xx/5xx with a body that decoded but carried no error object.
	if httpResp.StatusCode/100 != 2 {
		var probe struct {
			Error *GraphError `json:"error"`
		}
		if json.Unmarshal(body, &probe) != nil || probe.Error == nil {
			kind := publish.KindProviderRejected
			if httpResp.StatusCode >= http.StatusInternalServerError {
				kind = publish.KindNetworkFailure
			}
			return &publish.Error{Kind: kind, StatusCode: httpResp.StatusCode,
				Message: "HTTP " + strconv.Itoa(httpResp.StatusCode) + ": " + truncate(string(body), 200)}
		}
	}
	return nil
}

// classify maps a Graph error object onto the publish taxonomy.
func classify(statusCode int, ge *GraphError) error {
	kind := publish.KindProviderRejected
	if statusCode >= http.StatusInternalServerError || ge.IsTransient {
		kind = publish.KindNetworkFailure
	}
	return &publish.Error{
		Kind:       kind,
		StatusCode: statusCode,
		Code:       ge.Code,
		Message:    "Instagram API error",
		Err:        ge,
	}
}

// stripToken removes credentials from the URL embedded in transport errors.
func stripToken(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	if u, perr := url.Parse(ue.URL); perr == nil {
		q := u.Query()
		redacted := false
		for _, key := range []string{"access_token", "client_secret", "fb_exchange_token"} {
			if q.Has(key) {
				q.Set(key, "REDACTED")
				redacted = true
			}
		}
		if redacted {
			u.RawQuery = q.Encode()
			return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
		}
	}
	return err
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
