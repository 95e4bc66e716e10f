// Long-lived token exchange for Facebook Login for Business.
//
// A short-lived user token (about 1 hour) is exchanged for a long-lived one
// (about 60 days) using the Meta app credentials:
//
//	GET /oauth/access_token?grant_type=fb_exchange_token&client_id=...&client_secret=...&fb_exchange_token=...

package instagram

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/publish"
)

// LongLivedTokenResult holds the response from exchanging a short-lived token
// for a long-lived access token.
type LongLivedTokenResult struct {
	AccessToken string // Long-lived token (60 days)
	TokenType   string
	ExpiresIn   int64  // Seconds until expiry; 0 when the API omits it
}

// longTokenResponse is the JSON response from the token exchange endpoint.
type longTokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	Error       *GraphError `json:"error,omitempty"`
}

// ExchangeLongLivedToken exchanges shortLived for a long-lived user token.
// The client must have been created with AppID and AppSecret.
func (c *Client) ExchangeLongLivedToken(ctx context.Context, shortLived string) (*LongLivedTokenResult, error) {
	if c.appID == "" || c.appSecret == "" {
		return nil, publish.Errorf(publish.KindConfigurationMissing, "INSTAGRAM_APP_ID and INSTAGRAM_APP_SECRET are required for token exchange")
	}
	if shortLived == "" {
		return nil, fmt.Errorf("short-lived token is empty")
	}

	query := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {c.appID},
		"client_secret":     {c.appSecret},
		"fb_exchange_token": {shortLived},
	}

	log.Debug().Msg("Exchanging short-lived token for long-lived token")
	var resp longTokenResponse
	if err := c.doGet(ctx, c.baseURL+"/oauth/access_token?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("token exchange: %w", classify(0, resp.Error))
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("token exchange: response missing access_token")
	}

	log.Info().Int64("expiresIn", resp.ExpiresIn).Msg("Long-lived token obtained")
	return &LongLivedTokenResult{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		ExpiresIn:   resp.ExpiresIn,
	}, nil
}
