package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	config "github.com/socialflowhq/socialflow/configs"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const graphBaseURL = "https://graph.instagram.com/v21.0"

type graphClient struct {
	oauth *oauth2.Config
	cfg   config.Config
	http  *http.Client
}

func NewGraphClient(cfg config.Config) Client {
	return &graphClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.InstagramClientID,
			ClientSecret: cfg.InstagramClientSecret,
			RedirectURL:  cfg.InstagramRedirectURI,
			Endpoint:     endpoints.Instagram,
			Scopes:       []string{"instagram_business_basic", "instagram_business_content_publish"},
		},
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *graphClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode swaps the authorization code for a short-lived token, then
// upgrades it to the 60-day long-lived token the scheduler actually stores.
func (c *graphClient) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	shortLived, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	return c.exchangeLongLived(ctx, shortLived.AccessToken)
}

func (c *graphClient) exchangeLongLived(ctx context.Context, shortLivedToken string) (*Token, error) {
	reqURL := fmt.Sprintf(
		"https://graph.instagram.com/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		url.QueryEscape(c.cfg.InstagramClientSecret),
		url.QueryEscape(shortLivedToken),
	)

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}

	return &Token{
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

func (c *graphClient) RefreshToken(ctx context.Context, accessToken string) (*Token, error) {
	reqURL := fmt.Sprintf(
		"https://graph.instagram.com/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		url.QueryEscape(accessToken),
	)

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	return &Token{
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

// ListAccounts resolves the professional accounts reachable with the token.
// The business login flow yields exactly one.
func (c *graphClient) ListAccounts(ctx context.Context, accessToken string) ([]*Profile, error) {
	reqURL := fmt.Sprintf(
		"https://graph.instagram.com/me?fields=id,user_id,username,account_type,profile_picture_url,followers_count&access_token=%s",
		url.QueryEscape(accessToken),
	)

	var profile Profile
	if err := c.getJSON(ctx, reqURL, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch account profile: %w", err)
	}
	return []*Profile{&profile}, nil
}

func (c *graphClient) CreateContainer(ctx context.Context, accessToken, igUserID string, params ContainerParams) (string, error) {
	mediaURL := fmt.Sprintf("%s/%s/media", graphBaseURL, igUserID)

	switch params.MediaType {
	case "CAROUSEL":
		children := make([]string, 0, len(params.MediaURLs))
		for _, u := range params.MediaURLs {
			payload := map[string]interface{}{
				"image_url":        u,
				"is_carousel_item": true,
				"access_token":     accessToken,
			}
			id, err := c.postForID(ctx, mediaURL, payload)
			if err != nil {
				return "", fmt.Errorf("failed to create carousel item: %w", err)
			}
			children = append(children, id)
		}

		payload := map[string]interface{}{
			"media_type":   "CAROUSEL",
			"caption":      params.Caption,
			"children":     children,
			"access_token": accessToken,
		}
		return c.postForID(ctx, mediaURL, payload)

	case "VIDEO":
		payload := map[string]interface{}{
			"media_type":   "REELS",
			"video_url":    params.MediaURLs[0],
			"caption":      params.Caption,
			"access_token": accessToken,
		}
		if params.ThumbnailURL != "" {
			payload["cover_url"] = params.ThumbnailURL
		}
		return c.postForID(ctx, mediaURL, payload)

	default:
		payload := map[string]interface{}{
			"image_url":    params.MediaURLs[0],
			"caption":      params.Caption,
			"access_token": accessToken,
		}
		return c.postForID(ctx, mediaURL, payload)
	}
}

func (c *graphClient) GetContainerStatus(ctx context.Context, accessToken, containerID string) (ContainerStatus, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", graphBaseURL, containerID, url.QueryEscape(accessToken))

	var result struct {
		StatusCode string `json:"status_code"`
		ID         string `json:"id"`
	}
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return "", fmt.Errorf("failed to read container status: %w", err)
	}
	return ContainerStatus(result.StatusCode), nil
}

func (c *graphClient) PublishContainer(ctx context.Context, accessToken, igUserID, containerID string) (string, error) {
	publishURL := fmt.Sprintf("%s/%s/media_publish", graphBaseURL, igUserID)
	payload := map[string]interface{}{
		"creation_id":  containerID,
		"access_token": accessToken,
	}

	id, err := c.postForID(ctx, publishURL, payload)
	if err != nil {
		return "", fmt.Errorf("failed to publish container: %w", err)
	}
	return id, nil
}

func (c *graphClient) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return classifyError(resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

// postForID sends a Graph mutation and returns the id of the created object.
func (c *graphClient) postForID(ctx context.Context, reqURL string, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyError(resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "no object id returned", Transient: true}
	}
	return result.ID, nil
}

func classifyError(statusCode int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error.Message == "" {
		return &APIError{
			StatusCode: statusCode,
			Message:    "unrecognized provider error",
			Transient:  statusCode >= 500,
		}
	}

	msg := er.Error.ErrorUserMsg
	if msg == "" {
		msg = er.Error.Message
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       er.Error.Code,
		Subcode:    er.Error.ErrorSubcode,
		Message:    msg,
		Transient:  er.Error.IsTransient || statusCode >= 500,
	}
}
