package shopsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/sirupsen/logrus"
)

// Throttle thresholds for the Admin API cost budget.
const (
	rateLimitAvailableThreshold = 100
	rateLimitRecoveryFactor     = 50
)

// Client talks to the commerce platform's GraphQL Admin API. Access tokens
// from the client-credentials grant are cached until shortly before expiry;
// a static token configured via env bypasses the grant entirely. Location
// and publication ids are fetched once per process.
type Client struct {
	settings config.ShopifySettings
	http     *http.Client
	logger   *logrus.Logger

	tokenMu      sync.Mutex
	token        string
	tokenExpires time.Time

	cacheMu        sync.Mutex
	locationId     string
	publicationIds []string
}

func NewClient() *Client {
	return &Client{
		settings: config.GetShopifySettings(),
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   config.GetLogger(),
	}
}

// Configured reports whether any credential path is available. Callers skip
// platform pushes entirely when it is false.
func (c *Client) Configured() bool {
	if c.settings.StoreURL == "" {
		return false
	}
	return c.settings.AccessToken != "" || (c.settings.ClientID != "" && c.settings.ClientSecret != "")
}

// Invalidate drops the cached location and publication ids, forcing a
// re-fetch on next use.
func (c *Client) Invalidate() {
	c.cacheMu.Lock()
	c.locationId = ""
	c.publicationIds = nil
	c.cacheMu.Unlock()
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.settings.ClientID == "" || c.settings.ClientSecret == "" {
		if c.settings.AccessToken == "" {
			return "", utils.NewUpstreamError("commerce platform credentials not configured", nil)
		}
		return c.settings.AccessToken, nil
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	// 60s margin before expiry.
	if c.token != "" && time.Now().Before(c.tokenExpires.Add(-60*time.Second)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.settings.ClientID},
		"client_secret": {c.settings.ClientSecret},
	}
	endpoint := fmt.Sprintf("https://%s/admin/oauth/access_token", c.settings.StoreURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", utils.NewUpstreamError("obtain access token", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", utils.NewUpstreamError(
			fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", utils.NewUpstreamError("decode token response", err)
	}
	if parsed.ExpiresIn == 0 {
		parsed.ExpiresIn = 86399
	}

	c.token = parsed.AccessToken
	c.tokenExpires = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	c.logger.WithFields(logrus.Fields{"expires_in": parsed.ExpiresIn}).Info("obtained platform access token")
	return c.token, nil
}

type graphqlResponse struct {
	Data       json.RawMessage `json:"data"`
	Errors     json.RawMessage `json:"errors"`
	Extensions struct {
		Cost struct {
			ThrottleStatus struct {
				CurrentlyAvailable float64 `json:"currentlyAvailable"`
			} `json:"throttleStatus"`
		} `json:"cost"`
	} `json:"extensions"`
}

// graphql executes one Admin API request, decodes data into dest, and sleeps
// when the cost budget is nearly exhausted.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]interface{}, dest interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{"query": query}
	if variables != nil {
		payload["variables"] = variables
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.settings.StoreURL, c.settings.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return utils.NewUpstreamError("graphql request", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return utils.NewUpstreamError(
			fmt.Sprintf("graphql endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed graphqlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return utils.NewUpstreamError("decode graphql response", err)
	}
	if len(parsed.Errors) > 0 && string(parsed.Errors) != "null" {
		return utils.NewUpstreamError(fmt.Sprintf("graphql errors: %s", parsed.Errors), nil)
	}

	if available := parsed.Extensions.Cost.ThrottleStatus.CurrentlyAvailable; available > 0 && available < rateLimitAvailableThreshold {
		wait := (rateLimitAvailableThreshold - available) / rateLimitRecoveryFactor
		if wait < 1 {
			wait = 1
		}
		c.logger.WithFields(logrus.Fields{"available": available, "wait_seconds": wait}).
			Warn("platform rate limit low, backing off")
		select {
		case <-time.After(time.Duration(wait * float64(time.Second))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if dest != nil {
		if err := json.Unmarshal(parsed.Data, dest); err != nil {
			return utils.NewUpstreamError("decode graphql data", err)
		}
	}
	return nil
}

// getLocationId returns the store's first location id, cached per process.
func (c *Client) getLocationId(ctx context.Context) (string, error) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.locationId != "" {
		return c.locationId, nil
	}

	var data struct {
		Locations struct {
			Edges []struct {
				Node struct {
					ID string `json:"id"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"locations"`
	}
	if err := c.graphql(ctx, locationsQuery, nil, &data); err != nil {
		return "", err
	}
	if len(data.Locations.Edges) == 0 {
		return "", utils.NewUpstreamError("no locations found in store", nil)
	}
	c.locationId = data.Locations.Edges[0].Node.ID
	return c.locationId, nil
}

func (c *Client) getPublicationIds(ctx context.Context) ([]string, error) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.publicationIds != nil {
		return c.publicationIds, nil
	}

	var data struct {
		Publications struct {
			Edges []struct {
				Node struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"publications"`
	}
	if err := c.graphql(ctx, publicationsQuery, nil, &data); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(data.Publications.Edges))
	for _, edge := range data.Publications.Edges {
		ids = append(ids, edge.Node.ID)
	}
	c.publicationIds = ids
	return ids, nil
}

var errSkipped = errors.New("platform sync skipped: client not configured")
