// Package mailerlite implements the email marketing provider contract against
// the MailerLite API. Lists map to MailerLite groups. MailerLite has no
// subscriber-tag API, so Tags always returns empty and Subscribe ignores the
// tag field without issuing a request.
package mailerlite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
	"github.com/magnetlab/magnetlab/internal/metrics"
)

const (
	defaultBaseURL   = "https://connect.mailerlite.com/api"
	defaultTimeout   = 10 * time.Second
	defaultPageSize  = 50
	maxPages         = 50
	maxErrorBodySize = 1 << 20 // 1 MiB
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a MailerLite client. The API key is required.
func New(cfg configstore.MailerLiteConfig) (*Client, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		BaseURL: defaultBaseURL,
		APIKey:  cfg.APIKey,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (c *Client) Kind() string { return configstore.KindMailerLite }

// ValidateCredentials fetches the first page of groups with page size 1.
func (c *Client) ValidateCredentials(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/groups?limit=1", nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Lists returns all MailerLite groups, walking the page-number pagination
// until meta.last_page is passed or the page cap is reached.
func (c *Client) Lists(ctx context.Context) ([]registry.List, error) {
	var out []registry.List
	page := 1
	lastPage := 1
	for fetched := 0; page <= lastPage; fetched++ {
		if fetched >= maxPages {
			slog.Warn("mailerlite groups pagination cap reached, truncating", "pages", maxPages, "collected", len(out))
			metrics.ProviderPaginationCapTotal.WithLabelValues(configstore.KindMailerLite, "groups").Inc()
			return out, nil
		}
		body, err := c.getJSON(ctx, fmt.Sprintf("/groups?limit=%d&page=%d", defaultPageSize, page))
		if err != nil {
			return nil, err
		}
		var payload struct {
			Data []struct {
				ID   json.Number `json:"id"`
				Name string      `json:"name"`
			} `json:"data"`
			Meta struct {
				CurrentPage int `json:"current_page"`
				LastPage    int `json:"last_page"`
			} `json:"meta"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		for _, group := range payload.Data {
			out = append(out, registry.List{ID: group.ID.String(), Name: group.Name})
		}
		lastPage = payload.Meta.LastPage
		if payload.Meta.CurrentPage > 0 {
			page = payload.Meta.CurrentPage + 1
		} else {
			page++
		}
	}
	return out, nil
}

// Tags returns an empty slice without a network call: MailerLite exposes no
// subscriber-tag API usable here.
func (c *Client) Tags(ctx context.Context, listID string) ([]registry.Tag, error) {
	return []registry.Tag{}, nil
}

// Subscribe upserts the contact into the group with a single call. A supplied
// tag is silently ignored, which is a documented vendor limitation.
func (c *Client) Subscribe(ctx context.Context, params registry.SubscribeParams) registry.SubscribeResult {
	payload := map[string]any{
		"email":  params.Email,
		"groups": []string{params.ListID},
	}
	if params.FirstName != "" {
		payload["fields"] = map[string]string{"name": params.FirstName}
	}
	resp, err := c.do(ctx, http.MethodPost, "/subscribers", payload)
	if err != nil {
		return registry.SubscribeResult{Success: false, Error: err.Error()}
	}
	body, status := drain(resp)
	if status < 200 || status >= 300 {
		return registry.SubscribeResult{Success: false, Error: subscribeError(status, body)}
	}
	return registry.SubscribeResult{Success: true}
}

func (c *Client) getJSON(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	body, status := drain(resp)
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("MailerLite API error: %s", resp.Status)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	if c.HTTP == nil {
		return nil, errors.New("mailerlite http client is not configured")
	}
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTP.Do(req)
}

func drain(resp *http.Response) ([]byte, int) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil, resp.StatusCode
	}
	return body, resp.StatusCode
}

func subscribeError(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}
	return "MailerLite subscribe failed with status " + strconv.Itoa(status)
}
