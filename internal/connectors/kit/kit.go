// Package kit implements the email marketing provider contract against the
// Kit (formerly ConvertKit) v4 API. Lists map to Kit forms.
package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
	"github.com/magnetlab/magnetlab/internal/metrics"
)

const (
	defaultBaseURL   = "https://api.kit.com/v4"
	defaultTimeout   = 10 * time.Second
	maxPages         = 50
	maxErrorBodySize = 1 << 20 // 1 MiB
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a Kit client. The API key is required.
func New(cfg configstore.KitConfig) (*Client, error) {
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

func (c *Client) Kind() string { return configstore.KindKit }

// ValidateCredentials fetches the first page of forms with page size 1.
func (c *Client) ValidateCredentials(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/forms?per_page=1", nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type pagination struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

// Lists returns all Kit forms, following the cursor pagination until the
// vendor reports no next page or the page cap is reached.
func (c *Client) Lists(ctx context.Context) ([]registry.List, error) {
	var out []registry.List
	cursor := ""
	for page := 0; ; page++ {
		if page >= maxPages {
			slog.Warn("kit forms pagination cap reached, truncating", "pages", maxPages, "collected", len(out))
			metrics.ProviderPaginationCapTotal.WithLabelValues(configstore.KindKit, "forms").Inc()
			return out, nil
		}
		body, err := c.getJSON(ctx, c.pagedPath("/forms", cursor))
		if err != nil {
			return nil, err
		}
		var payload struct {
			Forms []struct {
				ID   json.Number `json:"id"`
				Name string      `json:"name"`
			} `json:"forms"`
			Pagination pagination `json:"pagination"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		for _, form := range payload.Forms {
			out = append(out, registry.List{ID: form.ID.String(), Name: form.Name})
		}
		if !payload.Pagination.HasNextPage {
			return out, nil
		}
		cursor = payload.Pagination.EndCursor
	}
}

// Tags returns all Kit tags. listID is unused: Kit tags are account-wide.
func (c *Client) Tags(ctx context.Context, listID string) ([]registry.Tag, error) {
	var out []registry.Tag
	cursor := ""
	for page := 0; ; page++ {
		if page >= maxPages {
			slog.Warn("kit tags pagination cap reached, truncating", "pages", maxPages, "collected", len(out))
			metrics.ProviderPaginationCapTotal.WithLabelValues(configstore.KindKit, "tags").Inc()
			return out, nil
		}
		body, err := c.getJSON(ctx, c.pagedPath("/tags", cursor))
		if err != nil {
			return nil, err
		}
		var payload struct {
			Tags []struct {
				ID   json.Number `json:"id"`
				Name string      `json:"name"`
			} `json:"tags"`
			Pagination pagination `json:"pagination"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		for _, tag := range payload.Tags {
			out = append(out, registry.Tag{ID: tag.ID.String(), Name: tag.Name})
		}
		if !payload.Pagination.HasNextPage {
			return out, nil
		}
		cursor = payload.Pagination.EndCursor
	}
}

// Subscribe adds the contact to the form, then applies the tag when one is
// given. A tag failure after a successful form add degrades to success with a
// warning: the contact is already subscribed at that point.
func (c *Client) Subscribe(ctx context.Context, params registry.SubscribeParams) registry.SubscribeResult {
	payload := map[string]string{"email_address": params.Email}
	if params.FirstName != "" {
		payload["first_name"] = params.FirstName
	}
	resp, err := c.do(ctx, http.MethodPost, "/forms/"+url.PathEscape(params.ListID)+"/subscribers", payload)
	if err != nil {
		return registry.SubscribeResult{Success: false, Error: err.Error()}
	}
	body, status := drain(resp)
	if status < 200 || status >= 300 {
		return registry.SubscribeResult{Success: false, Error: subscribeError(status, body)}
	}

	if params.TagID == "" {
		return registry.SubscribeResult{Success: true}
	}

	tagResp, err := c.do(ctx, http.MethodPost, "/tags/"+url.PathEscape(params.TagID)+"/subscribers", map[string]string{"email_address": params.Email})
	if err != nil {
		return registry.SubscribeResult{Success: true, Error: fmt.Sprintf("subscribed, but tag application failed: %v", err)}
	}
	_, tagStatus := drain(tagResp)
	if tagStatus < 200 || tagStatus >= 300 {
		return registry.SubscribeResult{Success: true, Error: fmt.Sprintf("subscribed, but tag application failed with status %d", tagStatus)}
	}
	return registry.SubscribeResult{Success: true}
}

func (c *Client) pagedPath(path, cursor string) string {
	if cursor == "" {
		return path
	}
	return path + "?after=" + url.QueryEscape(cursor)
}

func (c *Client) getJSON(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	body, status := drain(resp)
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("Kit API error: %s", resp.Status)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	if c.HTTP == nil {
		return nil, errors.New("kit http client is not configured")
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
	req.Header.Set("X-Kit-Api-Key", c.APIKey)
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
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		if len(payload.Errors) > 0 {
			if msg := strings.TrimSpace(payload.Errors[0]); msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("Kit subscribe failed with status %d", status)
}
