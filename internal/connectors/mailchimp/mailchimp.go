// Package mailchimp implements the email marketing provider contract against
// the Mailchimp v3 API. Contact identity is the MD5 hash of the lowercased
// email, which makes the member write idempotent. Mailchimp exposes no stable
// tag IDs, so tags are addressed by name.
package mailchimp

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
	"github.com/magnetlab/magnetlab/internal/metrics"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultPageSize  = 100
	maxPages         = 50
	maxErrorBodySize = 1 << 20 // 1 MiB
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a Mailchimp client. The server prefix is validated here so a
// malformed prefix never reaches the wire.
func New(cfg configstore.MailchimpConfig) (*Client, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		BaseURL: cfg.BaseURL(),
		APIKey:  cfg.APIKey,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (c *Client) Kind() string { return configstore.KindMailchimp }

// SubscriberHash returns the member-addressable key for an email address.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}

// ValidateCredentials fetches the first page of lists with count 1.
func (c *Client) ValidateCredentials(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/lists?count=1", nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Lists returns all Mailchimp audiences, walking the offset pagination until
// total_items is covered or the page cap is reached.
func (c *Client) Lists(ctx context.Context) ([]registry.List, error) {
	var out []registry.List
	offset := 0
	for page := 0; ; page++ {
		if page >= maxPages {
			slog.Warn("mailchimp lists pagination cap reached, truncating", "pages", maxPages, "collected", len(out))
			metrics.ProviderPaginationCapTotal.WithLabelValues(configstore.KindMailchimp, "lists").Inc()
			return out, nil
		}
		body, err := c.getJSON(ctx, fmt.Sprintf("/lists?count=%d&offset=%d", defaultPageSize, offset))
		if err != nil {
			return nil, err
		}
		var payload struct {
			Lists []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"lists"`
			TotalItems int `json:"total_items"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		for _, list := range payload.Lists {
			out = append(out, registry.List{ID: list.ID, Name: list.Name})
		}
		offset += len(payload.Lists)
		if offset >= payload.TotalItems || len(payload.Lists) == 0 {
			return out, nil
		}
	}
}

// Tags searches the tags of one list. Mailchimp requires a list scope; with
// no listID the call answers empty without touching the network. The
// tag-search endpoint exposes no stable numeric tag ID, so ID and Name both
// carry the tag's name.
func (c *Client) Tags(ctx context.Context, listID string) ([]registry.Tag, error) {
	if strings.TrimSpace(listID) == "" {
		return []registry.Tag{}, nil
	}
	var out []registry.Tag
	offset := 0
	for page := 0; ; page++ {
		if page >= maxPages {
			slog.Warn("mailchimp tags pagination cap reached, truncating", "pages", maxPages, "collected", len(out))
			metrics.ProviderPaginationCapTotal.WithLabelValues(configstore.KindMailchimp, "tags").Inc()
			return out, nil
		}
		body, err := c.getJSON(ctx, fmt.Sprintf("/lists/%s/tag-search?count=%d&offset=%d", url.PathEscape(listID), defaultPageSize, offset))
		if err != nil {
			return nil, err
		}
		var payload struct {
			Tags []struct {
				Name string `json:"name"`
			} `json:"tags"`
			TotalItems int `json:"total_items"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		for _, tag := range payload.Tags {
			out = append(out, registry.Tag{ID: tag.Name, Name: tag.Name})
		}
		offset += len(payload.Tags)
		if offset >= payload.TotalItems || len(payload.Tags) == 0 {
			return out, nil
		}
	}
}

// Subscribe upserts the member under its subscriber hash, then applies the
// tag by name when one is given. Re-subscribing an existing contact is safe:
// the PUT with status_if_new only sets the status on first creation.
func (c *Client) Subscribe(ctx context.Context, params registry.SubscribeParams) registry.SubscribeResult {
	hash := SubscriberHash(params.Email)
	payload := map[string]any{
		"email_address": params.Email,
		"status_if_new": "subscribed",
	}
	if params.FirstName != "" {
		payload["merge_fields"] = map[string]string{"FNAME": params.FirstName}
	}
	memberPath := "/lists/" + url.PathEscape(params.ListID) + "/members/" + hash
	resp, err := c.do(ctx, http.MethodPut, memberPath, payload)
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

	tagPayload := map[string]any{
		"tags": []map[string]string{{"name": params.TagID, "status": "active"}},
	}
	tagResp, err := c.do(ctx, http.MethodPost, memberPath+"/tags", tagPayload)
	if err != nil {
		return registry.SubscribeResult{Success: true, Error: fmt.Sprintf("subscribed, but tag application failed: %v", err)}
	}
	_, tagStatus := drain(tagResp)
	if tagStatus < 200 || tagStatus >= 300 {
		return registry.SubscribeResult{Success: true, Error: fmt.Sprintf("subscribed, but tag application failed with status %d", tagStatus)}
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
		return nil, fmt.Errorf("Mailchimp API error: %s", resp.Status)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	if c.HTTP == nil {
		return nil, errors.New("mailchimp http client is not configured")
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
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Detail); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Title); msg != "" {
			return msg
		}
	}
	return "Mailchimp subscribe failed with status " + strconv.Itoa(status)
}
