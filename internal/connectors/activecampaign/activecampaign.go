// Package activecampaign implements the email marketing provider contract
// against the ActiveCampaign v3 API. Subscribing is a multi-step sequence:
// create (or recover) the contact, attach it to the list, then optionally tag
// it. A 422 on contact creation means the contact already exists and is
// recovered by email search rather than treated as a failure.
package activecampaign

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

	contactListStatusActive = 1
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates an ActiveCampaign client. The account base URL is validated
// here so a malformed URL never reaches the wire.
func New(cfg configstore.ActiveCampaignConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Normalized()
	return &Client{
		BaseURL: cfg.APIRoot(),
		APIKey:  cfg.APIKey,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (c *Client) Kind() string { return configstore.KindActiveCampaign }

// ValidateCredentials fetches the first page of lists with limit 1.
func (c *Client) ValidateCredentials(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/lists?limit=1", nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Lists returns all ActiveCampaign lists, walking the offset pagination
// driven by meta.total (a stringified integer) until it is covered or the
// page cap is reached.
func (c *Client) Lists(ctx context.Context) ([]registry.List, error) {
	var out []registry.List
	offset := 0
	for page := 0; ; page++ {
		if page >= maxPages {
			slog.Warn("activecampaign lists pagination cap reached, truncating", "pages", maxPages, "collected", len(out))
			metrics.ProviderPaginationCapTotal.WithLabelValues(configstore.KindActiveCampaign, "lists").Inc()
			return out, nil
		}
		body, err := c.getJSON(ctx, fmt.Sprintf("/lists?limit=%d&offset=%d", defaultPageSize, offset))
		if err != nil {
			return nil, err
		}
		var payload struct {
			Lists []struct {
				ID   json.Number `json:"id"`
				Name string      `json:"name"`
			} `json:"lists"`
			Meta struct {
				Total string `json:"total"`
			} `json:"meta"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		for _, list := range payload.Lists {
			out = append(out, registry.List{ID: list.ID.String(), Name: list.Name})
		}
		offset += len(payload.Lists)
		if offset >= parseTotal(payload.Meta.Total) || len(payload.Lists) == 0 {
			return out, nil
		}
	}
}

// Tags returns all ActiveCampaign tags. listID is unused: tags are
// account-wide. The tag label lives in the vendor field "tag", not "name".
func (c *Client) Tags(ctx context.Context, listID string) ([]registry.Tag, error) {
	var out []registry.Tag
	offset := 0
	for page := 0; ; page++ {
		if page >= maxPages {
			slog.Warn("activecampaign tags pagination cap reached, truncating", "pages", maxPages, "collected", len(out))
			metrics.ProviderPaginationCapTotal.WithLabelValues(configstore.KindActiveCampaign, "tags").Inc()
			return out, nil
		}
		body, err := c.getJSON(ctx, fmt.Sprintf("/tags?limit=%d&offset=%d", defaultPageSize, offset))
		if err != nil {
			return nil, err
		}
		var payload struct {
			Tags []struct {
				ID  json.Number `json:"id"`
				Tag string      `json:"tag"`
			} `json:"tags"`
			Meta struct {
				Total string `json:"total"`
			} `json:"meta"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		for _, tag := range payload.Tags {
			out = append(out, registry.Tag{ID: tag.ID.String(), Name: tag.Tag})
		}
		offset += len(payload.Tags)
		if offset >= parseTotal(payload.Meta.Total) || len(payload.Tags) == 0 {
			return out, nil
		}
	}
}

// Subscribe runs the create-then-recover-on-conflict sequence: POST the
// contact, on 422 look the existing one up by email, attach it to the list,
// then optionally tag it. Only the tag step degrades to success-with-warning.
func (c *Client) Subscribe(ctx context.Context, params registry.SubscribeParams) registry.SubscribeResult {
	contactID, failure := c.createOrFindContact(ctx, params)
	if failure != "" {
		return registry.SubscribeResult{Success: false, Error: failure}
	}

	listID, err := strconv.Atoi(params.ListID)
	if err != nil {
		return registry.SubscribeResult{Success: false, Error: fmt.Sprintf("invalid list id %q", params.ListID)}
	}
	contactIDInt, err := strconv.Atoi(contactID)
	if err != nil {
		return registry.SubscribeResult{Success: false, Error: fmt.Sprintf("invalid contact id %q", contactID)}
	}
	listPayload := map[string]any{
		"contactList": map[string]any{
			"list":    listID,
			"contact": contactIDInt,
			"status":  contactListStatusActive,
		},
	}
	resp, err := c.do(ctx, http.MethodPost, "/contactLists", listPayload)
	if err != nil {
		return registry.SubscribeResult{Success: false, Error: err.Error()}
	}
	body, status := drain(resp)
	if status < 200 || status >= 300 {
		return registry.SubscribeResult{Success: false, Error: vendorMessage(body, "ActiveCampaign list subscription failed with status "+strconv.Itoa(status))}
	}

	if params.TagID == "" {
		return registry.SubscribeResult{Success: true}
	}

	// The contactTags endpoint takes the contact id as a string, unlike the
	// contactLists endpoint above.
	tagPayload := map[string]any{
		"contactTag": map[string]string{
			"contact": contactID,
			"tag":     params.TagID,
		},
	}
	tagResp, err := c.do(ctx, http.MethodPost, "/contactTags", tagPayload)
	if err != nil {
		return registry.SubscribeResult{Success: true, Error: fmt.Sprintf("subscribed, but tag application failed: %v", err)}
	}
	_, tagStatus := drain(tagResp)
	if tagStatus < 200 || tagStatus >= 300 {
		return registry.SubscribeResult{Success: true, Error: fmt.Sprintf("subscribed, but tag application failed with status %d", tagStatus)}
	}
	return registry.SubscribeResult{Success: true}
}

// createOrFindContact returns the contact id, or a non-empty failure message.
func (c *Client) createOrFindContact(ctx context.Context, params registry.SubscribeParams) (string, string) {
	contact := map[string]string{"email": params.Email}
	if params.FirstName != "" {
		contact["firstName"] = params.FirstName
	}
	resp, err := c.do(ctx, http.MethodPost, "/contacts", map[string]any{"contact": contact})
	if err != nil {
		return "", err.Error()
	}
	body, status := drain(resp)

	switch {
	case status >= 200 && status < 300:
		var payload struct {
			Contact struct {
				ID json.Number `json:"id"`
			} `json:"contact"`
		}
		if err := json.Unmarshal(body, &payload); err != nil || payload.Contact.ID.String() == "" {
			return "", "ActiveCampaign contact creation returned no contact id"
		}
		return payload.Contact.ID.String(), ""

	case status == http.StatusUnprocessableEntity:
		// Duplicate contact. Recover the existing id by email search.
		searchResp, err := c.do(ctx, http.MethodGet, "/contacts?email="+url.QueryEscape(params.Email), nil)
		if err != nil {
			return "", fmt.Sprintf("Failed to find existing contact: %v", err)
		}
		searchBody, searchStatus := drain(searchResp)
		if searchStatus < 200 || searchStatus >= 300 {
			return "", fmt.Sprintf("Failed to find existing contact: %d", searchStatus)
		}
		var payload struct {
			Contacts []struct {
				ID json.Number `json:"id"`
			} `json:"contacts"`
		}
		if err := json.Unmarshal(searchBody, &payload); err != nil || len(payload.Contacts) == 0 {
			// The vendor claimed a duplicate but the search came back empty.
			return "", "Existing contact not found"
		}
		return payload.Contacts[0].ID.String(), ""

	default:
		return "", vendorMessage(body, "ActiveCampaign contact creation failed with status "+strconv.Itoa(status))
	}
}

func parseTotal(raw string) int {
	total, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || total < 0 {
		return 0
	}
	return total
}

func (c *Client) getJSON(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	body, status := drain(resp)
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("ActiveCampaign API error: %s", resp.Status)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	if c.HTTP == nil {
		return nil, errors.New("activecampaign http client is not configured")
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
	req.Header.Set("Api-Token", c.APIKey)
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

func vendorMessage(body []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
		Errors  []struct {
			Title string `json:"title"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		if len(payload.Errors) > 0 {
			if msg := strings.TrimSpace(payload.Errors[0].Title); msg != "" {
				return msg
			}
		}
	}
	return fallback
}
