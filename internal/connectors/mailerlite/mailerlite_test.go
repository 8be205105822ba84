package mailerlite

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
)

func newTestClient(t *testing.T, rt roundTripperFunc) *Client {
	t.Helper()
	c, err := New(configstore.MailerLiteConfig{APIKey: "secret"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.HTTP.Transport = rt
	return c
}

func jsonResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestListsWalksPages(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		if req.URL.Path != "/api/groups" {
			t.Errorf("unexpected path %q", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		switch req.URL.Query().Get("page") {
		case "1":
			return jsonResponse(req, http.StatusOK,
				`{"data":[{"id":"g1","name":"Main"}],"meta":{"current_page":1,"last_page":2}}`), nil
		case "2":
			return jsonResponse(req, http.StatusOK,
				`{"data":[{"id":"g2","name":"Other"}],"meta":{"current_page":2,"last_page":2}}`), nil
		default:
			t.Errorf("unexpected page %q", req.URL.Query().Get("page"))
			return jsonResponse(req, http.StatusBadRequest, `{}`), nil
		}
	})

	lists, err := c.Lists(context.Background())
	if err != nil {
		t.Fatalf("Lists error: %v", err)
	}
	if len(lists) != 2 || lists[0].ID != "g1" || lists[1].ID != "g2" {
		t.Fatalf("unexpected lists: %#v", lists)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestListsStopsAtPageCap(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		n := atomic.AddInt32(&calls, 1)
		// last_page always one ahead of the current page.
		body, _ := json.Marshal(map[string]any{
			"data": []map[string]any{{"id": "g", "name": "Loop"}},
			"meta": map[string]any{"current_page": n, "last_page": n + 1},
		})
		return jsonResponse(req, http.StatusOK, string(body)), nil
	})

	lists, err := c.Lists(context.Background())
	if err != nil {
		t.Fatalf("Lists error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 50 {
		t.Fatalf("expected 50 requests, got %d", got)
	}
	if len(lists) != 50 {
		t.Fatalf("expected 50 accumulated lists, got %d", len(lists))
	}
}

func TestListsErrorIncludesStatus(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		resp := jsonResponse(req, http.StatusForbidden, `{}`)
		resp.Status = "403 Forbidden"
		return resp, nil
	})

	_, err := c.Lists(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "MailerLite API error") || !strings.Contains(err.Error(), "403") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTagsReturnsEmptyWithoutRequest(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		t.Errorf("unexpected request to %s", req.URL)
		return jsonResponse(req, http.StatusInternalServerError, `{}`), nil
	})

	tags, err := c.Tags(context.Background(), "g1")
	if err != nil {
		t.Fatalf("Tags error: %v", err)
	}
	if tags == nil || len(tags) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", tags)
	}
}

func TestSubscribeIgnoresTag(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		if req.URL.Path != "/api/subscribers" {
			t.Errorf("unexpected path %q", req.URL.Path)
		}
		body, _ := io.ReadAll(req.Body)
		var payload struct {
			Email  string            `json:"email"`
			Groups []string          `json:"groups"`
			Fields map[string]string `json:"fields"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		if payload.Email != "a@example.com" || len(payload.Groups) != 1 || payload.Groups[0] != "g1" {
			t.Errorf("unexpected payload: %#v", payload)
		}
		if payload.Fields["name"] != "Ada" {
			t.Errorf("expected first name field, got %#v", payload.Fields)
		}
		return jsonResponse(req, http.StatusOK, `{"data":{"id":"s1"}}`), nil
	})

	res := c.Subscribe(context.Background(), registry.SubscribeParams{
		ListID:    "g1",
		Email:     "a@example.com",
		FirstName: "Ada",
		TagID:     "t1",
	})
	if !res.Success || res.Error != "" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 request, got %d", got)
	}
}

func TestSubscribeFailureUsesVendorMessage(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(req, http.StatusUnprocessableEntity, `{"message":"The email must be a valid email address."}`), nil
	})

	res := c.Subscribe(context.Background(), registry.SubscribeParams{ListID: "g1", Email: "bad"})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "The email must be a valid email address." {
		t.Fatalf("unexpected error: %q", res.Error)
	}
}

func TestDefinition(t *testing.T) {
	def := &Definition{}
	if def.Kind() != configstore.KindMailerLite {
		t.Fatalf("unexpected kind %q", def.Kind())
	}
	if def.SupportsTags() {
		t.Fatal("MailerLite does not support tags")
	}
	if def.ListNoun() != "groups" {
		t.Fatalf("unexpected list noun %q", def.ListNoun())
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
