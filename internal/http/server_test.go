package httpapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/magnetlab/magnetlab/internal/config"
	"github.com/magnetlab/magnetlab/internal/connectors"
	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
	"github.com/magnetlab/magnetlab/internal/store"
	syncer "github.com/magnetlab/magnetlab/internal/sync"
)

type memStore struct {
	pages        map[string]*store.FunnelPage
	leads        []store.Lead
	integrations map[string]*store.UserIntegration
	mappings     map[uuid.UUID]*store.IntegrationMapping
}

func newMemStore() *memStore {
	return &memStore{
		pages:        make(map[string]*store.FunnelPage),
		integrations: make(map[string]*store.UserIntegration),
		mappings:     make(map[uuid.UUID]*store.IntegrationMapping),
	}
}

func (s *memStore) addPage(slug string) *store.FunnelPage {
	page := &store.FunnelPage{ID: uuid.New(), UserID: uuid.New(), Name: slug, Slug: slug}
	s.pages[slug] = page
	return page
}

func (s *memStore) integrationKey(userID uuid.UUID, provider string) string {
	return userID.String() + "/" + provider
}

func (s *memStore) GetFunnelPageByID(ctx context.Context, id uuid.UUID) (*store.FunnelPage, error) {
	for _, page := range s.pages {
		if page.ID == id {
			return page, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) GetFunnelPageBySlug(ctx context.Context, slug string) (*store.FunnelPage, error) {
	page, ok := s.pages[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return page, nil
}

func (s *memStore) CreateLead(ctx context.Context, arg store.CreateLeadParams) (*store.Lead, error) {
	lead := store.Lead{ID: uuid.New(), FunnelPageID: arg.FunnelPageID, Email: arg.Email, Name: arg.Name}
	s.leads = append(s.leads, lead)
	return &lead, nil
}

func (s *memStore) UpsertUserIntegration(ctx context.Context, arg store.UpsertUserIntegrationParams) error {
	s.integrations[s.integrationKey(arg.UserID, arg.Provider)] = &store.UserIntegration{
		UserID:   arg.UserID,
		Provider: arg.Provider,
		APIKey:   arg.APIKey,
		Metadata: arg.Metadata,
	}
	return nil
}

func (s *memStore) GetUserIntegration(ctx context.Context, userID uuid.UUID, provider string) (*store.UserIntegration, error) {
	integ, ok := s.integrations[s.integrationKey(userID, provider)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return integ, nil
}

func (s *memStore) DeleteUserIntegration(ctx context.Context, userID uuid.UUID, provider string) error {
	key := s.integrationKey(userID, provider)
	if _, ok := s.integrations[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.integrations, key)
	return nil
}

func (s *memStore) CreateIntegrationMapping(ctx context.Context, arg store.CreateIntegrationMappingParams) (*store.IntegrationMapping, error) {
	m := &store.IntegrationMapping{
		ID:           uuid.New(),
		FunnelPageID: arg.FunnelPageID,
		Provider:     arg.Provider,
		ListID:       arg.ListID,
		TagID:        arg.TagID,
		UserID:       arg.UserID,
		IsActive:     true,
	}
	s.mappings[m.ID] = m
	return m, nil
}

func (s *memStore) DeactivateIntegrationMapping(ctx context.Context, id uuid.UUID, funnelPageID uuid.UUID) error {
	m, ok := s.mappings[id]
	if !ok || m.FunnelPageID != funnelPageID || !m.IsActive {
		return store.ErrNotFound
	}
	m.IsActive = false
	return nil
}

func (s *memStore) ListActiveIntegrationMappings(ctx context.Context, funnelPageID uuid.UUID) ([]store.IntegrationMapping, error) {
	var out []store.IntegrationMapping
	for _, m := range s.mappings {
		if m.FunnelPageID == funnelPageID && m.IsActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

type recordingSyncer struct {
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (r *recordingSyncer) SyncLead(ctx context.Context, funnelPageID uuid.UUID, lead syncer.Lead) {
	atomic.AddInt32(&r.calls, 1)
	if r.started != nil {
		close(r.started)
	}
	if r.release != nil {
		<-r.release
	}
}

type stubProvider struct {
	kind     string
	valid    bool
	lists    []registry.List
	tags     []registry.Tag
	listsErr error
	gotList  string
}

func (p *stubProvider) Kind() string                                 { return p.kind }
func (p *stubProvider) ValidateCredentials(ctx context.Context) bool { return p.valid }
func (p *stubProvider) Lists(ctx context.Context) ([]registry.List, error) {
	return p.lists, p.listsErr
}
func (p *stubProvider) Tags(ctx context.Context, listID string) ([]registry.Tag, error) {
	p.gotList = listID
	return p.tags, nil
}
func (p *stubProvider) Subscribe(ctx context.Context, params registry.SubscribeParams) registry.SubscribeResult {
	return registry.SubscribeResult{Success: true}
}

const testToken = "test-token"

func newTestServer(t *testing.T, st store.Store, sy *recordingSyncer) *EchoServer {
	t.Helper()
	reg, err := connectors.NewDefaultRegistry()
	if err != nil {
		t.Fatalf("NewDefaultRegistry error: %v", err)
	}
	if sy == nil {
		sy = &recordingSyncer{}
	}
	es, err := NewEchoServer(config.Config{APIToken: testToken}, st, sy, reg)
	if err != nil {
		t.Fatalf("NewEchoServer error: %v", err)
	}
	return es
}

func doRequest(es *EchoServer, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	es.Echo().ServeHTTP(rec, req)
	return rec
}

func adminHeaders(userID uuid.UUID) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + testToken,
		"X-User-ID":     userID.String(),
	}
}

func TestHealthz(t *testing.T) {
	es := newTestServer(t, newMemStore(), nil)
	rec := doRequest(es, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCaptureLeadAcceptsAndSyncsInBackground(t *testing.T) {
	st := newMemStore()
	st.addPage("launch")
	sy := &recordingSyncer{started: make(chan struct{}), release: make(chan struct{})}
	es := newTestServer(t, st, sy)

	rec := doRequest(es, http.MethodPost, "/api/funnels/launch/leads",
		`{"email":"a@example.com","name":"Jane Doe"}`, nil)

	// The response must not wait for the sync, which is still blocked.
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(st.leads) != 1 || st.leads[0].Email != "a@example.com" {
		t.Fatalf("lead not persisted: %#v", st.leads)
	}

	select {
	case <-sy.started:
	case <-time.After(2 * time.Second):
		t.Fatal("sync never started")
	}
	close(sy.release)
}

func TestCaptureLeadUnknownSlug(t *testing.T) {
	es := newTestServer(t, newMemStore(), nil)
	rec := doRequest(es, http.MethodPost, "/api/funnels/missing/leads", `{"email":"a@example.com"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestCaptureLeadRejectsInvalidEmail(t *testing.T) {
	st := newMemStore()
	st.addPage("launch")
	sy := &recordingSyncer{}
	es := newTestServer(t, st, sy)

	for _, body := range []string{`{}`, `{"email":"not-an-email"}`, `{"email":"   "}`} {
		rec := doRequest(es, http.MethodPost, "/api/funnels/launch/leads", body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: unexpected status %d", body, rec.Code)
		}
	}
	if len(st.leads) != 0 {
		t.Fatalf("no lead should be persisted, got %#v", st.leads)
	}
	if atomic.LoadInt32(&sy.calls) != 0 {
		t.Fatal("syncer must not run for rejected leads")
	}
}

func TestAdminRequiresBearerToken(t *testing.T) {
	es := newTestServer(t, newMemStore(), nil)

	rec := doRequest(es, http.MethodGet, "/api/providers", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: unexpected status %d", rec.Code)
	}
	rec = doRequest(es, http.MethodGet, "/api/providers", "", map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: unexpected status %d", rec.Code)
	}
}

func TestAdminDisabledWithoutConfiguredToken(t *testing.T) {
	reg, err := connectors.NewDefaultRegistry()
	if err != nil {
		t.Fatalf("NewDefaultRegistry error: %v", err)
	}
	es, err := NewEchoServer(config.Config{}, newMemStore(), &recordingSyncer{}, reg)
	if err != nil {
		t.Fatalf("NewEchoServer error: %v", err)
	}
	rec := doRequest(es, http.MethodGet, "/api/providers", "", map[string]string{"Authorization": "Bearer anything"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestListProviders(t *testing.T) {
	es := newTestServer(t, newMemStore(), nil)
	rec := doRequest(es, http.MethodGet, "/api/providers", "", adminHeaders(uuid.New()))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var out []struct {
		Kind         string `json:"kind"`
		DisplayName  string `json:"display_name"`
		ListNoun     string `json:"list_noun"`
		SupportsTags bool   `json:"supports_tags"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 providers, got %d", len(out))
	}
	if out[0].Kind != "kit" || out[0].ListNoun != "forms" || !out[0].SupportsTags {
		t.Fatalf("unexpected first provider: %#v", out[0])
	}
	if out[1].Kind != "mailerlite" || out[1].SupportsTags {
		t.Fatalf("unexpected second provider: %#v", out[1])
	}
}

func TestUpsertIntegrationValidatesBeforeStoring(t *testing.T) {
	st := newMemStore()
	es := newTestServer(t, st, nil)
	userID := uuid.New()

	es.h.NewProvider = func(kind string, creds configstore.Credentials) (registry.Provider, error) {
		return &stubProvider{kind: kind, valid: true}, nil
	}
	rec := doRequest(es, http.MethodPut, "/api/integrations/kit", `{"api_key":"k1"}`, adminHeaders(userID))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := st.GetUserIntegration(context.Background(), userID, "kit"); err != nil {
		t.Fatalf("credential not stored: %v", err)
	}

	es.h.NewProvider = func(kind string, creds configstore.Credentials) (registry.Provider, error) {
		return &stubProvider{kind: kind, valid: false}, nil
	}
	rec = doRequest(es, http.MethodPut, "/api/integrations/mailerlite", `{"api_key":"bad"}`, adminHeaders(userID))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if _, err := st.GetUserIntegration(context.Background(), userID, "mailerlite"); err == nil {
		t.Fatal("invalid credential must not be stored")
	}
}

func TestUpsertIntegrationUnknownProvider(t *testing.T) {
	es := newTestServer(t, newMemStore(), nil)
	rec := doRequest(es, http.MethodPut, "/api/integrations/hubspot", `{"api_key":"k"}`, adminHeaders(uuid.New()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestProviderListsPropagateVendorErrors(t *testing.T) {
	st := newMemStore()
	es := newTestServer(t, st, nil)
	userID := uuid.New()
	if err := st.UpsertUserIntegration(context.Background(), store.UpsertUserIntegrationParams{
		UserID: userID, Provider: "kit", APIKey: "k",
	}); err != nil {
		t.Fatal(err)
	}

	es.h.NewProvider = func(kind string, creds configstore.Credentials) (registry.Provider, error) {
		return &stubProvider{kind: kind, listsErr: errorString("Kit API error: 503 Service Unavailable")}, nil
	}
	rec := doRequest(es, http.MethodGet, "/api/integrations/kit/lists", "", adminHeaders(userID))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Kit API error") {
		t.Fatalf("vendor message missing: %s", rec.Body.String())
	}
}

func TestProviderListsAndTags(t *testing.T) {
	st := newMemStore()
	es := newTestServer(t, st, nil)
	userID := uuid.New()
	if err := st.UpsertUserIntegration(context.Background(), store.UpsertUserIntegrationParams{
		UserID: userID, Provider: "mailchimp", APIKey: "k",
		Metadata: map[string]string{"server_prefix": "us21"},
	}); err != nil {
		t.Fatal(err)
	}

	stub := &stubProvider{
		kind:  "mailchimp",
		lists: []registry.List{{ID: "l1", Name: "Audience"}},
		tags:  []registry.Tag{{ID: "vip", Name: "vip"}},
	}
	es.h.NewProvider = func(kind string, creds configstore.Credentials) (registry.Provider, error) {
		return stub, nil
	}

	rec := doRequest(es, http.MethodGet, "/api/integrations/mailchimp/lists", "", adminHeaders(userID))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Audience") {
		t.Fatalf("unexpected lists response: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(es, http.MethodGet, "/api/integrations/mailchimp/tags?list_id=l1", "", adminHeaders(userID))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "vip") {
		t.Fatalf("unexpected tags response: %d %s", rec.Code, rec.Body.String())
	}
	if stub.gotList != "l1" {
		t.Fatalf("list_id not forwarded, got %q", stub.gotList)
	}
}

func TestProviderEndpointsWithoutStoredCredential(t *testing.T) {
	es := newTestServer(t, newMemStore(), nil)
	rec := doRequest(es, http.MethodGet, "/api/integrations/kit/lists", "", adminHeaders(uuid.New()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestMappingLifecycle(t *testing.T) {
	st := newMemStore()
	page := st.addPage("launch")
	es := newTestServer(t, st, nil)
	userID := uuid.New()
	if err := st.UpsertUserIntegration(context.Background(), store.UpsertUserIntegrationParams{
		UserID: userID, Provider: "kit", APIKey: "k",
	}); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(es, http.MethodPost, "/api/funnels/"+page.ID.String()+"/integrations",
		`{"provider":"kit","list_id":"f1","tag_id":"t1"}`, adminHeaders(userID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	mappings, err := st.ListActiveIntegrationMappings(context.Background(), page.ID)
	if err != nil || len(mappings) != 1 {
		t.Fatalf("expected 1 active mapping, got %v (%v)", mappings, err)
	}

	rec = doRequest(es, http.MethodDelete,
		"/api/funnels/"+page.ID.String()+"/integrations/"+created.ID, "", adminHeaders(userID))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	mappings, _ = st.ListActiveIntegrationMappings(context.Background(), page.ID)
	if len(mappings) != 0 {
		t.Fatalf("expected no active mappings, got %v", mappings)
	}
}

func TestCreateMappingWithoutCredential(t *testing.T) {
	st := newMemStore()
	page := st.addPage("launch")
	es := newTestServer(t, st, nil)

	rec := doRequest(es, http.MethodPost, "/api/funnels/"+page.ID.String()+"/integrations",
		`{"provider":"kit","list_id":"f1"}`, adminHeaders(uuid.New()))
	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }
