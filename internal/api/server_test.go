package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/marketing"
	"github.com/kalambet/flowcraft/internal/provider"
	"github.com/kalambet/flowcraft/internal/storage"
)

const testToken = "test-token-12345"

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// stubGen answers every provider request with the prompt's first line.
type stubGen struct {
	mu       sync.Mutex
	requests []provider.Request
	err      error
}

func (g *stubGen) Generate(_ context.Context, req provider.Request) (provider.Output, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return provider.Output{}, g.err
	}
	if req.Model.Type == aimodel.Text {
		line, _, _ := strings.Cut(req.Prompt, "\n")
		return provider.Output{Kind: provider.KindText, Text: "generated: " + line}, nil
	}
	return provider.Output{Kind: provider.KindURL, URL: "https://cdn.example.com/out.png"}, nil
}

type stubOpenAI struct {
	models map[string]bool
}

func (s *stubOpenAI) Chat(context.Context, string, string, string, map[string]any) (string, error) {
	return "", errors.New("not used")
}

func (s *stubOpenAI) Image(context.Context, string, string, map[string]any) (string, error) {
	return "", errors.New("not used")
}

func (s *stubOpenAI) HasModel(_ context.Context, model string) (bool, error) {
	return s.models[model], nil
}

type testEnv struct {
	handler http.Handler
	store   *storage.Store
	gen     *stubGen
	keys    []aimodel.Keys
}

func setupHandler(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{store: store, gen: &stubGen{}}
	ids := 0
	env.handler = NewHandler(Deps{
		Store:          store,
		Token:          testToken,
		AllowedOrigins: []string{"http://localhost:3000"},
		Engines: func(context.Context) (*marketing.Engine, error) {
			cfg, err := store.GetUserConfig()
			if err != nil {
				return nil, err
			}
			return marketing.New(env.gen, cfg), nil
		},
		Backends: func(keys aimodel.Keys) provider.Backends {
			env.keys = append(env.keys, keys)
			return provider.Backends{OpenAI: &stubOpenAI{models: map[string]bool{"gpt-4": true}}}
		},
		Now: func() time.Time { return fixedNow },
		NewID: func() string {
			ids++
			return "gen-" + string(rune('0'+ids))
		},
	})
	return env
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (e *testEnv) do(t *testing.T, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, authReq(method, url, body, testToken))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rr.Body.String(), err)
	}
	return body.Error.Message
}

func compileFlow(t *testing.T, e *testEnv, channels string) *marketing.Flow {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/flows", `{"objective":"launch the spring collection","channels":`+channels+`}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /flows status = %d; body = %s", rr.Code, rr.Body.String())
	}
	return decode[*marketing.Flow](t, rr)
}

func TestHealth_NoAuth(t *testing.T) {
	e := setupHandler(t)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestAuth_RejectsMissingAndWrongToken(t *testing.T) {
	e := setupHandler(t)

	for _, token := range []string{"", "wrong"} {
		rr := httptest.NewRecorder()
		e.handler.ServeHTTP(rr, authReq(http.MethodGet, "/flows", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
		if got := rr.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
			t.Errorf("token %q: WWW-Authenticate = %q", token, got)
		}
	}
}

func TestAuth_SchemeCaseInsensitive(t *testing.T) {
	e := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/channels", nil)
	req.Header.Set("Authorization", "bearer "+testToken)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/channels", nil)
	req.Header.Set("Authorization", "Basic "+testToken)
	rr = httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("basic scheme: status = %d, want 401", rr.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	e := setupHandler(t)
	req := httptest.NewRequest(http.MethodOptions, "/flows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestChannels(t *testing.T) {
	e := setupHandler(t)
	rr := e.do(t, http.MethodGet, "/channels", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	specs := decode[map[string]marketing.ChannelSpec](t, rr)
	if len(specs) != len(marketing.AllChannels()) {
		t.Errorf("got %d channels, want %d", len(specs), len(marketing.AllChannels()))
	}
	if specs["twitter"].CharacterLimit != 280 {
		t.Errorf("twitter limit = %d, want 280", specs["twitter"].CharacterLimit)
	}
}

func TestCompileFlow_StoresDraft(t *testing.T) {
	e := setupHandler(t)
	flow := compileFlow(t, e, `["twitter","telegram"]`)

	if flow.Status != marketing.StatusDraft {
		t.Errorf("status = %q, want draft", flow.Status)
	}
	if !strings.HasPrefix(flow.Description, "generated: ") {
		t.Errorf("description = %q", flow.Description)
	}

	stored, err := e.store.GetFlow(flow.ID)
	if err != nil {
		t.Fatalf("GetFlow: %v", err)
	}
	if len(stored.Steps) != len(flow.Steps) {
		t.Errorf("stored %d steps, want %d", len(stored.Steps), len(flow.Steps))
	}
}

func TestCompileFlow_Validation(t *testing.T) {
	e := setupHandler(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing objective", `{"channels":["blog"]}`, "objective and channels"},
		{"empty channels", `{"objective":"x","channels":[]}`, "objective and channels"},
		{"invalid channel", `{"objective":"x","channels":["blog","myspace"]}`, "invalid channels: myspace"},
		{"bad json", `{`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, http.MethodPost, "/flows", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if msg := errorMessage(t, rr); !strings.Contains(msg, tt.want) {
				t.Errorf("message = %q, want it to contain %q", msg, tt.want)
			}
		})
	}

	rr := e.do(t, http.MethodPost, "/flows", `{"objective":"x","channels":["myspace"]}`)
	body := decode[map[string]any](t, rr)
	if valid, ok := body["validChannels"].([]any); !ok || len(valid) != 9 {
		t.Errorf("validChannels = %v", body["validChannels"])
	}
}

func TestCompileFlow_ProviderFailure(t *testing.T) {
	e := setupHandler(t)
	e.gen.err = errors.New("upstream down")

	rr := e.do(t, http.MethodPost, "/flows", `{"objective":"x","channels":["blog"]}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}

func TestListFlows_Filters(t *testing.T) {
	e := setupHandler(t)
	a := compileFlow(t, e, `["twitter"]`)
	compileFlow(t, e, `["email"]`)

	rr := e.do(t, http.MethodGet, "/flows?channel=twitter", "")
	flows := decode[[]marketing.Flow](t, rr)
	if len(flows) != 1 || flows[0].ID != a.ID {
		t.Fatalf("channel filter returned %d flows", len(flows))
	}

	rr = e.do(t, http.MethodGet, "/flows?status=active", "")
	if flows := decode[[]marketing.Flow](t, rr); len(flows) != 0 {
		t.Errorf("status filter returned %d flows, want 0", len(flows))
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty list body = %q, want []", rr.Body.String())
	}
}

func TestGetAndDeleteFlow(t *testing.T) {
	e := setupHandler(t)
	flow := compileFlow(t, e, `["blog"]`)

	if rr := e.do(t, http.MethodGet, "/flows/"+flow.ID, ""); rr.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rr.Code)
	}
	if rr := e.do(t, http.MethodDelete, "/flows/"+flow.ID, ""); rr.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d", rr.Code)
	}
	if rr := e.do(t, http.MethodGet, "/flows/"+flow.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rr.Code)
	}
	if rr := e.do(t, http.MethodDelete, "/flows/"+flow.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", rr.Code)
	}
}

func TestFlowStatus(t *testing.T) {
	e := setupHandler(t)
	flow := compileFlow(t, e, `["blog"]`)

	rr := e.do(t, http.MethodPut, "/flows/"+flow.ID+"/status", `{"status":"active"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("activate status = %d; body = %s", rr.Code, rr.Body.String())
	}
	got := decode[marketing.Flow](t, rr)
	if got.Status != marketing.StatusActive || !got.UpdatedAt.Equal(fixedNow) {
		t.Errorf("flow = %s / %v", got.Status, got.UpdatedAt)
	}

	rr = e.do(t, http.MethodPut, "/flows/"+flow.ID+"/status", `{"status":"draft"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("active to draft status = %d, want 409", rr.Code)
	}

	rr = e.do(t, http.MethodPut, "/flows/missing/status", `{"status":"active"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing flow status = %d, want 404", rr.Code)
	}
}

func TestABTestAndAnalytics(t *testing.T) {
	e := setupHandler(t)
	flow := compileFlow(t, e, `["blog"]`)

	test := `{"variants":[{"id":"a","distribution":50},{"id":"b","distribution":50}],"metrics":[]}`
	rr := e.do(t, http.MethodPut, "/flows/"+flow.ID+"/ab-tests/headline", test)
	if rr.Code != http.StatusOK {
		t.Fatalf("attach status = %d; body = %s", rr.Code, rr.Body.String())
	}

	over := `{"variants":[{"id":"a","distribution":80},{"id":"b","distribution":80}]}`
	if rr := e.do(t, http.MethodPut, "/flows/"+flow.ID+"/ab-tests/bad", over); rr.Code != http.StatusBadRequest {
		t.Errorf("over-allocated test status = %d, want 400", rr.Code)
	}

	metrics := `{"metrics":{"headline":[{"impressions":1000,"engagements":100,"conversions":10}]}}`
	rr = e.do(t, http.MethodPost, "/flows/"+flow.ID+"/analytics", metrics)
	if rr.Code != http.StatusOK {
		t.Fatalf("analytics status = %d; body = %s", rr.Code, rr.Body.String())
	}
	got := decode[marketing.Flow](t, rr)
	if got.Analytics.Impressions != 1000 || got.Analytics.Conversions != 10 {
		t.Errorf("analytics = %+v", got.Analytics)
	}
	if got.Analytics.ROI <= 0 {
		t.Errorf("roi = %v, want positive", got.Analytics.ROI)
	}

	unknown := `{"metrics":{"nope":[{"impressions":1}]}}`
	if rr := e.do(t, http.MethodPost, "/flows/"+flow.ID+"/analytics", unknown); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown test status = %d, want 400", rr.Code)
	}
}

func TestABTestAndAnalytics_RejectNegativeValues(t *testing.T) {
	e := setupHandler(t)
	flow := compileFlow(t, e, `["blog"]`)

	negative := `{"variants":[{"id":"a","distribution":-100},{"id":"b","distribution":150}]}`
	if rr := e.do(t, http.MethodPut, "/flows/"+flow.ID+"/ab-tests/skewed", negative); rr.Code != http.StatusBadRequest {
		t.Errorf("negative distribution status = %d, want 400", rr.Code)
	}
	badMetric := `{"variants":[{"id":"a","distribution":100}],"metrics":[{"impressions":10,"conversions":-1}]}`
	if rr := e.do(t, http.MethodPut, "/flows/"+flow.ID+"/ab-tests/skewed", badMetric); rr.Code != http.StatusBadRequest {
		t.Errorf("negative attached metric status = %d, want 400", rr.Code)
	}

	test := `{"variants":[{"id":"a","distribution":100}]}`
	if rr := e.do(t, http.MethodPut, "/flows/"+flow.ID+"/ab-tests/headline", test); rr.Code != http.StatusOK {
		t.Fatalf("attach status = %d; body = %s", rr.Code, rr.Body.String())
	}
	for _, m := range []string{
		`{"impressions":-500,"engagements":-3,"conversions":-2}`,
		`{"impressions":10,"engagements":1,"conversions":0,"confidence":-0.5}`,
	} {
		rr := e.do(t, http.MethodPost, "/flows/"+flow.ID+"/analytics", `{"metrics":{"headline":[`+m+`]}}`)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("metric %s: status = %d, want 400", m, rr.Code)
		}
	}

	stored, err := e.store.GetFlow(flow.ID)
	if err != nil {
		t.Fatalf("GetFlow: %v", err)
	}
	if n := len(stored.ABTests["headline"].Metrics); n != 0 {
		t.Errorf("stored %d metrics after rejected requests, want 0", n)
	}
	if _, ok := stored.ABTests["skewed"]; ok {
		t.Error("rejected a/b test was stored")
	}
	if stored.Analytics.Impressions < 0 {
		t.Errorf("analytics = %+v", stored.Analytics)
	}
}

func TestGenerate_Sync(t *testing.T) {
	e := setupHandler(t)
	rr := e.do(t, http.MethodPost, "/content/generate", `{"prompt":"spring sale","contentType":"post","channel":"twitter"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	content := decode[marketing.Content](t, rr)
	if content.Output == nil || content.Output.Text != "generated: spring sale" {
		t.Errorf("output = %+v", content.Output)
	}
}

func TestGenerate_Validation(t *testing.T) {
	e := setupHandler(t)
	for _, body := range []string{
		`{"contentType":"post","channel":"twitter"}`,
		`{"prompt":"x","contentType":"podcast","channel":"twitter"}`,
		`{"prompt":"x","contentType":"post","channel":"myspace"}`,
	} {
		if rr := e.do(t, http.MethodPost, "/content/generate", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestGenerate_AsyncQueuesGeneration(t *testing.T) {
	e := setupHandler(t)
	rr := e.do(t, http.MethodPost, "/content/generate", `{"prompt":"spring sale","contentType":"image","channel":"instagram","async":true}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	resp := decode[map[string]string](t, rr)
	if resp["status"] != "queued" || resp["id"] == "" {
		t.Fatalf("response = %v", resp)
	}
	if len(e.gen.requests) != 0 {
		t.Error("async generation called the provider inline")
	}

	rr = e.do(t, http.MethodGet, "/content/generations/"+resp["id"], "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET generation status = %d", rr.Code)
	}
	g := decode[GenerationResponse](t, rr)
	if g.Status != storage.GenerationPending || g.Channel != "instagram" {
		t.Errorf("generation = %+v", g)
	}

	counts, err := e.store.JobCounts()
	if err != nil {
		t.Fatalf("JobCounts: %v", err)
	}
	if counts["pending"] != 1 {
		t.Errorf("pending jobs = %d, want 1", counts["pending"])
	}
}

func TestGetGeneration_NotFound(t *testing.T) {
	e := setupHandler(t)
	if rr := e.do(t, http.MethodGet, "/content/generations/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestOptimize(t *testing.T) {
	e := setupHandler(t)
	rr := e.do(t, http.MethodPost, "/content/optimize", `{"content":"old copy","channel":"linkedin","performance":{"ctr":0.01}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if got := decode[map[string]string](t, rr)["content"]; !strings.HasPrefix(got, "generated: ") {
		t.Errorf("content = %q", got)
	}

	if rr := e.do(t, http.MethodPost, "/content/optimize", `{"channel":"linkedin"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty content status = %d, want 400", rr.Code)
	}
}

func TestOptimize_RejectsUnknownChannel(t *testing.T) {
	e := setupHandler(t)

	for _, body := range []string{
		`{"content":"old copy","channel":"myspace"}`,
		`{"content":"old copy"}`,
	} {
		rr := e.do(t, http.MethodPost, "/content/optimize", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rr.Code)
			continue
		}
		if msg := errorMessage(t, rr); !strings.Contains(msg, "invalid channel") {
			t.Errorf("%s: error message = %q", body, msg)
		}
	}
	if n := len(e.gen.requests); n != 0 {
		t.Errorf("generator called %d times for rejected requests", n)
	}
}

const validAIConfig = `{
	"huggingface": {"apiKey": "hf_secret_1234", "models": []},
	"openai": {"apiKey": "sk-secret-5678", "models": [
		{"id": "gpt", "name": "GPT", "provider": "openai", "modelId": "gpt-4o", "type": "text", "isEnabled": true}
	]},
	"replicate": {"apiKey": "", "models": []},
	"elevenlabs": {"apiKey": ""}
}`

func TestAIConfig_PutAndGetRedacted(t *testing.T) {
	e := setupHandler(t)

	rr := e.do(t, http.MethodPut, "/ai-config", validAIConfig)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT status = %d; body = %s", rr.Code, rr.Body.String())
	}

	rr = e.do(t, http.MethodGet, "/ai-config", "")
	cfg := decode[aimodel.UserConfig](t, rr)
	if strings.Contains(rr.Body.String(), "sk-secret-5678") {
		t.Error("GET /ai-config leaked the OpenAI key")
	}
	if !strings.HasSuffix(cfg.OpenAI.APIKey, "5678") {
		t.Errorf("redacted key = %q", cfg.OpenAI.APIKey)
	}
	if len(cfg.OpenAI.Models) != 1 || cfg.OpenAI.Models[0].ModelID != "gpt-4o" {
		t.Errorf("models = %+v", cfg.OpenAI.Models)
	}

	stored, err := e.store.GetUserConfig()
	if err != nil {
		t.Fatalf("GetUserConfig: %v", err)
	}
	if stored.OpenAI.APIKey != "sk-secret-5678" {
		t.Errorf("stored key = %q", stored.OpenAI.APIKey)
	}
}

func TestAIConfig_PutRejectsBadStructure(t *testing.T) {
	e := setupHandler(t)
	rr := e.do(t, http.MethodPut, "/ai-config", `{"openai":{"models":[]}}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAIConfig_Validate(t *testing.T) {
	e := setupHandler(t)

	rr := e.do(t, http.MethodPost, "/ai-config/validate", `{"apiKey":"sk-1","model":{"provider":"openai","modelId":"gpt-4","type":"text"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	resp := decode[ValidateModelResponse](t, rr)
	if !resp.IsValid || resp.DefaultParams["max_length"] != float64(1000) {
		t.Errorf("response = %+v", resp)
	}
	if len(e.keys) != 1 || e.keys[0].OpenAI != "sk-1" {
		t.Errorf("backends built with %+v", e.keys)
	}

	tests := []struct {
		name string
		body string
	}{
		{"unknown model", `{"apiKey":"sk-1","model":{"provider":"openai","modelId":"gpt-9","type":"text"}}`},
		{"missing key", `{"model":{"provider":"openai","modelId":"gpt-4","type":"text"}}`},
		{"voice provider", `{"apiKey":"k","model":{"provider":"elevenlabs","modelId":"x","type":"voice"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := e.do(t, http.MethodPost, "/ai-config/validate", tt.body); rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}
