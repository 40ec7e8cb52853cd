package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"wardline/internal/config"
	"wardline/internal/db"
	"wardline/internal/engine"
	"wardline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

var adminHeader = map[string]string{"X-Actor-Id": "admin"}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Dir: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("ward-1")
	e := engine.New(conn, cfg)
	ctx := context.Background()
	if _, err := e.InitWorkspace(ctx, "ward-1", "Test Ward", "admin"); err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	if _, err := e.AddMember(ctx, "ward-1", "bob", "Bob", "member"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/callings", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	env := decodeError(t, data)
	if env.Error.Code != "unauthorized" {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}

	// health stays open
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestRoleEnforcement(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// plain members cannot create callings
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings", map[string]any{
		"title": "Primary Teacher",
	}, map[string]string{"X-Actor-Id": "bob"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d: %s", res.StatusCode, string(data))
	}

	// non-members cannot even read
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/callings", nil, map[string]string{"X-Actor-Id": "stranger"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings", map[string]any{
		"title": "Primary Teacher",
	}, adminHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", res.StatusCode, string(data))
	}

	// members can read and comment-level write paths still check membership
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/callings", nil, map[string]string{"X-Actor-Id": "bob"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected member read, got %d: %s", res.StatusCode, string(data))
	}
}

func TestPipelineFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings", map[string]any{
		"title":        "Primary Teacher",
		"organization": "Primary",
	}, adminHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create calling: %d %s", res.StatusCode, string(data))
	}
	var calling CallingResponse
	if err := json.Unmarshal(data, &calling); err != nil {
		t.Fatalf("unmarshal calling: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings/"+calling.ID+"/candidates", map[string]any{
		"name": "John Doe",
	}, adminHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add candidate: %d %s", res.StatusCode, string(data))
	}
	var cand CandidateResponse
	_ = json.Unmarshal(data, &cand)
	if cand.CandidateName != "John Doe" || cand.Status != "proposed" {
		t.Fatalf("unexpected candidate %+v", cand)
	}

	// duplicate add conflicts
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings/"+calling.ID+"/candidates", map[string]any{
		"name": "john doe",
	}, adminHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected duplicate conflict, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings/"+calling.ID+"/process", map[string]any{
		"candidate_id": cand.ID,
	}, adminHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start process: %d %s", res.StatusCode, string(data))
	}
	var proc ProcessResponse
	_ = json.Unmarshal(data, &proc)
	if proc.CurrentStage != "defined" {
		t.Fatalf("unexpected start stage %s", proc.CurrentStage)
	}

	// walk to set_apart
	for i := 0; i < 5; i++ {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/processes/"+proc.ID+"/advance", map[string]any{}, adminHeader)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("advance %d: %d %s", i, res.StatusCode, string(data))
		}
		_ = json.Unmarshal(data, &proc)
	}
	if proc.CurrentStage != "set_apart" {
		t.Fatalf("expected set_apart, got %s", proc.CurrentStage)
	}

	// terminal advance without confirm
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/processes/"+proc.ID+"/advance", map[string]any{}, adminHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	if env := decodeError(t, data); env.Error.Code != "confirm_required" {
		t.Fatalf("expected confirm_required, got %q", env.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/processes/"+proc.ID+"/advance", map[string]any{
		"confirm": true,
	}, adminHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("terminal advance: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &proc)
	if proc.Status != "completed" || proc.StageLabel != "Recorded in LCR" {
		t.Fatalf("unexpected final state %+v", proc)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/callings/"+calling.ID, nil, adminHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get calling: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &calling)
	if !calling.IsFilled {
		t.Fatalf("expected filled calling")
	}
	if len(calling.Candidates) != 1 || len(calling.Processes) != 1 {
		t.Fatalf("expected nested details, got %d candidates / %d processes", len(calling.Candidates), len(calling.Processes))
	}
	if calling.Processes[0].Status != "completed" {
		t.Fatalf("nested process status %s", calling.Processes[0].Status)
	}

	// timeline has the full story
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/processes/"+proc.ID+"/timeline", nil, map[string]string{"X-Actor-Id": "bob"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("timeline: %d %s", res.StatusCode, string(data))
	}
	var timeline TimelineResponse
	if err := json.Unmarshal(data, &timeline); err != nil {
		t.Fatalf("unmarshal timeline: %v", err)
	}
	if len(timeline.Items) < 7 {
		t.Fatalf("expected full history, got %d items", len(timeline.Items))
	}
}

func TestErrorEnvelopeNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/callings/nope", nil, adminHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	if env := decodeError(t, data); env.Error.Code != "not_found" {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}
}

func TestCandidateNameSearch(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings", map[string]any{"title": "Clerk"}, adminHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create calling: %d %s", res.StatusCode, string(data))
	}
	var calling CallingResponse
	_ = json.Unmarshal(data, &calling)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings/"+calling.ID+"/candidates", map[string]any{"name": "John Doe"}, adminHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add candidate: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/candidate-names/search?q=john", nil, map[string]string{"X-Actor-Id": "bob"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("search: %d %s", res.StatusCode, string(data))
	}
	var result SearchNamesResponse
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal search: %v", err)
	}
	if len(result.Names) != 1 || result.ExactMatch {
		t.Fatalf("unexpected search result %+v", result)
	}

	// short queries come back empty rather than erroring
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/candidate-names/search?q=j", nil, adminHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("short search: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &result)
	if len(result.Names) != 0 {
		t.Fatalf("expected no matches for short query")
	}
}

func TestDashboardLayoutRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/dashboard/layout", nil, adminHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get layout: %d %s", res.StatusCode, string(data))
	}
	var layout engine.Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		t.Fatalf("unmarshal layout: %v", err)
	}
	if len(layout.Widgets) == 0 {
		t.Fatalf("expected default widgets")
	}

	// invalid widget type is rejected
	bad := layout
	bad.Widgets = append([]engine.Widget{}, layout.Widgets...)
	bad.Widgets[0].Type = "mystery"
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/dashboard/layout", bad, adminHeader)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}

	layout.Widgets[0].Visible = false
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/dashboard/layout", layout, adminHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put layout: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/dashboard/layout", nil, adminHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get saved layout: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &layout)
	if layout.Widgets[0].Visible {
		t.Fatalf("expected persisted layout change")
	}

	// layouts are per member
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/dashboard/layout", nil, map[string]string{"X-Actor-Id": "bob"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get bob layout: %d %s", res.StatusCode, string(data))
	}
	var bobLayout engine.Layout
	_ = json.Unmarshal(data, &bobLayout)
	if !bobLayout.Widgets[0].Visible {
		t.Fatalf("expected bob to keep the default layout")
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/dashboard/layout", nil, adminHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reset layout: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &layout)
	if !layout.Widgets[0].Visible {
		t.Fatalf("expected default layout after reset")
	}
}

func TestCommentsMembershipAndAuthor(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings", map[string]any{"title": "Clerk"}, adminHeader)
	var calling CallingResponse
	_ = json.Unmarshal(data, &calling)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings/"+calling.ID+"/candidates", map[string]any{"name": "Jane Roe"}, adminHeader)
	var cand CandidateResponse
	_ = json.Unmarshal(data, &cand)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/callings/"+calling.ID+"/process", map[string]any{"candidate_id": cand.ID}, adminHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start process: %d %s", res.StatusCode, string(data))
	}
	var proc ProcessResponse
	_ = json.Unmarshal(data, &proc)

	// any member may comment
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/processes/"+proc.ID+"/comments", map[string]any{
		"content": "talked sunday",
	}, map[string]string{"X-Actor-Id": "bob"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("member comment: %d %s", res.StatusCode, string(data))
	}
	var comment struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &comment)

	// but only the author may edit
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/comments/"+comment.ID, map[string]any{
		"content": "rewritten",
	}, adminHeader)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected author-only edit, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/comments/"+comment.ID, map[string]any{
		"content": "rewritten",
	}, map[string]string{"X-Actor-Id": "bob"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("author edit: %d %s", res.StatusCode, string(data))
	}
}
