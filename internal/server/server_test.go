package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mockify/interviewstats/internal/config"
	"github.com/mockify/interviewstats/internal/server"
	"github.com/mockify/interviewstats/internal/store"
	"github.com/mockify/interviewstats/internal/transcript"
	tt "github.com/mockify/interviewstats/internal/transcripttest"
	"github.com/mockify/interviewstats/internal/wordbank"
)

var fixedNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

// --- Test helpers ---

// testEnv sets up a server with a temporary store.
type testEnv struct {
	srv     *server.Server
	handler http.Handler
	repo    *store.Repository
	cache   *wordbank.Cache
	dataDir string
}

// setupOption customizes the config used by setup.
type setupOption func(*config.Config)

func withWriteTimeout(d time.Duration) setupOption {
	return func(c *config.Config) { c.WriteTimeout = d }
}

func withMatcher(name string) setupOption {
	return func(c *config.Config) { c.Matcher = name }
}

func setup(
	t *testing.T,
	opts ...setupOption,
) *testEnv {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	kv, err := store.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return setupWithKV(t, kv, nil, opts...)
}

func setupWithKV(
	t *testing.T,
	kv store.KV,
	srvOpts []server.Option,
	opts ...setupOption,
) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		Host:         "127.0.0.1",
		Port:         0,
		DataDir:      dir,
		HalfLifeDays: 14,
		Matcher:      wordbank.MatcherSubstring,
		WriteTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	repo := store.NewRepository(kv)
	cache := wordbank.NewCache()
	srvOpts = append([]server.Option{
		server.WithClock(func() time.Time { return fixedNow }),
	}, srvOpts...)
	srv := server.New(cfg, repo, cache, srvOpts...)

	return &testEnv{
		srv:     srv,
		handler: srv.Handler(),
		repo:    repo,
		cache:   cache,
		dataDir: dir,
	}
}

func (te *testEnv) seed(t *testing.T, sessions ...transcript.Session) {
	t.Helper()
	if _, err := te.repo.AppendSessions(
		context.Background(), sessions...,
	); err != nil {
		t.Fatalf("seeding sessions: %v", err)
	}
}

// listenAndServe starts the server on a real port and returns the
// base URL. The server is shut down when the test finishes.
func (te *testEnv) listenAndServe(t *testing.T) string {
	t.Helper()
	port := server.FindAvailablePort("127.0.0.1", 40000)
	te.srv.SetPort(port)

	var serveErr error
	done := make(chan struct{})
	go func() {
		serveErr = te.srv.ListenAndServe()
		close(done)
	}()

	// Wait for the port to accept connections.
	deadline := time.Now().Add(2 * time.Second)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ready := false
	var lastDialErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout(
			"tcp", addr, 50*time.Millisecond,
		)
		if err == nil {
			conn.Close()
			ready = true
			break
		}
		lastDialErr = err
		time.Sleep(10 * time.Millisecond)
	}
	if !ready {
		select {
		case <-done:
			t.Fatalf(
				"server failed to start: %v", serveErr,
			)
		default:
		}
		t.Fatalf(
			"server not ready after 2s: last dial error: %v",
			lastDialErr,
		)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()
		if err := te.srv.Shutdown(ctx); err != nil &&
			err != http.ErrServerClosed {
			t.Errorf("server shutdown error: %v", err)
		}
		select {
		case <-done:
			if serveErr != nil &&
				serveErr != http.ErrServerClosed {
				t.Errorf(
					"server exited with error: %v",
					serveErr,
				)
			}
		case <-time.After(5 * time.Second):
			t.Error("timed out waiting for server goroutine")
		}
	})

	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

func (te *testEnv) do(
	t *testing.T, method, path, body string,
) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	te.handler.ServeHTTP(w, req)
	return w
}

func (te *testEnv) get(
	t *testing.T, path string,
) *httptest.ResponseRecorder {
	t.Helper()
	return te.do(t, http.MethodGet, path, "")
}

func (te *testEnv) post(
	t *testing.T, path string, body string,
) *httptest.ResponseRecorder {
	t.Helper()
	return te.do(t, http.MethodPost, path, body)
}

func (te *testEnv) put(
	t *testing.T, path string, body string,
) *httptest.ResponseRecorder {
	t.Helper()
	return te.do(t, http.MethodPut, path, body)
}

func (te *testEnv) del(
	t *testing.T, path string,
) *httptest.ResponseRecorder {
	t.Helper()
	return te.do(t, http.MethodDelete, path, "")
}

// decode unmarshals the response body into a typed struct.
func decode[T any](
	t *testing.T, w *httptest.ResponseRecorder,
) T {
	t.Helper()
	var result T
	if err := json.Unmarshal(
		w.Body.Bytes(), &result,
	); err != nil {
		t.Fatalf("decoding JSON: %v\nbody: %s",
			err, w.Body.String())
	}
	return result
}

func assertStatus(
	t *testing.T, w *httptest.ResponseRecorder, code int,
) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("expected status %d, got %d: %s",
			code, w.Code, w.Body.String())
	}
}

func assertBodyContains(
	t *testing.T, w *httptest.ResponseRecorder, substr string,
) {
	t.Helper()
	if !strings.Contains(w.Body.String(), substr) {
		t.Errorf("body %q does not contain %q",
			w.Body.String(), substr)
	}
}

// assertErrorResponse checks that the response body is a JSON
// object whose "error" field contains wantMsg.
func assertErrorResponse(
	t *testing.T, w *httptest.ResponseRecorder,
	wantMsg string,
) {
	t.Helper()
	resp := decode[map[string]string](t, w)
	if got := resp["error"]; !strings.Contains(got, wantMsg) {
		t.Errorf("error = %q, want it to contain %q", got, wantMsg)
	}
}

type sessionList struct {
	Sessions []struct {
		ID string `json:"id"`
	} `json:"sessions"`
	Total int `json:"total"`
}

func listIDs(l sessionList) []string {
	ids := make([]string, len(l.Sessions))
	for i, s := range l.Sessions {
		ids[i] = s.ID
	}
	return ids
}

// --- Sessions ---

func TestListSessions_Empty(t *testing.T) {
	te := setup(t)

	w := te.get(t, "/api/v1/sessions")
	assertStatus(t, w, http.StatusOK)

	resp := decode[sessionList](t, w)
	if resp.Total != 0 || len(resp.Sessions) != 0 {
		t.Errorf("expected empty list, got %+v", resp)
	}
}

func TestListSessions_FilterAndPaging(t *testing.T) {
	te := setup(t)
	te.seed(t,
		tt.Session("a", tt.WithCompany("Acme")),
		tt.Session("b", tt.WithCompany("Globex")),
		tt.Session("c", tt.WithCompany("Acme")),
	)

	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantTotal int
	}{
		{"All", "", []string{"a", "b", "c"}, 3},
		{"Company", "?company=Acme", []string{"a", "c"}, 2},
		{"AllSentinel", "?company=all", []string{"a", "b", "c"}, 3},
		{"Limit", "?limit=2", []string{"a", "b"}, 3},
		{"Offset", "?offset=1&limit=1", []string{"b"}, 3},
		{"OffsetPastEnd", "?offset=10", []string{}, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := te.get(t, "/api/v1/sessions"+tc.query)
			assertStatus(t, w, http.StatusOK)
			resp := decode[sessionList](t, w)
			if got := listIDs(resp); fmt.Sprint(got) != fmt.Sprint(tc.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tc.wantIDs)
			}
			if resp.Total != tc.wantTotal {
				t.Errorf("total = %d, want %d", resp.Total, tc.wantTotal)
			}
		})
	}
}

func TestListSessions_InvalidParams(t *testing.T) {
	te := setup(t)
	for _, q := range []string{
		"limit=abc", "offset=-1", "start=yesterday", "timezone=Nowhere/Land",
	} {
		t.Run(q, func(t *testing.T) {
			w := te.get(t, "/api/v1/sessions?"+q)
			assertStatus(t, w, http.StatusBadRequest)
		})
	}
}

func TestGetSession_Found(t *testing.T) {
	te := setup(t)
	te.seed(t, tt.Session("s1", tt.WithScore(72)))

	w := te.get(t, "/api/v1/sessions/s1")
	assertStatus(t, w, http.StatusOK)
	assertBodyContains(t, w, `"id":"s1"`)
	assertBodyContains(t, w, `"score":72`)
}

func TestGetSession_NotFound(t *testing.T) {
	te := setup(t)

	w := te.get(t, "/api/v1/sessions/nope")
	assertStatus(t, w, http.StatusNotFound)
}

func TestCreateSessions(t *testing.T) {
	te := setup(t)

	w := te.post(t, "/api/v1/sessions", `{"id":"one","userName":"Ana"}`)
	assertStatus(t, w, http.StatusCreated)
	if got := decode[map[string][]string](t, w)["ids"]; fmt.Sprint(got) != "[one]" {
		t.Errorf("ids = %v, want [one]", got)
	}

	w = te.post(t, "/api/v1/sessions", `[{"id":"two"},{"userName":"anon"}]`)
	assertStatus(t, w, http.StatusCreated)
	ids := decode[map[string][]string](t, w)["ids"]
	if len(ids) != 2 || ids[0] != "two" || ids[1] == "" {
		t.Errorf("ids = %v, want [two <generated>]", ids)
	}

	got, err := te.repo.GetSession(context.Background(), ids[1])
	if err != nil {
		t.Fatalf("generated session not stored: %v", err)
	}
	if got.Timestamp != "2024-07-01T12:00:00.000Z" {
		t.Errorf("timestamp = %q, want the current instant", got.Timestamp)
	}
}

func TestCreateSessions_Errors(t *testing.T) {
	te := setup(t)
	te.seed(t, tt.Session("dup"))

	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"Duplicate", `{"id":"dup"}`, http.StatusConflict, "dup"},
		{"DuplicateInBatch", `[{"id":"x"},{"id":"x"}]`, http.StatusConflict, "x"},
		{"Malformed", `{"id":`, http.StatusBadRequest, "malformed"},
		{"NotAnArray", `"hello"`, http.StatusBadRequest, "malformed"},
		{"Empty", `[]`, http.StatusBadRequest, "no sessions"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := te.post(t, "/api/v1/sessions", tc.body)
			assertStatus(t, w, tc.status)
			assertErrorResponse(t, w, tc.msg)
		})
	}

	all, err := te.repo.LoadSessions(context.Background())
	if err != nil {
		t.Fatalf("LoadSessions: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("failed batches were written: %d sessions", len(all))
	}
}

func TestUpdateFeedback(t *testing.T) {
	te := setup(t)
	te.seed(t, tt.Session("s1"))

	w := te.put(t, "/api/v1/sessions/s1/feedback", `{"score":88}`)
	assertStatus(t, w, http.StatusOK)
	assertBodyContains(t, w, `"score":88`)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"OutOfRange", "/api/v1/sessions/s1/feedback", `{"score":101}`, http.StatusBadRequest},
		{"Missing", "/api/v1/sessions/s1/feedback", `{}`, http.StatusBadRequest},
		{"BadJSON", "/api/v1/sessions/s1/feedback", `score=1`, http.StatusBadRequest},
		{"NotFound", "/api/v1/sessions/zz/feedback", `{"score":50}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertStatus(t, te.put(t, tc.path, tc.body), tc.status)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	te := setup(t)
	te.seed(t, tt.Session("a"), tt.Session("b"))

	assertStatus(t, te.del(t, "/api/v1/sessions/a"), http.StatusNoContent)
	assertStatus(t, te.del(t, "/api/v1/sessions/a"), http.StatusNotFound)

	resp := decode[sessionList](t, te.get(t, "/api/v1/sessions"))
	if got := listIDs(resp); fmt.Sprint(got) != "[b]" {
		t.Errorf("ids = %v, want [b]", got)
	}
}

// --- Dashboard ---

type dashboardResp struct {
	TotalSessions int      `json:"total_sessions"`
	MeanScore     *float64 `json:"mean_score"`
	MedianScore   *float64 `json:"median_score"`
	AvgResponse   struct {
		Ms    *float64 `json:"ms"`
		Human string   `json:"human"`
	} `json:"avg_response"`
	CompanyOptions []string `json:"company_options"`
	Keywords       []struct {
		Token    string   `json:"token"`
		Sessions []string `json:"sessions"`
	} `json:"keywords"`
	Matcher string `json:"matcher"`
}

func seedDashboard(t *testing.T, te *testEnv) {
	t.Helper()
	te.seed(t,
		tt.Session("s1",
			tt.WithScore(60), tt.WithCompany("Acme"),
			tt.WithMessages(
				tt.User("tell me about golang channels", tt.At(0)),
				tt.Assistant("sure", tt.At(2000)),
			),
		),
		tt.Session("s2",
			tt.WithScore(90), tt.WithCompany("Globex"),
			tt.WithMessages(
				tt.User("golang interfaces", tt.At(0)),
				tt.Assistant("ok", tt.At(4000)),
			),
		),
	)
}

func TestDashboard(t *testing.T) {
	te := setup(t)
	seedDashboard(t, te)

	w := te.get(t, "/api/v1/dashboard")
	assertStatus(t, w, http.StatusOK)
	d := decode[dashboardResp](t, w)
	if d.TotalSessions != 2 {
		t.Errorf("total = %d, want 2", d.TotalSessions)
	}
	if d.MeanScore == nil || *d.MeanScore != 75 {
		t.Errorf("mean = %v, want 75", d.MeanScore)
	}
	if d.AvgResponse.Ms == nil || *d.AvgResponse.Ms != 3000 {
		t.Errorf("avg response = %v, want 3000", d.AvgResponse.Ms)
	}
	if d.AvgResponse.Human != "3s" {
		t.Errorf("human = %q, want 3s", d.AvgResponse.Human)
	}
	if len(d.Keywords) != 0 {
		t.Errorf("keywords before rebuild = %v, want none", d.Keywords)
	}
	if d.Matcher != "substring" {
		t.Errorf("matcher = %q, want substring", d.Matcher)
	}

	w = te.get(t, "/api/v1/dashboard?company=Acme")
	assertStatus(t, w, http.StatusOK)
	d = decode[dashboardResp](t, w)
	if d.TotalSessions != 1 || d.MeanScore == nil || *d.MeanScore != 60 {
		t.Errorf("filtered dashboard = %+v", d)
	}
	if len(d.CompanyOptions) != 2 {
		t.Errorf("options should come from every session: %v",
			d.CompanyOptions)
	}
}

func TestDashboard_EmptyStore(t *testing.T) {
	te := setup(t)

	w := te.get(t, "/api/v1/dashboard")
	assertStatus(t, w, http.StatusOK)
	d := decode[dashboardResp](t, w)
	if d.MeanScore != nil || d.MedianScore != nil {
		t.Errorf("scores should be null on empty data: %+v", d)
	}
	if d.AvgResponse.Human != "—" {
		t.Errorf("human = %q, want placeholder", d.AvgResponse.Human)
	}
}

func TestDashboard_InvalidParams(t *testing.T) {
	te := setup(t)
	for _, q := range []string{
		"start=2024-13-01", "start=2024-05-01&end=2024-01-01", "matcher=regex",
	} {
		t.Run(q, func(t *testing.T) {
			assertStatus(t, te.get(t, "/api/v1/dashboard?"+q),
				http.StatusBadRequest)
		})
	}
}

// --- Word bank ---

type wordBankResp struct {
	Bank       wordbank.Bank       `json:"bank"`
	Provenance wordbank.Provenance `json:"provenance"`
	Built      bool                `json:"built"`
	Stale      bool                `json:"stale"`
}

func TestWordBank_Lifecycle(t *testing.T) {
	te := setup(t)
	seedDashboard(t, te)

	w := te.get(t, "/api/v1/wordbank")
	assertStatus(t, w, http.StatusOK)
	wb := decode[wordBankResp](t, w)
	if wb.Built || !wb.Stale || len(wb.Bank) != 0 {
		t.Errorf("fresh bank = %+v, want empty unbuilt stale", wb)
	}

	w = te.post(t, "/api/v1/wordbank/rebuild", "")
	assertStatus(t, w, http.StatusOK)
	wb = decode[wordBankResp](t, w)
	if e := wb.Bank["golang"]; e == nil || e.Count != 2 {
		t.Fatalf("golang entry = %+v, want count 2", e)
	}
	if wb.Provenance.SessionCount != 2 || !wb.Provenance.BuiltAt.Equal(fixedNow) {
		t.Errorf("provenance = %+v", wb.Provenance)
	}

	wb = decode[wordBankResp](t, te.get(t, "/api/v1/wordbank"))
	if !wb.Built || wb.Stale {
		t.Errorf("after rebuild = built %v stale %v", wb.Built, wb.Stale)
	}

	te.seed(t, tt.Session("s3"))
	wb = decode[wordBankResp](t, te.get(t, "/api/v1/wordbank"))
	if !wb.Stale {
		t.Error("bank should be stale after a new session")
	}

	persisted, _, err := te.repo.LoadWordBank(context.Background())
	if err != nil {
		t.Fatalf("LoadWordBank: %v", err)
	}
	if persisted["golang"] == nil {
		t.Error("rebuild was not persisted")
	}

	assertStatus(t, te.del(t, "/api/v1/wordbank"), http.StatusNoContent)
	wb = decode[wordBankResp](t, te.get(t, "/api/v1/wordbank"))
	if len(wb.Bank) != 0 {
		t.Errorf("bank after clear = %v", wb.Bank)
	}
}

func TestRebuildWordBank_Filtered(t *testing.T) {
	te := setup(t)
	seedDashboard(t, te)

	w := te.post(t, "/api/v1/wordbank/rebuild?company=Acme", "")
	assertStatus(t, w, http.StatusOK)
	wb := decode[wordBankResp](t, w)
	if e := wb.Bank["golang"]; e == nil || e.Count != 1 {
		t.Errorf("golang entry = %+v, want count 1", e)
	}
	if wb.Bank["interfaces"] != nil {
		t.Error("filtered rebuild indexed a Globex session")
	}
	if wb.Provenance.SessionCount != 1 {
		t.Errorf("SessionCount = %d, want 1", wb.Provenance.SessionCount)
	}

	w = te.post(t, "/api/v1/wordbank/rebuild?start=yesterday", "")
	assertStatus(t, w, http.StatusBadRequest)
}

func TestKeywords(t *testing.T) {
	te := setup(t)
	seedDashboard(t, te)
	assertStatus(t, te.post(t, "/api/v1/wordbank/rebuild", ""), http.StatusOK)

	type kwResp struct {
		Matcher  string `json:"matcher"`
		Keywords []struct {
			Token    string   `json:"token"`
			Count    int      `json:"count"`
			Sessions []string `json:"sessions"`
		} `json:"keywords"`
	}

	w := te.get(t, "/api/v1/keywords")
	assertStatus(t, w, http.StatusOK)
	resp := decode[kwResp](t, w)
	if resp.Matcher != "substring" {
		t.Errorf("matcher = %q", resp.Matcher)
	}
	if len(resp.Keywords) == 0 || resp.Keywords[0].Token != "golang" {
		t.Fatalf("first keyword = %+v, want golang", resp.Keywords)
	}
	if got := resp.Keywords[0].Sessions; len(got) != 2 {
		t.Errorf("golang sessions = %v, want both", got)
	}

	w = te.get(t, "/api/v1/keywords?company=Globex&matcher=token")
	assertStatus(t, w, http.StatusOK)
	resp = decode[kwResp](t, w)
	if resp.Matcher != "token" {
		t.Errorf("matcher = %q, want token", resp.Matcher)
	}
	for _, k := range resp.Keywords {
		if k.Token == "golang" && fmt.Sprint(k.Sessions) != "[s2]" {
			t.Errorf("filtered golang sessions = %v, want [s2]", k.Sessions)
		}
	}

	d := decode[dashboardResp](t, te.get(t, "/api/v1/dashboard"))
	if len(d.Keywords) == 0 {
		t.Error("dashboard should include keywords once a bank exists")
	}
}

func TestKeywords_ConfiguredMatcher(t *testing.T) {
	te := setup(t, withMatcher(wordbank.MatcherToken))
	w := te.get(t, "/api/v1/keywords")
	assertStatus(t, w, http.StatusOK)
	assertBodyContains(t, w, `"matcher":"token"`)
	assertBodyContains(t, w, `"keywords":[]`)
}

func TestExportWordBank(t *testing.T) {
	te := setup(t)
	seedDashboard(t, te)
	assertStatus(t, te.post(t, "/api/v1/wordbank/rebuild", ""), http.StatusOK)

	tests := []struct {
		query    string
		ctype    string
		filename string
		contains string
	}{
		{"", "application/json", "word-bank.json", `"golang": {`},
		{"?format=json", "application/json", "word-bank.json", `"count": 2`},
		{"?format=yaml", "application/yaml", "word-bank.yaml", "golang:"},
	}
	for _, tc := range tests {
		t.Run(tc.filename+tc.query, func(t *testing.T) {
			w := te.get(t, "/api/v1/wordbank/export"+tc.query)
			assertStatus(t, w, http.StatusOK)
			if ct := w.Header().Get("Content-Type"); ct != tc.ctype {
				t.Errorf("Content-Type = %q, want %q", ct, tc.ctype)
			}
			want := fmt.Sprintf("attachment; filename=%q", tc.filename)
			if cd := w.Header().Get("Content-Disposition"); cd != want {
				t.Errorf("Content-Disposition = %q, want %q", cd, want)
			}
			assertBodyContains(t, w, tc.contains)
		})
	}

	w := te.get(t, "/api/v1/wordbank/export?format=xml")
	assertStatus(t, w, http.StatusBadRequest)
}

func TestExportWordBank_Empty(t *testing.T) {
	te := setup(t)
	w := te.get(t, "/api/v1/wordbank/export")
	assertStatus(t, w, http.StatusOK)
	if got := strings.TrimSpace(w.Body.String()); got != "{}" {
		t.Errorf("body = %q, want {}", got)
	}
}

// wordBankWriteFailKV refuses every write to the word bank key.
type wordBankWriteFailKV struct{ *store.Memory }

func (k wordBankWriteFailKV) Set(ctx context.Context, key, value string) error {
	if key == store.KeyWordBank {
		return errors.New("quota exceeded")
	}
	return k.Memory.Set(ctx, key, value)
}

func TestRebuildWordBank_PersistFailureKeepsBank(t *testing.T) {
	te := setupWithKV(t, wordBankWriteFailKV{store.NewMemory()}, nil)
	seedDashboard(t, te)

	w := te.post(t, "/api/v1/wordbank/rebuild", "")
	assertStatus(t, w, http.StatusInternalServerError)
	assertErrorResponse(t, w, "could not be saved")

	wb := decode[wordBankResp](t, te.get(t, "/api/v1/wordbank"))
	if wb.Bank["golang"] == nil {
		t.Error("rebuilt bank should stay viewable after a failed save")
	}
	w = te.get(t, "/api/v1/wordbank/export")
	assertStatus(t, w, http.StatusOK)
	assertBodyContains(t, w, "golang")
}

// --- Misc ---

func TestGetStats(t *testing.T) {
	te := setup(t)
	te.seed(t, tt.Session("a", tt.WithScore(50)), tt.Session("b"))

	type statsResp struct {
		Sessions       int  `json:"sessions"`
		ScoredSessions int  `json:"scored_sessions"`
		WordBankTokens int  `json:"word_bank_tokens"`
		WordBankStale  bool `json:"word_bank_stale"`
	}
	w := te.get(t, "/api/v1/stats")
	assertStatus(t, w, http.StatusOK)
	resp := decode[statsResp](t, w)
	if resp.Sessions != 2 || resp.ScoredSessions != 1 {
		t.Errorf("stats = %+v", resp)
	}
	if !resp.WordBankStale {
		t.Error("unbuilt bank should report stale")
	}
}

func TestCORSHeaders(t *testing.T) {
	te := setup(t)

	w := te.get(t, "/api/v1/stats")
	cors := w.Header().Get("Access-Control-Allow-Origin")
	if cors != "*" {
		t.Fatalf("expected CORS *, got %q", cors)
	}
}

func TestCORSPreflight(t *testing.T) {
	te := setup(t)

	req := httptest.NewRequest(
		"OPTIONS", "/api/v1/sessions", nil,
	)
	w := httptest.NewRecorder()
	te.handler.ServeHTTP(w, req)
	assertStatus(t, w, http.StatusNoContent)
}

func TestCORSAllowMethods(t *testing.T) {
	te := setup(t)

	w := te.get(t, "/api/v1/stats")
	methods := w.Header().Get(
		"Access-Control-Allow-Methods",
	)
	for _, want := range []string{
		"GET", "POST", "PUT", "DELETE", "OPTIONS",
	} {
		if !strings.Contains(methods, want) {
			t.Errorf(
				"Allow-Methods %q missing %s",
				methods, want,
			)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	te := setup(t)
	assertStatus(t, te.get(t, "/api/v1/stats"), http.StatusOK)

	w := te.get(t, "/metrics")
	assertStatus(t, w, http.StatusOK)
	assertBodyContains(t, w, "interviewstats_http_requests_total")
	assertBodyContains(t, w, "interviewstats_store_operations_total")
}

func TestGetVersion(t *testing.T) {
	v := server.VersionInfo{
		Version:   "v1.2.3",
		Commit:    "abc1234",
		BuildDate: "2025-01-15T00:00:00Z",
	}
	te := setupWithKV(t, store.NewMemory(), []server.Option{
		server.WithVersion(v),
	})

	w := te.get(t, "/api/v1/version")
	assertStatus(t, w, http.StatusOK)

	resp := decode[server.VersionInfo](t, w)
	if resp != v {
		t.Errorf("version = %+v, want %+v", resp, v)
	}
}

func TestGetVersion_Default(t *testing.T) {
	te := setup(t)

	w := te.get(t, "/api/v1/version")
	assertStatus(t, w, http.StatusOK)

	resp := decode[server.VersionInfo](t, w)
	if resp.Version != "" {
		t.Errorf("version = %q, want empty", resp.Version)
	}
}

func TestListenAndServe(t *testing.T) {
	te := setup(t, withWriteTimeout(5*time.Second))
	te.seed(t, tt.Session("live"))
	baseURL := te.listenAndServe(t)

	resp, err := http.Get(baseURL + "/api/v1/sessions/live")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestFindAvailablePortSkipsOccupied(t *testing.T) {
	// Bind a port on 127.0.0.1 so FindAvailablePort must skip it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	occupied := ln.Addr().(*net.TCPAddr).Port

	got := server.FindAvailablePort("127.0.0.1", occupied)
	if got == occupied {
		t.Errorf(
			"FindAvailablePort returned occupied port %d", occupied,
		)
	}

	// The returned port should be bindable on the same host.
	ln2, err := net.Listen(
		"tcp",
		fmt.Sprintf("127.0.0.1:%d", got),
	)
	if err != nil {
		t.Fatalf(
			"returned port %d not bindable: %v", got, err,
		)
	}
	ln2.Close()
}
