package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/selector/internal/config"
	"github.com/vango-dev/selector/internal/errors"
)

const usersDoc = `{
  "users": [
    {"name": "ann", "active": true},
    {"name": "bob", "active": false}
  ]
}`

const activeNames = "users.#(active==true)#.name"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fileConfig(t *testing.T, content string) (*config.Config, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.New()
	cfg.Source.Path = path
	cfg.Selector.Path = activeNames
	cfg.LogLevel = "error"
	return cfg, path
}

func TestDecodeDocument(t *testing.T) {
	d, err := decodeDocument([]byte("  {\"a\":1}\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, _ := json.Marshal(d)
	if string(data) != `{"a":1}` {
		t.Errorf("unexpected marshal %s", data)
	}

	empty, err := decodeDocument(nil)
	if err != nil || string(empty.raw) != "null" {
		t.Errorf("empty input should be a null document, got %v %v", empty, err)
	}

	if _, err := decodeDocument([]byte("{")); err == nil {
		t.Error("expected an error for invalid JSON")
	}
}

func TestPathSelector(t *testing.T) {
	d, _ := decodeDocument([]byte(usersDoc))
	ctx := context.Background()

	res, err := pathSelector(activeNames, false)(ctx, d)
	if err != nil || res.IsPending() {
		t.Fatalf("expected an immediate result, got %+v %v", res, err)
	}
	names, ok := res.Value().([]any)
	if !ok || len(names) != 1 || names[0] != "ann" {
		t.Errorf("unexpected selection %#v", res.Value())
	}

	res, err = pathSelector("users.#", true)(ctx, d)
	if err != nil || !res.IsPending() {
		t.Fatalf("expected a pending result, got %+v %v", res, err)
	}
	v, err := res.Future().Await(ctx)
	if err != nil || v != float64(2) {
		t.Errorf("expected 2, got %v %v", v, err)
	}

	res, _ = pathSelector("users", false)(ctx, nil)
	if res.Value() != nil {
		t.Error("nil document should select nil")
	}
}

func TestRunGet(t *testing.T) {
	cfg, _ := fileConfig(t, usersDoc)

	var out bytes.Buffer
	if err := runGet(context.Background(), cfg, false, &out); err != nil {
		t.Fatalf("runGet: %v", err)
	}
	var names []string
	if err := json.Unmarshal(out.Bytes(), &names); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if len(names) != 1 || names[0] != "ann" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestRunGetAsync(t *testing.T) {
	cfg, _ := fileConfig(t, usersDoc)
	cfg.Selector.Async = true
	cfg.Selector.Path = "users.#"

	var out bytes.Buffer
	if err := runGet(context.Background(), cfg, false, &out); err != nil {
		t.Fatalf("runGet: %v", err)
	}
	if strings.TrimSpace(out.String()) != "2" {
		t.Errorf("expected 2, got %q", out.String())
	}
}

func TestAwaitSelectionWaitsForNotification(t *testing.T) {
	cfg, _ := fileConfig(t, usersDoc)
	cfg.Selector.Async = true
	cfg.Selector.Path = "users.1.name"

	a, err := newApp(cfg, quietLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()
	if err := a.refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := a.awaitSelection(ctx)
	if err != nil {
		t.Fatalf("awaitSelection: %v", err)
	}
	if v != "bob" {
		t.Errorf("expected bob, got %v", v)
	}
	if a.inst.Pending() {
		t.Error("resolution still pending after awaitSelection returned")
	}
	if n := a.inst.Subscribers(); n != 0 {
		t.Errorf("awaitSelection left %d subscribers behind", n)
	}
}

func TestRunGetServer(t *testing.T) {
	cfg, _ := fileConfig(t, usersDoc)
	cfg.Selector.Path = "users.0.name"

	var out bytes.Buffer
	if err := runGet(context.Background(), cfg, true, &out); err != nil {
		t.Fatalf("runGet: %v", err)
	}
	if strings.TrimSpace(out.String()) != `"ann"` {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRunGetFetchError(t *testing.T) {
	cfg := config.New()
	cfg.Source.Path = filepath.Join(t.TempDir(), "missing.json")
	cfg.LogLevel = "error"

	err := runGet(context.Background(), cfg, false, io.Discard)
	if errors.Code(err) != "S121" {
		t.Errorf("expected S121, got %v", err)
	}
}

func TestRouter(t *testing.T) {
	cfg, path := fileConfig(t, usersDoc)
	a, err := newApp(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	srv := httptest.NewServer(newRouter(a, nil))
	defer srv.Close()

	get := func(p string) (*http.Response, []byte) {
		t.Helper()
		resp, err := http.Get(srv.URL + p)
		if err != nil {
			t.Fatalf("GET %s: %v", p, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, body
	}

	if resp, body := get("/healthz"); resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("healthz: %d %q", resp.StatusCode, body)
	}

	// Nothing fetched yet.
	if resp, body := get("/selection/server"); resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), "S141") {
		t.Errorf("server selection before fetch: %d %s", resp.StatusCode, body)
	}

	if err := a.refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp, body := get("/selection")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("selection: %d %s", resp.StatusCode, body)
	}
	var sel struct {
		Instance    string   `json:"instance"`
		Fingerprint string   `json:"fingerprint"`
		Pending     bool     `json:"pending"`
		Selection   []string `json:"selection"`
	}
	if err := json.Unmarshal(body, &sel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sel.Instance != a.inst.ID() || sel.Fingerprint == "" || sel.Pending {
		t.Errorf("unexpected response %+v", sel)
	}
	if len(sel.Selection) != 1 || sel.Selection[0] != "ann" {
		t.Errorf("unexpected selection %v", sel.Selection)
	}

	// Activate bob; the server selection keeps the first document.
	updated := strings.Replace(usersDoc, `"active": false`, `"active": true`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := a.refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, body = get("/selection")
	if !strings.Contains(string(body), `"bob"`) {
		t.Errorf("expected bob after update, got %s", body)
	}
	_, body = get("/selection/server")
	if strings.Contains(string(body), `"bob"`) {
		t.Errorf("server selection should reflect the first document, got %s", body)
	}

	resp, body = get("/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "selectd_computations_total") {
		t.Errorf("metrics: %d, missing selectd_computations_total", resp.StatusCode)
	}
}

func TestRouterMetricsDisabled(t *testing.T) {
	cfg, _ := fileConfig(t, usersDoc)
	cfg.Metrics.Enabled = false
	a, err := newApp(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	newRouter(a, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with metrics disabled, got %d", rec.Code)
	}
}

func TestSQLSource(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "state.db")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE snapshots (id INTEGER PRIMARY KEY, doc TEXT NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO snapshots (doc) VALUES (?)`, usersDoc); err != nil {
		t.Fatal(err)
	}

	cfg := config.New()
	cfg.Source.Kind = config.SourceSQL
	cfg.Source.DSN = dsn
	cfg.Source.Query = `SELECT doc FROM snapshots ORDER BY id DESC LIMIT 1`
	cfg.Source.VersionQuery = `SELECT MAX(id) FROM snapshots`
	cfg.Selector.Path = activeNames
	cfg.LogLevel = "error"

	var out bytes.Buffer
	if err := runGet(context.Background(), cfg, false, &out); err != nil {
		t.Fatalf("runGet: %v", err)
	}
	if !strings.Contains(out.String(), `"ann"`) {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Errorf("expected %q, got %q", version, out.String())
	}
}
