package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cascade/reload"
	"cascade/resolver"
	"cascade/server"
)

const bundle = `
rules:
  button: {variant: outline, class: base}
  "button.chat": {class: ghost, size: sm}
  "button#chat.send": {variant: solid, color: primary}
  "input[type=\"text\"]": {class: text-input}
  "chip[x": {class: broken}
`

func newTestServer(t *testing.T) (*httptest.Server, *reload.Reloader) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte(bundle), 0644))

	log := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	r := reload.New(log, []string{filepath.Join(dir, "*.yaml")}, nil, resolver.NewMetrics(reg))
	require.NoError(t, r.Reload())

	ts := httptest.NewServer(server.New(log, r, reg).Handler())
	t.Cleanup(ts.Close)
	return ts, r
}

func getJSON(t *testing.T, url string, wantCode int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantCode, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

type resolved struct {
	Generation string         `json:"generation"`
	Props      map[string]any `json:"props"`
}

func resolve(t *testing.T, url string) resolved {
	t.Helper()
	var out resolved
	getJSON(t, url, http.StatusOK, &out)
	return out
}

func TestResolve(t *testing.T) {
	ts, r := newTestServer(t)

	got := resolve(t, ts.URL+"/resolve?kind=button&context=chat&id=chat.send")
	assert.Equal(t, r.Resolver().Generation(), got.Generation)
	assert.Equal(t, map[string]any{
		"variant": "solid",
		"color":   "primary",
		"size":    "sm",
		"class":   "ghost base",
	}, got.Props)

	got = resolve(t, ts.URL+"/resolve?kind=button&context=chat&id=chat.send&fallback=true")
	assert.Equal(t, map[string]any{"class": "ghost base btn-solid btn-sm btn-primary"}, got.Props)

	got = resolve(t, ts.URL+"/resolve?kind=input&attr.type=text")
	assert.Equal(t, map[string]any{"class": "text-input"}, got.Props)

	assert.Empty(t, resolve(t, ts.URL+"/resolve?kind=input").Props)
	assert.Empty(t, resolve(t, ts.URL+"/resolve?kind=nonexistent").Props)
}

func TestResolve_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	var got map[string]string
	getJSON(t, ts.URL+"/resolve?context=chat", http.StatusBadRequest, &got)
	assert.Contains(t, got["error"], "kind")

	got = nil
	getJSON(t, ts.URL+"/resolve?kind=button&fallback=maybe", http.StatusBadRequest, &got)
	assert.Contains(t, got["error"], "fallback")
}

func TestParseRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/resolve?kind=input&state=focus&attr.type=text&attr.required=&attr.=x", nil)
	got, err := server.ParseRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "input", got.Kind)
	assert.Equal(t, "focus", got.State)
	assert.False(t, got.SemanticFallback)
	assert.Equal(t, resolver.Attributes{"type": "text", "required": ""}, got.Attributes)

	got, err = server.ParseRequest(httptest.NewRequest(http.MethodGet, "/resolve?kind=button", nil))
	require.NoError(t, err)
	assert.Nil(t, got.Attributes)
}

func TestRules(t *testing.T) {
	ts, r := newTestServer(t)

	var got struct {
		Generation string            `json:"generation"`
		Files      []string          `json:"files"`
		Rules      []server.RuleInfo `json:"rules"`
	}
	getJSON(t, ts.URL+"/rules", http.StatusOK, &got)
	assert.Equal(t, r.Files(), got.Files)
	require.Len(t, got.Rules, 5)
	assert.Equal(t, "button#chat.send", got.Rules[0].Selector)
	assert.Equal(t, 21, got.Rules[0].Specificity)
	assert.Equal(t, `button[data-id="chat.send"]`, got.Rules[0].Matcher)

	var broken *server.RuleInfo
	for i := range got.Rules {
		if got.Rules[i].Selector == "chip[x" {
			broken = &got.Rules[i]
		}
	}
	require.NotNil(t, broken)
	assert.NotEmpty(t, broken.Warnings)

	var inputs struct {
		Rules []server.RuleInfo `json:"rules"`
	}
	getJSON(t, ts.URL+"/rules?kind=input", http.StatusOK, &inputs)
	require.Len(t, inputs.Rules, 1)
	assert.Equal(t, "input", inputs.Rules[0].Kind)
}

func TestStatsAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	for range 3 {
		resolve(t, ts.URL+"/resolve?kind=button")
	}

	var stats struct {
		Stats resolver.Stats `json:"stats"`
	}
	getJSON(t, ts.URL+"/stats", http.StatusOK, &stats)
	assert.Equal(t, int64(3), stats.Stats.Requests)
	assert.Equal(t, int64(2), stats.Stats.Hits)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cascade_resolver_requests_total{outcome="hit"} 2`)
	assert.Contains(t, string(body), `cascade_rules_reloads_total{result="success"} 1`)

	var health map[string]string
	getJSON(t, ts.URL+"/health", http.StatusOK, &health)
	assert.Equal(t, "ok", health["status"])
}

func TestReloadVisibleThroughServer(t *testing.T) {
	ts, r := newTestServer(t)

	before := resolve(t, ts.URL+"/resolve?kind=button")

	path := r.Files()[0]
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(bundle, "variant: outline", "variant: link", 1)), 0644))
	require.NoError(t, r.Reload())

	after := resolve(t, ts.URL+"/resolve?kind=button")
	assert.NotEqual(t, before.Generation, after.Generation)
	assert.Equal(t, "link", after.Props["variant"])
}
