package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorenmh/pushdash/internal/auth"
	"github.com/sorenmh/pushdash/internal/viewmodel"
)

type fakeAPI struct {
	mu      sync.Mutex
	bearers []string
	rotate  string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.bearers = append(f.bearers, r.Header.Get("Authorization"))
	if f.rotate != "" {
		w.Header().Set("Authorization", f.rotate)
		f.rotate = ""
	}
	f.mu.Unlock()

	switch r.URL.Path {
	case "/apps":
		w.Write([]byte(`{"apps":[{"name":"prod","collaborators":{"a@x.com":{"permission":"Owner"}},"deployments":["Production"]}]}`))
	case "/apps/prod/deployments":
		w.Write([]byte(`{"deployments":[
			{"id":"d1","key":"k1","name":"Production","package":{"label":"v1","rollout":140,"size":2097152,"uploadTime":1700000000000}},
			{"id":"d2","key":"k2","name":"Staging","package":null}
		]}`))
	case "/apps/prod/deployments/Production/metrics":
		w.Write([]byte(`{"metrics":{"v1":{"active":3,"installed":4},"v2":{"downloaded":1}}}`))
	case "/apps/prod/deployments/Production/history":
		w.Write([]byte(`{"history":[{"label":"v1","appVersion":"1.0.0","description":"{\"en\":{\"description\":\"fix bug\"}}","rollout":100}]}`))
	default:
		http.NotFound(w, r)
	}
}

// runCLI executes the command tree against api with an isolated config
// file and state database
func runCLI(t *testing.T, api *fakeAPI, stateDB string, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLIStreams(t, api, stateDB, args...)
	return out, err
}

// runCLIStreams is runCLI returning stdout and stderr separately
func runCLIStreams(t *testing.T, api *fakeAPI, stateDB string, args ...string) (string, string, error) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logLevel: error\n"), 0600))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{
		"--config", cfgPath,
		"--url", srv.URL,
		"--state-db", stateDB,
		"--app", "",
		"--refresh=false",
	}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	outputFormat = "table"
	return out.String(), errOut.String(), err
}

func TestAppsJSON(t *testing.T) {
	stateDB := filepath.Join(t.TempDir(), "state.db")
	out, err := runCLI(t, &fakeAPI{}, stateDB, "apps", "-o", "json")
	require.NoError(t, err)

	var rows []viewmodel.AppRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "prod", rows[0].Name.Text)
	assert.Equal(t, viewmodel.ColorSuccess, rows[0].Name.Color)
	assert.Equal(t, "A", rows[0].Collaborators[0].Avatar)
}

func TestAppsTable(t *testing.T) {
	stateDB := filepath.Join(t.TempDir(), "state.db")
	out, err := runCLI(t, &fakeAPI{}, stateDB, "apps")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "[A] a@x.com (Owner)")
}

func TestMetricsAndHistory(t *testing.T) {
	stateDB := filepath.Join(t.TempDir(), "state.db")

	out, err := runCLI(t, &fakeAPI{}, stateDB, "metrics", "prod", "Production")
	require.NoError(t, err)
	assert.Contains(t, out, "v1")
	assert.NotContains(t, out, "v2", "versions without an active counter are omitted")

	out, err = runCLI(t, &fakeAPI{}, stateDB, "history", "prod", "Production")
	require.NoError(t, err)
	assert.Contains(t, out, "EN: fix bug")
	assert.Contains(t, out, "100%")
}

func TestDeploymentsWarnsAboutMissingMetrics(t *testing.T) {
	stateDB := filepath.Join(t.TempDir(), "state.db")
	out, errOut, err := runCLIStreams(t, &fakeAPI{}, stateDB, "deployments", "prod")
	require.NoError(t, err)

	assert.Contains(t, out, "Production")
	assert.Contains(t, out, "100%", "rollout is clamped")
	assert.Contains(t, out, "2MB")
	assert.Contains(t, out, "days ago")
	assert.Contains(t, out, "v1=3")
	assert.Contains(t, errOut, "Warning: metrics unavailable for deployment Staging")
	assert.NotContains(t, errOut, "deployment Production")
}

func TestCompletionCommand(t *testing.T) {
	stateDB := filepath.Join(t.TempDir(), "state.db")
	out, err := runCLI(t, &fakeAPI{}, stateDB, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "pushdash")

	_, err = runCLI(t, &fakeAPI{}, stateDB, "completion", "tcsh")
	assert.Error(t, err)
}

func TestMissingAppName(t *testing.T) {
	stateDB := filepath.Join(t.TempDir(), "state.db")
	_, err := runCLI(t, &fakeAPI{}, stateDB, "deployments")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app name is required")
}

func TestUpstreamNotFound(t *testing.T) {
	stateDB := filepath.Join(t.TempDir(), "state.db")
	_, err := runCLI(t, &fakeAPI{}, stateDB, "history", "prod", "Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestRotatedTokenIsUsedByNextRun(t *testing.T) {
	stateDB := filepath.Join(t.TempDir(), "state.db")
	api := &fakeAPI{rotate: "newtok123"}

	_, err := runCLI(t, api, stateDB, "apps", "-o", "json")
	require.NoError(t, err)
	_, err = runCLI(t, api, stateDB, "apps", "-o", "json")
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer " + auth.DefaultFallbackToken, "Bearer newtok123"}, api.bearers)
}

func TestTokenCommands(t *testing.T) {
	stateDB := filepath.Join(t.TempDir(), "state.db")
	api := &fakeAPI{}

	_, err := runCLI(t, api, stateDB, "token", "set", "Bearer manual")
	require.NoError(t, err)

	out, err := runCLI(t, api, stateDB, "token", "show", "-o", "json")
	require.NoError(t, err)
	var info TokenInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "persisted", info.Source)
	assert.Equal(t, auth.Fingerprint("manual"), info.Fingerprint)

	_, err = runCLI(t, api, stateDB, "apps", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer manual"}, api.bearers)

	_, err = runCLI(t, api, stateDB, "token", "clear")
	require.NoError(t, err)
	out, err = runCLI(t, api, stateDB, "token", "show", "-o", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "fallback", info.Source)
}

func TestAppArg(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		n          int
		defaultApp string
		app        string
		rest       []string
		wantErr    bool
	}{
		{"explicit app", []string{"prod", "Production"}, 2, "", "prod", []string{"Production"}, false},
		{"default app", []string{"Production"}, 2, "fallback-app", "fallback-app", []string{"Production"}, false},
		{"missing app", []string{"Production"}, 2, "", "", nil, true},
		{"single explicit", []string{"prod"}, 1, "", "prod", []string{}, false},
		{"single default", nil, 1, "dflt", "dflt", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, rest, err := appArg(tt.args, tt.n, tt.defaultApp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.app, app)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logLevel: error\n"), 0600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "pushdash version dev")
}
