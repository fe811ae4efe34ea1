package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorenmh/pushdash/internal/auth"
	"github.com/sorenmh/pushdash/internal/cache"
	"github.com/sorenmh/pushdash/internal/link"
	"github.com/sorenmh/pushdash/internal/models"
	"github.com/sorenmh/pushdash/internal/queries"
	"github.com/sorenmh/pushdash/internal/restlink"
)

var apiResponses = map[string]string{
	"/apps": `{"apps":[{"name":"prod","collaborators":{"a@x.com":{"permission":"Owner","isCurrentAccount":true}},"deployments":["Production","Staging"]}]}`,
	"/apps/prod/deployments": `{"deployments":[
		{"id":"d1","key":"k1","name":"Production","package":{"label":"v3","rollout":140,"size":3145728,"packageHash":"abcdef0123456789","isMandatory":true}},
		{"id":"d2","key":"k2","name":"Staging","package":null}
	]}`,
	"/apps/prod/deployments/Production/metrics": `{"metrics":{"v3":{"active":5,"installed":6},"v2":{"downloaded":1}}}`,
	"/apps/prod/deployments/Staging/metrics":    `{"metrics":{}}`,
	"/apps/prod/deployments/Production/history": `{"history":[{"label":"v1","description":"{\"en\":{\"description\":\"first\"}}","rollout":100}]}`,
}

type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.mu.Unlock()

	body, ok := apiResponses[r.URL.Path]
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func (f *fakeAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func setupService(t *testing.T) (*Service, *fakeAPI) {
	api := &fakeAPI{calls: map[string]int{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	session := auth.NewSession(auth.NewMemoryStore(), "")
	handler := link.Chain(
		restlink.New(srv.URL, restlink.WithTypePatch(queries.TypePatch())),
		auth.Middleware(session),
	)
	client := cache.New(handler, cache.WithStore(cache.NewStore(queries.KeyFields())))
	return New(client), api
}

func TestApps(t *testing.T) {
	svc, api := setupService(t)

	apps, err := svc.Apps(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "prod", apps[0].Name)
	assert.Equal(t, []string{"Production", "Staging"}, apps[0].Deployments)
	assert.Equal(t, models.Collaborator{Permission: "Owner", IsCurrentAccount: true}, apps[0].Collaborators["a@x.com"])

	_, err = svc.Apps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("/apps"), "second call is served from the cache")

	_, err = svc.WithPolicy(cache.NetworkOnly).Apps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, api.count("/apps"))
}

func TestDeployments(t *testing.T) {
	svc, _ := setupService(t)

	deployments, err := svc.Deployments(context.Background(), "prod")
	require.NoError(t, err)
	require.Len(t, deployments, 2)

	prod := deployments[0]
	assert.Equal(t, "Production", prod.Name)
	require.NotNil(t, prod.Package)
	assert.Equal(t, models.Percent(100), prod.Package.Rollout)
	assert.True(t, prod.Package.IsMandatory)
	require.NotNil(t, prod.Versions)
	assert.Equal(t, int64(5), prod.Versions.Metrics["v3"].Active.Int64())

	staging := deployments[1]
	assert.Nil(t, staging.Package)
	require.NotNil(t, staging.Versions)
	assert.Empty(t, staging.Versions.Metrics)
}

func TestDeploymentMetrics(t *testing.T) {
	svc, _ := setupService(t)

	metrics, err := svc.DeploymentMetrics(context.Background(), "prod", "Production")
	require.NoError(t, err)
	assert.Len(t, metrics, 2)
	assert.Equal(t, int64(6), metrics["v3"].Installed.Int64())
	assert.Nil(t, metrics["v2"].Active)
}

func TestHistory(t *testing.T) {
	svc, _ := setupService(t)

	history, err := svc.History(context.Background(), "prod", "Production")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "v1", history[0].Label)
	assert.Equal(t, `{"en":{"description":"first"}}`, history[0].Description)
}

func TestNotFound(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.History(context.Background(), "prod", "Missing")
	var statusErr *restlink.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestRequiredNames(t *testing.T) {
	svc, api := setupService(t)
	ctx := context.Background()

	_, err := svc.Deployments(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.DeploymentMetrics(ctx, "prod", " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.History(ctx, "", "Production")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, api.calls)
}
