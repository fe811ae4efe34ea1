package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/sorenmh/pushdash/internal/gql"
	"github.com/sorenmh/pushdash/internal/link"
)

var appsDoc = gql.MustParse(`
query Apps {
  dataApps @rest(type: "Apps", path: "apps") {
    apps {
      name
      deployments
    }
  }
}`)

var deploymentsDoc = gql.MustParse(`
query Deployments($appName: String!) {
  dataDeployments(appName: $appName) @rest(type: "Deployments", path: "apps/{args.appName}/deployments") {
    deployments {
      id
      name
    }
  }
}`)

func appsData(names ...string) map[string]any {
	apps := make([]any, len(names))
	for i, n := range names {
		apps[i] = map[string]any{"__typename": "App", "name": n, "deployments": []any{"Production"}}
	}
	return map[string]any{"dataApps": map[string]any{"__typename": "Apps", "apps": apps}}
}

type countingHandler struct {
	calls atomic.Int32
	fn    func(ctx context.Context, op *link.Operation) (*link.Result, error)
}

func (h *countingHandler) Execute(ctx context.Context, op *link.Operation) (*link.Result, error) {
	h.calls.Add(1)
	return h.fn(ctx, op)
}

func staticHandler(data map[string]any) *countingHandler {
	return &countingHandler{fn: func(ctx context.Context, op *link.Operation) (*link.Result, error) {
		return &link.Result{Data: cloneValue(data).(map[string]any)}, nil
	}}
}

func TestQueryDeduplicatesConcurrentRequests(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h := &countingHandler{fn: func(ctx context.Context, op *link.Operation) (*link.Result, error) {
		once.Do(func() { close(entered) })
		<-release
		return &link.Result{Data: appsData("prod")}, nil
	}}
	c := New(h)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*link.Result, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Query(context.Background(), Request{Document: appsDoc, Policy: NetworkOnly})
		}()
	}

	<-entered
	// let the remaining callers join the in-flight request
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), h.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, appsData("prod"), results[i].Data)
	}

	// callers own their copies
	results[0].Data["dataApps"] = nil
	assert.NotNil(t, results[1].Data["dataApps"])
}

func TestQueryCancelledCallerDoesNotFailOthers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h := &countingHandler{fn: func(ctx context.Context, op *link.Operation) (*link.Result, error) {
		once.Do(func() { close(entered) })
		select {
		case <-release:
			return &link.Result{Data: appsData("prod")}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	c := New(h)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Query(leaderCtx, Request{Document: appsDoc, Policy: NetworkOnly})
		leaderErr <- err
	}()
	<-entered

	type outcome struct {
		res *link.Result
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := c.Query(context.Background(), Request{Document: appsDoc, Policy: NetworkOnly})
		follower <- outcome{res, err}
	}()
	// let the second caller join the in-flight request
	time.Sleep(100 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, appsData("prod"), got.res.Data)
	assert.Equal(t, int32(1), h.calls.Load())

	// the shared result still reached the store
	_, err := c.Query(context.Background(), Request{Document: appsDoc, Policy: CacheOnly})
	assert.NoError(t, err)
}

func TestQueryDistinctVariablesAreNotShared(t *testing.T) {
	h := &countingHandler{fn: func(ctx context.Context, op *link.Operation) (*link.Result, error) {
		return &link.Result{Data: map[string]any{"dataDeployments": map[string]any{
			"__typename":  "Deployments",
			"deployments": []any{map[string]any{"__typename": "Deployment", "id": op.Variables["appName"], "name": "Production"}},
		}}}, nil
	}}
	c := New(h)
	ctx := context.Background()

	a, err := c.Query(ctx, Request{Document: deploymentsDoc, Variables: map[string]any{"appName": "a"}})
	require.NoError(t, err)
	b, err := c.Query(ctx, Request{Document: deploymentsDoc, Variables: map[string]any{"appName": "b"}})
	require.NoError(t, err)

	assert.Equal(t, int32(2), h.calls.Load())
	assert.NotEqual(t, a.Data, b.Data)
}

func TestFetchPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("cache-first serves from the store", func(t *testing.T) {
		h := staticHandler(appsData("prod", "staging"))
		c := New(h)

		first, err := c.Query(ctx, Request{Document: appsDoc})
		require.NoError(t, err)
		second, err := c.Query(ctx, Request{Document: appsDoc})
		require.NoError(t, err)

		assert.Equal(t, int32(1), h.calls.Load())
		assert.Equal(t, first.Data, second.Data)
	})

	t.Run("network-only always executes", func(t *testing.T) {
		h := staticHandler(appsData("prod"))
		c := New(h)

		for range 3 {
			_, err := c.Query(ctx, Request{Document: appsDoc, Policy: NetworkOnly})
			require.NoError(t, err)
		}
		assert.Equal(t, int32(3), h.calls.Load())
	})

	t.Run("cache-only misses without touching the network", func(t *testing.T) {
		h := staticHandler(appsData("prod"))
		c := New(h)

		_, err := c.Query(ctx, Request{Document: appsDoc, Policy: CacheOnly})
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Equal(t, int32(0), h.calls.Load())

		_, err = c.Query(ctx, Request{Document: appsDoc})
		require.NoError(t, err)
		res, err := c.Query(ctx, Request{Document: appsDoc, Policy: CacheOnly})
		require.NoError(t, err)
		assert.Equal(t, appsData("prod"), res.Data)
	})

	t.Run("reset forces a refetch", func(t *testing.T) {
		h := staticHandler(appsData("prod"))
		c := New(h)

		_, err := c.Query(ctx, Request{Document: appsDoc})
		require.NoError(t, err)
		c.Reset()
		_, err = c.Query(ctx, Request{Document: appsDoc})
		require.NoError(t, err)
		assert.Equal(t, int32(2), h.calls.Load())
	})
}

func TestParseFetchPolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected FetchPolicy
		wantErr  bool
	}{
		{"", CacheFirst, false},
		{"cache-first", CacheFirst, false},
		{"network-only", NetworkOnly, false},
		{"cache-only", CacheOnly, false},
		{"no-cache", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParseFetchPolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestPartialResultsAreNotCached(t *testing.T) {
	h := &countingHandler{fn: func(ctx context.Context, op *link.Operation) (*link.Result, error) {
		return &link.Result{
			Data:   appsData("prod"),
			Errors: gqlerror.List{gqlerror.Errorf("nested failure")},
		}, nil
	}}
	c := New(h)
	ctx := context.Background()

	res, err := c.Query(ctx, Request{Document: appsDoc})
	require.NoError(t, err)
	assert.Len(t, res.Errors, 1)

	_, err = c.Query(ctx, Request{Document: appsDoc})
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.calls.Load())
	assert.Equal(t, 0, c.Store().Len())
}

func TestQueryErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	c := New(&countingHandler{fn: func(ctx context.Context, op *link.Operation) (*link.Result, error) {
		return nil, boom
	}})

	_, err := c.Query(context.Background(), Request{Document: appsDoc})
	assert.ErrorIs(t, err, boom)
}

func TestQueryUnknownOperation(t *testing.T) {
	c := New(staticHandler(appsData()))
	_, err := c.Query(context.Background(), Request{Document: appsDoc, Operation: "Nope"})
	assert.Error(t, err)

	_, err = c.Query(context.Background(), Request{})
	assert.Error(t, err)
}

func TestStoreNormalizes(t *testing.T) {
	s := NewStore(map[string]string{"App": "name"})
	c := New(staticHandler(appsData("prod", "staging")), WithStore(s))

	_, err := c.Query(context.Background(), Request{Document: appsDoc})
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	prod, ok := s.Entity("App", "prod")
	require.True(t, ok)
	assert.Equal(t, "prod", prod["name"])
	assert.Equal(t, []any{"Production"}, prod["deployments"])

	_, ok = s.Entity("Apps", "")
	assert.False(t, ok, "wrapper objects without an id stay embedded")
}

func TestStoreMergesEntitiesAcrossQueries(t *testing.T) {
	s := NewStore(nil)
	doc := gql.MustParse(`
query Both {
  a @rest(type: "A", path: "a") { item { id name } }
  b @rest(type: "B", path: "b") { item { id size } }
}`)
	vars := map[string]any{}
	op, err := doc.Operation("")
	require.NoError(t, err)

	s.Write(FieldKey(op.Fields[0], vars), op.Fields[0].Selections, vars, map[string]any{
		"__typename": "A",
		"item":       map[string]any{"__typename": "Item", "id": "1", "name": "first"},
	})
	s.Write(FieldKey(op.Fields[1], vars), op.Fields[1].Selections, vars, map[string]any{
		"__typename": "B",
		"item":       map[string]any{"__typename": "Item", "id": "1", "size": float64(5)},
	})

	item, ok := s.Entity("Item", "1")
	require.True(t, ok)
	assert.Equal(t, "first", item["name"])
	assert.Equal(t, float64(5), item["size"])

	got, ok := s.Read(FieldKey(op.Fields[0], vars), op.Fields[0].Selections, vars)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"__typename": "A",
		"item":       map[string]any{"__typename": "Item", "id": "1", "name": "first"},
	}, got)
}

func TestStoreReadMissingField(t *testing.T) {
	s := NewStore(nil)
	narrow := gql.MustParse(`query N { root @rest(type: "R", path: "r") { id } }`)
	wide := gql.MustParse(`query W { root @rest(type: "R", path: "r") { id name } }`)
	vars := map[string]any{}

	n, _ := narrow.Operation("")
	w, _ := wide.Operation("")

	s.Write(FieldKey(n.Fields[0], vars), n.Fields[0].Selections, vars, map[string]any{"__typename": "R", "id": "1"})

	_, ok := s.Read(FieldKey(w.Fields[0], vars), w.Fields[0].Selections, vars)
	assert.False(t, ok, "a selection the store has never seen is a miss")

	_, ok = s.Read(FieldKey(n.Fields[0], vars), n.Fields[0].Selections, vars)
	assert.True(t, ok)
}

func TestStoreAliasedFields(t *testing.T) {
	s := NewStore(nil)
	doc := gql.MustParse(`query M($app: String!) { m(appName: $app) @rest(type: "Metrics", path: "apps/{args.appName}/metrics") { versions: metrics } }`)
	op, _ := doc.Operation("")
	vars := map[string]any{"app": "prod"}

	value := map[string]any{"__typename": "Metrics", "versions": map[string]any{"v1": map[string]any{"active": float64(1)}}}
	key := FieldKey(op.Fields[0], vars)
	assert.Equal(t, `m({"appName":"prod"})`, key)

	s.Write(key, op.Fields[0].Selections, vars, value)
	got, ok := s.Read(key, op.Fields[0].Selections, vars)
	require.True(t, ok)
	assert.Equal(t, value, got)
}

func TestStoreIdentify(t *testing.T) {
	s := NewStore(map[string]string{"App": "name"})

	key, ok := s.Identify(map[string]any{"__typename": "App", "name": "prod"})
	assert.True(t, ok)
	assert.Equal(t, "App:prod", key)

	key, ok = s.Identify(map[string]any{"__typename": "Deployment", "id": float64(7)})
	assert.True(t, ok)
	assert.Equal(t, "Deployment:7", key)

	_, ok = s.Identify(map[string]any{"name": "prod"})
	assert.False(t, ok)

	_, ok = s.Identify(map[string]any{"__typename": "Deployment", "id": nil})
	assert.False(t, ok)
}
