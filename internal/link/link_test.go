package link

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorenmh/pushdash/internal/gql"
)

func TestChainOrder(t *testing.T) {
	var calls []string
	record := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, op *Operation) (*Result, error) {
				calls = append(calls, name+" before")
				res, err := next.Execute(ctx, op)
				calls = append(calls, name+" after")
				return res, err
			})
		}
	}

	final := HandlerFunc(func(ctx context.Context, op *Operation) (*Result, error) {
		calls = append(calls, "handler")
		return &Result{Data: map[string]any{"ok": true}}, nil
	})

	h := Chain(final, record("outer"), record("inner"))
	res, err := h.Execute(context.Background(), NewOperation(nil, "", nil))
	require.NoError(t, err)
	assert.Equal(t, true, res.Data["ok"])
	assert.Equal(t, []string{"outer before", "inner before", "handler", "inner after", "outer after"}, calls)
}

func TestOperationResponses(t *testing.T) {
	op := NewOperation(nil, "Apps", nil)
	assert.NotNil(t, op.Variables)
	assert.NotNil(t, op.Header)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op.RecordResponse(Response{Method: http.MethodGet, StatusCode: http.StatusOK})
		}()
	}
	wg.Wait()

	responses := op.Responses()
	assert.Len(t, responses, 10)

	responses[0].StatusCode = 500
	assert.Equal(t, http.StatusOK, op.Responses()[0].StatusCode, "Responses returns a copy")
}

func TestOperationDefinition(t *testing.T) {
	doc := gql.MustParse(`query Apps { dataApps @rest(path: "apps", type: "Apps") { apps } }`)

	def, err := NewOperation(doc, "Apps", nil).Definition()
	require.NoError(t, err)
	assert.Equal(t, "Apps", def.Name)

	_, err = NewOperation(doc, "Missing", nil).Definition()
	assert.ErrorIs(t, err, gql.ErrInvalidDocument)
}
