package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/dago-cel/internal/config"
	"github.com/aescanero/dago-cel/internal/eval/cel"
	"github.com/aescanero/dago-cel/internal/rules"
	"github.com/aescanero/dago-cel/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fakeStream struct {
	mu       sync.Mutex
	pending  []redis.XMessage
	added    map[string][]string
	acked    []string
	groupErr error
}

func newFakeStream(messages ...redis.XMessage) *fakeStream {
	return &fakeStream{pending: messages, added: map[string][]string{}}
}

func (f *fakeStream) XGroupCreateMkStream(_ context.Context, _, _, _ string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", f.groupErr)
}

func (f *fakeStream) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	f.mu.Lock()
	if len(f.pending) > 0 {
		msg := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()
		return redis.NewXStreamSliceCmdResult([]redis.XStream{{
			Stream:   a.Streams[0],
			Messages: []redis.XMessage{msg},
		}}, nil)
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return redis.NewXStreamSliceCmdResult(nil, ctx.Err())
	case <-time.After(a.Block):
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := a.Values.(map[string]interface{})
	f.added[a.Stream] = append(f.added[a.Stream], values["data"].(string))
	return redis.NewStringResult("1-0", nil)
}

func (f *fakeStream) XAck(_ context.Context, _, _ string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStream) ackedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acked)
}

func (f *fakeStream) results(t *testing.T, stream string) []Result {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Result
	for _, data := range f.added[stream] {
		var r Result
		require.NoError(t, json.Unmarshal([]byte(data), &r))
		out = append(out, r)
	}
	return out
}

type fakeContexts map[string]map[string]interface{}

func (f fakeContexts) Load(_ context.Context, name string) (map[string]interface{}, error) {
	vars, ok := f[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		WorkerID:      "test-worker",
		StreamKey:     "cel.eval",
		ConsumerGroup: "cel-workers",
		ResultStream:  "cel.results",
		BlockTime:     10 * time.Millisecond,
		EvalMode:      "python",
	}
}

func newTestWorker(t *testing.T, stream Stream, contexts ContextLoader) *Worker {
	t.Helper()
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)
	logger := zap.NewNop()
	return NewWorker(testConfig(), stream, evaluator, rules.NewRouter(evaluator, logger), contexts, logger)
}

func message(id, data string) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]interface{}{"data": data}}
}

func TestParseRequest(t *testing.T) {
	t.Run("expression with context", func(t *testing.T) {
		req, err := ParseRequest(map[string]interface{}{
			"data": `{"id": "r1", "expression": "x + y", "context": {"x": 1, "y": 2.0}, "mode": "strict"}`,
		})
		require.NoError(t, err)
		assert.Equal(t, "r1", req.ID)
		assert.Equal(t, "x + y", req.Expression)
		assert.Equal(t, "strict", req.Mode)
		assert.Equal(t, map[string]interface{}{"x": int64(1), "y": 2.0}, req.Context)
	})

	t.Run("rules", func(t *testing.T) {
		req, err := ParseRequest(map[string]interface{}{
			"data": `{"rules": {"rules": [{"condition": "true", "target": "a"}], "fallback": "b"}}`,
		})
		require.NoError(t, err)
		require.NotNil(t, req.Rules)
		assert.Equal(t, "b", req.Rules.Fallback)
		assert.NotEmpty(t, req.ID)
	})

	for name, values := range map[string]map[string]interface{}{
		"missing data":    {},
		"not json":        {"data": "{"},
		"no expression":   {"data": `{"id": "x"}`},
		"both":            {"data": `{"expression": "1", "rules": {"fallback": "a"}}`},
		"context array":   {"data": `{"expression": "1", "context": [1]}`},
		"data not string": {"data": 42},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRequest(values)
			assert.Error(t, err)
			assert.Equal(t, "InvalidArgument", errorInfo(err).Kind)
		})
	}
}

func TestWorker_Handle(t *testing.T) {
	contexts := fakeContexts{
		"order": {"price": 2.5, "quantity": int64(4), "tier": "gold"},
	}
	w := newTestWorker(t, newFakeStream(), contexts)
	ctx := context.Background()

	t.Run("expression", func(t *testing.T) {
		r := w.Handle(ctx, &Request{ID: "1", Expression: "x * 2", Context: map[string]interface{}{"x": int64(21)}})
		require.Nil(t, r.Error)
		assert.Equal(t, int64(42), r.Result)
		assert.Equal(t, "int", r.Type)
		assert.Equal(t, "python", r.Mode)
		assert.Equal(t, "test-worker", r.WorkerID)
	})

	t.Run("promotion", func(t *testing.T) {
		r := w.Handle(ctx, &Request{ID: "2", Expression: "1 + 2.5"})
		require.Nil(t, r.Error)
		assert.Equal(t, 3.5, r.Result)
	})

	t.Run("strict mode override", func(t *testing.T) {
		r := w.Handle(ctx, &Request{ID: "3", Expression: "1 + 2.5", Mode: "strict"})
		require.NotNil(t, r.Error)
		assert.Equal(t, "TypeMismatch", r.Error.Kind)
		assert.Equal(t, "strict", r.Mode)
	})

	t.Run("stored context with inline override", func(t *testing.T) {
		r := w.Handle(ctx, &Request{
			ID:         "4",
			Expression: "price * quantity",
			ContextKey: "order",
			Context:    map[string]interface{}{"quantity": int64(2)},
		})
		require.Nil(t, r.Error)
		assert.Equal(t, 5.0, r.Result)
	})

	t.Run("missing stored context", func(t *testing.T) {
		r := w.Handle(ctx, &Request{ID: "5", Expression: "1", ContextKey: "nope"})
		require.NotNil(t, r.Error)
		assert.Equal(t, "RequestError", r.Error.Kind)
		assert.Contains(t, r.Error.Message, "context not found")
	})

	t.Run("rules", func(t *testing.T) {
		set := &rules.RuleSet{
			Rules: []rules.Rule{
				{Name: "cheap", Condition: "price < 1.0", Target: "auto"},
				{Name: "gold", Condition: "tier == 'gold'", Target: "vip-{{tier}}"},
			},
			Fallback: "review",
		}
		r := w.Handle(ctx, &Request{ID: "6", Rules: set, ContextKey: "order"})
		require.Nil(t, r.Error)
		require.NotNil(t, r.Decision)
		assert.Equal(t, "vip-gold", r.Decision.Target)
		assert.Equal(t, 1, r.Decision.RuleIndex)
	})

	t.Run("undefined variable", func(t *testing.T) {
		r := w.Handle(ctx, &Request{ID: "7", Expression: "missing + 1"})
		require.NotNil(t, r.Error)
		assert.Equal(t, "UndefinedReference", r.Error.Kind)
	})
}

func TestWorker_NoContextStore(t *testing.T) {
	w := newTestWorker(t, newFakeStream(), nil)
	r := w.Handle(context.Background(), &Request{ID: "1", Expression: "1", ContextKey: "x"})
	require.NotNil(t, r.Error)
	assert.Contains(t, r.Error.Message, "no context store")
}

func TestWorker_ProcessesStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := newFakeStream(
		message("1-0", `{"id": "ok", "expression": "1 + 1"}`),
		message("2-0", `{"id": "bad", "expression": "1 +"}`),
		message("3-0", `not json`),
	)
	w := newTestWorker(t, stream, nil)

	require.NoError(t, w.Start())
	assert.Eventually(t, func() bool { return stream.ackedCount() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	assert.Equal(t, []string{"1-0", "2-0", "3-0"}, stream.acked)

	results := stream.results(t, "cel.results")
	require.Len(t, results, 2)
	assert.Equal(t, "ok", results[0].ID)
	assert.Equal(t, float64(2), results[0].Result)
	assert.Equal(t, "bad", results[1].ID)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, "ParseFailure", results[1].Error.Kind)

	errs := stream.results(t, "cel.results.errors")
	require.Len(t, errs, 2)
	assert.Equal(t, "bad", errs[0].ID)
	assert.Equal(t, "3-0", errs[1].ID)
	assert.Equal(t, "InvalidArgument", errs[1].Error.Kind)
}

func TestWorker_ConsumerGroup(t *testing.T) {
	t.Run("existing group", func(t *testing.T) {
		stream := newFakeStream()
		stream.groupErr = errors.New("BUSYGROUP Consumer Group name already exists")
		w := newTestWorker(t, stream, nil)
		require.NoError(t, w.Start())
		require.NoError(t, w.Stop())
	})

	t.Run("failure", func(t *testing.T) {
		stream := newFakeStream()
		stream.groupErr = errors.New("NOAUTH Authentication required")
		w := newTestWorker(t, stream, nil)
		assert.ErrorContains(t, w.Start(), "NOAUTH")
	})
}
