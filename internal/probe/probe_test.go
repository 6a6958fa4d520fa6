package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"cdpinspect/internal/cdp"
	"cdpinspect/internal/cdp/cdptest"
	"cdpinspect/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	results map[string]*domain.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, expr string) (*domain.Result, error) {
	f.calls = append(f.calls, expr)
	if err, ok := f.errs[expr]; ok {
		return nil, err
	}
	return f.results[expr], nil
}

type recorded struct {
	name string
	err  error
}

type fakeRecorder struct{ got []recorded }

func (f *fakeRecorder) SaveEvaluation(_ context.Context, _ domain.SessionID, name, _ string, _ *domain.Result, callErr error) error {
	f.got = append(f.got, recorded{name, callErr})
	return nil
}

func TestRunContinuesPastFailures(t *testing.T) {
	ev := &fakeEvaluator{
		results: map[string]*domain.Result{
			"a": {Type: "number", Value: []byte("1")},
			"c": {Type: "object", Exception: &domain.EvaluationError{Text: "Uncaught"}},
			"d": {Type: "boolean", Value: []byte("true")},
		},
		errs: map[string]error{"b": cdp.ErrTimeout},
	}
	rec := &fakeRecorder{}
	r := &Runner{Session: "s1", Recorder: rec}

	out := r.Run(context.Background(), ev, []domain.Check{
		{Name: "A", Expression: "a"}, {Name: "B", Expression: "b"},
		{Name: "C", Expression: "c"}, {Name: "D", Expression: "d"},
	})

	require.Len(t, out, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ev.calls)
	assert.True(t, out[0].OK())
	assert.ErrorIs(t, out[1].Err, cdp.ErrTimeout)
	assert.False(t, out[2].OK())
	assert.Nil(t, out[2].Err)
	assert.True(t, out[3].OK())
	assert.Equal(t, 2, Failed(out))
	assert.Len(t, rec.got, 4)
}

func TestRunStopsWhenClosed(t *testing.T) {
	ev := &fakeEvaluator{errs: map[string]error{"a": cdp.ErrClosed}}
	out := (&Runner{}).Run(context.Background(), ev, []domain.Check{{Name: "A", Expression: "a"}, {Name: "B", Expression: "b"}})

	require.Len(t, out, 2)
	assert.Equal(t, []string{"a"}, ev.calls)
	assert.True(t, errors.Is(out[1].Err, cdp.ErrClosed))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev := &fakeEvaluator{}
	out := (&Runner{}).Run(ctx, ev, []domain.Check{{Name: "A", Expression: "a"}})

	require.Len(t, out, 1)
	assert.ErrorIs(t, out[0].Err, context.Canceled)
	assert.Empty(t, ev.calls)
}

func TestRunAgainstSession(t *testing.T) {
	srv := cdptest.New(t, nil)
	s, err := cdp.Connect(context.Background(), srv.WebSocketURL("1"), cdp.Options{EvalTimeout: time.Second})
	require.NoError(t, err)
	defer s.Close()

	out := (&Runner{}).Run(context.Background(), s, []domain.Check{
		{Name: "sum", Expression: "2 + 2"},
		{Name: "missing", Expression: "nonExistentVar.prop"},
		{Name: "ready", Expression: `"ready"`},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "4", out[0].Result.String())
	assert.Contains(t, out[1].Result.Err().Error(), "ReferenceError")
	assert.Equal(t, "ready", out[2].Result.String())
}
