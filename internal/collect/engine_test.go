package collect

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollector struct {
	name   string
	due    bool
	result *Result
	err    error
	calls  int
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) ShouldRun(time.Time, *time.Time) bool { return f.due }

func (f *fakeCollector) Collect(context.Context, Params) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type logCall struct {
	op        string
	collector string
	id        int64
	rows      int
	errMsg    string
}

type fakeLog struct {
	nextID int64
	calls  []logCall
}

func (f *fakeLog) LastCollectSuccess(_ context.Context, collector string) (*time.Time, error) {
	f.calls = append(f.calls, logCall{op: "last", collector: collector})
	return nil, nil
}

func (f *fakeLog) StartCollect(_ context.Context, collector, _ string) (int64, error) {
	f.nextID++
	f.calls = append(f.calls, logCall{op: "start", collector: collector, id: f.nextID})
	return f.nextID, nil
}

func (f *fakeLog) CompleteCollect(_ context.Context, id int64, rows int, _ string) error {
	f.calls = append(f.calls, logCall{op: "complete", id: id, rows: rows})
	return nil
}

func (f *fakeLog) FailCollect(_ context.Context, id int64, errMsg string) error {
	f.calls = append(f.calls, logCall{op: "fail", id: id, errMsg: errMsg})
	return nil
}

func newTestRegistry(collectors ...Collector) *Registry {
	r := &Registry{collectors: make(map[string]Collector)}
	for _, c := range collectors {
		r.Register(c)
	}
	return r
}

func TestEngineRun_RecordsOutcomes(t *testing.T) {
	ok := &fakeCollector{name: "ok", due: true, result: &Result{Rows: 3, OutputPath: "ok.csv"}}
	bad := &fakeCollector{name: "bad", due: true, err: eris.New("boom")}
	idle := &fakeCollector{name: "idle", due: false}

	clg := &fakeLog{}
	eng := NewEngine(clg, newTestRegistry(ok, bad, idle))

	summary, err := eng.Run(context.Background(), RunOpts{Params: Params{TargetDate: "20251110"}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Collected)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"bad"}, summary.Failures())
	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, "collected", summary.Outcomes[0].Status)
	assert.Equal(t, 3, summary.Outcomes[0].Result.Rows)
	assert.Equal(t, "failed", summary.Outcomes[1].Status)
	assert.Contains(t, summary.Outcomes[1].Error, "boom")
	assert.Equal(t, "skipped", summary.Outcomes[2].Status)

	// One start/complete pair for ok, one start/fail pair for bad, none for idle.
	var starts, completes, fails int
	for _, c := range clg.calls {
		switch c.op {
		case "start":
			starts++
		case "complete":
			completes++
		case "fail":
			fails++
		}
	}
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, completes)
	assert.Equal(t, 1, fails)
}

func TestEngineRun_ForceIgnoresSchedule(t *testing.T) {
	idle := &fakeCollector{name: "idle", due: false, result: &Result{Rows: 1}}

	eng := NewEngine(&fakeLog{}, newTestRegistry(idle))
	summary, err := eng.Run(context.Background(), RunOpts{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Collected)
	assert.Equal(t, 1, idle.calls)
}

func TestEngineRun_OnlySelectsByName(t *testing.T) {
	a := &fakeCollector{name: "a", due: true, result: &Result{}}
	b := &fakeCollector{name: "b", due: true, result: &Result{}}

	eng := NewEngine(&fakeLog{}, newTestRegistry(a, b))
	summary, err := eng.Run(context.Background(), RunOpts{Only: []string{"b"}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Collected)
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestEngineRun_UnknownCollector(t *testing.T) {
	eng := NewEngine(&fakeLog{}, newTestRegistry())
	_, err := eng.Run(context.Background(), RunOpts{Only: []string{"nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown collector "nope"`)
}

func TestDueDaily(t *testing.T) {
	now := time.Date(2025, 11, 10, 14, 0, 0, 0, time.UTC)

	assert.True(t, dueDaily(now, nil))

	yesterday := now.AddDate(0, 0, -1)
	assert.True(t, dueDaily(now, &yesterday))

	thisMorning := time.Date(2025, 11, 10, 6, 0, 0, 0, time.UTC)
	assert.False(t, dueDaily(now, &thisMorning))
}
