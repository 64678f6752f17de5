package workflow

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/bigrise-data/bigrise/internal/model"
)

func newTestEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *Activities) {
	t.Helper()
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	return env, &Activities{}
}

func TestDailyRun_FansOutThenMatches(t *testing.T) {
	env, a := newTestEnv(t)

	env.OnActivity(a.BeginRun, mock.Anything, BeginRunInput{TargetDate: "20251110", Trigger: "workflow"}).
		Return(&RunHandle{RunID: "run-1", TargetDate: "20251110"}, nil)
	env.OnActivity(a.CollectorNames, mock.Anything).
		Return([]string{"news", "riseetf", "bigfinance"}, nil)
	env.OnActivity(a.CollectDataset, mock.Anything, CollectInput{Collector: "news", TargetDate: "20251110"}).
		Return(&CollectOutcome{Collector: "news", Status: "collected", Rows: 120}, nil)
	env.OnActivity(a.CollectDataset, mock.Anything, CollectInput{Collector: "riseetf", TargetDate: "20251110"}).
		Return(&CollectOutcome{Collector: "riseetf", Status: "collected", Rows: 900}, nil)
	env.OnActivity(a.CollectDataset, mock.Anything, CollectInput{Collector: "bigfinance", TargetDate: "20251110"}).
		Return(&CollectOutcome{Collector: "bigfinance", Status: "skipped"}, nil)
	env.OnActivity(a.CompleteCollectPhase, mock.Anything, CollectPhaseInput{
		RunID: "run-1", Collected: 2, Skipped: 1,
	}).Return(nil)
	env.OnActivity(a.MatchHoldings, mock.Anything, MatchInput{RunID: "run-1", TargetDate: "20251110"}).
		Return(&MatchOutcome{TargetDate: "20251110", Holdings: 900, Matched: 640}, nil)
	env.OnActivity(a.FinishRun, mock.Anything, mock.MatchedBy(func(in FinishRunInput) bool {
		return in.RunID == "run-1" && in.Collected == 2 &&
			len(in.Failed) == 0 && in.MatchError == "" &&
			in.Match != nil && in.Match.Matched == 640
	})).Return(&DailyRunResult{
		RunID: "run-1", TargetDate: "20251110",
		Status: string(model.RunStatusCompleted), Collected: 2,
	}, nil)

	env.ExecuteWorkflow(DailyRun, DailyRunInput{TargetDate: "20251110"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result DailyRunResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, string(model.RunStatusCompleted), result.Status)
	env.AssertExpectations(t)
}

func TestDailyRun_CollectorFailureStillMatches(t *testing.T) {
	env, a := newTestEnv(t)

	env.OnActivity(a.BeginRun, mock.Anything, mock.Anything).
		Return(&RunHandle{RunID: "run-2", TargetDate: "20251110"}, nil)
	env.OnActivity(a.CollectDataset, mock.Anything, CollectInput{Collector: "news", TargetDate: "20251110"}).
		Return(nil, eris.New("news: list section: status 503"))
	env.OnActivity(a.CollectDataset, mock.Anything, CollectInput{Collector: "riseetf", TargetDate: "20251110"}).
		Return(&CollectOutcome{Collector: "riseetf", Status: "collected", Rows: 900}, nil)
	env.OnActivity(a.CompleteCollectPhase, mock.Anything, CollectPhaseInput{
		RunID: "run-2", Collected: 1, Failed: []string{"news"},
	}).Return(nil)
	env.OnActivity(a.MatchHoldings, mock.Anything, MatchInput{RunID: "run-2", TargetDate: "20251110"}).
		Return(&MatchOutcome{Matched: 500}, nil)
	env.OnActivity(a.FinishRun, mock.Anything, mock.MatchedBy(func(in FinishRunInput) bool {
		return in.RunID == "run-2" && assert.ObjectsAreEqual([]string{"news"}, in.Failed)
	})).Return(&DailyRunResult{
		RunID: "run-2", Status: string(model.RunStatusFailed),
		Failed: []string{"news"},
	}, nil)

	// Explicit collector list, so CollectorNames is never consulted.
	env.ExecuteWorkflow(DailyRun, DailyRunInput{
		TargetDate: "20251110",
		Only:       []string{"news", "riseetf"},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result DailyRunResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, string(model.RunStatusFailed), result.Status)
	assert.Equal(t, []string{"news"}, result.Failed)
	env.AssertExpectations(t)
}

func TestDailyRun_MatchFailureClosesRun(t *testing.T) {
	env, a := newTestEnv(t)

	env.OnActivity(a.BeginRun, mock.Anything, mock.Anything).
		Return(&RunHandle{RunID: "run-3", TargetDate: "20251110"}, nil)
	env.OnActivity(a.CollectDataset, mock.Anything, mock.Anything).
		Return(&CollectOutcome{Collector: "riseetf", Status: "collected"}, nil)
	env.OnActivity(a.CompleteCollectPhase, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.MatchHoldings, mock.Anything, mock.Anything).
		Return(nil, eris.New("dataset: open holdings csv"))
	env.OnActivity(a.FinishRun, mock.Anything, mock.MatchedBy(func(in FinishRunInput) bool {
		return in.Match == nil && in.MatchError != ""
	})).Return(&DailyRunResult{RunID: "run-3", Status: string(model.RunStatusFailed)}, nil)

	env.ExecuteWorkflow(DailyRun, DailyRunInput{
		TargetDate: "20251110",
		Only:       []string{"riseetf"},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}
