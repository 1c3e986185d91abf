package followup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestWorkflow_RealActivities(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	s := newTestStore(t)
	v := newFakeVendor(3)
	v.addList("list-1", 2)
	job := seedJob(t, s, "camp-1", "list-1", 2)
	env.RegisterActivity(&Activities{Vendor: v, Store: s})

	env.ExecuteWorkflow(Workflow, job, Params{Interval: time.Minute, MaxChecks: 5})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res Result
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, 3, res.Checks)
	assert.Equal(t, model.EnrichmentComplete, res.State)
	assert.Equal(t, 2, res.Bound)
	assert.True(t, res.Activated)
	assert.Equal(t, 2, v.boundTo("camp-1"))
}

func TestWorkflow_TimesOutWithMockedActivities(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&Activities{})

	job := model.EnrichmentJob{ID: "enr-1", CampaignID: "camp-1", ResourceID: "list-1", Requested: 3, State: model.EnrichmentPending}
	pending := job
	pending.LastCount = 1
	pending.State = model.EnrichmentPartial

	env.OnActivity(acts.CheckJob, mock.Anything, mock.Anything).Return(pending, nil).Times(4)
	env.OnActivity(acts.RecordJob, mock.Anything, mock.MatchedBy(func(j model.EnrichmentJob) bool {
		return j.State == model.EnrichmentTimedOut
	})).Return(nil).Once()
	env.OnActivity(acts.BindLeads, mock.Anything, mock.Anything).Return(BindOutcome{Bound: 1, Verified: true}, nil).Once()
	env.OnActivity(acts.ActivateCampaign, mock.Anything, "camp-1").Return(true, nil).Once()

	env.ExecuteWorkflow(Workflow, job, Params{Interval: time.Minute, MaxChecks: 4})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res Result
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, 4, res.Checks)
	assert.Equal(t, model.EnrichmentTimedOut, res.State)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 1, res.Bound)
	assert.True(t, res.Activated)
	env.AssertExpectations(t)
}

func TestWorkflow_NothingFound(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&Activities{})

	job := model.EnrichmentJob{ID: "enr-1", CampaignID: "camp-1", Requested: 3, State: model.EnrichmentPending}
	env.OnActivity(acts.CheckJob, mock.Anything, mock.Anything).Return(job, nil)
	env.OnActivity(acts.RecordJob, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(Workflow, job, Params{Interval: time.Minute, MaxChecks: 2})
	require.NoError(t, env.GetWorkflowError())

	var res Result
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, model.EnrichmentTimedOut, res.State)
	assert.Zero(t, res.Bound)
	assert.False(t, res.Activated)
}

func TestSweepWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&Activities{})
	env.RegisterWorkflow(Workflow)

	jobs := []model.EnrichmentJob{
		{ID: "enr-a", CampaignID: "camp-a", Requested: 1},
		{ID: "enr-b", CampaignID: "camp-b", Requested: 1},
	}
	env.OnActivity(acts.ListPending, mock.Anything, 10).Return(jobs, nil)
	env.OnActivity(acts.CheckJob, mock.Anything, mock.Anything).Return(
		func(_ context.Context, j model.EnrichmentJob) (model.EnrichmentJob, error) {
			j.State = model.EnrichmentComplete
			return j, nil
		})

	env.ExecuteWorkflow(SweepWorkflow, 10, Params{MaxChecks: 1})
	require.NoError(t, env.GetWorkflowError())

	var results []Result
	require.NoError(t, env.GetWorkflowResult(&results))
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, model.EnrichmentComplete, r.State)
		assert.Zero(t, r.Bound)
	}
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "followup-enr-1", WorkflowID("enr-1"))
}
