package followup

import (
	"context"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// TaskQueue is the Temporal task queue of follow-up workers.
const TaskQueue = "outreach-followup"

// WorkflowID is the id of the follow-up workflow of one job. A job has at
// most one follow-up running.
func WorkflowID(jobID string) string {
	return "followup-" + jobID
}

func activityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})
}

// acts is only used for activity method references.
var acts *Activities

// Workflow follows one enrichment job up durably.
func Workflow(ctx workflow.Context, job model.EnrichmentJob, p Params) (Result, error) {
	workflow.GetLogger(ctx).Info("followup: started", "job_id", job.ID, "campaign_id", job.CampaignID)
	return followUp(durable{ctx: activityOptions(ctx)}, job, p)
}

// SweepWorkflow starts a child follow-up for every pending job and waits
// for all of them. A failed child is logged and skipped.
func SweepWorkflow(ctx workflow.Context, limit int, p Params) ([]Result, error) {
	actx := activityOptions(ctx)
	var jobs []model.EnrichmentJob
	if err := workflow.ExecuteActivity(actx, acts.ListPending, limit).Get(actx, &jobs); err != nil {
		return nil, err
	}

	futures := make([]workflow.ChildWorkflowFuture, len(jobs))
	for i, job := range jobs {
		cctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: WorkflowID(job.ID)})
		futures[i] = workflow.ExecuteChildWorkflow(cctx, Workflow, job, p)
	}

	results := make([]Result, 0, len(jobs))
	for i, f := range futures {
		var r Result
		if err := f.Get(ctx, &r); err != nil {
			workflow.GetLogger(ctx).Warn("followup: child failed", "job_id", jobs[i].ID, "error", err)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// durable runs the steps as Temporal activities and timers.
type durable struct {
	ctx workflow.Context
}

func (d durable) check(job model.EnrichmentJob) (model.EnrichmentJob, error) {
	var out model.EnrichmentJob
	err := workflow.ExecuteActivity(d.ctx, acts.CheckJob, job).Get(d.ctx, &out)
	return out, err
}

func (d durable) record(job model.EnrichmentJob) error {
	return workflow.ExecuteActivity(d.ctx, acts.RecordJob, job).Get(d.ctx, nil)
}

func (d durable) sleep(dur time.Duration) error {
	return workflow.Sleep(d.ctx, dur)
}

func (d durable) bind(job model.EnrichmentJob) (BindOutcome, error) {
	var out BindOutcome
	err := workflow.ExecuteActivity(d.ctx, acts.BindLeads, job).Get(d.ctx, &out)
	return out, err
}

func (d durable) activate(campaignID string) (bool, error) {
	var out bool
	err := workflow.ExecuteActivity(d.ctx, acts.ActivateCampaign, campaignID).Get(d.ctx, &out)
	return out, err
}

// NewWorker creates a worker serving the follow-up workflows with a.
func NewWorker(c client.Client, a *Activities) worker.Worker {
	w := worker.New(c, TaskQueue, worker.Options{})
	w.RegisterWorkflow(Workflow)
	w.RegisterWorkflow(SweepWorkflow)
	w.RegisterActivity(a)
	return w
}

// StartSweep starts a SweepWorkflow.
func StartSweep(ctx context.Context, c client.Client, limit int, p Params) (client.WorkflowRun, error) {
	return c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "followup-sweep-" + time.Now().UTC().Format("20060102T150405"),
		TaskQueue: TaskQueue,
	}, SweepWorkflow, limit, p)
}

// StartJob starts the follow-up of a single job.
func StartJob(ctx context.Context, c client.Client, job model.EnrichmentJob, p Params) (client.WorkflowRun, error) {
	return c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(job.ID),
		TaskQueue: TaskQueue,
	}, Workflow, job, p)
}

// Dial connects to a Temporal frontend, logging through zap.
func Dial(hostPort, namespace string) (client.Client, error) {
	return client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    zapLogger{s: zap.L().Sugar().With("component", "temporal")},
	})
}

// zapLogger adapts zap to the Temporal logger interface.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, keyvals ...interface{}) { l.s.Debugw(msg, keyvals...) }
func (l zapLogger) Info(msg string, keyvals ...interface{})  { l.s.Infow(msg, keyvals...) }
func (l zapLogger) Warn(msg string, keyvals ...interface{})  { l.s.Warnw(msg, keyvals...) }
func (l zapLogger) Error(msg string, keyvals ...interface{}) { l.s.Errorw(msg, keyvals...) }
