package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/followup"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

var (
	followupLimit    int
	followupTemporal bool
	followupJob      string
)

var followupCmd = &cobra.Command{
	Use:   "followup",
	Short: "Bind leads of lead searches that outlived their run",
	Long:  "Re-checks pending lead searches, binds leads that have arrived and activates the campaign. Runs inline by default, or as a Temporal workflow with --temporal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if followupTemporal {
			c, err := followup.Dial(cfg.Followup.TemporalHost, cfg.Followup.TemporalNamespace)
			if err != nil {
				return eris.Wrap(err, "dial temporal")
			}
			defer c.Close()

			var results []followup.Result
			if followupJob != "" {
				job, err := pendingJob(ctx, followupJob)
				if err != nil {
					return err
				}
				run, err := followup.StartJob(ctx, c, job, followupParams())
				if err != nil {
					return eris.Wrap(err, "start followup workflow")
				}
				zap.L().Info("followup workflow started", zap.String("workflow_id", run.GetID()))
				var res followup.Result
				if err := run.Get(ctx, &res); err != nil {
					return eris.Wrap(err, "followup workflow")
				}
				results = append(results, res)
			} else {
				run, err := followup.StartSweep(ctx, c, followupLimit, followupParams())
				if err != nil {
					return eris.Wrap(err, "start followup workflow")
				}
				zap.L().Info("followup workflow started",
					zap.String("workflow_id", run.GetID()),
					zap.String("run_id", run.GetRunID()),
				)
				if err := run.Get(ctx, &results); err != nil {
					return eris.Wrap(err, "followup workflow")
				}
			}
			formatFollowupResults(os.Stdout, results)
			return nil
		}

		if followupJob != "" {
			return withEnv(ctx, "followup", func(ctx context.Context, env *appEnv) error {
				job, err := findPending(ctx, env.Store, followupJob)
				if err != nil {
					return err
				}
				acts := &followup.Activities{Vendor: env.Vendor, Store: env.Store, Bind: bindOptions(cfg)}
				res, err := followup.Run(ctx, acts, job, followupParams(), nil)
				if err != nil {
					return err
				}
				formatFollowupResults(os.Stdout, []followup.Result{res})
				return nil
			})
		}

		env, err := initEnv(ctx, "followup")
		if err != nil {
			return err
		}
		defer env.Close()

		acts := &followup.Activities{Vendor: env.Vendor, Store: env.Store, Bind: bindOptions(cfg)}
		results, err := followup.Sweep(ctx, acts, followupParams(), followupLimit, cfg.Followup.Concurrency, nil)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(os.Stderr, "No pending lead searches.") //nolint:errcheck
			return nil
		}
		formatFollowupResults(os.Stdout, results)
		return nil
	},
}

var followupWorkerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal worker for followup workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "followup")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := followup.Dial(cfg.Followup.TemporalHost, cfg.Followup.TemporalNamespace)
		if err != nil {
			return eris.Wrap(err, "dial temporal")
		}
		defer c.Close()

		w := followup.NewWorker(c, &followup.Activities{Vendor: env.Vendor, Store: env.Store, Bind: bindOptions(cfg)})
		zap.L().Info("followup worker started", zap.String("task_queue", followup.TaskQueue))

		interrupt := make(chan any)
		go func() {
			<-ctx.Done()
			close(interrupt)
		}()
		if err := w.Run(interrupt); err != nil {
			return eris.Wrap(err, "followup worker")
		}
		return nil
	},
}

func init() {
	followupCmd.Flags().IntVar(&followupLimit, "limit", 100, "max number of pending lead searches to follow up")
	followupCmd.Flags().BoolVar(&followupTemporal, "temporal", false, "run as a Temporal workflow")
	followupCmd.Flags().StringVar(&followupJob, "job", "", "follow up only this lead search id")
	followupCmd.AddCommand(followupWorkerCmd)
	rootCmd.AddCommand(followupCmd)
}

// pendingJob loads one pending lead search for a Temporal start.
func pendingJob(ctx context.Context, id string) (model.EnrichmentJob, error) {
	st, err := initStore(ctx)
	if err != nil {
		return model.EnrichmentJob{}, err
	}
	defer st.Close() //nolint:errcheck
	return findPending(ctx, st, id)
}

func findPending(ctx context.Context, st store.Store, id string) (model.EnrichmentJob, error) {
	jobs, err := st.PendingEnrichmentJobs(ctx, 10000)
	if err != nil {
		return model.EnrichmentJob{}, eris.Wrap(err, "list pending lead searches")
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return model.EnrichmentJob{}, eris.Errorf("no pending lead search %s", id)
}

func followupParams() followup.Params {
	return followup.Params{
		Interval:  config.Secs(cfg.Followup.IntervalSecs),
		MaxChecks: cfg.Followup.MaxChecks,
	}
}

func formatFollowupResults(w io.Writer, results []followup.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tCAMPAIGN\tSTATE\tLEADS\tBOUND\tACTIVATED") //nolint:errcheck
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\n", r.JobID, r.CampaignID, r.State, r.Count, r.Bound, r.Activated) //nolint:errcheck
	}
	_ = tw.Flush()
}
