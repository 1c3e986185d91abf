package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/progress"
	"github.com/sells-group/outreach-cli/internal/provision"
)

var (
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Provision campaigns from a YAML or JSON file of requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reqs, err := loadBatchFile(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "provision")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrent
		}
		results, err := processBatch(ctx, reqs, batchLimit, concurrency, func(ctx context.Context, req provision.Request) (*model.RunSummary, error) {
			return env.Provisioner.Run(ctx, req, progress.Discard)
		})
		if err != nil {
			return err
		}
		formatBatchResults(os.Stdout, results)
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of requests to process")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "concurrent runs (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// loadBatchFile reads provisioning requests from a YAML or JSON list.
func loadBatchFile(path string) ([]provision.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: read file")
	}
	var reqs []provision.Request
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		return nil, eris.Wrap(err, "batch: parse file")
	}
	return reqs, nil
}

// runFunc is the callback signature for provisioning one request.
type runFunc func(ctx context.Context, req provision.Request) (*model.RunSummary, error)

// batchResult is the outcome of one batch entry.
type batchResult struct {
	Request provision.Request
	Summary *model.RunSummary
	Err     error
}

// processBatch applies limit, then provisions requests concurrently. A
// failing request is recorded and does not abort the batch.
func processBatch(ctx context.Context, reqs []provision.Request, limit, concurrency int, run runFunc) ([]batchResult, error) {
	if len(reqs) == 0 {
		zap.L().Info("no requests in batch")
		return nil, nil
	}

	// Apply limit
	if limit > 0 && len(reqs) > limit {
		reqs = reqs[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("requests", len(reqs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64
	results := make([]batchResult, len(reqs))

	for i, req := range reqs {
		g.Go(func() error {
			log := zap.L().With(zap.String("url", req.URL))
			results[i].Request = req

			if err := provision.ValidateRequest(req); err != nil {
				failed.Add(1)
				results[i].Err = err
				log.Error("invalid batch entry", zap.Int("index", i), zap.Error(err))
				return nil
			}

			summary, err := run(gctx, req)
			results[i].Summary = summary
			if err != nil {
				failed.Add(1)
				results[i].Err = err
				log.Error("provisioning failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("provisioning complete",
				zap.String("campaign_id", summary.CampaignID),
				zap.String("outcome", string(summary.Outcome)),
				zap.Int("leads", summary.LeadCount),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}

func formatBatchResults(w io.Writer, results []batchResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tOUTCOME\tCAMPAIGN\tLEADS\tERROR") //nolint:errcheck
	for _, r := range results {
		outcome, campaign, leads, errMsg := "-", "-", 0, ""
		if r.Summary != nil {
			outcome = string(r.Summary.Outcome)
			if r.Summary.CampaignID != "" {
				campaign = r.Summary.CampaignID
			}
			leads = r.Summary.LeadCount
		}
		if r.Err != nil {
			if r.Summary == nil {
				outcome = string(model.RunFailed)
			}
			errMsg = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.Request.URL, outcome, campaign, leads, errMsg) //nolint:errcheck
	}
	_ = tw.Flush()
}
