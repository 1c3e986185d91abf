package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/monitoring"
)

var healthNotify bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report campaign health and the alerts it triggers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), "manage", func(ctx context.Context, env *appEnv) error {
			mcfg := cfg.Monitoring
			if !healthNotify {
				mcfg.WebhookURL = ""
			}
			checker := monitoring.NewChecker(monitoring.NewCollector(env.Store), monitoring.NewAlerter(mcfg), mcfg)
			snap, alerts, err := checker.Check(ctx)
			if err != nil {
				return err
			}
			formatHealth(os.Stdout, snap, alerts)
			return nil
		})
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthNotify, "notify", false, "post alerts to monitoring.webhook_url")
	rootCmd.AddCommand(healthCmd)
}

func formatHealth(w io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Campaigns:\t%d (%d active, %d draft, %d paused, %d completed)\n", //nolint:errcheck
		snap.CampaignsTotal, snap.CampaignsActive, snap.CampaignsDraft, snap.CampaignsPaused, snap.CampaignsCompleted)
	fmt.Fprintf(tw, "Bounce rate:\t%.2f%% (%d / %d)\n", snap.BounceRate, snap.Bounced, snap.Sent)                                                 //nolint:errcheck
	fmt.Fprintf(tw, "Pending searches:\t%d (%d timed out, %d stalled)\n", snap.PendingSearches, snap.TimedOutSearches, len(snap.StalledSearches)) //nolint:errcheck
	_ = tw.Flush()

	if len(alerts) == 0 {
		fmt.Fprintln(w, "\nNo alerts.") //nolint:errcheck
		return
	}
	fmt.Fprintln(w) //nolint:errcheck
	for _, a := range alerts {
		fmt.Fprintf(w, "[%s] %s\n", a.Severity, a.Message) //nolint:errcheck
	}
}
