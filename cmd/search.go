package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/provision"
)

var (
	searchURL      string
	searchAudience string
	searchCount    int
	searchUser     string
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Start a lead search without a campaign",
	Long: "Builds search filters for --audience and starts a lead search into a new list. " +
		"Review it with 'search preview', then provision with --enrichment-id.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), "provision", func(ctx context.Context, env *appEnv) error {
			start, err := env.Provisioner.Search(ctx, provision.SearchRequest{
				URL:            searchURL,
				TargetAudience: searchAudience,
				LeadCount:      searchCount,
				UserID:         searchUser,
			})
			if err != nil {
				return err
			}
			formatSearchStart(os.Stdout, start)
			return nil
		})
	},
}

var searchPreviewCmd = &cobra.Command{
	Use:   "preview <enrichment-id>",
	Short: "Show the leads a search has found so far",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), "manage", func(ctx context.Context, env *appEnv) error {
			preview, err := provision.PreviewLeads(ctx, env.Vendor, args[0], searchLimit)
			if err != nil {
				return err
			}
			formatLeadPreview(os.Stdout, preview)
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchURL, "url", "", "product website URL")
	searchCmd.Flags().StringVar(&searchAudience, "audience", "", "target audience description (required)")
	searchCmd.Flags().IntVar(&searchCount, "count", 0, "leads to search for (default from config)")
	searchCmd.Flags().StringVar(&searchUser, "user", "", "user id to record the search for")
	_ = searchCmd.MarkFlagRequired("audience")

	searchPreviewCmd.Flags().IntVar(&searchLimit, "limit", provision.DefaultPreviewLimit, "maximum leads to show")

	searchCmd.AddCommand(searchPreviewCmd)
	rootCmd.AddCommand(searchCmd)
}

func formatSearchStart(w io.Writer, s *provision.SearchStart) {
	fmt.Fprintf(w, "Enrichment ID:\t%s\n", s.EnrichmentID) //nolint:errcheck
	fmt.Fprintf(w, "List:\t\t%s\n", s.ListName)            //nolint:errcheck
	fmt.Fprintf(w, "Filters:\t%s\n", s.Filters.Summary())  //nolint:errcheck
	if s.FiltersDefaulted {
		fmt.Fprintln(w, "Filter generation failed; the default search was used.") //nolint:errcheck
	}
	if s.FiltersDropped {
		fmt.Fprintln(w, "Warning: the vendor reported no effective filters; check the search before sending.") //nolint:errcheck
	}
}

func formatLeadPreview(w io.Writer, p *provision.LeadPreview) {
	switch {
	case p.Ready == 0 && p.Enriching == 0:
		fmt.Fprintln(w, "No leads found yet; try again shortly.") //nolint:errcheck
		return
	case p.Ready == 0:
		fmt.Fprintf(w, "%d leads found, still waiting for email verification.\n", p.Enriching) //nolint:errcheck
		return
	}
	formatLeads(w, p.Leads)
	fmt.Fprintf(w, "\n%d ready", p.Ready) //nolint:errcheck
	if p.Enriching > 0 {
		fmt.Fprintf(w, ", %d still enriching", p.Enriching) //nolint:errcheck
	}
	fmt.Fprintln(w) //nolint:errcheck
}
