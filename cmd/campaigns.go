package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provision"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

var campaignsUser string

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Inspect provisioned campaigns",
	Long:  "Commands for listing and viewing campaigns and their aggregate stats.",
}

// -- campaigns list --

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), "manage", func(ctx context.Context, env *appEnv) error {
			campaigns, err := env.Store.GetCampaigns(ctx, campaignsUser)
			if err != nil {
				return eris.Wrap(err, "campaigns list")
			}
			if len(campaigns) == 0 {
				fmt.Fprintln(os.Stderr, "No campaigns found.") //nolint:errcheck
				return nil
			}
			formatCampaignsList(os.Stdout, campaigns)
			return nil
		})
	},
}

// -- campaigns show --

var campaignsShowCmd = &cobra.Command{
	Use:   "show <campaign-id>",
	Short: "Show full details of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), "manage", func(ctx context.Context, env *appEnv) error {
			c, err := env.Store.GetCampaign(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "campaigns show")
			}
			return printJSON(os.Stdout, c)
		})
	},
}

// -- campaigns stats --

var campaignsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate stats across campaigns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), "manage", func(ctx context.Context, env *appEnv) error {
			stats, err := env.Store.GetUserStats(ctx, campaignsUser)
			if err != nil {
				return eris.Wrap(err, "campaigns stats")
			}
			formatStats(os.Stdout, stats)
			return nil
		})
	},
}

// -- analytics --

var analyticsAll bool

var analyticsCmd = &cobra.Command{
	Use:   "analytics [campaign-id]",
	Short: "Refresh campaign analytics from the vendor",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !analyticsAll && len(args) == 0 {
			return eris.New("analytics: campaign id or --all is required")
		}
		return withEnv(cmd.Context(), "manage", func(ctx context.Context, env *appEnv) error {
			if analyticsAll {
				n, err := env.Manager.RefreshAll(ctx, campaignsUser)
				if err != nil {
					return eris.Wrap(err, "analytics")
				}
				fmt.Fprintf(os.Stdout, "Refreshed %d campaigns.\n", n) //nolint:errcheck
				return nil
			}
			c, err := env.Manager.RefreshAnalytics(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "analytics")
			}
			fmt.Fprintln(os.Stdout, provision.Describe(c)) //nolint:errcheck
			return nil
		})
	},
}

// -- leads --

var leadsCmd = &cobra.Command{
	Use:   "leads <campaign-id>",
	Short: "List the leads of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), "manage", func(ctx context.Context, env *appEnv) error {
			leads, err := env.Manager.Leads(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "leads")
			}
			if len(leads) == 0 {
				fmt.Fprintln(os.Stderr, "No leads found.") //nolint:errcheck
				return nil
			}
			formatLeads(os.Stdout, leads)
			return nil
		})
	},
}

// -- pause / activate / delete --

func statusCmd(use, short string, op func(*provision.Manager) func(context.Context, string) (*model.Campaign, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <campaign-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), "manage", func(ctx context.Context, env *appEnv) error {
				c, err := op(env.Manager)(ctx, args[0])
				if err != nil {
					return eris.Wrap(err, use)
				}
				fmt.Fprintln(os.Stdout, provision.Describe(c)) //nolint:errcheck
				return nil
			})
		},
	}
}

var pauseCmd = statusCmd("pause", "Pause a campaign", func(m *provision.Manager) func(context.Context, string) (*model.Campaign, error) {
	return m.Pause
})

var activateCmd = statusCmd("activate", "Activate a campaign", func(m *provision.Manager) func(context.Context, string) (*model.Campaign, error) {
	return m.Activate
})

var deleteCmd = &cobra.Command{
	Use:   "delete <campaign-id>",
	Short: "Delete a campaign vendor-side and locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), "manage", func(ctx context.Context, env *appEnv) error {
			if err := env.Manager.Delete(ctx, args[0]); err != nil {
				return eris.Wrap(err, "delete")
			}
			fmt.Fprintf(os.Stdout, "Deleted %s.\n", args[0]) //nolint:errcheck
			return nil
		})
	},
}

// -- accounts --

var accountsLimit int

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List sending accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("manage"); err != nil {
			return err
		}
		accounts, err := initVendor(cfg).ListAccounts(cmd.Context(), accountsLimit, nil)
		if err != nil {
			return eris.Wrap(err, "accounts")
		}
		formatAccounts(os.Stdout, accounts)
		return nil
	},
}

func init() {
	campaignsCmd.PersistentFlags().StringVar(&campaignsUser, "user", "", "only campaigns of this user")
	campaignsCmd.AddCommand(campaignsListCmd, campaignsShowCmd, campaignsStatsCmd)

	analyticsCmd.Flags().BoolVar(&analyticsAll, "all", false, "refresh every campaign")
	analyticsCmd.Flags().StringVar(&campaignsUser, "user", "", "with --all, only campaigns of this user")
	accountsCmd.Flags().IntVar(&accountsLimit, "limit", 100, "max accounts to list")

	rootCmd.AddCommand(campaignsCmd, analyticsCmd, leadsCmd, pauseCmd, activateCmd, deleteCmd, accountsCmd)
}

// withEnv runs fn with an initialized environment.
func withEnv(ctx context.Context, mode string, fn func(context.Context, *appEnv) error) error {
	env, err := initEnv(ctx, mode)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatCampaignsList(w io.Writer, campaigns []model.Campaign) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tLEADS\tSENT\tOPEN%\tREPLY%\tCREATED") //nolint:errcheck
	for _, c := range campaigns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.2f\t%.2f\t%s\n", //nolint:errcheck
			c.ID, truncate(c.Name, 40), c.Status, c.LeadCount, c.Sent, c.OpenRate, c.ReplyRate,
			c.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func formatStats(w io.Writer, s model.UserStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Campaigns:\t%d (%d active)\n", s.TotalCampaigns, s.ActiveCampaigns) //nolint:errcheck
	fmt.Fprintf(tw, "Sent:\t%d\n", s.TotalSent)                                          //nolint:errcheck
	fmt.Fprintf(tw, "Opened:\t%d\n", s.TotalOpened)                                      //nolint:errcheck
	fmt.Fprintf(tw, "Clicked:\t%d\n", s.TotalClicked)                                    //nolint:errcheck
	fmt.Fprintf(tw, "Replied:\t%d\n", s.TotalReplied)                                    //nolint:errcheck
	fmt.Fprintf(tw, "Avg open rate:\t%.2f%%\n", s.AvgOpenRate)                           //nolint:errcheck
	fmt.Fprintf(tw, "Avg reply rate:\t%.2f%%\n", s.AvgReplyRate)                         //nolint:errcheck
	_ = tw.Flush()
}

func formatLeads(w io.Writer, leads []model.Lead) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tTITLE\tCOMPANY\tLOCATION") //nolint:errcheck
	for _, l := range leads {
		loc := l.City
		if l.State != "" {
			if loc != "" {
				loc += ", "
			}
			loc += l.State
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\n", l.Email, l.FirstName, l.LastName, l.Title, l.Company, loc) //nolint:errcheck
	}
	_ = tw.Flush()
}

func formatAccounts(w io.Writer, accounts []instantly.Account) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tSTATUS") //nolint:errcheck
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s %s\t%d\n", a.Email, a.FirstName, a.LastName, a.Status) //nolint:errcheck
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
