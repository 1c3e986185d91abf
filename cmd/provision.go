package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/progress"
	"github.com/sells-group/outreach-cli/internal/provision"
)

var (
	provURL          string
	provAudience     string
	provLeads        int
	provName         string
	provSender       string
	provEnrichmentID string
	provAccounts     []string
	provCopyFile     string
	provUser         string
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision one campaign end to end",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req := provision.Request{
			URL:            provURL,
			TargetAudience: provAudience,
			LeadCount:      provLeads,
			UserID:         provUser,
			CampaignName:   provName,
			SenderName:     provSender,
			EnrichmentID:   provEnrichmentID,
			Accounts:       provAccounts,
		}
		if provCopyFile != "" {
			variants, err := loadVariants(provCopyFile)
			if err != nil {
				return err
			}
			req.CopyVariants = variants
		}
		if err := provision.ValidateRequest(req); err != nil {
			return err
		}

		env, err := initEnv(ctx, "provision")
		if err != nil {
			return err
		}
		defer env.Close()

		em := progress.EmitterFunc(func(e progress.Event) { printEvent(os.Stderr, e) })
		summary, runErr := env.Provisioner.Run(ctx, req, em)
		if summary != nil {
			zap.L().Info("provisioning finished",
				zap.String("outcome", string(summary.Outcome)),
				zap.String("campaign_id", summary.CampaignID),
				zap.Int("leads", summary.LeadCount),
			)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "provision")
		}
		return nil
	},
}

func init() {
	provisionCmd.Flags().StringVar(&provURL, "url", "", "product website URL (required)")
	provisionCmd.Flags().StringVar(&provAudience, "audience", "", "target audience description (required)")
	provisionCmd.Flags().IntVar(&provLeads, "leads", 0, "number of leads to find (default from config)")
	provisionCmd.Flags().StringVar(&provName, "name", "", "campaign name")
	provisionCmd.Flags().StringVar(&provSender, "sender", "", "sender name substituted into the copy")
	provisionCmd.Flags().StringVar(&provEnrichmentID, "enrichment-id", "", "reuse an existing enrichment resource")
	provisionCmd.Flags().StringSliceVar(&provAccounts, "account", nil, "sending account email (repeatable)")
	provisionCmd.Flags().StringVar(&provCopyFile, "copy-file", "", "YAML or JSON file of pre-approved copy variants")
	provisionCmd.Flags().StringVar(&provUser, "user", "", "owner user id")
	_ = provisionCmd.MarkFlagRequired("url")
	_ = provisionCmd.MarkFlagRequired("audience")
	rootCmd.AddCommand(provisionCmd)
}

// loadVariants reads copy variants from a YAML or JSON file.
func loadVariants(path string) ([]model.CopyVariant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read copy file")
	}
	var variants []model.CopyVariant
	if err := yaml.Unmarshal(data, &variants); err != nil {
		return nil, eris.Wrap(err, "parse copy file")
	}
	if len(variants) == 0 {
		return nil, eris.Errorf("copy file %s has no variants", path)
	}
	return variants, nil
}

// printEvent writes one progress event as a console line.
func printEvent(w io.Writer, e progress.Event) {
	mark := "…"
	switch e.Status {
	case progress.StatusCompleted:
		mark = "✓"
	case progress.StatusWarning:
		mark = "!"
	case progress.StatusError:
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %-13s %s\n", mark, e.Step, e.Message) //nolint:errcheck
}
