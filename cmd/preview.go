package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/oracle"
)

var (
	previewCopyFile  string
	previewURL       string
	previewAudience  string
	previewSender    string
	previewFirstName string
	previewCompany   string
	previewPains     []string
	previewSave      string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render copy variants for a sample lead",
	Long: "Renders pre-approved copy from --copy-file, or generates copy for --url and --audience, filling placeholders for a sample lead. " +
		"--save writes the variants to a file that provision --copy-file accepts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var variants []model.CopyVariant
		switch {
		case previewCopyFile != "":
			vs, err := loadVariants(previewCopyFile)
			if err != nil {
				return err
			}
			variants = vs
		case previewURL != "" && previewAudience != "":
			o, rdb, err := initOracle(ctx, cfg)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close() //nolint:errcheck
			}
			var copyGen oracle.CopyOracle
			if o != nil {
				copyGen = o
			}
			audience := oracle.ICP{TargetAudience: previewAudience, PainPoints: previewPains}.Audience()
			vs, fallback := oracle.CopyOrFallback(ctx, copyGen, previewURL, audience)
			if fallback {
				fmt.Fprintln(os.Stderr, "Using template copy.") //nolint:errcheck
			}
			variants = vs
		default:
			return eris.New("preview: --copy-file or both --url and --audience are required")
		}

		sender := previewSender
		if sender == "" {
			sender = cfg.Provision.SenderName
		}
		variants = oracle.WithSender(variants, sender)
		if previewSave != "" {
			if err := saveVariants(previewSave, variants); err != nil {
				return err
			}
		}

		lead := oracle.SampleLead
		if previewFirstName != "" {
			lead.FirstName = previewFirstName
		}
		if previewCompany != "" {
			lead.Company = previewCompany
		}

		rendered, err := oracle.NewPreviewer().Render(variants, lead)
		if err != nil {
			return err
		}
		formatVariants(os.Stdout, rendered)
		return nil
	},
}

var icpURL string

var icpCmd = &cobra.Command{
	Use:   "icp",
	Short: "Suggest ideal customer profiles for a product",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		o, rdb, err := initOracle(ctx, cfg)
		if err != nil {
			return err
		}
		if rdb != nil {
			defer rdb.Close() //nolint:errcheck
		}

		var icpOracle oracle.ICPOracle
		if o != nil {
			icpOracle = o
		}
		icps, fallback := oracle.SuggestOrFallback(ctx, icpOracle, icpURL)
		if fallback {
			fmt.Fprintln(os.Stderr, "Using generic profiles.") //nolint:errcheck
		}
		return printJSON(os.Stdout, icps)
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewCopyFile, "copy-file", "", "YAML or JSON file of copy variants")
	previewCmd.Flags().StringVar(&previewURL, "url", "", "product website URL")
	previewCmd.Flags().StringVar(&previewAudience, "audience", "", "target audience description")
	previewCmd.Flags().StringVar(&previewSender, "sender", "", "sender name (default from config)")
	previewCmd.Flags().StringVar(&previewFirstName, "first-name", "", "sample lead first name")
	previewCmd.Flags().StringVar(&previewCompany, "company", "", "sample lead company")
	previewCmd.Flags().StringSliceVar(&previewPains, "pain-points", nil, "pain points to address in generated copy")
	previewCmd.Flags().StringVar(&previewSave, "save", "", "write the variants (before rendering) to this YAML file")

	icpCmd.Flags().StringVar(&icpURL, "url", "", "product website URL (required)")
	_ = icpCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(previewCmd, icpCmd)
}

func formatVariants(w io.Writer, variants []model.CopyVariant) {
	for i, v := range variants {
		fmt.Fprintf(w, "--- Variant %d ---\nSubject: %s\n\n%s\n\n", i+1, v.Subject, v.Body) //nolint:errcheck
	}
}

// saveVariants writes variants as YAML readable by loadVariants.
func saveVariants(path string, variants []model.CopyVariant) error {
	data, err := yaml.Marshal(variants)
	if err != nil {
		return eris.Wrap(err, "encode copy variants")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "write copy file")
	}
	zap.L().Info("copy variants saved", zap.String("path", path), zap.Int("variants", len(variants)))
	return nil
}
