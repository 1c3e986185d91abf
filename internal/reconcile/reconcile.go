// Package reconcile turns freshly enriched leads into a bulk-create request
// bound to one campaign.
package reconcile

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// SourceTag is recorded in every lead's custom variables.
const SourceTag = "supersearch"

// Options tunes the payload.
type Options struct {
	// SkipIfInWorkspace asks the vendor to skip leads it already knows. Leads
	// straight out of a fresh enrichment job are known-new, and setting the
	// flag together with a campaign assignment has been observed to drop
	// them, so it defaults to false.
	SkipIfInWorkspace bool
}

// Result is the reconciled payload plus bookkeeping.
type Result struct {
	Request    instantly.BulkCreateRequest
	Duplicates int
	Skipped    int
}

// Build produces the bulk-create request for campaignID. Leads are keyed by
// case-insensitive email; the first occurrence wins and leads without an
// email are skipped. Every lead carries the campaign id itself and the
// request wrapper carries it too, because some API revisions honor only one
// of the two.
func Build(leads []model.Lead, campaignID, sourceListID string, opts Options) Result {
	res := Result{Request: instantly.BulkCreateRequest{
		CampaignID:        campaignID,
		SkipIfInWorkspace: opts.SkipIfInWorkspace,
		Leads:             make([]instantly.NewLead, 0, len(leads)),
	}}

	seen := make(map[string]bool, len(leads))
	for _, l := range leads {
		key := l.Key()
		if key == "" {
			res.Skipped++
			continue
		}
		if seen[key] {
			res.Duplicates++
			continue
		}
		seen[key] = true

		listID := sourceListID
		if listID == "" {
			listID = l.SourceListID
		}
		res.Request.Leads = append(res.Request.Leads, instantly.NewLead{
			Email:      strings.TrimSpace(l.Email),
			CampaignID: campaignID,
			FirstName:  l.FirstName,
			LastName:   l.LastName,
			Company:    l.Company,
			Title:      l.Title,
			Website:    l.Website,
			LinkedIn:   l.LinkedIn,
			CustomVariables: map[string]string{
				"source":         SourceTag,
				"source_list_id": listID,
			},
		})
	}
	return res
}

// Unknown returns the leads whose email is not in known. It is used on the
// follow-up path, where part of a batch may already have been bound.
func Unknown(leads []model.Lead, known []string) []model.Lead {
	have := make(map[string]bool, len(known))
	for _, k := range known {
		have[strings.ToLower(strings.TrimSpace(k))] = true
	}
	var out []model.Lead
	for _, l := range leads {
		if !have[l.Key()] {
			out = append(out, l)
		}
	}
	return out
}

// FromVendor converts a vendor lead into the canonical lead, lifting the
// enrichment payload fields and title-casing names the vendor often returns
// in upper or lower case.
func FromVendor(l instantly.Lead, sourceListID string) model.Lead {
	title := cases.Title(language.Und)
	name := func(s string) string {
		s = strings.TrimSpace(s)
		if s == strings.ToUpper(s) || s == strings.ToLower(s) {
			return title.String(s)
		}
		return s
	}
	listID := l.ListID
	if listID == "" {
		listID = sourceListID
	}
	return model.Lead{
		Email:        strings.TrimSpace(l.Email),
		FirstName:    name(l.FirstName),
		LastName:     name(l.LastName),
		Company:      strings.TrimSpace(l.CompanyName),
		Title:        l.Payload.JobTitle,
		Website:      l.Website,
		LinkedIn:     l.Payload.LinkedIn,
		City:         l.Payload.City,
		State:        l.Payload.State,
		Country:      l.Payload.Country,
		SourceListID: listID,
		CampaignID:   l.Campaign,
	}
}

// FromVendorAll converts a slice of vendor leads.
func FromVendorAll(leads []instantly.Lead, sourceListID string) []model.Lead {
	out := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		out = append(out, FromVendor(l, sourceListID))
	}
	return out
}
