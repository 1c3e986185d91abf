package instantly

import "fmt"

const (
	// DefaultTimezone is a timezone value the schedule endpoint accepts.
	DefaultTimezone = "Etc/GMT+12"

	followUpDelayDays = 3
	followUpSubject   = "Following up"
	followUpBody      = "Hi {{firstName}},\n\nJust wanted to follow up on my previous email."

	maxVariants = 3

	appBaseURL = "https://app.instantly.ai/app/campaigns/"
)

// Variant is one A/B copy variant of an email step.
type Variant struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Step is one email of a sequence. Delay is in days after the previous step.
type Step struct {
	Type     string    `json:"type"`
	Delay    int       `json:"delay"`
	Variants []Variant `json:"variants"`
}

// Sequence groups steps. The API wants a position per sequence.
type Sequence struct {
	Position int    `json:"position"`
	Steps    []Step `json:"steps"`
}

// Timing is the daily sending window, "HH:MM".
type Timing struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Schedule is one named sending schedule. Days are keyed "0" (Sunday)
// through "6".
type Schedule struct {
	Name     string          `json:"name"`
	Timing   Timing          `json:"timing"`
	Days     map[string]bool `json:"days"`
	Timezone string          `json:"timezone"`
}

// CampaignSchedule wraps the schedules of a campaign.
type CampaignSchedule struct {
	Schedules []Schedule `json:"schedules"`
}

// CampaignRequest is the body for POST /campaigns.
type CampaignRequest struct {
	Name             string           `json:"name"`
	Sequences        []Sequence       `json:"sequences"`
	CampaignSchedule CampaignSchedule `json:"campaign_schedule"`
	EmailList        []string         `json:"email_list,omitempty"`
	LeadListIDs      []string         `json:"lead_list_ids,omitempty"`
}

// CampaignOptions tunes NewCampaignRequest.
type CampaignOptions struct {
	Timezone    string
	SendFrom    string
	SendTo      string
	Accounts    []string
	LeadListIDs []string
}

// NewCampaignRequest builds a two-step campaign: the given variants (at most
// three) as the opening email, then a fixed follow-up three days later.
// Sending runs Monday to Friday inside the configured window.
func NewCampaignRequest(name string, variants []Variant, opts CampaignOptions) CampaignRequest {
	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}
	if opts.Timezone == "" {
		opts.Timezone = DefaultTimezone
	}
	if opts.SendFrom == "" {
		opts.SendFrom = "09:00"
	}
	if opts.SendTo == "" {
		opts.SendTo = "17:00"
	}

	return CampaignRequest{
		Name: name,
		Sequences: []Sequence{
			{Position: 1, Steps: []Step{{Type: "email", Delay: 0, Variants: variants}}},
			{Position: 2, Steps: []Step{{
				Type:     "email",
				Delay:    followUpDelayDays,
				Variants: []Variant{{Subject: followUpSubject, Body: followUpBody}},
			}}},
		},
		CampaignSchedule: CampaignSchedule{Schedules: []Schedule{{
			Name:   "Default",
			Timing: Timing{From: opts.SendFrom, To: opts.SendTo},
			Days: map[string]bool{
				"0": false, "1": true, "2": true, "3": true, "4": true, "5": true, "6": false,
			},
			Timezone: opts.Timezone,
		}}},
		EmailList:   opts.Accounts,
		LeadListIDs: opts.LeadListIDs,
	}
}

// CampaignURL returns the web app URL of a campaign.
func CampaignURL(id string) string {
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%s%s", appBaseURL, id)
}
