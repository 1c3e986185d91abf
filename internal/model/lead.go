package model

import "strings"

// Lead is a contact record found by enrichment. Email is the unique key
// within a workspace.
type Lead struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Company      string `json:"company,omitempty"`
	Title        string `json:"title,omitempty"`
	Website      string `json:"website,omitempty"`
	LinkedIn     string `json:"linkedin,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country,omitempty"`
	SourceListID string `json:"source_list_id,omitempty"`
	CampaignID   string `json:"campaign_id,omitempty"`
}

// Key returns the normalized deduplication key.
func (l Lead) Key() string {
	return strings.ToLower(strings.TrimSpace(l.Email))
}
