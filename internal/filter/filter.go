// Package filter models the structured lead-search document and repairs
// generated filters so that only values the search endpoint understands are
// ever submitted.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// IncludeExclude is a pair of value lists used for titles and industries.
type IncludeExclude struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

func (ie *IncludeExclude) empty() bool {
	return ie == nil || (len(ie.Include) == 0 && len(ie.Exclude) == 0)
}

// KeywordFilter is the free-text fallback filter. The vendor expects
// Exclude as a single string, never a list.
type KeywordFilter struct {
	Include []string `json:"include,omitempty"`
	Exclude string   `json:"exclude"`
}

// UnmarshalJSON accepts either a string or a list for both fields, since
// generated filters are inconsistent about it.
func (k *KeywordFilter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Include json.RawMessage `json:"include"`
		Exclude json.RawMessage `json:"exclude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "filter: decode keyword_filter")
	}
	k.Include = decodeStrings(raw.Include)
	k.Exclude = strings.Join(decodeStrings(raw.Exclude), ", ")
	return nil
}

func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return compact(list)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return compact(strings.Split(s, ","))
	}
	return nil
}

// Location is one geographic constraint. Empty strings mean "unspecified"
// and are always serialized.
type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// SearchFilter is the structured query submitted to the lead search.
type SearchFilter struct {
	Title         *IncludeExclude `json:"title,omitempty"`
	Department    []string        `json:"department,omitempty"`
	Level         []string        `json:"level,omitempty"`
	EmployeeCount []string        `json:"employee_count,omitempty"`
	Revenue       []string        `json:"revenue,omitempty"`
	Industry      *IncludeExclude `json:"industry,omitempty"`
	Locations     []Location      `json:"locations,omitempty"`
	FundingType   []string        `json:"funding_type,omitempty"`
	News          []string        `json:"news,omitempty"`
	KeywordFilter *KeywordFilter  `json:"keyword_filter,omitempty"`
}

// IsEmpty reports whether the filter constrains nothing.
func (f SearchFilter) IsEmpty() bool {
	return f.Title.empty() &&
		len(f.Department) == 0 &&
		len(f.Level) == 0 &&
		len(f.EmployeeCount) == 0 &&
		len(f.Revenue) == 0 &&
		f.Industry.empty() &&
		len(f.Locations) == 0 &&
		len(f.FundingType) == 0 &&
		len(f.News) == 0 &&
		(f.KeywordFilter == nil || (len(f.KeywordFilter.Include) == 0 && f.KeywordFilter.Exclude == ""))
}

// Summary renders the populated fields as a short human-readable line.
func (f SearchFilter) Summary() string {
	var parts []string
	add := func(name string, vals []string) {
		if len(vals) > 0 {
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(vals, "|")))
		}
	}
	if f.Title != nil {
		add("title", f.Title.Include)
		add("title!", f.Title.Exclude)
	}
	add("department", f.Department)
	add("level", f.Level)
	add("employee_count", f.EmployeeCount)
	add("revenue", f.Revenue)
	if f.Industry != nil {
		add("industry", f.Industry.Include)
		add("industry!", f.Industry.Exclude)
	}
	if len(f.Locations) > 0 {
		parts = append(parts, fmt.Sprintf("locations=%d", len(f.Locations)))
	}
	add("funding_type", f.FundingType)
	add("news", f.News)
	if f.KeywordFilter != nil {
		add("keywords", f.KeywordFilter.Include)
	}
	if len(parts) == 0 {
		return "no filters"
	}
	return strings.Join(parts, "; ")
}

// Parse decodes a JSON filter document and sanitizes it.
func Parse(data []byte) (SearchFilter, Report, error) {
	var f SearchFilter
	if err := json.Unmarshal(data, &f); err != nil {
		return SearchFilter{}, Report{}, eris.Wrap(err, "filter: parse")
	}
	clean, report := Sanitize(f)
	return clean, report, nil
}

func compact(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
