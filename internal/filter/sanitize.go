package filter

import (
	"strings"

	"golang.org/x/text/cases"
)

// Report describes the repairs Sanitize made.
type Report struct {
	// DemotedIndustries are industry values outside the enum that were moved
	// into the keyword filter.
	DemotedIndustries []string
	// Dropped maps a field name to the values removed because they are not
	// members of that field's enum.
	Dropped map[string][]string
}

// Changed reports whether Sanitize altered any value.
func (r Report) Changed() bool {
	return len(r.DemotedIndustries) > 0 || len(r.Dropped) > 0
}

type enum map[string]string

func newEnum(values []string) enum {
	e := make(enum, len(values))
	for _, v := range values {
		e[fold(v)] = v
	}
	return e
}

// canonical returns the enum spelling of v, matched case-insensitively.
func (e enum) canonical(v string) (string, bool) {
	c, ok := e[fold(v)]
	return c, ok
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

var (
	industryEnum   = newEnum(Industries)
	levelEnum      = newEnum(Levels)
	departmentEnum = newEnum(Departments)
	employeeEnum   = newEnum(EmployeeCounts)
	revenueEnum    = newEnum(Revenues)
	fundingEnum    = newEnum(FundingTypes)
	newsEnum       = newEnum(NewsEvents)
)

// IsIndustry reports whether v is a member of the industry enum.
func IsIndustry(v string) bool {
	_, ok := industryEnum[fold(v)]
	return ok
}

// Sanitize returns a copy of f that only contains values the search endpoint
// accepts. Unknown industries are lower-cased into the keyword filter rather
// than dropped; unknown values of other enum fields are dropped. Empty fields
// are removed. The input is not modified.
func Sanitize(f SearchFilter) (SearchFilter, Report) {
	report := Report{}
	drop := func(field string, vals []string) {
		if len(vals) == 0 {
			return
		}
		if report.Dropped == nil {
			report.Dropped = make(map[string][]string)
		}
		report.Dropped[field] = append(report.Dropped[field], vals...)
	}

	out := SearchFilter{}

	if f.Title != nil {
		t := &IncludeExclude{Include: compact(f.Title.Include), Exclude: compact(f.Title.Exclude)}
		if !t.empty() {
			out.Title = t
		}
	}

	var rejected []string
	out.Department, rejected = keepMembers(f.Department, departmentEnum)
	drop("department", rejected)
	out.Level, rejected = keepMembers(f.Level, levelEnum)
	drop("level", rejected)
	out.EmployeeCount, rejected = keepMembers(f.EmployeeCount, employeeEnum)
	drop("employee_count", rejected)
	out.Revenue, rejected = keepMembers(f.Revenue, revenueEnum)
	drop("revenue", rejected)
	out.FundingType, rejected = keepMembers(f.FundingType, fundingEnum)
	drop("funding_type", rejected)
	out.News, rejected = keepMembers(f.News, newsEnum)
	drop("news", rejected)

	var kwInclude []string
	var kwExclude []string
	if f.KeywordFilter != nil {
		kwInclude = compact(f.KeywordFilter.Include)
		if ex := strings.TrimSpace(f.KeywordFilter.Exclude); ex != "" {
			kwExclude = append(kwExclude, ex)
		}
	}

	if f.Industry != nil {
		include, badInclude := keepMembers(f.Industry.Include, industryEnum)
		exclude, badExclude := keepMembers(f.Industry.Exclude, industryEnum)
		ind := &IncludeExclude{Include: include, Exclude: exclude}
		if !ind.empty() {
			out.Industry = ind
		}
		for _, v := range badInclude {
			kwInclude = append(kwInclude, strings.ToLower(v))
		}
		for _, v := range badExclude {
			kwExclude = append(kwExclude, strings.ToLower(v))
		}
		report.DemotedIndustries = append(badInclude, badExclude...)
	}

	kwInclude = compact(kwInclude)
	if len(kwInclude) > 0 || len(kwExclude) > 0 {
		out.KeywordFilter = &KeywordFilter{
			Include: kwInclude,
			Exclude: strings.Join(compact(kwExclude), ", "),
		}
	}

	for _, loc := range f.Locations {
		loc = Location{
			City:    strings.TrimSpace(loc.City),
			State:   strings.TrimSpace(loc.State),
			Country: strings.TrimSpace(loc.Country),
		}
		if loc != (Location{}) {
			out.Locations = append(out.Locations, loc)
		}
	}

	return out, report
}

// keepMembers splits vals into canonical enum members and rejected values.
func keepMembers(vals []string, e enum) (kept, rejected []string) {
	seen := make(map[string]bool, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) == "" {
			continue
		}
		c, ok := e.canonical(v)
		if !ok {
			rejected = append(rejected, strings.TrimSpace(v))
			continue
		}
		if !seen[c] {
			seen[c] = true
			kept = append(kept, c)
		}
	}
	return kept, rejected
}
