package filter

import "strings"

// Default returns the conservative filter used when filter generation fails:
// broad senior roles at small-to-mid companies, refined by a few keyword
// cues found in the audience text.
func Default(audience string) SearchFilter {
	a := strings.ToLower(audience)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(a, w) {
				return true
			}
		}
		return false
	}

	f := SearchFilter{}
	if has("ceo", "founder", "c-level", "chief", "cto", "cfo", "cmo") {
		f.Level = append(f.Level, "Chief X Officer (CxO)")
	}
	if has("vp", "vice president") {
		f.Level = append(f.Level, "Vice President (VP)")
	}
	if has("director") {
		f.Level = append(f.Level, "Director")
	}
	if has("engineer", "cto", "technical", "developer") {
		f.Department = append(f.Department, "Engineering")
	}
	if has("market", "cmo", "growth") {
		f.Department = append(f.Department, "Marketing")
	}
	if has("sales", "revenue") {
		f.Department = append(f.Department, "Sales")
	}
	switch {
	case has("startup", "small", "seed"):
		f.EmployeeCount = []string{"0 - 25", "25 - 100"}
	case has("enterprise", "large"):
		f.EmployeeCount = []string{"1K - 10K", "10K - 50K", "> 100K"}
	}

	if len(f.Level) == 0 {
		f.Level = []string{"Chief X Officer (CxO)", "Vice President (VP)"}
	}
	if len(f.EmployeeCount) == 0 {
		f.EmployeeCount = []string{"25 - 100", "100 - 250"}
	}
	return f
}
