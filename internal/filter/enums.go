package filter

// Industries is the closed set of industry categories the lead search
// accepts. Anything else is silently ignored by the vendor.
var Industries = []string{
	"Agriculture & Mining",
	"Business Services",
	"Computers & Electronics",
	"Consumer Services",
	"Education",
	"Energy & Utilities",
	"Financial Services",
	"Government",
	"Healthcare, Pharmaceuticals, & Biotech",
	"Manufacturing",
	"Media & Entertainment",
	"Non-Profit",
	"Other",
	"Real Estate & Construction",
	"Retail",
	"Software & Internet",
	"Telecommunications",
	"Transportation & Storage",
	"Travel, Recreation, and Leisure",
	"Wholesale & Distribution",
}

// Levels lists accepted seniority values.
var Levels = []string{
	"Entry level",
	"Mid-Senior level",
	"Director",
	"Associate",
	"Owner",
	"Executive",
	"Manager",
	"Senior",
	"Chief X Officer (CxO)",
	"Internship",
	"Vice President (VP)",
	"Unpaid / Internship",
	"Partner",
}

// Departments lists accepted department values.
var Departments = []string{
	"Engineering",
	"Finance & Administration",
	"Human Resources",
	"IT & IS",
	"Marketing",
	"Operations",
	"Sales",
	"Support",
	"Other",
}

// EmployeeCounts lists accepted company headcount buckets.
var EmployeeCounts = []string{
	"0 - 25",
	"25 - 100",
	"100 - 250",
	"250 - 1000",
	"1K - 10K",
	"10K - 50K",
	"50K - 100K",
	"> 100K",
}

// Revenues lists accepted annual revenue buckets.
var Revenues = []string{
	"$0 - 1M",
	"$1 - 10M",
	"$10 - 50M",
	"$50 - 100M",
	"$100 - 250M",
	"$250 - 500M",
	"$500M - 1B",
	"> $1B",
}

// FundingTypes lists accepted funding rounds.
var FundingTypes = []string{
	"angel",
	"seed",
	"pre_seed",
	"series_a",
	"series_b",
	"series_c",
	"series_d",
	"series_e",
	"debt_financing",
	"convertible_note",
	"equity_crowdfunding",
	"grant",
	"corporate_round",
	"private_equity",
	"post_ipo_equity",
}

// NewsEvents lists accepted company news signals.
var NewsEvents = []string{
	"launches",
	"expands_offices_to",
	"hires",
	"partners_with",
	"receives_financing",
	"recognized_as",
	"closes_offices_in",
	"acquires",
	"is_acquired_by",
	"goes_public",
	"reports_earnings",
	"announces_layoffs",
	"announces_new_product",
}
