package oracle

import (
	"fmt"
	"strings"

	"github.com/sells-group/outreach-cli/internal/filter"
)

const copySystem = `You write short, specific B2B cold emails. Return only raw JSON: no markdown, no code fences, no commentary.`

const copyPrompt = `Analyze the product at %s and write 3 cold email variants for: %s

Each email must:
- Have a subject line under 50 characters
- Be 150-200 words
- Open with {{firstName}} and mention {{company}}
- Name a specific pain point for the audience
- Present the product as the solution using what the website says
- End with a clear call to action
- Be conversational, no generic phrases like "streamline workflows"
- Sign off with [Your Name]

Variant 1: pain point, then solution
Variant 2: outcome focused
Variant 3: question or curiosity

Return a JSON array of exactly 3 objects with "subject" and "body" string fields.`

const filterSystem = `You are a B2B lead generation expert. Return only one raw JSON object starting with { and ending with }.`

const filterPrompt = `Convert this target audience description into lead search filters.

Target audience: %q
Product URL: %s (this is the SENDER's product, not a company to search for)

Possible fields (omit any that do not apply, never emit empty arrays):
- "locations": [{"city": "", "state": "", "country": ""}] with all three keys present; use "" when unknown
- "level": one or more of %s
- "department": one or more of %s
- "employee_count": one or more of %s
- "revenue": one or more of %s
- "title": {"include": [], "exclude": []} partial-match job titles
- "industry": {"include": [], "exclude": []} using EXACT names from %s
- "funding_type": one or more of %s
- "news": one or more of %s
- "keyword_filter": {"include": [], "exclude": ""} only for specific technologies that fit nowhere else

Rules:
1. Use exact option values.
2. Map tech, software, SaaS and cybersecurity to "Software & Internet"; construction to "Real Estate & Construction"; healthcare to "Healthcare, Pharmaceuticals, & Biotech".
3. Use level alongside title: founder -> "Owner", VP -> "Vice President (VP)", C-suite -> "Chief X Officer (CxO)".
4. Be generous with employee_count ranges: startup -> ["0 - 25", "25 - 100"], enterprise -> ["1K - 10K", "10K - 50K", "50K - 100K", "> 100K"].
5. Never put industries in keyword_filter.

Example: "CTOs at Series A startups in New York with 10-50 employees" -> {"title": {"include": ["CTO"]}, "locations": [{"city": "New York", "state": "New York", "country": "United States"}], "employee_count": ["25 - 100"], "revenue": ["$10 - 50M"]}`

const icpSystem = `You are a B2B go-to-market strategist. Return only a raw JSON array.`

const icpPrompt = `Analyze the website %s: what it sells, who buys it, which problems it solves and which industry it serves.

Based only on that, suggest up to 10 ideal customer profiles. For each give:
- "name": 2-4 words
- "description": 1-2 sentences on who they are and why they would buy
- "target_audience": job titles, company type and size, suitable for a lead search
- "pain_points": 2-3 problems the product solves for them
- "company_size": "startup" (0-100 employees), "mid-market" (100-1000) or "enterprise" (1000+)`

func quoteList(vals []string) string {
	q := make([]string, len(vals))
	for i, v := range vals {
		q[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(q, ", ")
}

func buildFilterPrompt(audience, url string) string {
	return fmt.Sprintf(filterPrompt, audience, url,
		quoteList(filter.Levels),
		quoteList(filter.Departments),
		quoteList(filter.EmployeeCounts),
		quoteList(filter.Revenues),
		quoteList(filter.Industries),
		quoteList(filter.FundingTypes),
		quoteList(filter.NewsEvents),
	)
}

func buildCopyPrompt(url, audience string) string {
	return fmt.Sprintf(copyPrompt, url, audience)
}

func buildICPPrompt(url string) string {
	return fmt.Sprintf(icpPrompt, url)
}
