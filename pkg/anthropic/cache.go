package anthropic

// CachedSystem builds a single system block with an ephemeral cache
// breakpoint. Oracle prompts carry long, static instructions (the industry
// enum, filter rules) that are identical across runs.
func CachedSystem(text string) []SystemBlock {
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: "5m"}}}
}
