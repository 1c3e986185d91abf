package instantly

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// The API nests results under different keys depending on the endpoint and
// API revision. Everything below maps those shapes onto one of three forms:
// an id, a list of items, or a background job handle.

var (
	idKeys    = []string{"id", "resource_id", "campaign_id", "list_id"}
	itemKeys  = []string{"items", "leads", "results", "data"}
	jobKeys   = []string{"background_job_id", "job_id"}
	nestKeys  = []string{"data", "result"}
	emptyJSON = json.RawMessage("null")
)

func decodeObject(data []byte) map[string]json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return obj
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// scalarString decodes a JSON string or number as a string.
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstString(obj map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		if raw, ok := obj[k]; ok {
			if s := scalarString(raw); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractID finds the identifier of a created or fetched object.
func extractID(data []byte) string {
	obj := decodeObject(data)
	if obj == nil {
		return ""
	}
	if id := firstString(obj, idKeys); id != "" {
		return id
	}
	for _, k := range nestKeys {
		if nested := decodeObject(obj[k]); nested != nil {
			if id := firstString(nested, idKeys); id != "" {
				return id
			}
		}
	}
	return ""
}

// extractItems returns the list payload of a response. A bare array is the
// list itself; otherwise the first array found under a known key (one level
// of nesting under data/result allowed) is used. Missing lists are empty,
// not errors.
func extractItems(data []byte) []json.RawMessage {
	if isArray(data) {
		var items []json.RawMessage
		_ = json.Unmarshal(data, &items)
		return items
	}
	obj := decodeObject(data)
	if obj == nil {
		return nil
	}
	for _, k := range itemKeys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		if isArray(raw) {
			var items []json.RawMessage
			_ = json.Unmarshal(raw, &items)
			return items
		}
	}
	for _, k := range nestKeys {
		if raw, ok := obj[k]; ok && !isArray(raw) {
			if items := extractItems(raw); items != nil {
				return items
			}
		}
	}
	return nil
}

// extractJobID finds a background job handle.
func extractJobID(data []byte) string {
	obj := decodeObject(data)
	if obj == nil {
		return ""
	}
	if id := firstString(obj, jobKeys); id != "" {
		return id
	}
	if job := decodeObject(obj["job"]); job != nil {
		return firstString(job, []string{"id"})
	}
	return ""
}

// extractField returns the raw value stored under key, or null.
func extractField(data []byte, key string) json.RawMessage {
	obj := decodeObject(data)
	if raw, ok := obj[key]; ok {
		return raw
	}
	return emptyJSON
}

func decodeItems[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, eris.Wrap(err, "decode item")
		}
		out = append(out, v)
	}
	return out, nil
}

// extractAnalytics reads counters from either a single object or the first
// element of an array, accepting both short and *_count field names.
func extractAnalytics(data []byte) Analytics {
	obj := decodeObject(data)
	if obj == nil {
		if items := extractItems(data); len(items) > 0 {
			obj = decodeObject(items[0])
		}
	}
	count := func(keys ...string) int {
		n, _ := strconv.Atoi(firstString(obj, keys))
		return n
	}
	return Analytics{
		Sent:    count("sent", "emails_sent_count"),
		Opened:  count("opened", "open_count"),
		Clicked: count("clicked", "link_click_count"),
		Replied: count("replied", "reply_count"),
		Bounced: count("bounced", "bounced_count"),
	}
}
