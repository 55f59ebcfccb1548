package analysis

import (
	"encoding/json"
	"sort"
	"strings"
)

// NotAvailable is shown for fields the model left out
const NotAvailable = "N/A"

// TagSet is the normalized form of the "type" field. The model may answer
// with a single string or a list of strings.
type TagSet []string

func (t *TagSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = normalizeTags([]string{single})
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = normalizeTags(many)
	return nil
}

// Contains reports whether tag is in the set
func (t TagSet) Contains(tag string) bool {
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}

// Intersects reports whether any tag of other is in the set
func (t TagSet) Intersects(other []string) bool {
	for _, o := range other {
		if t.Contains(o) {
			return true
		}
	}
	return false
}

// Parsed is the structured form of a model response
type Parsed struct {
	Type               TagSet `json:"type"`
	ShortDescription   string `json:"short_description"`
	Alt                string `json:"alt"`
	VerboseDescription string `json:"verbose_description"`
}

// Display returns v or NotAvailable when v is blank
func Display(v string) string {
	if strings.TrimSpace(v) == "" {
		return NotAvailable
	}
	return v
}

// TypeLabel joins the tags for display
func (p *Parsed) TypeLabel() string {
	return Display(strings.Join(p.Type, ", "))
}

// Parse decodes a raw model response. It returns false for failure
// placeholders and when the text is not a JSON object even after removing
// markdown fences; callers then show the raw text instead.
func Parse(raw string) (*Parsed, bool) {
	// provider errors may quote a JSON response body
	if IsFailure(raw) {
		return nil, false
	}
	text := stripFences(raw)

	// Some models wrap the object in prose
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var p Parsed
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return nil, false
	}
	return &p, true
}

func stripFences(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```JSON")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// NormalizeTags lowercases, trims and de-duplicates tags, sorted
func NormalizeTags(tags []string) []string {
	return normalizeTags(tags)
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
