package tasks

import "strings"

// InferFunc maps a task to the capability tags it requires. The default is
// a keyword scan; hosts may plug in their own.
type InferFunc func(*Task) []string

// keywordTags maps title/description keywords to capability tags.
var keywordTags = []struct {
	keyword string
	tag     string
}{
	{"test", "test"},
	{"review", "review"},
	{"doc", "docs"},
	{"readme", "docs"},
	{"refactor", "refactor"},
	{"bug", "debug"},
	{"fix", "debug"},
	{"deploy", "ops"},
	{"infra", "ops"},
	{"migrat", "ops"},
}

// InferRequirements scans a task's title and description for capability
// keywords. Tasks that match nothing require the generic "code" capability.
func InferRequirements(t *Task) []string {
	text := strings.ToLower(t.Title + " " + t.Description)

	var tags []string
	seen := make(map[string]bool)
	for _, kt := range keywordTags {
		if seen[kt.tag] {
			continue
		}
		if strings.Contains(text, kt.keyword) {
			tags = append(tags, kt.tag)
			seen[kt.tag] = true
		}
	}

	if len(tags) == 0 {
		tags = []string{"code"}
	}
	return tags
}
