package adapter

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"regexp"
	"strings"
	"text/template"
)

//go:embed prompt/suggestion.md
var suggestionPromptRaw string

var suggestionPromptTmpl = template.Must(template.New("suggestion").Parse(suggestionPromptRaw))

const questionsPerTopic = 4

func renderSuggestionPrompt() (string, error) {
	var buf bytes.Buffer
	if err := suggestionPromptTmpl.Execute(&buf, map[string]any{
		"QuestionsPerTopic": questionsPerTopic,
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var jsonFencePattern = regexp.MustCompile("```json\\s*\\n([\\s\\S]*?)\\n\\s*```")

// extractJSONArray pulls the JSON payload out of a model answer that may wrap
// it in a markdown fence or surrounding prose
func extractJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if m := jsonFencePattern.FindStringSubmatch(text); len(m) == 2 && m[1] != "" {
		return m[1]
	}

	first := strings.Index(text, "[")
	last := strings.LastIndex(text, "]")
	if first != -1 && last > first {
		return text[first : last+1]
	}
	return text
}

// ParseSuggestedQuestions extracts example questions from a model answer.
// Both a flat array of strings and an array of {topic, questions} groups are
// accepted. Any other shape yields an empty list. The payload is cut from the
// first '[' to the last ']', so an array nested in an object is also found.
func ParseSuggestedQuestions(text string) []string {
	questions := []string{}

	var items []any
	if err := json.Unmarshal([]byte(extractJSONArray(text)), &items); err != nil {
		return questions
	}
	if len(items) == 0 {
		return questions
	}

	switch first := items[0].(type) {
	case map[string]any:
		if _, ok := first["questions"].([]any); !ok {
			return questions
		}
		for _, item := range items {
			group, ok := item.(map[string]any)
			if !ok {
				continue
			}
			list, _ := group["questions"].([]any)
			for _, q := range list {
				if s, ok := q.(string); ok {
					questions = append(questions, s)
				}
			}
		}

	case string:
		for _, item := range items {
			if s, ok := item.(string); ok {
				questions = append(questions, s)
			}
		}
	}

	return questions
}
