// Package ai turns meeting notes and images into formatted minutes and tags.
package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hpungsan/acta/internal/meeting"
)

// Result is the output of one generation.
type Result struct {
	Minutes string   `json:"minutes"`
	Tags    []string `json:"tags"`
}

// Generator produces minutes for a meeting. Implementations return coded
// errors: CONFIGURATION for a missing credential, GENERATION_FAILED for
// transport or service errors, CANCELLED when ctx is cancelled.
type Generator interface {
	GenerateMinutes(ctx context.Context, notes string, images []meeting.Image) (*Result, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, notes string, images []meeting.Image) (*Result, error)

func (f GeneratorFunc) GenerateMinutes(ctx context.Context, notes string, images []meeting.Image) (*Result, error) {
	return f(ctx, notes, images)
}

// CredentialSource yields the API key. It is consulted once per generation
// so a key configured after startup takes effect without a restart.
type CredentialSource interface {
	APIKey() (string, error)
}

// StaticKey is a fixed credential.
type StaticKey string

func (k StaticKey) APIKey() (string, error) { return string(k), nil }

// BuildPrompt returns the instruction text sent ahead of the images.
func BuildPrompt(notes string) string {
	var b strings.Builder
	b.WriteString("You are an expert Meeting Secretary.\n")
	b.WriteString("Analyze the following meeting notes and attached visual context (images/slides/whiteboards).\n\n")
	b.WriteString("Generate a formal Meeting Minutes document in Markdown format AND a list of relevant tags.\n\n")
	b.WriteString("Return the result strictly as a JSON object with the following structure:\n")
	b.WriteString("{\n  \"minutes\": \"# Meeting Minutes\\n\\n...\",\n  \"tags\": [\"tag1\", \"tag2\", \"tag3\"]\n}\n\n")
	b.WriteString("Structure for \"minutes\":\n")
	b.WriteString("1. **Summary**: Brief executive summary.\n")
	b.WriteString("2. **Key Decisions**: Bullet points of decisions made.\n")
	b.WriteString("3. **Action Items**: Checklist of tasks (Who, What, When).\n")
	b.WriteString("4. **Visual References**: If images were provided, explain what they show and how they relate to the decisions.\n\n")
	b.WriteString("Meeting Notes:\n")
	b.WriteString(notes)
	b.WriteString("\n")
	return b.String()
}

// ParseResponse extracts {minutes, tags} from model output. Code fences are
// stripped first. When the text is not a JSON object with a string
// "minutes" field, the raw text becomes the minutes with no tags and ok is
// false. Tags are normalized (trimmed, de-duplicated, empties dropped).
func ParseResponse(text string) (res Result, ok bool) {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return Result{Minutes: text, Tags: []string{}}, false
	}

	rawMinutes, found := fields["minutes"]
	if !found {
		return Result{Minutes: text, Tags: []string{}}, false
	}
	var minutes string
	if err := json.Unmarshal(rawMinutes, &minutes); err != nil {
		return Result{Minutes: text, Tags: []string{}}, false
	}

	// Non-string entries are ignored rather than failing the whole result.
	var rawTags []any
	if t, found := fields["tags"]; found {
		_ = json.Unmarshal(t, &rawTags)
	}
	tags := make([]string, 0, len(rawTags))
	for _, t := range rawTags {
		if s, isString := t.(string); isString {
			tags = append(tags, s)
		}
	}

	return Result{Minutes: minutes, Tags: meeting.NormalizeTags(tags)}, true
}
