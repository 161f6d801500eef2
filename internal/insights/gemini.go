// Package insights asks Gemini for a short narrative over the analytics metrics.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/psp-ledger/internal/analytics"
	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// generator is the subset of *genai.Models used by the narrator.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiNarrator implements analytics.Narrator with the Gemini API.
type GeminiNarrator struct {
	models generator
	model  string
}

// NewGeminiNarrator creates a narrator backed by a Gemini API client.
func NewGeminiNarrator(ctx context.Context, apiKey, model string) (*GeminiNarrator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiNarrator: create genai client: %w", err)
	}
	return newGeminiNarrator(client.Models, model), nil
}

func newGeminiNarrator(models generator, model string) *GeminiNarrator {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiNarrator{models: models, model: model}
}

type narrative struct {
	Narrative string `json:"narrative"`
}

// Narrate returns two or three sentences of commentary on snapshot.
func (n *GeminiNarrator) Narrate(ctx context.Context, snapshot analytics.Snapshot) (string, error) {
	metrics, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("Narrate: marshal snapshot: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(string(metrics))},
			},
		},
	}

	resp, err := n.models.GenerateContent(ctx, n.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Narrate: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("Narrate: empty response from model")
	}

	var out narrative
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &out); err != nil {
		return "", fmt.Errorf("Narrate: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	text := strings.TrimSpace(out.Narrative)
	if text == "" {
		return "", fmt.Errorf("Narrate: model returned an empty narrative")
	}
	return text, nil
}

func buildPrompt(metrics string) string {
	return "You are a treasury analyst reviewing payment service provider (PSP) activity.\n\n" +
		"Task:\n" +
		"- Read the metrics below. Amounts are in Turkish lira.\n" +
		"- Write two or three sentences for the operations team.\n" +
		"- Mention the most important recommendation first.\n" +
		"- Do not invent figures that are not in the metrics.\n\n" +
		"Metrics:\n" + metrics + "\n\n" +
		"Return ONLY valid raw JSON of the form {\"narrative\": \"...\"}.\n" +
		"Do NOT wrap the response in code fences.\n"
}

// cleanModelJSON strips Markdown fences and any text around the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

var _ analytics.Narrator = (*GeminiNarrator)(nil)
