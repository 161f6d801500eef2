package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/psp-ledger/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := map[string]string{
		`{"narrative":"ok"}`:                        `{"narrative":"ok"}`,
		"```json\n{\"narrative\":\"ok\"}\n```":      `{"narrative":"ok"}`,
		"```\n{\"narrative\":\"ok\"}```":            `{"narrative":"ok"}`,
		"Here you go: {\"narrative\":\"ok\"} Done.": `{"narrative":"ok"}`,
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanModelJSON(in), in)
	}
}

func TestNarrate(t *testing.T) {
	var gotModel, gotPrompt string
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotPrompt = contents[0].Parts[0].Text
			return textResponse("```json\n{\"narrative\": \" Growth is flat. \"}\n```"), nil
		},
	}

	n := newGeminiNarrator(gen, "")
	text, err := n.Narrate(context.Background(), analytics.Snapshot{
		Range:   analytics.Range30d,
		Summary: analytics.Summary{ActiveClients: 4},
	})

	require.NoError(t, err)
	assert.Equal(t, "Growth is flat.", text)
	assert.Equal(t, DefaultModelName, gotModel)
	assert.Contains(t, gotPrompt, `"range":"30d"`)
	assert.Contains(t, gotPrompt, `"active_clients":4`)
}

func TestNarrate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		err     error
		wantErr string
	}{
		{name: "api error", err: errors.New("quota"), wantErr: "generate content"},
		{name: "empty text", resp: textResponse(""), wantErr: "empty response"},
		{name: "not json", resp: textResponse("no idea"), wantErr: "unmarshal JSON"},
		{name: "empty narrative", resp: textResponse(`{"narrative": ""}`), wantErr: "empty narrative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			_, err := newGeminiNarrator(gen, "gemini-test").Narrate(context.Background(), analytics.Snapshot{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
