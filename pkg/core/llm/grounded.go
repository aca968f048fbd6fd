package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GroundedGeminiProvider calls Gemini through the generative-ai SDK with
// search grounding available. It serves the free-text paths — market-context
// enrichment and the inference-assisted prompt mutation — where citations
// matter more than strict output structure.
type GroundedGeminiProvider struct {
	Model string
}

var _ Provider = (*GroundedGeminiProvider)(nil)

func (p *GroundedGeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", classify(fmt.Errorf("failed to create Gemini client: %w", err))
	}
	defer client.Close()

	modelName := p.Model
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	if val, ok := options[OptModel].(string); ok && val != "" {
		modelName = val
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	// TODO: attach the search-grounding tool once generative-ai-go ships a
	// tool type for it; the pinned SDK release has none, so OptGoogleSearch
	// currently only selects this provider's free-text path.

	fullPrompt := prompt
	if systemPrompt != "" {
		fullPrompt = fmt.Sprintf("%s\n\nTask: %s", systemPrompt, prompt)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(fullPrompt))
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}
