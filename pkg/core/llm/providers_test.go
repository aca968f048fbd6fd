package llm

import (
	"context"
	"strings"
	"testing"
)

func TestProvidersRequireAPIKeys(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")

	cases := []struct {
		name     string
		provider Provider
		want     string
	}{
		{"gemini", &GeminiProvider{}, "GEMINI_API_KEY"},
		{"gemini-grounded", &GroundedGeminiProvider{}, "GEMINI_API_KEY"},
		{"deepseek", &DeepSeekProvider{}, "DEEPSEEK_API_KEY"},
	}
	for _, tc := range cases {
		_, err := tc.provider.GenerateResponse(context.Background(), "prompt", "system",
			map[string]interface{}{OptGoogleSearch: true})
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: expected missing-key error naming %s, got %v", tc.name, tc.want, err)
		}
	}
}
