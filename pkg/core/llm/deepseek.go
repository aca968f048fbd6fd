package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// DeepSeekProvider calls the OpenAI-compatible DeepSeek chat endpoint.
type DeepSeekProvider struct {
	Model string
}

var _ Provider = (*DeepSeekProvider)(nil)

type deepSeekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepSeekRequest struct {
	Model          string            `json:"model"`
	Messages       []deepSeekMessage `json:"messages"`
	MaxTokens      int               `json:"max_tokens"`
	Temperature    float64           `json:"temperature"`
	Stream         bool              `json:"stream"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type deepSeekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *DeepSeekProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("DEEPSEEK_API_KEY environment variable not set")
	}

	model := p.Model
	if model == "" {
		model = "deepseek-chat"
	}
	if val, ok := options[OptModel].(string); ok && val != "" {
		model = val
	}

	reqBody := deepSeekRequest{
		Model: model,
		Messages: []deepSeekMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   4096,
		Temperature: 0.1,
	}
	reqBody.ResponseFormat.Type = "text"
	if val, ok := options[OptJSONMode].(bool); ok && val {
		reqBody.ResponseFormat.Type = "json_object"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal deepseek request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.deepseek.com/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build deepseek request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", classify(err)
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return "", &InferenceError{Kind: KindRateLimited, Err: fmt.Errorf("deepseek status 429: %s", body)}
	case res.StatusCode != http.StatusOK:
		return "", &InferenceError{Kind: KindUnavailable, Err: fmt.Errorf("deepseek status %d: %s", res.StatusCode, body)}
	}

	var response deepSeekResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &InferenceError{Kind: KindUnavailable, Err: fmt.Errorf("deepseek response unparseable: %w", err)}
	}
	if len(response.Choices) == 0 {
		return "", &InferenceError{Kind: KindUnavailable, Err: fmt.Errorf("deepseek returned no choices")}
	}
	return response.Choices[0].Message.Content, nil
}
