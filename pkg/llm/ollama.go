package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OllamaGenerator is a Generator backed by Ollama's HTTP generate API.
type OllamaGenerator struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaGenerator creates a generator client for the given model.
func NewOllamaGenerator(baseURL, model string) *OllamaGenerator {
	return &OllamaGenerator{baseURL: baseURL, model: model, client: &http.Client{}}
}

type ollamaGenerateReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResp struct {
	Response string `json:"response"`
}

// Generate implements Generator.
func (g *OllamaGenerator) Generate(ctx context.Context, query string, contexts []Context) (string, error) {
	body, _ := json.Marshal(ollamaGenerateReq{
		Model:  g.model,
		Prompt: BuildPrompt(query, contexts),
		Stream: false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate %s: %w", g.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama generate %s: status %d", g.model, resp.StatusCode)
	}

	var result ollamaGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama generate %s: decode: %w", g.model, err)
	}
	return result.Response, nil
}
