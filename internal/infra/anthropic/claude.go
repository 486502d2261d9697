package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/application"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/domain"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra"
)

type ClaudeClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewClaudeClient(apiKey, model string) *ClaudeClient {
	return NewClaudeClientWithURL(apiKey, model, "https://api.anthropic.com/v1")
}

func NewClaudeClientWithURL(apiKey, model, baseURL string) *ClaudeClient {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &ClaudeClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		model:      model,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type breakdownResult struct {
	DetailedSteps        []string `json:"detailed_steps"`
	RecommendedGlassware []string `json:"recommended_glassware"`
	RecommendedMaterials []string `json:"recommended_materials"`
	SafetyWarnings       []string `json:"safety_warnings"`
}

const breakdownPrompt = `You are an expert chemist. Break down the chemical synthesis instructions you are given into a highly detailed, step-by-step list. Each step should be comprehensive, clear, and easy to follow for a lab chemist.

In addition to the detailed steps, provide three separate lists:
1. Specific glassware needed (e.g., '500mL round-bottom flask', 'condenser', 'dropping funnel')
2. Specific materials or specialized equipment (e.g., 'magnetic stirrer with hotplate', 'nitrogen gas line')
3. Crucial safety precautions and warnings (e.g., 'Work in fume hood', 'Flammable solvent - avoid ignition sources')

Any list may be empty if nothing applies.

Respond ONLY with valid JSON (no markdown, no backticks):
{
  "detailed_steps": ["..."],
  "recommended_glassware": ["..."],
  "recommended_materials": ["..."],
  "safety_warnings": ["..."]
}`

// Breakdown decomposes the instructions into a structured procedure.
func (c *ClaudeClient) Breakdown(ctx context.Context, instructions string) (*domain.Procedure, error) {
	text, err := c.generate(ctx, breakdownPrompt, []message{{Role: "user", Content: instructions}}, 4096)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var result breakdownResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parsing breakdown JSON (%s): %w", text, err)
	}

	return &domain.Procedure{
		Steps:     result.DetailedSteps,
		Glassware: result.RecommendedGlassware,
		Materials: result.RecommendedMaterials,
		Warnings:  result.SafetyWarnings,
	}, nil
}

// Chat produces one assistant reply from the synthesized system context, the
// prior history and the new query.
func (c *ClaudeClient) Chat(ctx context.Context, req application.ChatRequest) (string, error) {
	messages := make([]message, 0, len(req.History)+1)
	for _, turn := range req.History.WithoutSystem() {
		messages = append(messages, message{Role: string(turn.Role), Content: turn.Text})
	}
	messages = append(messages, message{Role: "user", Content: req.Query})

	reply, err := c.generate(ctx, req.SystemContext(), messages, 1024)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (c *ClaudeClient) generate(ctx context.Context, system string, messages []message, maxTokens int) (string, error) {
	reqBody := request{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &infra.UpstreamError{Provider: "claude", Status: resp.StatusCode, Body: string(respBody)}
	}

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}

	return result.Content[0].Text, nil
}
