package gemini

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

type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithURL(apiKey, model, "https://generativelanguage.googleapis.com/v1beta")
}

func NewClientWithURL(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		model:      model,
	}
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type part struct {
	Text string `json:"text"`
}

type request struct {
	Contents         []content        `json:"contents"`
	SystemInstruct   *content         `json:"systemInstruction,omitempty"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
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
func (c *Client) Breakdown(ctx context.Context, instructions string) (*domain.Procedure, error) {
	text, err := c.generate(ctx,
		breakdownPrompt,
		[]content{{Role: "user", Parts: []part{{Text: instructions}}}},
		generationConfig{MaxOutputTokens: 4096, Temperature: 0.2},
	)
	if err != nil {
		return nil, err
	}

	text = stripFences(text)

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
func (c *Client) Chat(ctx context.Context, req application.ChatRequest) (string, error) {
	contents := make([]content, 0, len(req.History)+1)
	for _, turn := range req.History.WithoutSystem() {
		role := "user"
		if turn.Role == domain.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: turn.Text}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: req.Query}}})

	reply, err := c.generate(ctx,
		req.SystemContext(),
		contents,
		generationConfig{MaxOutputTokens: 1024, Temperature: 0.4},
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (c *Client) generate(ctx context.Context, system string, contents []content, cfg generationConfig) (string, error) {
	reqBody := request{
		SystemInstruct:   &content{Parts: []part{{Text: system}}},
		Contents:         contents,
		GenerationConfig: cfg,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &infra.UpstreamError{Provider: "gemini", Status: resp.StatusCode, Body: string(respBody)}
	}

	var result response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("gemini error: %s", result.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
