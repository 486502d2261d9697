package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra"
)

// Rachel, a common default voice.
const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

const defaultModelID = "eleven_monolingual_v1"

type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	voiceID    string
	modelID    string
}

func NewClient(apiKey, voiceID, modelID string) *Client {
	return NewClientWithURL(apiKey, voiceID, modelID, "https://api.elevenlabs.io/v1")
}

func NewClientWithURL(apiKey, voiceID, modelID, baseURL string) *Client {
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	if modelID == "" {
		modelID = defaultModelID
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		voiceID:    voiceID,
		modelID:    modelID,
	}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type request struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize renders text as speech and returns base64-encoded audio/mpeg
// bytes. The voice settings are fixed for a neutral, concise delivery.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("elevenlabs API key: %w", infra.ErrNotConfigured)
	}

	reqBody := request{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.0, // neutral delivery, good for instructions
			UseSpeakerBoost: true,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "/text-to-speech/" + c.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &infra.UpstreamError{Provider: "elevenlabs", Status: resp.StatusCode, Body: string(respBody)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading audio: %w", err)
	}

	return base64.StdEncoding.EncodeToString(audio), nil
}
