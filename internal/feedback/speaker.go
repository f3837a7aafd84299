package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Speaker produces spoken audio for a confirmation message.
type Speaker interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// --- Piper backend (local neural TTS via piper-tts, returns WAV) ---

type piperSpeaker struct {
	url    string
	voice  string
	client *http.Client
}

// NewPiperSpeaker creates a speaker backed by a piper-tts HTTP server.
func NewPiperSpeaker(url, voice string, client *http.Client) Speaker {
	return &piperSpeaker{url: url, voice: voice, client: client}
}

func (p *piperSpeaker) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}{Text: text, Voice: p.voice})
	if err != nil {
		return nil, fmt.Errorf("marshal piper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.url+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create piper request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doSpeechRequest(p.client, req)
}

// --- OpenAI-compatible backend (any server exposing /v1/audio/speech) ---

type openaiSpeaker struct {
	url    string
	model  string
	voice  string
	client *http.Client
}

// NewOpenAISpeaker creates a speaker for OpenAI-compatible speech servers.
func NewOpenAISpeaker(url, model, voice string, client *http.Client) Speaker {
	return &openaiSpeaker{url: url, model: model, voice: voice, client: client}
}

func (o *openaiSpeaker) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Input          string `json:"input"`
		Model          string `json:"model"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}{Input: text, Model: o.model, Voice: o.voice, ResponseFormat: "wav"})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doSpeechRequest(o.client, req)
}

func doSpeechRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
