package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slide_video_studio/common"
)

const sarvamEndpoint = "https://api.sarvam.ai/text-to-speech"

// SarvamClient speaks narration through the Sarvam text-to-speech API.
type SarvamClient struct {
	APIKey     string
	Endpoint   string
	Language   string
	Model      string
	Speaker    string
	SampleRate int
	ChunkChars int
	HTTP       *http.Client
}

// NewSarvamClient configures a client for one topic's voice.
func NewSarvamClient(apiKey string, cfg common.AudioConfig, style common.TopicStyle) *SarvamClient {
	speaker, ok := common.SarvamSpeakers()[style.Voice]
	if !ok {
		speaker = common.SarvamSpeakers()[common.VoiceDefault]
	}
	return &SarvamClient{
		APIKey:     apiKey,
		Endpoint:   sarvamEndpoint,
		Language:   cfg.Language,
		Model:      cfg.Model,
		Speaker:    speaker,
		SampleRate: 22050,
		ChunkChars: cfg.ChunkChars,
		HTTP:       &http.Client{Timeout: 60 * time.Second},
	}
}

// Speak returns a single WAV for text, synthesizing long text chunk by chunk.
func (s *SarvamClient) Speak(ctx context.Context, text string) ([]byte, error) {
	text = common.CleanTextForTTS(text)
	if text == "" {
		return nil, ErrNothingToSpeak
	}

	limit := s.ChunkChars
	if limit <= 0 {
		limit = 500
	}
	chunks := common.SplitTextIntoChunks(text, limit)

	parts := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		wav, err := s.synthesizeChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		parts = append(parts, wav)
	}
	return ConcatWAV(parts)
}

type sarvamRequest struct {
	Inputs              []string `json:"inputs"`
	TargetLanguageCode  string   `json:"target_language_code"`
	Speaker             string   `json:"speaker"`
	SpeechSampleRate    int      `json:"speech_sample_rate"`
	EnablePreprocessing bool     `json:"enable_preprocessing"`
	Model               string   `json:"model"`
}

type sarvamResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

func (s *SarvamClient) synthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(sarvamRequest{
		Inputs:              []string{text},
		TargetLanguageCode:  s.Language,
		Speaker:             s.Speaker,
		SpeechSampleRate:    s.SampleRate,
		EnablePreprocessing: true,
		Model:               s.Model,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", s.APIKey)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("API error: %d - %s", resp.StatusCode, string(body))
	}

	var result sarvamResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Audios) == 0 || result.Audios[0] == "" {
		return nil, fmt.Errorf("no audio in response")
	}

	audioStr := result.Audios[0]
	// Strip a data URL header if present
	if idx := strings.Index(audioStr, ","); idx != -1 {
		audioStr = audioStr[idx+1:]
	}
	return base64.StdEncoding.DecodeString(audioStr)
}
