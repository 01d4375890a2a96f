package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	imageModel *genai.GenerativeModel
}

// NewGeminiClient creates a client for scene writing. imageModel may be empty when
// images come from elsewhere.
func NewGeminiClient(ctx context.Context, apiKey string, script ScriptConfig, imageModel string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	modelName := script.Model
	if modelName == "" || !strings.HasPrefix(modelName, "gemini") {
		modelName = "gemini-3-flash-preview"
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(script.Temperature)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(SceneSystemPrompt))

	g := &GeminiClient{client: client, model: model}
	if imageModel != "" {
		g.imageModel = client.GenerativeModel(imageModel)
	}
	return g, nil
}

func (g *GeminiClient) Close() {
	g.client.Close()
}

// GenerateScenes asks Gemini for a scene list in JSON.
func (g *GeminiClient) GenerateScenes(ctx context.Context, req SceneRequest) ([]Scene, error) {
	prompt := BuildScenePrompt(req)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt.User))
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}
	scenes, err := DecodeScenes(text)
	if err != nil {
		return nil, fmt.Errorf("gemini scene reply: %w", err)
	}
	log.Printf("[GEMINI] received %d scenes", len(scenes))
	return scenes, nil
}

// GenerateImage returns the first inline image the image model replies with.
func (g *GeminiClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if g.imageModel == nil {
		return nil, fmt.Errorf("gemini image model not configured")
	}
	resp, err := g.imageModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini image error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from gemini")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if blob, ok := part.(genai.Blob); ok && strings.HasPrefix(blob.MIMEType, "image/") {
			return blob.Data, nil
		}
	}
	return nil, fmt.Errorf("gemini reply carried no image")
}

func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	return sb.String(), nil
}
