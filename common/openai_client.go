package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient writes scene lists through an OpenAI compatible chat endpoint.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float32
}

// GenerateSchema reflects a JSON schema for structured outputs.
func GenerateSchema[T any]() interface{} {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

var sceneListSchema = GenerateSchema[SceneList]()

// NewOpenAIClient builds a client. baseURL may be empty for the public endpoint.
func NewOpenAIClient(apiKey, baseURL string, script ScriptConfig, opts ...option.RequestOption) *OpenAIClient {
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, opts...)

	model := script.Model
	if model == "" || strings.HasPrefix(model, "gemini") {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAIClient{
		client:      openai.NewClient(all...),
		model:       model,
		temperature: script.Temperature,
	}
}

// GenerateScenes asks the model for a scene list matching the SceneList schema.
func (o *OpenAIClient) GenerateScenes(ctx context.Context, req SceneRequest) ([]Scene, error) {
	prompt := BuildScenePrompt(req)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Temperature: openai.Float(float64(o.temperature)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "scene_list",
					Description: openai.String("Ordered scenes of a narrated slide video"),
					Schema:      sceneListSchema,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("openai returned empty content (finish reason %s)", resp.Choices[0].FinishReason)
	}
	scenes, err := DecodeScenes(content)
	if err != nil {
		return nil, fmt.Errorf("openai scene reply: %w", err)
	}
	log.Printf("[OPENAI] received %d scenes", len(scenes))
	return scenes, nil
}
