package common

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
)

func TestOpenAIClientGenerateScenes(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)

		content := `{"scenes":[{"id":1,"kind":"title","heading":"Intro","bullet_points":[],"narration":"Hi.","image_description":"sky"},{"id":2,"kind":"ending","heading":"Bye","bullet_points":[],"narration":"Bye.","image_description":"sea"}]}`
		reply := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", srv.URL+"/v1/", ScriptConfig{Model: "gemini-3-flash-preview", Temperature: 0.5}, option.WithMaxRetries(0))
	scenes, err := client.GenerateScenes(context.Background(), SceneRequest{Title: "T", SourceText: "text", SceneCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(scenes) != 2 || scenes[1].Kind != KindEnding || scenes[0].ImageDescription != "sky" {
		t.Errorf("scenes = %+v", scenes)
	}

	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", gotBody["model"])
	}
	format, _ := gotBody["response_format"].(map[string]interface{})
	if format["type"] != "json_schema" {
		t.Errorf("response_format = %v", gotBody["response_format"])
	}
}

func TestOpenAIClientSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewOpenAIClient("k", srv.URL+"/", ScriptConfig{Model: "gpt-4o"}, option.WithMaxRetries(0))
	_, err := client.GenerateScenes(context.Background(), SceneRequest{SceneCount: 2})
	if err == nil {
		t.Fatal("expected error")
	}
	var sve *ScriptValidationError
	if errors.As(err, &sve) {
		t.Errorf("transport failure reported as a validation error: %v", err)
	}
}

func TestOpenAIClientMalformedReplyIsValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-2",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": `{"scenes": [{"id": 1,`},
			}},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("k", srv.URL+"/v1/", ScriptConfig{Model: "gpt-4o-mini"}, option.WithMaxRetries(0))
	_, err := client.GenerateScenes(context.Background(), SceneRequest{SceneCount: 2})
	var sve *ScriptValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("err = %v, want *ScriptValidationError", err)
	}
	if !strings.Contains(sve.Reason, "decode scene list") {
		t.Errorf("reason = %q", sve.Reason)
	}
}

func TestGenerateSchemaDescribesScenes(t *testing.T) {
	data, err := json.Marshal(GenerateSchema[SceneList]())
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"scenes", "narration", "image_description", "bullet_points"} {
		if !strings.Contains(string(data), `"`+field+`"`) {
			t.Errorf("schema missing %s: %s", field, data)
		}
	}
}
