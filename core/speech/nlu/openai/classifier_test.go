package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeIntentParsesBareJSON(t *testing.T) {
	response, err := decodeIntent(`{"intent":"get_weather","args":{"city":"Zagreb"},"speech":""}`)
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	if response.Intent != "get_weather" {
		t.Fatalf("expected intent, got %q", response.Intent)
	}
	if response.Args["city"] != "Zagreb" {
		t.Fatalf("expected city arg, got %v", response.Args)
	}
}

func TestDecodeIntentStripsMarkdownFences(t *testing.T) {
	content := "```json\n{\"intent\":\"get_time\",\"args\":{},\"speech\":\"\"}\n```"
	response, err := decodeIntent(content)
	if err != nil {
		t.Fatalf("expected fenced JSON to parse, got %v", err)
	}
	if response.Intent != "get_time" {
		t.Fatalf("expected intent, got %q", response.Intent)
	}
}

func TestDecodeIntentEmptyIntentFallsBackToUnknown(t *testing.T) {
	response, err := decodeIntent(`{"intent":"","args":{},"speech":"Hello!"}`)
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	if response.Intent != "unknown" {
		t.Fatalf("expected unknown fallback, got %q", response.Intent)
	}
	if response.Speech != "Hello!" {
		t.Fatalf("expected speech preserved, got %q", response.Speech)
	}
}

func TestDecodeIntentRejectsProse(t *testing.T) {
	if _, err := decodeIntent("Sure! The weather in Zagreb is sunny."); err == nil {
		t.Fatalf("expected prose reply to be rejected")
	}
}

func TestSystemPromptIncludesIntentDeclarations(t *testing.T) {
	classifier := NewClassifier(WithIntentDeclarations(
		IntentDeclaration{
			Name:        "get_weather",
			Description: "Speak the current forecast for a city.",
			ArgsSchema:  `{"type":"object","properties":{"city":{"type":"string"}}}`,
		},
		IntentDeclaration{Name: "get_time"},
	))

	prompt := classifier.systemPrompt()
	if !strings.Contains(prompt, `"get_weather": Speak the current forecast for a city.`) {
		t.Fatalf("expected intent description in the prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, `args schema: {"type":"object"`) {
		t.Fatalf("expected args schema in the prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "- \"get_time\"\n") {
		t.Fatalf("expected bare intent rendered without annotations, got %q", prompt)
	}
}

func TestClassifySendsTranscriptAndContext(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {
					"role": "assistant",
					"content": "{\"intent\":\"get_weather\",\"args\":{\"city\":\"Zagreb\"},\"speech\":\"\"}"
				}
			}]
		}`))
	}))
	defer server.Close()

	classifier := NewClassifier(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithIntents("get_weather", "get_time"),
	)

	response, err := classifier.Classify(context.Background(),
		"what's the weather in zagreb",
		map[string]any{"transcript": "earlier utterance"},
	)
	if err != nil {
		t.Fatalf("expected classification to succeed, got %v", err)
	}
	if response.Intent != "get_weather" {
		t.Fatalf("expected classified intent, got %q", response.Intent)
	}

	messages, ok := capturedBody["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", capturedBody["messages"])
	}
	system := messages[0].(map[string]any)["content"].(string)
	if !strings.Contains(system, `"get_weather"`) || !strings.Contains(system, `"get_time"`) {
		t.Fatalf("expected declared intents in the system prompt")
	}
	user := messages[1].(map[string]any)["content"].(string)
	if !strings.Contains(user, "what's the weather in zagreb") {
		t.Fatalf("expected transcript in the user message, got %q", user)
	}
	if !strings.Contains(user, "earlier utterance") {
		t.Fatalf("expected conversation context in the user message, got %q", user)
	}
}
