// Package openai classifies final transcripts into structured intents
// using an OpenAI chat model constrained to emit bare JSON.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lunavoice/luna/core/speech"
)

const systemPromptTemplate = `You are the intent classifier for the Luna voice assistant.
Your ONLY job is to convert the user's utterance into minimal structured JSON.

GENERAL RULES:
1. Do NOT converse.
2. Do NOT answer the question yourself.
3. Do NOT add explanations.
4. Output ONLY JSON. No markdown.

OUTPUT FORMAT:
{
  "intent": "<string>",
  "args": { ... },
  "speech": "<short spoken reply, or empty string>"
}

INTENTS (canonical, snake_case):
%s- "unknown"  (if not classifiable)

RULES:
- Map synonyms onto the canonical intent names.
- Put every extracted parameter under "args" with snake_case keys.
- "speech" is optional small talk only; leave it empty when a command was recognized.
- Never invent missing values.

If the meaning is unclear, intent = "unknown".`

// IntentDeclaration describes one intent the model may emit: its
// canonical name, what it does, and the JSON schema of its args object.
// Description and ArgsSchema are optional; when present they are shown
// to the model so it extracts the right parameters.
type IntentDeclaration struct {
	Name        string
	Description string
	ArgsSchema  string
}

// Classifier is a thin wrapper around one chat model. The zero value is
// not usable; construct it with NewClassifier.
type Classifier struct {
	client  openai.Client
	model   openai.ChatModel
	intents []IntentDeclaration
}

type ClassifierOption func(*classifierConfig)

type classifierConfig struct {
	apiKey  string
	baseURL string
	model   openai.ChatModel
	intents []IntentDeclaration
}

func WithAPIKey(apiKey string) ClassifierOption {
	return func(c *classifierConfig) { c.apiKey = apiKey }
}

// WithBaseURL points the client at a compatible endpoint, for local
// models and tests.
func WithBaseURL(baseURL string) ClassifierOption {
	return func(c *classifierConfig) { c.baseURL = baseURL }
}

func WithModel(model string) ClassifierOption {
	return func(c *classifierConfig) {
		if model != "" {
			c.model = openai.ChatModel(model)
		}
	}
}

// WithIntents declares the canonical intent names the model may emit.
func WithIntents(intents ...string) ClassifierOption {
	return func(c *classifierConfig) {
		for _, intent := range intents {
			c.intents = append(c.intents, IntentDeclaration{Name: intent})
		}
	}
}

// WithIntentDeclarations declares intents together with their
// descriptions and argument schemas.
func WithIntentDeclarations(declarations ...IntentDeclaration) ClassifierOption {
	return func(c *classifierConfig) {
		c.intents = append(c.intents, declarations...)
	}
}

func NewClassifier(opts ...ClassifierOption) *Classifier {
	config := classifierConfig{model: openai.ChatModelGPT5Nano}
	for _, opt := range opts {
		opt(&config)
	}

	clientOpts := []option.RequestOption{}
	if config.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(config.apiKey))
	}
	if config.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(config.baseURL))
	}

	return &Classifier{
		client:  openai.NewClient(clientOpts...),
		model:   config.model,
		intents: config.intents,
	}
}

func (c *Classifier) Classify(ctx context.Context, transcript string, conversationContext map[string]any) (*speech.IntentResponse, error) {
	userMessage := transcript
	if len(conversationContext) > 0 {
		contextJSON, err := json.Marshal(conversationContext)
		if err == nil {
			userMessage = fmt.Sprintf("Conversation context: %s\n\nUtterance: %s", contextJSON, transcript)
		}
	}

	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt()),
			openai.UserMessage(userMessage),
		},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	content := response.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("empty message content")
	}

	return decodeIntent(content)
}

func (c *Classifier) systemPrompt() string {
	var intentLines strings.Builder
	for _, intent := range c.intents {
		fmt.Fprintf(&intentLines, "- %q", intent.Name)
		if intent.Description != "" {
			fmt.Fprintf(&intentLines, ": %s", intent.Description)
		}
		if intent.ArgsSchema != "" {
			fmt.Fprintf(&intentLines, " (args schema: %s)", intent.ArgsSchema)
		}
		intentLines.WriteString("\n")
	}
	return fmt.Sprintf(systemPromptTemplate, intentLines.String())
}

// decodeIntent parses the model's JSON reply, tolerating markdown fences
// smaller models sometimes wrap it in.
func decodeIntent(content string) (*speech.IntentResponse, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var parsed speech.IntentResponse
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal intent result: %w (raw: %s)", err, content)
	}
	if parsed.Intent == "" {
		parsed.Intent = "unknown"
	}
	return &parsed, nil
}
