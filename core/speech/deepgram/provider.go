// Package deepgram implements the speech provider against the Deepgram
// listen and speak APIs: live transcription over a websocket, synthesis
// over REST, and intent recognition delegated to a pluggable classifier.
package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lunavoice/luna/core/speech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	defaultSpeakURL  = "https://api.deepgram.com/v1/speak"
	defaultVoice     = "aura-2-thalia-en"
)

// IntentClassifier turns a final transcript into a structured intent.
// The conversation context is passed through so multi-turn references
// can resolve against earlier results.
type IntentClassifier interface {
	Classify(ctx context.Context, transcript string, conversationContext map[string]any) (*speech.IntentResponse, error)
}

type Provider struct {
	apiKey     string
	voice      string
	listenURL  string
	speakURL   string
	httpClient *http.Client
	classifier IntentClassifier
}

type ProviderOption func(*Provider)

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *Provider) { p.apiKey = apiKey }
}

func WithVoice(voice string) ProviderOption {
	return func(p *Provider) {
		if voice != "" {
			p.voice = voice
		}
	}
}

func WithClassifier(classifier IntentClassifier) ProviderOption {
	return func(p *Provider) { p.classifier = classifier }
}

func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithListenURL overrides the websocket endpoint, for self-hosted
// deployments and tests.
func WithListenURL(listenURL string) ProviderOption {
	return func(p *Provider) {
		if listenURL != "" {
			p.listenURL = listenURL
		}
	}
}

func WithSpeakURL(speakURL string) ProviderOption {
	return func(p *Provider) {
		if speakURL != "" {
			p.speakURL = speakURL
		}
	}
}

func NewProvider(opts ...ProviderOption) (*Provider, error) {
	p := &Provider{
		voice:     defaultVoice,
		listenURL: defaultListenURL,
		speakURL:  defaultSpeakURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   60 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		p.apiKey = apiKey
	}

	return p, nil
}
