package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// ErrNotConfigured is returned when no model API key is set.
var ErrNotConfigured = errors.New("chat assistant is not configured")

// Completer produces a model reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini answers prompts through the Gemini API. The SDK client is created on
// first use.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string // empty uses the SDK default endpoint
	httpClient *http.Client

	once   sync.Once
	client *genai.Client
	err    error
}

func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *Gemini) sdk(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		g.client, g.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      g.apiKey,
			Backend:     genai.BackendGeminiAPI,
			HTTPClient:  g.httpClient,
			HTTPOptions: genai.HTTPOptions{BaseURL: g.baseURL},
		})
		if g.err != nil {
			g.err = fmt.Errorf("create gemini client: %w", g.err)
		}
	})
	return g.client, g.err
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", ErrNotConfigured
	}
	client, err := g.sdk(ctx)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	reply := resp.Text()
	if reply == "" {
		return "", errors.New("gemini returned no text")
	}
	return reply, nil
}
