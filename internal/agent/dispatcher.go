package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Completer turns a prompt into model text
type Completer interface {
	GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions override the dispatcher settings for one call. Zero values
// fall back to the settings.
type GenerateOptions struct {
	Model           ModelChoice
	Temperature     *float64
	MaxOutputTokens int
	User            string
}

// ModelDispatcher routes prompts to the configured models, building one
// client per model on first use.
type ModelDispatcher struct {
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger

	mu      sync.Mutex
	clients map[ModelChoice]*chatClient
}

func NewModelDispatcher(settings Settings) *ModelDispatcher {
	if settings.Models == nil {
		settings.Models = DefaultModelConfigs()
	}
	return &ModelDispatcher{
		settings:   settings,
		httpClient: &http.Client{Timeout: settings.Timeout},
		logger:     log.With().Str("component", "model_dispatcher").Logger(),
		clients:    make(map[ModelChoice]*chatClient),
	}
}

func (d *ModelDispatcher) client(choice ModelChoice) (*chatClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[choice]; ok {
		return c, nil
	}

	cfg, ok := d.settings.Models[choice]
	if !ok {
		return nil, fmt.Errorf("%w: no configuration for %s", ErrUnknownModel, choice)
	}

	key, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, err
	}

	c := &chatClient{
		http:         d.httpClient,
		baseURL:      strings.TrimRight(cfg.ResolveBaseURL(), "/"),
		apiKey:       key,
		organization: cfg.ResolveOrganization(),
		model:        cfg.ModelName,
	}

	d.logger.Debug().
		Str("model", cfg.ModelName).
		Str("base_url", c.baseURL).
		Str("organization", c.organization).
		Msg("Initialized model client")

	d.clients[choice] = c
	return c, nil
}

// GenerateText sends prompt as a single user message and returns the trimmed reply
func (d *ModelDispatcher) GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	choice := opts.Model
	if choice == "" {
		choice = d.settings.ModelChoice
	}

	c, err := d.client(choice)
	if err != nil {
		return "", err
	}

	temperature := d.settings.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := d.settings.MaxOutputTokens
	if opts.MaxOutputTokens > 0 {
		maxTokens = opts.MaxOutputTokens
	}

	text, err := c.complete(ctx, chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		User:        opts.User,
	})
	if err != nil {
		return "", fmt.Errorf("model %s: %w", choice, err)
	}

	return strings.TrimSpace(text), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	User        string        `json:"user,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// chatClient speaks the chat-completions endpoint of one provider
type chatClient struct {
	http         *http.Client
	baseURL      string
	apiKey       string
	organization string
	model        string
}

func (c *chatClient) complete(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode chat response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil && decoded.Error.Message != "" {
			return "", fmt.Errorf("chat request failed with status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return "", fmt.Errorf("chat request failed with status %d", resp.StatusCode)
	}

	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	return decoded.Choices[0].Message.Content, nil
}
