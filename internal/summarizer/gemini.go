package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"google.golang.org/genai"
)

const (
	maxRounds      = 3
	initialBackoff = 5 * time.Second
)

// errRateLimited wraps a provider answer that asks us to slow down
var errRateLimited = errors.New("rate limited")

// geminiGenerator spreads requests over several API keys. A rate-limited key
// hands the request to the next one; when every key is limited the round is
// retried after a doubling backoff.
type geminiGenerator struct {
	apiKeys    []string
	currentKey int
	model      string
	logger     logger.Logger
	backoff    time.Duration

	clients map[string]*genai.Client
	// call performs one request with one key; replaced in tests.
	call func(ctx context.Context, key, prompt string) (string, error)
}

func newGeminiGenerator(apiKeys []string, model string, log logger.Logger) *geminiGenerator {
	g := &geminiGenerator{
		apiKeys: apiKeys,
		model:   model,
		logger:  log,
		backoff: initialBackoff,
		clients: make(map[string]*genai.Client),
	}
	g.call = g.generate
	return g
}

// Generate returns the model's answer to prompt
func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if len(g.apiKeys) == 0 {
		return "", ErrNoAPIKeys
	}

	wait := g.backoff
	var lastErr error
	for round := 1; round <= maxRounds; round++ {
		for range len(g.apiKeys) {
			text, err := g.call(ctx, g.apiKeys[g.currentKey], prompt)
			if err == nil {
				return text, nil
			}
			if !errors.Is(err, errRateLimited) {
				return "", err
			}
			g.logger.Warn(ctx, "Key %d rate limited, rotating...", g.currentKey+1)
			g.rotateKey()
			lastErr = err
		}

		if round == maxRounds {
			break
		}
		g.logger.Warn(ctx, "All %d key(s) rate limited, retrying in %s", len(g.apiKeys), wait)
		if err := sleep(ctx, wait); err != nil {
			return "", err
		}
		wait *= 2
	}

	return "", fmt.Errorf("all API keys exhausted after %d rounds: %w", maxRounds, lastErr)
}

// generate sends one request with key
func (g *geminiGenerator) generate(ctx context.Context, key, prompt string) (string, error) {
	client, err := g.client(ctx, key)
	if err != nil {
		return "", err
	}

	result, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("%w: %v", errRateLimited, err)
		}
		return "", fmt.Errorf("generate content: %w", err)
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}
	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", errors.New("empty response from Gemini")
	}
	return text.String(), nil
}

// client reuses one client per key for the life of the generator
func (g *geminiGenerator) client(ctx context.Context, key string) (*genai.Client, error) {
	if c, ok := g.clients[key]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	g.clients[key] = c
	return c, nil
}

func (g *geminiGenerator) rotateKey() {
	g.currentKey = (g.currentKey + 1) % len(g.apiKeys)
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
