// Package embedding is an HTTP client for a local Ollama-style embedding
// service. Its structure (config struct, retry-with-backoff loop, cached
// Dimensions()) is grounded on the upstream Embedder, but the wire contract
// is rewritten to match the Ollama-shaped endpoints the core specification
// requires: GET /, GET /api/tags, POST /api/pull, POST /api/embeddings with
// {model, prompt} -> {embedding}.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Config holds embedding client configuration.
type Config struct {
	BaseURL    string
	Model      string
	Dimension  int
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig returns sensible defaults matching an Ollama install.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:11434",
		Model:      "nomic-embed-text",
		Dimension:  768,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// Client is the embedding HTTP client, bound to one model/dimension.
type Client struct {
	cfg       Config
	http      *http.Client
	available bool
}

// New constructs a Client and probes the service root once to cache its
// availability state, per §4.3: "Availability state is cached at client
// construction by probing the service root."
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
	c.available = c.probe()
	return c
}

func (c *Client) probe() bool {
	req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Available reports whether the embedding service was reachable at
// construction time. The Indexer treats false as "skip embedding
// generation; still index textually."
func (c *Client) Available() bool { return c.available }

// Dimension returns the configured embedding dimension D.
func (c *Client) Dimension() int { return c.cfg.Dimension }

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HasModel checks /api/tags for the configured model's presence.
func (c *Client) HasModel(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return false, err
	}
	for _, m := range tags.Models {
		if m.Name == c.cfg.Model {
			return true, nil
		}
	}
	return false, nil
}

// Pull asks the service to fetch the configured model via /api/pull.
func (c *Client) Pull(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{"name": c.cfg.Model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pull failed: status %d", resp.StatusCode)
	}
	return nil
}

// Result is the per-call outcome described in §4.3: {success, embedding,
// error?}.
type Result struct {
	Success   bool
	Embedding []float32
	Error     string
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

// embed performs one POST /api/embeddings call with retry/backoff, mirroring
// the upstream Embedder's attempt loop.
func (c *Client) embed(ctx context.Context, prompt string) Result {
	reqBody, err := json.Marshal(embeddingsRequest{Model: c.cfg.Model, Prompt: prompt})
	if err != nil {
		return Result{Error: err.Error()}
	}

	maxAttempts := c.cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{Error: ctx.Err().Error()}
			case <-time.After(time.Duration(attempt*attempt) * 100 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/embeddings", bytes.NewReader(reqBody))
		if err != nil {
			return Result{Error: err.Error()}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = c.http.Do(req)
		if lastErr == nil && resp.StatusCode < 500 {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
	}

	if lastErr != nil {
		return Result{Error: lastErr.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Error: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Error: fmt.Sprintf("embedding service returned status %d", resp.StatusCode)}
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{Error: err.Error()}
	}
	if len(parsed.Embedding) != c.cfg.Dimension {
		return Result{Error: fmt.Sprintf("embedding dimension mismatch: got %d, want %d", len(parsed.Embedding), c.cfg.Dimension)}
	}
	return Result{Success: true, Embedding: parsed.Embedding}
}

var commentMarkers = regexp.MustCompile(`##\*|\*##|##`)
var whitespaceRun = regexp.MustCompile(`\s*\n\s*`)

// EmbedDocumentation shapes a doc string and embeds it.
func (c *Client) EmbedDocumentation(ctx context.Context, doc string) Result {
	cleaned := cleanDocumentation(doc)
	if cleaned == "" {
		return Result{Error: "empty documentation"}
	}
	return c.embed(ctx, cleaned)
}

func cleanDocumentation(doc string) string {
	cleaned := commentMarkers.ReplaceAllString(doc, "")
	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// EmbedSignature shapes a signature string and embeds it.
func (c *Client) EmbedSignature(ctx context.Context, signature string) Result {
	cleaned := strings.TrimSpace(whitespaceRun.ReplaceAllString(signature, " "))
	if cleaned == "" {
		return Result{Error: "empty signature"}
	}
	return c.embed(ctx, "Function signature: "+cleaned)
}

// EmbedName shapes (name, module) into a descriptive sentence and embeds it.
func (c *Client) EmbedName(ctx context.Context, name, module string) Result {
	if name == "" {
		return Result{Error: "empty name"}
	}
	words := camelCaseToWords(name)
	caser := cases.Lower(language.Und)
	shaped := fmt.Sprintf("Function: %s in module %s", caser.String(words), module)
	return c.embed(ctx, shaped)
}

// EmbedCombined concatenates the non-empty parts of (name, signature, doc).
func (c *Client) EmbedCombined(ctx context.Context, name, signature, doc string) Result {
	var parts []string
	if name != "" {
		parts = append(parts, "Name: "+name+".")
	}
	if signature != "" {
		parts = append(parts, "Signature: "+strings.TrimSpace(whitespaceRun.ReplaceAllString(signature, " "))+".")
	}
	cleanedDoc := cleanDocumentation(doc)
	if cleanedDoc != "" {
		parts = append(parts, "Description: "+cleanedDoc)
	}
	if len(parts) == 0 {
		return Result{Error: "nothing to embed"}
	}
	return c.embed(ctx, strings.Join(parts, " "))
}

// camelCaseToWords inserts a space at every lower->upper transition.
func camelCaseToWords(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
