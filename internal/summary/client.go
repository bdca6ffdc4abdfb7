// Package summary asks a generative-text endpoint for a short written
// summary of a draft order.
package summary

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/pricelist/internal/domain"
	"github.com/example/pricelist/internal/domain/draft"
)

// DisabledNotice is returned without a network call when no API key is set.
const DisabledNotice = "Сводка ИИ отключена. API_KEY не настроен."

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.5-flash"
)

var ErrEmptyResponse = errors.New("summary response contained no text")

// Client wraps interactions with a generateContent-style API.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	group      singleflight.Group
}

// NewClient constructs a new client. Empty endpoint and model fall back to
// the defaults.
func NewClient(endpoint, model, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		apiKey:   apiKey,
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Summarize returns advisory text for d. Identical concurrent requests
// share one upstream call, which runs detached from any single caller's
// cancellation and is bounded by the client timeout. Failures are
// ExternalServiceErrors.
func (c *Client) Summarize(ctx context.Context, d draft.Derivation) (string, error) {
	if c.apiKey == "" {
		return DisabledNotice, nil
	}
	prompt := BuildPrompt(d)
	sum := sha256.Sum256([]byte(prompt))
	key := hex.EncodeToString(sum[:])

	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.generate(callCtx, prompt)
	})
	select {
	case <-ctx.Done():
		return "", domain.NewExternalServiceError("summarizer", ctx.Err())
	case res := <-resultChan:
		if res.Err != nil {
			log.Printf("[Summary] generateContent failed: %v", res.Err)
			return "", domain.NewExternalServiceError("summarizer", res.Err)
		}
		return res.Val.(string), nil
	}
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generateContent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	var text strings.Builder
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	result := strings.TrimSpace(text.String())
	if result == "" {
		return "", ErrEmptyResponse
	}
	return result, nil
}
