package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenAIClient calls the GPT-4o vision API and returns the model's
// strict-JSON extraction wrapped in a DetectResult.
type OpenAIClient struct {
	apiKey  string
	model   string
	BaseURL string
	client  *http.Client
}

func NewOpenAIClient() *OpenAIClient {
	return &OpenAIClient{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: "https://api.openai.com/v1/chat/completions",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *OpenAIClient) DetectItems(ctx context.Context, image []byte, mimeType string) (*DetectResult, error) {
	if c.apiKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	if c.model == "" {
		return nil, errors.New("missing OPENAI_MODEL")
	}
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}

	dataURL := fmt.Sprintf(
		"data:%s;base64,%s",
		mimeType,
		base64.StdEncoding.EncodeToString(image),
	)

	content, err := c.complete(ctx, BuildExtractPrompt(), dataURL)
	if err != nil {
		return nil, err
	}

	normalized, normErr := NormalizeDocument(content)
	if normErr != nil {
		// One repair round: show the model its own output and the error.
		repaired, err := c.complete(ctx, BuildRepairPrompt(content, normErr.Error()), dataURL)
		if err != nil {
			return nil, err
		}
		normalized, normErr = NormalizeDocument(repaired)
		if normErr != nil {
			return nil, fmt.Errorf("extraction failed after repair: %w", normErr)
		}
	}

	return &DetectResult{
		Description: summarize(normalized),
		RawResponse: normalized,
		Status:      "success",
	}, nil
}

// complete runs one vision round trip and returns the model's text with any
// markdown fence stripped.
func (c *OpenAIClient) complete(ctx context.Context, prompt, dataURL string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
				},
			},
		},
		"max_tokens":  3000,
		"temperature": 0.1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision api error: %s", string(raw))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", errors.New("empty vision response")
	}

	return stripCodeFence(result.Choices[0].Message.Content), nil
}

// stripCodeFence removes a markdown ```json fence if the model wrapped its
// output in one despite the prompt.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// summarize builds the operator-facing free-text description from the
// structured payload. Falls back to the raw content when it is not the
// expected document.
func summarize(content string) string {
	var doc struct {
		Source   string `json:"source"`
		Sections []struct {
			Name  string `json:"name"`
			Items []struct {
				Name string `json:"name"`
			} `json:"items"`
		} `json:"sections"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return content
	}

	var b strings.Builder
	if doc.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", doc.Source)
	}
	total := 0
	for _, s := range doc.Sections {
		total += len(s.Items)
		if s.Name != "" {
			fmt.Fprintf(&b, "%s: %d items\n", s.Name, len(s.Items))
		}
	}
	fmt.Fprintf(&b, "Total items detected: %d", total)
	return b.String()
}
