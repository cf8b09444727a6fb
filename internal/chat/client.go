package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ModelClient produces the assistant reply for a message, optionally
// grounded on the session's attached menu context.
type ModelClient interface {
	Reply(ctx context.Context, history []Message, contextDoc []byte, userMessage string) (string, error)
}

// OpenAIClient answers through the chat completions API.
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

func (c *OpenAIClient) Reply(ctx context.Context, history []Message, contextDoc []byte, userMessage string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("missing OPENAI_API_KEY")
	}
	if c.model == "" {
		return "", errors.New("missing OPENAI_MODEL")
	}

	system := "You are a helpful assistant answering questions about a menu/catalog the operator has reviewed."
	if len(contextDoc) > 0 {
		system += "\n\nGround every answer on this reviewed menu data and do not invent items:\n" + string(contextDoc)
	}

	messages := []map[string]string{{"role": "system", "content": system}}
	for _, m := range history {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}
	messages = append(messages, map[string]string{"role": RoleUser, "content": userMessage})

	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"max_tokens":  1024,
		"temperature": 0.3,
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
		return "", fmt.Errorf("chat api error: %s", string(raw))
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
		return "", errors.New("empty chat response")
	}
	return result.Choices[0].Message.Content, nil
}
