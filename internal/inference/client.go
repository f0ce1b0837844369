package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultModelURL = "https://api-inference.huggingface.co/models/mistralai/Mistral-7B-Instruct-v0.2"

// Client talks to the Hugging Face text-generation inference API. Every
// caller treats it as best effort: a missing token, a failed call or an
// unparseable completion all mean "no model output", never a user-facing
// error.
type Client struct {
	token    string
	modelURL string
	http     *http.Client
}

type Config struct {
	APIToken string
	ModelURL string
	Client   *http.Client
}

// Item is one recommendation row the model is asked to emit.
type Item struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

func NewClient(cfg Config) *Client {
	modelURL := strings.TrimSpace(cfg.ModelURL)
	if modelURL == "" {
		modelURL = defaultModelURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		token:    strings.TrimSpace(cfg.APIToken),
		modelURL: modelURL,
		http:     httpClient,
	}
}

func (c *Client) Enabled() bool {
	return c.token != ""
}

// Generate runs one text-generation call and returns the raw completion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("inference token is not configured")
	}

	payload, err := json.Marshal(generateRequest{
		Inputs: prompt,
		Parameters: generateParameters{
			MaxNewTokens:   512,
			Temperature:    0.7,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("inference HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return "", err
	}

	var completions []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &completions); err != nil {
		return "", err
	}
	if len(completions) == 0 {
		return "", fmt.Errorf("inference returned no completions")
	}
	return completions[0].GeneratedText, nil
}

// Recommend asks the model for recommendation rows matching the prompt and
// parses them out of the completion.
func (c *Client) Recommend(ctx context.Context, prompt string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 5
	}
	completion, err := c.Generate(ctx, buildRecommendPrompt(prompt, limit))
	if err != nil {
		return nil, err
	}
	items, ok := ExtractItems(completion)
	if !ok {
		return nil, fmt.Errorf("inference completion carried no usable recommendations")
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func buildRecommendPrompt(query string, limit int) string {
	return fmt.Sprintf(`[INST] You are a movie and TV recommendation assistant.
The user asked: %q
Respond with ONLY a JSON array of exactly %d objects, each with the keys
"title", "description", "category" and "confidence" (a number between 0 and 1).
No prose before or after the array. [/INST]`, query, limit)
}

// ExtractItems pulls the first well-formed JSON array of recommendation
// objects out of a completion. Models wrap the array in prose or markdown
// fences more often than not, so the array is located by bracket matching
// rather than by decoding the whole completion.
func ExtractItems(completion string) ([]Item, bool) {
	raw, ok := firstJSONArray(completion)
	if !ok {
		return nil, false
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, false
	}
	cleaned := items[:0]
	for _, item := range items {
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			continue
		}
		if item.Confidence < 0 {
			item.Confidence = 0
		}
		if item.Confidence > 1 {
			item.Confidence = 1
		}
		cleaned = append(cleaned, item)
	}
	if len(cleaned) == 0 {
		return nil, false
	}
	return cleaned, true
}

func firstJSONArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			ch := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += 1 + next
	}
	return "", false
}
