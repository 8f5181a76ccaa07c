package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	ruledomain "labeler-backend/internal/rule/domain"
	scandomain "labeler-backend/internal/scan/domain"
)

const systemPrompt = "You are an email classification assistant. Respond only with a JSON object mapping rule IDs to true/false. No explanation, no markdown."

// Client classifies emails against rule sets with a single chat call per
// email, regardless of how many rules are active.
type Client struct {
	getBaseURL func() string // Dynamic getter so runtime settings apply without restart
	getModel   func() string
	httpClient *http.Client
	numCtx     int
	numPredict int
}

type Options struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	NumCtx     int
	NumPredict int
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}
	if opts.Model == "" {
		opts.Model = "llama3.2"
	}
	c := &Client{
		getBaseURL: func() string { return opts.BaseURL },
		getModel:   func() string { return opts.Model },
	}
	return c.init(opts)
}

// NewClientWithGetters builds a client whose endpoint and model are resolved
// on every request.
func NewClientWithGetters(getBaseURL, getModel func() string, opts Options) *Client {
	c := &Client{
		getBaseURL: getBaseURL,
		getModel:   getModel,
	}
	return c.init(opts)
}

func (c *Client) init(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.NumCtx <= 0 {
		opts.NumCtx = 4096
	}
	if opts.NumPredict <= 0 {
		opts.NumPredict = 200
	}
	c.httpClient = &http.Client{Timeout: opts.Timeout}
	c.numCtx = opts.NumCtx
	c.numPredict = opts.NumPredict
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format"`
	Options  map[string]any `json:"options"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Classify runs one chat round trip for the email and returns a decision per
// rule id. Any failure (transport, status, malformed output) comes back as an
// error carrying the raw response; the caller treats that as no rule matching.
func (c *Client) Classify(ctx context.Context, email scandomain.Email, rules []ruledomain.Rule) (map[uint]bool, error) {
	if len(rules) == 0 {
		return map[uint]bool{}, nil
	}

	payload := chatRequest{
		Model: c.getModel(),
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(email, rules)},
		},
		Stream: false,
		Format: "json",
		Options: map[string]any{
			"temperature": 0,
			"num_predict": c.numPredict,
			"num_ctx":     c.numCtx,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.getBaseURL()+"/api/chat", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope: %w", err)
	}

	decisions, err := decodeDecisions(result.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w | raw: %q", err, result.Message.Content)
	}
	return decisions, nil
}

// buildPrompt enumerates every rule with a stable [id:N] marker and appends
// the email. One prompt covers the whole rule set so backend load scales with
// email count, not rules × emails.
func buildPrompt(email scandomain.Email, rules []ruledomain.Rule) string {
	var rulesText strings.Builder
	for i, rule := range rules {
		fmt.Fprintf(&rulesText, "%d. [id:%d] %s: %s\n", i+1, rule.ID, rule.Name, rule.Instructions)
	}

	body := email.Body
	if body == "" {
		body = email.Snippet
	}

	return fmt.Sprintf(`You are an email classification assistant. You will be given an email and a list of labeling rules. For each rule, decide if the label should be applied to this email.

Rules:
%s
Email:
From: %s
Subject: %s
Body:
%s

Respond with ONLY a JSON object where each key is the rule id number and the value is true or false.
Example: {"1": true, "2": false}
No explanation, no markdown, just the JSON object.`, rulesText.String(), email.Sender, email.Subject, body)
}

// decodeDecisions parses the model output into rule decisions. Code fences
// are stripped first; keys that are not rule ids are dropped. Missing ids are
// simply absent, so lookups default to false.
func decodeDecisions(raw string) (map[uint]bool, error) {
	raw = stripCodeFence(strings.TrimSpace(raw))

	var parsed map[string]bool
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("malformed classifier output: %w", err)
	}

	decisions := make(map[uint]bool, len(parsed))
	for key, value := range parsed {
		id, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		decisions[uint(id)] = value
	}
	return decisions, nil
}

func stripCodeFence(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	parts := strings.Split(raw, "```")
	if len(parts) > 1 {
		raw = parts[1]
	}
	raw = strings.TrimPrefix(raw, "json")
	return strings.TrimSpace(raw)
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Ping checks that an Ollama server is reachable. An empty baseURL pings the
// configured endpoint; a non-empty one lets the settings UI probe a candidate
// URL before saving it.
func (c *Client) Ping(ctx context.Context, baseURL string) error {
	if baseURL == "" {
		baseURL = c.getBaseURL()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama API error (%d)", resp.StatusCode)
	}
	return nil
}

// EnsureModel pulls the configured model if the server doesn't have it yet.
// Best effort: a cold pull can take a while, so callers run this at startup
// and tolerate failure.
func (c *Client) EnsureModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.getBaseURL()+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not check ollama models: %w", err)
	}
	defer resp.Body.Close()

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("could not parse model list: %w", err)
	}

	model := c.getModel()
	base := strings.SplitN(model, ":", 2)[0]
	for _, m := range tags.Models {
		if strings.HasPrefix(m.Name, base) {
			return nil
		}
	}

	body, _ := json.Marshal(map[string]any{"name": model, "stream": false})
	pullReq, err := http.NewRequestWithContext(ctx, "POST", c.getBaseURL()+"/api/pull", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	pullReq.Header.Set("Content-Type", "application/json")

	pullResp, err := c.httpClient.Do(pullReq)
	if err != nil {
		return fmt.Errorf("model pull failed: %w", err)
	}
	defer pullResp.Body.Close()
	if pullResp.StatusCode != http.StatusOK {
		return fmt.Errorf("model pull failed (%d)", pullResp.StatusCode)
	}
	return nil
}
