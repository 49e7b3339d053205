package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskpilot/internal/logging"
	"taskpilot/internal/types"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	sleep      sleepFunc
}

// NewAnthropicProvider creates an Anthropic adapter.
func NewAnthropicProvider(apiKey, model, baseURL string, timeout time.Duration) *AnthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &AnthropicProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the vendor name.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Anthropic wire types. The canonical content blocks already follow this
// shape, so translation is mostly field-for-field.

type anthropicBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) buildRequest(req Request, stream bool) anthropicRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks := make([]anthropicBlock, 0, len(m.Content))
		for _, b := range m.Content {
			blocks = append(blocks, anthropicBlock{
				Type:      b.Type,
				Text:      b.Text,
				ID:        b.ID,
				Name:      b.Name,
				Input:     b.Input,
				ToolUseID: b.ToolUseID,
				Content:   b.Content,
			})
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: blocks})
	}

	tools := make([]anthropicTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	return anthropicRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  messages,
		Tools:     tools,
		Stream:    stream,
	}
}

func (p *AnthropicProvider) doRequest(ctx context.Context, body anthropicRequest, stream bool) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, string(b))
	}
	return resp, nil
}

// Chat performs one blocking completion with retry.
func (p *AnthropicProvider) Chat(ctx context.Context, req Request) (*types.ChatResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: API key not configured", ErrAuth)
	}

	start := time.Now()
	body := p.buildRequest(req, false)
	logging.ProviderDebug("[anthropic] chat: model=%s messages=%d tools=%d", p.model, len(body.Messages), len(body.Tools))

	var result *types.ChatResult
	err := withRetry(ctx, "anthropic", p.sleep, func() error {
		resp, err := p.doRequest(ctx, body, false)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			return fmt.Errorf("API error: %s", parsed.Error.Message)
		}

		result = parseAnthropicResponse(&parsed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Provider("[anthropic] chat completed in %v: text_len=%d tool_calls=%d stop=%s",
		time.Since(start), len(result.Content), len(result.ToolCalls), result.StopReason)
	return result, nil
}

func parseAnthropicResponse(resp *anthropicResponse) *types.ChatResult {
	result := &types.ChatResult{StopReason: resp.StopReason}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case types.BlockText:
			text.WriteString(block.Text)
		case types.BlockToolUse:
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	result.Content = text.String()

	if resp.Usage != nil {
		result.Usage = types.UsageMetadata{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}
	return result
}

// ChatStream performs one streaming completion. Text deltas are sent as
// they arrive; tool call input is accumulated from partial JSON fragments
// and delivered with the final result chunk.
func (p *AnthropicProvider) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if p.apiKey == "" {
			errs <- fmt.Errorf("%w: API key not configured", ErrAuth)
			return
		}

		resp, err := p.doRequest(ctx, p.buildRequest(req, true), true)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		result := &types.ChatResult{}
		var text strings.Builder

		// Per-index accumulation of tool_use blocks through the
		// content_block_start / input_json_delta / stop sequence.
		type pendingTool struct {
			id, name string
			argJSON  strings.Builder
		}
		pending := make(map[int]*pendingTool)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}

			var evt struct {
				Type  string `json:"type"`
				Index int    `json:"index"`
				Block *struct {
					Type string `json:"type"`
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"content_block,omitempty"`
				Delta *struct {
					Type        string `json:"type"`
					Text        string `json:"text,omitempty"`
					PartialJSON string `json:"partial_json,omitempty"`
					StopReason  string `json:"stop_reason,omitempty"`
				} `json:"delta,omitempty"`
				Error *struct {
					Message string `json:"message"`
				} `json:"error,omitempty"`
			}
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				continue
			}

			switch evt.Type {
			case "error":
				if evt.Error != nil {
					errs <- fmt.Errorf("API error: %s", evt.Error.Message)
					return
				}
			case "content_block_start":
				if evt.Block != nil && evt.Block.Type == types.BlockToolUse {
					pending[evt.Index] = &pendingTool{id: evt.Block.ID, name: evt.Block.Name}
				}
			case "content_block_delta":
				if evt.Delta == nil {
					continue
				}
				switch evt.Delta.Type {
				case "text_delta":
					text.WriteString(evt.Delta.Text)
					select {
					case chunks <- StreamChunk{TextDelta: evt.Delta.Text}:
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				case "input_json_delta":
					if t, ok := pending[evt.Index]; ok {
						t.argJSON.WriteString(evt.Delta.PartialJSON)
					}
				}
			case "content_block_stop":
				if t, ok := pending[evt.Index]; ok {
					args := map[string]any{}
					if raw := t.argJSON.String(); raw != "" {
						_ = json.Unmarshal([]byte(raw), &args)
					}
					result.ToolCalls = append(result.ToolCalls, types.ToolCall{
						ID:        t.id,
						Name:      t.name,
						Arguments: args,
					})
					delete(pending, evt.Index)
				}
			case "message_delta":
				if evt.Delta != nil && evt.Delta.StopReason != "" {
					result.StopReason = evt.Delta.StopReason
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("stream error: %w", err)
			return
		}

		result.Content = text.String()
		chunks <- StreamChunk{Result: result}
	}()

	return chunks, errs
}
