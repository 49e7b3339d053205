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

// OpenAIProvider talks to the OpenAI Chat Completions API.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	sleep      sleepFunc
}

// NewOpenAIProvider creates an OpenAI adapter.
func NewOpenAIProvider(apiKey, model, baseURL string, timeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the vendor name.
func (p *OpenAIProvider) Name() string { return "openai" }

type openaiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiFunctionCall `json:"function"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	Tools     []openaiTool    `json:"tools,omitempty"`
	MaxTokens int             `json:"max_completion_tokens,omitempty"`
	Stream    bool            `json:"stream,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// buildMessages flattens content-block messages into OpenAI's shape:
// tool_use blocks become an assistant tool_calls array, tool_result
// blocks become one "tool" role message each.
func (p *OpenAIProvider) buildMessages(req Request) []openaiMessage {
	messages := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}

	for _, m := range req.Messages {
		var text strings.Builder
		var toolCalls []openaiToolCall
		var toolResults []openaiMessage

		for _, b := range m.Content {
			switch b.Type {
			case types.BlockText:
				text.WriteString(b.Text)
			case types.BlockToolUse:
				args, err := json.Marshal(b.Input)
				if err != nil {
					args = []byte("{}")
				}
				toolCalls = append(toolCalls, openaiToolCall{
					ID:   b.ID,
					Type: "function",
					Function: openaiFunctionCall{
						Name:      b.Name,
						Arguments: string(args),
					},
				})
			case types.BlockToolResult:
				toolResults = append(toolResults, openaiMessage{
					Role:       "tool",
					Content:    b.Content,
					ToolCallID: b.ToolUseID,
				})
			}
		}

		if text.Len() > 0 || len(toolCalls) > 0 {
			messages = append(messages, openaiMessage{
				Role:      m.Role,
				Content:   text.String(),
				ToolCalls: toolCalls,
			})
		}
		messages = append(messages, toolResults...)
	}
	return messages
}

func (p *OpenAIProvider) buildRequest(req Request, stream bool) openaiRequest {
	tools := make([]openaiTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		var ot openaiTool
		ot.Type = "function"
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = t.InputSchema
		tools = append(tools, ot)
	}

	return openaiRequest{
		Model:     p.model,
		Messages:  p.buildMessages(req),
		Tools:     tools,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
}

func (p *OpenAIProvider) doRequest(ctx context.Context, body openaiRequest, stream bool) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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
func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (*types.ChatResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: API key not configured", ErrAuth)
	}

	start := time.Now()
	body := p.buildRequest(req, false)
	logging.ProviderDebug("[openai] chat: model=%s messages=%d tools=%d", p.model, len(body.Messages), len(body.Tools))

	var result *types.ChatResult
	err := withRetry(ctx, "openai", p.sleep, func() error {
		resp, err := p.doRequest(ctx, body, false)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		var parsed openaiResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			return fmt.Errorf("API error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("no choices returned")
		}

		choice := parsed.Choices[0]
		result = &types.ChatResult{
			Content:    choice.Message.Content,
			StopReason: choice.FinishReason,
		}
		for _, tc := range choice.Message.ToolCalls {
			args := map[string]any{}
			if tc.Function.Arguments != "" {
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			}
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: args,
			})
		}
		if parsed.Usage != nil {
			result.Usage = types.UsageMetadata{
				InputTokens:  parsed.Usage.PromptTokens,
				OutputTokens: parsed.Usage.CompletionTokens,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Provider("[openai] chat completed in %v: text_len=%d tool_calls=%d",
		time.Since(start), len(result.Content), len(result.ToolCalls))
	return result, nil
}

// ChatStream performs one streaming completion. Tool call arguments
// arrive as indexed fragments and are assembled before the final chunk.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
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

		type pendingCall struct {
			id, name string
			args     strings.Builder
		}
		pending := make(map[int]*pendingCall)
		maxIndex := -1

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				break
			}

			var evt struct {
				Choices []struct {
					Delta struct {
						Content   string `json:"content"`
						ToolCalls []struct {
							Index    int    `json:"index"`
							ID       string `json:"id"`
							Function struct {
								Name      string `json:"name"`
								Arguments string `json:"arguments"`
							} `json:"function"`
						} `json:"tool_calls"`
					} `json:"delta"`
					FinishReason string `json:"finish_reason"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				continue
			}
			if len(evt.Choices) == 0 {
				continue
			}

			choice := evt.Choices[0]
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				select {
				case chunks <- StreamChunk{TextDelta: choice.Delta.Content}:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				call, ok := pending[tc.Index]
				if !ok {
					call = &pendingCall{}
					pending[tc.Index] = call
					if tc.Index > maxIndex {
						maxIndex = tc.Index
					}
				}
				if tc.ID != "" {
					call.id = tc.ID
				}
				if tc.Function.Name != "" {
					call.name = tc.Function.Name
				}
				call.args.WriteString(tc.Function.Arguments)
			}
			if choice.FinishReason != "" {
				result.StopReason = choice.FinishReason
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("stream error: %w", err)
			return
		}

		for i := 0; i <= maxIndex; i++ {
			call, ok := pending[i]
			if !ok {
				continue
			}
			args := map[string]any{}
			if raw := call.args.String(); raw != "" {
				_ = json.Unmarshal([]byte(raw), &args)
			}
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				ID:        call.id,
				Name:      call.name,
				Arguments: args,
			})
		}

		result.Content = text.String()
		chunks <- StreamChunk{Result: result}
	}()

	return chunks, errs
}
