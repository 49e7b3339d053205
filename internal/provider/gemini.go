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

	"github.com/google/uuid"

	"taskpilot/internal/logging"
	"taskpilot/internal/types"
)

// GeminiProvider talks to the Google Generative Language API.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	sleep      sleepFunc
}

// NewGeminiProvider creates a Gemini adapter.
func NewGeminiProvider(apiKey, model, baseURL string, timeout time.Duration) *GeminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the vendor name.
func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text         string `json:"text,omitempty"`
	FunctionCall *struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	} `json:"functionCall,omitempty"`
	FunctionResponse *struct {
		Name     string         `json:"name"`
		Response map[string]any `json:"response"`
	} `json:"functionResponse,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []struct {
		FunctionDeclarations []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			Parameters  map[string]any `json:"parameters"`
		} `json:"functionDeclarations"`
	} `json:"tools,omitempty"`
	GenerationConfig *struct {
		MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// buildRequest maps content blocks to Gemini contents. tool_result
// blocks need the tool name rather than a call id, so names are resolved
// from the preceding tool_use blocks.
func (p *GeminiProvider) buildRequest(req Request) geminiRequest {
	var out geminiRequest

	if req.System != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	callNames := make(map[string]string)
	for _, m := range req.Messages {
		role := "user"
		if m.Role == types.RoleAssistant {
			role = "model"
		}

		var parts []geminiPart
		for _, b := range m.Content {
			switch b.Type {
			case types.BlockText:
				if b.Text != "" {
					parts = append(parts, geminiPart{Text: b.Text})
				}
			case types.BlockToolUse:
				callNames[b.ID] = b.Name
				part := geminiPart{}
				part.FunctionCall = &struct {
					Name string         `json:"name"`
					Args map[string]any `json:"args"`
				}{Name: b.Name, Args: b.Input}
				parts = append(parts, part)
			case types.BlockToolResult:
				response := map[string]any{}
				if err := json.Unmarshal([]byte(b.Content), &response); err != nil {
					response = map[string]any{"output": b.Content}
				}
				part := geminiPart{}
				part.FunctionResponse = &struct {
					Name     string         `json:"name"`
					Response map[string]any `json:"response"`
				}{Name: callNames[b.ToolUseID], Response: response}
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			continue
		}
		out.Contents = append(out.Contents, geminiContent{Role: role, Parts: parts})
	}

	if len(req.Tools) > 0 {
		var toolSet struct {
			FunctionDeclarations []struct {
				Name        string         `json:"name"`
				Description string         `json:"description"`
				Parameters  map[string]any `json:"parameters"`
			} `json:"functionDeclarations"`
		}
		for _, t := range req.Tools {
			toolSet.FunctionDeclarations = append(toolSet.FunctionDeclarations, struct {
				Name        string         `json:"name"`
				Description string         `json:"description"`
				Parameters  map[string]any `json:"parameters"`
			}{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
		}
		out.Tools = append(out.Tools, toolSet)
	}

	if req.MaxTokens > 0 {
		out.GenerationConfig = &struct {
			MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
		}{MaxOutputTokens: req.MaxTokens}
	}
	return out
}

func (p *GeminiProvider) doRequest(ctx context.Context, body geminiRequest, stream bool) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	verb := "generateContent"
	if stream {
		verb = "streamGenerateContent?alt=sse"
	}
	url := fmt.Sprintf("%s/models/%s:%s", p.baseURL, p.model, verb)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

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

// synthesizeCallID builds a call id from the tool name. Gemini does not
// issue call ids, but downstream bookkeeping requires one.
func synthesizeCallID(toolName string) string {
	return fmt.Sprintf("%s_%s", toolName, uuid.NewString()[:8])
}

func parseGeminiCandidate(resp *geminiResponse, result *types.ChatResult, text *strings.Builder) {
	if len(resp.Candidates) == 0 {
		return
	}
	cand := resp.Candidates[0]
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				ID:        synthesizeCallID(part.FunctionCall.Name),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}
	if cand.FinishReason != "" {
		result.StopReason = cand.FinishReason
	}
	if resp.UsageMetadata != nil {
		result.Usage = types.UsageMetadata{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
}

// Chat performs one blocking completion with retry.
func (p *GeminiProvider) Chat(ctx context.Context, req Request) (*types.ChatResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: API key not configured", ErrAuth)
	}

	start := time.Now()
	body := p.buildRequest(req)
	logging.ProviderDebug("[gemini] chat: model=%s contents=%d", p.model, len(body.Contents))

	var result *types.ChatResult
	err := withRetry(ctx, "gemini", p.sleep, func() error {
		resp, err := p.doRequest(ctx, body, false)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		var parsed geminiResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			return fmt.Errorf("API error: %s", parsed.Error.Message)
		}

		result = &types.ChatResult{}
		var text strings.Builder
		parseGeminiCandidate(&parsed, result, &text)
		result.Content = text.String()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Provider("[gemini] chat completed in %v: text_len=%d tool_calls=%d",
		time.Since(start), len(result.Content), len(result.ToolCalls))
	return result, nil
}

// ChatStream performs one streaming completion over SSE.
func (p *GeminiProvider) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if p.apiKey == "" {
			errs <- fmt.Errorf("%w: API key not configured", ErrAuth)
			return
		}

		resp, err := p.doRequest(ctx, p.buildRequest(req), true)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		result := &types.ChatResult{}
		var text strings.Builder

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

			var parsed geminiResponse
			if err := json.Unmarshal([]byte(data), &parsed); err != nil {
				continue
			}
			if parsed.Error != nil {
				errs <- fmt.Errorf("API error: %s", parsed.Error.Message)
				return
			}

			before := text.Len()
			parseGeminiCandidate(&parsed, result, &text)
			if delta := text.String()[before:]; delta != "" {
				select {
				case chunks <- StreamChunk{TextDelta: delta}:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
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
