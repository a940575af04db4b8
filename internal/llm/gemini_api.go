package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"

	"github.com/soyeahso/agentstudio/internal/config"
	"github.com/soyeahso/agentstudio/internal/version"
)

// ErrNoAPIKey is returned when the client has neither an API key nor ADC credentials.
var ErrNoAPIKey = errors.New("no Gemini API key configured")

// generativeLanguageScope is requested when authenticating with ADC.
const generativeLanguageScope = "https://www.googleapis.com/auth/generative-language"

// GeminiOptions configures a GeminiAPIClient.
type GeminiOptions struct {
	Endpoint   string        // base URL, defaults to config.DefaultEndpoint
	APIKey     string        // sent as x-goog-api-key; empty when HTTPClient carries OAuth credentials
	HTTPClient *http.Client  // optional; defaults to a client with Timeout
	Timeout    time.Duration // per-request bound for the default client
}

// GeminiAPIClient is a direct HTTP client for the Gemini generateContent endpoint.
type GeminiAPIClient struct {
	endpoint string
	apiKey   string
	oauth    bool
	client   *http.Client
}

// NewGeminiAPIClient creates a Gemini client authenticated with an API key.
func NewGeminiAPIClient(opts GeminiOptions) *GeminiAPIClient {
	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = config.DefaultEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = config.DefaultTimeoutSeconds * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &GeminiAPIClient{
		endpoint: endpoint,
		apiKey:   opts.APIKey,
		client:   client,
	}
}

// NewGeminiADCClient creates a Gemini client that authenticates with
// Application Default Credentials.
func NewGeminiADCClient(ctx context.Context, opts GeminiOptions) (*GeminiAPIClient, error) {
	ts, err := google.DefaultTokenSource(ctx, generativeLanguageScope)
	if err != nil {
		return nil, fmt.Errorf("finding default credentials: %w", err)
	}
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = opts.Timeout
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = config.DefaultTimeoutSeconds * time.Second
	}

	opts.HTTPClient = httpClient
	opts.APIKey = ""
	g := NewGeminiAPIClient(opts)
	g.oauth = true
	return g, nil
}

// NewFromConfig builds the Gemini client described by the llm config section.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	opts := GeminiOptions{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	if cfg.Auth == "adc" {
		return NewGeminiADCClient(ctx, opts)
	}
	return NewGeminiAPIClient(opts), nil
}

// Name returns the provider name.
func (g *GeminiAPIClient) Name() string {
	return "gemini"
}

// Complete sends a generateContent request.
func (g *GeminiAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if g.apiKey == "" && !g.oauth {
		return nil, ErrNoAPIKey
	}
	if req.Model == "" {
		return nil, errors.New("model is required")
	}

	start := time.Now()

	payload, err := json.Marshal(buildRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, url.PathEscape(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if g.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, providerError(err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result geminiAPIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return responseToCompletion(&result, req.Model, time.Since(start)), nil
}

// providerError converts a googleapi error into a ProviderError.
func providerError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	msg := gerr.Message
	if msg == "" {
		msg = strings.TrimSpace(gerr.Body)
	}
	if msg == "" {
		msg = http.StatusText(gerr.Code)
	}
	return &ProviderError{Provider: "gemini", Message: msg, Code: gerr.Code}
}

func buildRequestBody(req CompletionRequest) geminiRequest {
	body := geminiRequest{
		Contents: make([]geminiContent, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		role := m.Role
		if role != RoleModel {
			role = RoleUser
		}
		body.Contents = append(body.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	gc := geminiGenerationConfig{
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		MaxOutputTokens:  req.MaxTokens,
		ResponseMIMEType: req.ResponseMIMEType,
		ResponseSchema:   req.ResponseSchema,
	}
	if gc != (geminiGenerationConfig{}) {
		body.GenerationConfig = &gc
	}
	return body
}

func responseToCompletion(resp *geminiAPIResponse, model string, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	stopReason := ""

	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		for _, part := range candidate.Content.Parts {
			content.WriteString(part.Text)
		}
		stopReason = candidate.FinishReason
	} else if resp.PromptFeedback.BlockReason != "" {
		stopReason = resp.PromptFeedback.BlockReason
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: stopReason,
		Model:      model,
		Duration:   duration,
		Usage: Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
	}
}

// API request structures

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema  `json:"responseSchema,omitempty"`
}

// API response structures

type geminiAPIResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content struct {
		Parts []geminiPart `json:"parts"`
		Role  string       `json:"role"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}
