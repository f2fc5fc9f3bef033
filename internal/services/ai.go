package services

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/huangang/deployguide/internal/config"
	"github.com/huangang/deployguide/pkg/logger"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const defaultAnthropicMaxTokens = 4096

// Completer performs a single chat completion and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFactory builds a Completer for one request from the configured
// upstream and the freshly encoded credentials.
type CompleterFactory func(cfg config.UpstreamConfig, token AuthToken) (Completer, error)

// UpstreamClient talks to the configured model provider over a transport that
// trusts the configured CA bundle and stamps the Authorization header.
type UpstreamClient struct {
	provider   string
	baseURL    string
	model      string
	token      AuthToken
	httpClient *http.Client
}

// NewUpstreamClient satisfies CompleterFactory.
func NewUpstreamClient(cfg config.UpstreamConfig, token AuthToken) (Completer, error) {
	httpClient, err := NewUpstreamHTTPClient(cfg.CABundle, token)
	if err != nil {
		return nil, err
	}
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderOpenAI
	}
	return &UpstreamClient{
		provider:   provider,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		token:      token,
		httpClient: httpClient,
	}, nil
}

// NewUpstreamHTTPClient returns an http.Client verifying servers against the
// system roots plus the certificates in caBundle. No client-side timeout is
// set; the caller's context bounds the call.
func NewUpstreamHTTPClient(caBundle string, token AuthToken) (*http.Client, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if caBundle != "" {
		pem, err := os.ReadFile(caBundle)
		if err != nil {
			return nil, &ConfigurationError{Msg: "cannot read CA bundle " + caBundle, Err: err}
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, &ConfigurationError{Msg: "no certificates found in CA bundle " + caBundle}
		}
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}

	return &http.Client{
		Transport: &authTransport{base: base, header: token.Header()},
	}, nil
}

type authTransport struct {
	base   http.RoundTripper
	header string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", t.header)
	return t.base.RoundTrip(req)
}

// Complete dispatches to the provider-specific call.
func (c *UpstreamClient) Complete(ctx context.Context, prompt string) (string, error) {
	logger.Infof("[AI] Using provider: %s, model: %s, baseURL: %s, auth: %s", c.provider, c.model, c.baseURL, c.token)
	start := time.Now()

	var (
		content string
		err     error
	)
	switch c.provider {
	case config.ProviderAzure:
		content, err = c.callAzure(ctx, prompt)
	case config.ProviderAnthropic:
		content, err = c.callAnthropic(ctx, prompt)
	case config.ProviderOllama:
		content, err = c.callOllama(ctx, prompt)
	case config.ProviderGemini:
		content, err = c.callGemini(ctx, prompt)
	default:
		// openai and other OpenAI-compatible services
		content, err = c.callOpenAI(ctx, prompt)
	}
	if err != nil {
		logger.Warn().Err(err).Str("provider", c.provider).Dur("latency", time.Since(start)).Msg("[AI] Completion failed")
		return "", err
	}

	if strings.TrimSpace(content) == "" {
		return "", &UpstreamError{Provider: c.provider, Msg: "empty completion"}
	}

	logger.Infof("[AI] %s response length: %d chars in %s", c.provider, len(content), time.Since(start).Round(time.Millisecond))
	return content, nil
}

func (c *UpstreamClient) callOpenAI(ctx context.Context, prompt string) (string, error) {
	// The Authorization header comes from the transport, so the SDK's own
	// bearer header is left unset.
	clientConfig := openai.DefaultConfig("")
	if c.baseURL != "" {
		clientConfig.BaseURL = c.baseURL
	}
	clientConfig.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(clientConfig)

	return c.chatCompletion(ctx, client, prompt)
}

func (c *UpstreamClient) callAzure(ctx context.Context, prompt string) (string, error) {
	// Model field is used as deployment name
	clientConfig := openai.DefaultAzureConfig(c.token.Value, c.baseURL)
	clientConfig.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(clientConfig)

	return c.chatCompletion(ctx, client, prompt)
}

func (c *UpstreamClient) chatCompletion(ctx context.Context, client *openai.Client, prompt string) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", &UpstreamError{Provider: c.provider, Msg: "chat completion failed", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Provider: c.provider, Msg: "no choices returned"}
	}

	logger.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("[AI] Chat completion usage")

	return resp.Choices[0].Message.Content, nil
}

func (c *UpstreamClient) callAnthropic(ctx context.Context, prompt string) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(c.token.Value),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	client := anthropic.NewClient(opts...)

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", &UpstreamError{Provider: c.provider, Msg: "messages request failed", Err: err}
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return content.String(), nil
}

func (c *UpstreamClient) callOllama(ctx context.Context, prompt string) (string, error) {
	baseURL := c.baseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", &UpstreamError{Provider: c.provider, Msg: "invalid base URL", Err: err}
	}
	client := api.NewClient(u, c.httpClient)

	stream := false
	var content strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", &UpstreamError{Provider: c.provider, Msg: "chat request failed", Err: err}
	}
	return content.String(), nil
}

func (c *UpstreamClient) callGemini(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      c.token.Value,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  c.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL},
	})
	if err != nil {
		return "", &UpstreamError{Provider: c.provider, Msg: "client setup failed", Err: err}
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", &UpstreamError{Provider: c.provider, Msg: "generate content failed", Err: err}
	}
	if len(resp.Candidates) == 0 {
		return "", &UpstreamError{Provider: c.provider, Msg: "no candidates returned"}
	}
	return resp.Text(), nil
}

// String is used in logs.
func (c *UpstreamClient) String() string {
	return fmt.Sprintf("%s(%s)", c.provider, c.model)
}
