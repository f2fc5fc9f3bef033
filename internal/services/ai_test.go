package services

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/huangang/deployguide/internal/config"
)

// fakeUpstream records what the model endpoint received.
type fakeUpstream struct {
	mu         sync.Mutex
	authHeader string
	path       string
	body       map[string]interface{}
}

func (f *fakeUpstream) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeader = r.Header.Get("Authorization")
	f.path = r.URL.Path
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &f.body)
}

func (f *fakeUpstream) auth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authHeader
}

func (f *fakeUpstream) requestPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path
}

func (f *fakeUpstream) field(key string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body[key]
}

func chatCompletionJSON(content string) string {
	resp := map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func newTLSUpstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	return srv, writeCABundle(t, srv)
}

func writeCABundle(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ca-bundle.crt")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testBasicToken(t *testing.T) AuthToken {
	t.Helper()
	token, err := EncodeCredentials(config.UpstreamConfig{AuthMode: config.AuthModeBasic, Username: "user", Password: "pass"})
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestUpstreamClient_OpenAI(t *testing.T) {
	fake := &fakeUpstream{}
	srv, bundle := newTLSUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatCompletionJSON("# Docker Guide"))
	})

	client, err := NewUpstreamClient(config.UpstreamConfig{
		Provider: config.ProviderOpenAI,
		BaseURL:  srv.URL,
		Model:    "gpt-4o",
		CABundle: bundle,
	}, testBasicToken(t))
	if err != nil {
		t.Fatalf("NewUpstreamClient() error = %v", err)
	}

	content, err := client.Complete(context.Background(), "deploy it")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if content != "# Docker Guide" {
		t.Errorf("content = %q, expected %q", content, "# Docker Guide")
	}
	if got := fake.auth(); got != "Basic dXNlcjpwYXNz" {
		t.Errorf("Authorization = %q, expected basic credentials", got)
	}
	if got := fake.requestPath(); got != "/chat/completions" {
		t.Errorf("path = %q, expected /chat/completions", got)
	}
	if got := fake.field("model"); got != "gpt-4o" {
		t.Errorf("model = %v, expected gpt-4o", got)
	}
}

func TestUpstreamClient_OpenAIErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
			},
		},
		{
			name: "empty content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, chatCompletionJSON(""))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, bundle := newTLSUpstream(t, tt.handler)
			client, err := NewUpstreamClient(config.UpstreamConfig{BaseURL: srv.URL, Model: "gpt-4o", CABundle: bundle}, testBasicToken(t))
			if err != nil {
				t.Fatal(err)
			}

			_, err = client.Complete(context.Background(), "prompt")
			var upErr *UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("expected *UpstreamError, got %v", err)
			}
		})
	}
}

func TestUpstreamClient_UntrustedCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chatCompletionJSON("never"))
	}))
	defer srv.Close()

	// No bundle: only system roots, which do not include the test server.
	client, err := NewUpstreamClient(config.UpstreamConfig{BaseURL: srv.URL, Model: "gpt-4o"}, testBasicToken(t))
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Complete(context.Background(), "prompt")
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError for untrusted cert, got %v", err)
	}
}

func TestUpstreamClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	bundle := writeCABundle(t, srv)
	url := srv.URL
	srv.Close()

	client, err := NewUpstreamClient(config.UpstreamConfig{BaseURL: url, Model: "gpt-4o", CABundle: bundle}, testBasicToken(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Complete(context.Background(), "prompt"); err == nil {
		t.Fatal("expected transport failure")
	} else if !strings.Contains(err.Error(), "upstream error") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestNewUpstreamHTTPClient_BadBundle(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.crt")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.crt")},
		{name: "no certificates", path: garbage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUpstreamHTTPClient(tt.path, AuthToken{Scheme: "Bearer", Value: "x"})
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigurationError, got %v", err)
			}
		})
	}
}

func TestUpstreamClient_BearerOverridesSDKHeader(t *testing.T) {
	fake := &fakeUpstream{}
	srv, bundle := newTLSUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatCompletionJSON("ok"))
	})

	client, err := NewUpstreamClient(config.UpstreamConfig{BaseURL: srv.URL, Model: "gpt-4o", CABundle: bundle},
		AuthToken{Scheme: "Bearer", Value: "issued-token"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Complete(context.Background(), "prompt"); err != nil {
		t.Fatal(err)
	}
	if got := fake.auth(); got != "Bearer issued-token" {
		t.Errorf("Authorization = %q, expected %q", got, "Bearer issued-token")
	}
}

func TestUpstreamClient_Anthropic(t *testing.T) {
	fake := &fakeUpstream{}
	srv, bundle := newTLSUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "# AWS Guide"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`)
	})

	client, err := NewUpstreamClient(config.UpstreamConfig{
		Provider: config.ProviderAnthropic,
		BaseURL:  srv.URL,
		Model:    "claude-sonnet-4-20250514",
		CABundle: bundle,
	}, AuthToken{Scheme: "Bearer", Value: "sk-ant"})
	if err != nil {
		t.Fatal(err)
	}

	content, err := client.Complete(context.Background(), "deploy")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if content != "# AWS Guide" {
		t.Errorf("content = %q, expected %q", content, "# AWS Guide")
	}
	if got := fake.requestPath(); got != "/v1/messages" {
		t.Errorf("path = %q, expected /v1/messages", got)
	}
}

func ollamaChatJSON(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"model":   "llama3",
		"message": map[string]string{"role": "assistant", "content": content},
		"done":    true,
	})
	return string(data)
}

func geminiJSON(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]string{{"text": content}},
				},
				"finishReason": "STOP",
			},
		},
	})
	return string(data)
}

func TestUpstreamClient_Providers(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		body     string
		wantPath string
		want     string
	}{
		{
			name:     "azure",
			provider: config.ProviderAzure,
			model:    "gpt-4o",
			body:     chatCompletionJSON("# Azure"),
			wantPath: "/openai/deployments/gpt-4o/chat/completions",
			want:     "# Azure",
		},
		{
			name:     "ollama",
			provider: config.ProviderOllama,
			model:    "llama3",
			body:     ollamaChatJSON("# Ollama"),
			wantPath: "/api/chat",
			want:     "# Ollama",
		},
		{
			name:     "gemini",
			provider: config.ProviderGemini,
			model:    "m",
			body:     geminiJSON("# Gemini"),
			wantPath: "/v1beta/models/m:generateContent",
			want:     "# Gemini",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeUpstream{}
			srv, bundle := newTLSUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				fake.record(r)
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, tt.body)
			})

			client, err := NewUpstreamClient(config.UpstreamConfig{
				Provider: tt.provider,
				BaseURL:  srv.URL,
				Model:    tt.model,
				CABundle: bundle,
			}, testBasicToken(t))
			if err != nil {
				t.Fatalf("NewUpstreamClient() error = %v", err)
			}

			content, err := client.Complete(context.Background(), "deploy it")
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if content != tt.want {
				t.Errorf("content = %q, expected %q", content, tt.want)
			}
			if got := fake.auth(); got != "Basic dXNlcjpwYXNz" {
				t.Errorf("Authorization = %q, expected basic credentials", got)
			}
			if got := fake.requestPath(); got != tt.wantPath {
				t.Errorf("path = %q, expected %q", got, tt.wantPath)
			}
			if tt.provider == config.ProviderOllama {
				if got := fake.field("stream"); got != false {
					t.Errorf("stream = %v, expected false", got)
				}
			}
		})
	}
}

func TestUpstreamClient_ProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		status   int
		body     string
	}{
		{
			name:     "azure server error",
			provider: config.ProviderAzure,
			model:    "gpt-4o",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"message":"boom","type":"server_error"}}`,
		},
		{
			name:     "azure no choices",
			provider: config.ProviderAzure,
			model:    "gpt-4o",
			status:   http.StatusOK,
			body:     `{"id":"x","object":"chat.completion","choices":[]}`,
		},
		{
			name:     "ollama server error",
			provider: config.ProviderOllama,
			model:    "llama3",
			status:   http.StatusInternalServerError,
			body:     `{"error":"model crashed"}`,
		},
		{
			name:     "ollama empty content",
			provider: config.ProviderOllama,
			model:    "llama3",
			status:   http.StatusOK,
			body:     ollamaChatJSON(""),
		},
		{
			name:     "gemini server error",
			provider: config.ProviderGemini,
			model:    "m",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`,
		},
		{
			name:     "gemini no candidates",
			provider: config.ProviderGemini,
			model:    "m",
			status:   http.StatusOK,
			body:     `{"candidates":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, bundle := newTLSUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			client, err := NewUpstreamClient(config.UpstreamConfig{
				Provider: tt.provider,
				BaseURL:  srv.URL,
				Model:    tt.model,
				CABundle: bundle,
			}, testBasicToken(t))
			if err != nil {
				t.Fatal(err)
			}

			_, err = client.Complete(context.Background(), "prompt")
			var upErr *UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
			}
			if upErr.Provider != tt.provider {
				t.Errorf("Provider = %q, expected %q", upErr.Provider, tt.provider)
			}
		})
	}
}
