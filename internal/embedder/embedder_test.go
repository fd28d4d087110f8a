package embedder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// OllamaEmbedder
// ---------------------------------------------------------------------------

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "all-minilm" {
			http.Error(w, `{"error":"wrong model"}`, http.StatusBadRequest)
			return
		}
		resp := ollamaEmbedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})
	vecs, err := emb.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 || vecs[1][0] != 1 {
		t.Errorf("unexpected embeddings: %v", vecs)
	}
}

func TestOllamaEmbedder_ErrorResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model \"x\" not found"}`)
	}))
	t.Cleanup(srv.Close)

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "x"})
	if _, err := emb.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error for HTTP 404")
	}
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"embeddings":[[1,2]]}`)
	}))
	t.Cleanup(srv.Close)

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})
	if _, err := emb.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error when embedding count differs from input count")
	}
}

func TestOllamaEmbedder_Ping(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			_, _ = io.WriteString(w, `{"version":"0.5.0"}`)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL})
	if err := emb.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}

	down := NewOllamaEmbedder(&OllamaConfig{Host: "http://127.0.0.1:1"})
	if err := down.Ping(context.Background()); err == nil {
		t.Error("expected ping error for unreachable host")
	}
}

// ---------------------------------------------------------------------------
// OpenAIEmbedder
// ---------------------------------------------------------------------------

func TestOpenAIEmbedder_EmbedOrdersByIndex(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose.
		_, _ = io.WriteString(w, `{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.5, 0.5]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`)
	}))
	t.Cleanup(srv.Close)

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL + "/v1",
		APIKey:  "sk-test",
		Model:   "text-embedding-3-small",
	})
	vecs, err := emb.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization header: got %q", gotAuth)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][0] != 0.5 {
		t.Errorf("embeddings not ordered by index: %v", vecs)
	}
}

func TestOpenAIEmbedder_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1]}]}`)
	}))
	t.Cleanup(srv.Close)

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m"})
	if _, err := emb.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error for missing embeddings")
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "bad", Model: "m"})
	if _, err := emb.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error for HTTP 401")
	}
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

func TestNewFromEnv(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, e any)
	}{
		{
			name: "default ollama",
			env:  map[string]string{},
			check: func(t *testing.T, e any) {
				o, ok := e.(*OllamaEmbedder)
				if !ok {
					t.Fatalf("want *OllamaEmbedder, got %T", e)
				}
				if o.model != defaultOllamaModel || o.host != "http://localhost:11434" {
					t.Errorf("defaults: model=%q host=%q", o.model, o.host)
				}
			},
		},
		{
			name: "ollama host override",
			env:  map[string]string{"OLLAMA_HOST": "http://ollama:11434", "EMBEDDING_MODEL": "nomic-embed-text"},
			check: func(t *testing.T, e any) {
				o := e.(*OllamaEmbedder)
				if o.host != "http://ollama:11434" || o.model != "nomic-embed-text" {
					t.Errorf("overrides not applied: model=%q host=%q", o.model, o.host)
				}
			},
		},
		{
			name:    "openai without key",
			env:     map[string]string{"EMBEDDING_PROVIDER": "openai"},
			wantErr: true,
		},
		{
			name: "openai with key",
			env:  map[string]string{"EMBEDDING_PROVIDER": "openai", "OPENAI_API_KEY": "sk"},
			check: func(t *testing.T, e any) {
				o, ok := e.(*OpenAIEmbedder)
				if !ok {
					t.Fatalf("want *OpenAIEmbedder, got %T", e)
				}
				if string(o.model) != defaultOpenAIModel {
					t.Errorf("model: got %q", o.model)
				}
			},
		},
		{
			name:    "azure without endpoint",
			env:     map[string]string{"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_API_KEY": "k"},
			wantErr: true,
		},
		{
			name: "azure complete",
			env: map[string]string{
				"EMBEDDING_PROVIDER":    "azure",
				"AZURE_OPENAI_API_KEY":  "k",
				"AZURE_OPENAI_ENDPOINT": "https://example.openai.azure.com",
			},
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"EMBEDDING_PROVIDER": "bedrock"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{
				"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT",
				"EMBEDDING_DIMENSIONS", "OLLAMA_HOST", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY",
				"AZURE_OPENAI_ENDPOINT",
			} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			e, err := NewFromEnv()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, e)
			}
		})
	}
}

func TestDefaultDimensions(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	if got := DefaultDimensions("ollama"); got != 384 {
		t.Errorf("ollama: want 384, got %d", got)
	}
	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("openai: want 1536, got %d", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "768")
	if got := DefaultDimensions("ollama"); got != 768 {
		t.Errorf("override: want 768, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// ValidateForIndex
// ---------------------------------------------------------------------------

func TestValidateForIndex(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	cases := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"vector disabled", map[string]string{"VECTOR_BACKEND": "none", "EMBEDDING_PROVIDER": "openai"}, false},
		{"ollama default", map[string]string{}, false},
		{"openai missing key", map[string]string{"EMBEDDING_PROVIDER": "openai"}, true},
		{"openai embedding key", map[string]string{"EMBEDDING_PROVIDER": "openai", "EMBEDDING_API_KEY": "k"}, false},
		{"azure missing endpoint", map[string]string{"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_API_KEY": "k"}, true},
		{"unknown provider", map[string]string{"EMBEDDING_PROVIDER": "gemini"}, true},
		{"chat model warns only", map[string]string{"EMBEDDING_MODEL": "llama3.1"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{
				"VECTOR_BACKEND", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY",
				"EMBEDDING_ENDPOINT", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
			} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			err := ValidateForIndex(log)
			if (err != nil) != tc.wantErr {
				t.Errorf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	if !looksLikeChatModel("GPT-4o") {
		t.Error("gpt-4o should look like a chat model")
	}
	if looksLikeChatModel("all-minilm") || looksLikeChatModel("text-embedding-3-small") {
		t.Error("embedding models misclassified as chat models")
	}
}
