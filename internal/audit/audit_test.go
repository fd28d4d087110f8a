package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/54b3r/bookrec-go/internal/logging"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "EMBEDDING_API_KEY", "QDRANT_API_KEY"} {
		if got := SanitiseKey(key, "sk-abc123"); got != "set" {
			t.Errorf("%s: expected 'set', got %q", key, got)
		}
		if got := SanitiseKey(key, ""); got != "unset" {
			t.Errorf("%s: expected 'unset', got %q", key, got)
		}
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("VECTOR_BACKEND", "qdrant"); got != "qdrant" {
		t.Errorf("expected 'qdrant', got %q", got)
	}
	if got := SanitiseKey("VECTOR_BACKEND", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.bookrec/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.bookrec/config.yaml" {
			t.Errorf("expected '~/.bookrec/config.yaml', got %q", got)
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	t.Setenv("VECTOR_BACKEND", "sqlite")
	t.Setenv("QDRANT_API_KEY", "")

	var buf bytes.Buffer
	LogCommandStart(context.Background(), logging.NewWithWriter(&buf, "info", "json"), "serve", "")

	if bytes.Contains(buf.Bytes(), []byte("sk-very-secret")) {
		t.Fatalf("secret value leaked into audit log: %s", buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	want := map[string]string{
		"command":        "serve",
		"config_file":    "none",
		"OPENAI_API_KEY": "set",
		"QDRANT_API_KEY": "unset",
		"VECTOR_BACKEND": "sqlite",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: expected %q, got %v", k, v, entry[k])
		}
	}
}
