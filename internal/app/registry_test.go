package app

import (
	"testing"

	"github.com/hfyydd/Open-AutoGLM/internal/config"
)

func TestAnyLLMOptionsForwardCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry config.ProviderEntry
		want  int
	}{
		{
			name:  "key and base url",
			entry: config.ProviderEntry{APIKey: "sk-test", BaseURL: "http://localhost:11434"},
			want:  2,
		},
		{
			name:  "key only",
			entry: config.ProviderEntry{APIKey: "sk-test"},
			want:  1,
		},
		{
			name:  "base url only",
			entry: config.ProviderEntry{BaseURL: "http://localhost:11434"},
			want:  1,
		},
		{
			name:  "neither, environment fallback",
			entry: config.ProviderEntry{},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := anyLLMOptions(tt.entry); len(got) != tt.want {
				t.Errorf("anyLLMOptions(%+v) returned %d options, want %d", tt.entry, len(got), tt.want)
			}
		})
	}
}

func TestDefaultRegistryBuildsAnyLLMAgent(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	completer, err := r.CreateAgent(config.ProviderEntry{
		Name:   "anthropic",
		APIKey: "sk-ant-test",
		Model:  "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if completer == nil {
		t.Fatal("CreateAgent returned nil completer")
	}
}
