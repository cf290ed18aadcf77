package app

import (
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/hfyydd/Open-AutoGLM/internal/capture"
	"github.com/hfyydd/Open-AutoGLM/internal/config"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/agent/phone"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
	asrglm "github.com/hfyydd/Open-AutoGLM/pkg/provider/asr/glm"
	asropenai "github.com/hfyydd/Open-AutoGLM/pkg/provider/asr/openai"
	asrwhisper "github.com/hfyydd/Open-AutoGLM/pkg/provider/asr/whisper"
)

// glmBaseURL is the OpenAI-compatible chat endpoint of the GLM platform.
const glmBaseURL = "https://open.bigmodel.cn/api/paas/v4"

// anyLLMProviders are the agent backends served through the any-llm bridge.
var anyLLMProviders = []string{"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"}

// anyLLMOptions forwards the config-declared credential and endpoint to the
// any-llm backend. Unset fields are omitted so the provider's environment
// variable fallback still applies.
func anyLLMOptions(entry config.ProviderEntry) []anyllmlib.Option {
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return opts
}

// DefaultRegistry returns a registry with every built-in provider factory
// registered. main.go extends it before handing it to [New]; tests usually
// bypass it with injected doubles.
func DefaultRegistry() *config.Registry {
	r := config.NewRegistry()

	r.RegisterASR("glm", func(entry config.ProviderEntry) (asr.Client, error) {
		var opts []asrglm.Option
		if entry.BaseURL != "" {
			opts = append(opts, asrglm.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, asrglm.WithModel(entry.Model))
		}
		if lang, ok := entry.Options["language"].(string); ok && lang != "" {
			opts = append(opts, asrglm.WithLanguage(lang))
		}
		return asrglm.New(entry.APIKey, opts...)
	})

	r.RegisterASR("openai", func(entry config.ProviderEntry) (asr.Client, error) {
		var opts []asropenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, asropenai.WithBaseURL(entry.BaseURL))
		}
		return asropenai.New(entry.APIKey, entry.Model, opts...)
	})

	r.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Client, error) {
		modelPath, _ := entry.Options["model_path"].(string)
		if modelPath == "" {
			return nil, fmt.Errorf("app: whisper asr requires options.model_path")
		}
		var opts []asrwhisper.Option
		if lang, ok := entry.Options["language"].(string); ok && lang != "" {
			opts = append(opts, asrwhisper.WithLanguage(lang))
		}
		return asrwhisper.New(modelPath, opts...)
	})

	// GLM agent models speak the OpenAI chat protocol on their own endpoint.
	r.RegisterAgent("glm", func(entry config.ProviderEntry) (phone.Completer, error) {
		base := entry.BaseURL
		if base == "" {
			base = glmBaseURL
		}
		return phone.NewOpenAICompleter(entry.APIKey, entry.Model,
			phone.WithBaseURL(base))
	})

	r.RegisterAgent("openai", func(entry config.ProviderEntry) (phone.Completer, error) {
		var opts []phone.OpenAIOption
		if entry.BaseURL != "" {
			opts = append(opts, phone.WithBaseURL(entry.BaseURL))
		}
		return phone.NewOpenAICompleter(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range anyLLMProviders {
		r.RegisterAgent(name, func(entry config.ProviderEntry) (phone.Completer, error) {
			return phone.NewAnyLLMCompleter(name, entry.Model, anyLLMOptions(entry)...)
		})
	}

	r.RegisterAudio(string(config.BackendMiniaudio), func(cfg config.AudioConfig) (capture.Backend, error) {
		return capture.NewMalgoBackend(capture.WithSampleRate(cfg.SampleRate))
	})
	r.RegisterAudio(string(config.BackendFake), func(cfg config.AudioConfig) (capture.Backend, error) {
		return capture.NewFakeBackend(cfg.SampleRate), nil
	})

	return r
}
