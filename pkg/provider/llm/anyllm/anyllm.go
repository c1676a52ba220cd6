// Package anyllm implements llm.Generator backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface
// that supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral,
// Groq, and more.
//
// Usage:
//
//	g, err := anyllm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
//	g, err := anyllm.New("ollama", "llama3.2", anyllmlib.WithBaseURL("http://localhost:11434"))
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/roomguard/pkg/provider/llm"
)

// defaultSystemPrompt frames the model as the voice of the guard agent.
const defaultSystemPrompt = "You are the spoken voice of an autonomous room " +
	"security agent. An unrecognized person is in the room. Produce exactly " +
	"one spoken line addressing them directly. Match the requested tone and " +
	"urgency. Never break character, never mention being an AI or a language " +
	"model, and never exceed the word limit."

// Compile-time assertion that *Generator satisfies llm.Generator.
var _ llm.Generator = (*Generator)(nil)

// Generator implements llm.Generator by wrapping any-llm-go.
type Generator struct {
	backend      anyllmlib.Provider
	model        string
	systemPrompt string
	temperature  float64
}

// Option is a functional option for configuring a Generator.
type Option func(*Generator)

// WithSystemPrompt replaces the built-in system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(g *Generator) { g.systemPrompt = prompt }
}

// WithTemperature sets the sampling temperature. Default: 0.7.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// New creates a Generator backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile". model is the
// specific model to use (e.g., "gpt-4o-mini").
//
// backendOpts are any-llm-go options (anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL, …). Without an API key option, the backend falls
// back to its environment variable (OPENAI_API_KEY etc.).
func New(providerName, model string, backendOpts []anyllmlib.Option, opts ...Option) (*Generator, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, backendOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	g := &Generator{
		backend:      backend,
		model:        model,
		systemPrompt: defaultSystemPrompt,
		temperature:  0.7,
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Generate implements llm.Generator.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	params := g.buildParams(req)

	resp, err := g.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.ContentString()), nil
}

// buildParams converts an llm.Request into anyllm CompletionParams. The
// escalation history is replayed as alternating assistant/user messages so
// backends with conversation memory see the confrontation so far.
func (g *Generator) buildParams(req llm.Request) anyllmlib.CompletionParams {
	messages := []anyllmlib.Message{{
		Role:    anyllmlib.RoleSystem,
		Content: g.systemPrompt,
	}}

	for _, ex := range req.History {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleAssistant,
			Content: ex.AgentLine,
		})
		if ex.PersonReply != "" {
			messages = append(messages, anyllmlib.Message{
				Role:    anyllmlib.RoleUser,
				Content: ex.PersonReply,
			})
		}
	}

	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: instruction(req),
	})

	t := g.temperature
	params := anyllmlib.CompletionParams{
		Model:       g.model,
		Messages:    messages,
		Temperature: &t,
	}
	return params
}

// instruction renders the per-cycle directive for the model.
func instruction(req llm.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Escalation level %d of 4. Tone: %s. Urgency: %s.", req.Level, req.Tone, req.Urgency)
	if req.MaxWords > 0 {
		fmt.Fprintf(&b, " At most %d words.", req.MaxWords)
	}
	switch req.Reason {
	case "silence-timeout":
		b.WriteString(" The person has not answered. Press harder.")
	case "uncooperative":
		fmt.Fprintf(&b, " The person was hostile or dismissive (they said: %q).", req.PersonReply)
	case "clarification":
		fmt.Fprintf(&b, " The person's reply was unclear (they said: %q). Ask them to repeat or clarify.", req.PersonReply)
	case "cooperative":
		fmt.Fprintf(&b, " The person is cooperating (they said: %q). Acknowledge and ask them to identify themselves.", req.PersonReply)
	default:
		b.WriteString(" This is the opening line. Ask who they are.")
	}
	b.WriteString(" Speak the line now.")
	return b.String()
}

// createBackend creates the underlying any-llm-go provider for the given
// provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}
