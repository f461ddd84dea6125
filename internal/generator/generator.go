// Package generator defines the Soul Engine's opaque model-calling
// capability and the tool-invocation callback collaborators pass it. It
// is modeled after the teacher's providers.Provider interface, narrowed
// from a full chat-completion surface (model selection, streaming,
// per-call temperature) down to the single `generate` contract, since every caller here wants
// one completion, not a conversational provider switchboard.
package generator

import "context"

// Message is one turn of conversational history passed to Generate.
type Message struct {
	Role    string
	Content string
}

// Options tunes one generation call.
type Options struct {
	MaxTokens   int
	Temperature float64
	ToolHost    ToolHost
}

// Result is what a generation call produces, carrying enough usage detail
// for internal/cost to do token accounting without re-estimating from the
// prompt.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Generator is the opaque capability every caller depends on: give it a
// system prompt, history, and a user turn, get text back. Implementations
// decide how (and whether) to call out to a model.
type Generator interface {
	Generate(ctx context.Context, system string, history []Message, user string, opts Options) (Result, error)
}

// ToolHost lets a Generator implementation invoke host-side tools
// mid-generation (e.g. a web search or a server health check) without the
// generator package depending on what those tools are.
type ToolHost interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}
