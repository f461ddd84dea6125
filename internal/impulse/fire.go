package impulse

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hbcaspa/soulengine/internal/affect"
	"github.com/hbcaspa/soulengine/internal/generator"
	"github.com/hbcaspa/soulengine/internal/identity"
)

// maxContentChars is the hard ceiling applied to a fired impulse's
// delivered text, after markdown-heading stripping.
const maxContentChars = 2000

// Delivery routes a fired impulse's content to wherever the operator's
// adapter sends it (chat, notification, etc). The scheduler is agnostic
// to the transport.
type Delivery interface {
	Deliver(ctx context.Context, impulseType Type, content string) error
}

// tokenBudgets gives each impulse type its own generation ceiling;
// research/check types that may invoke tools get more headroom than a
// short expressive share.
var tokenBudgets = map[Type]int{
	ShareThought:   256,
	AskQuestion:    192,
	NewsResearch:   512,
	ServerCheck:    384,
	HobbyPursuit:   320,
	ExpressEmotion: 192,
	TechSuggestion: 320,
	Provoke:        192,
	DreamShare:     320,
	MemoryReflect:  320,
	GithubCheck:    384,
}

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s*`)

// IdentityCache re-parses identPath only when its mtime advances,
// matching the teacher's fsnotify-driven reload posture without requiring
// an actual watcher for a file read once per fire.
type IdentityCache struct {
	path    string
	mtime   time.Time
	content string
	doc     *identity.Document
}

// NewIdentityCache constructs a cache reading path on first load and on
// every mtime advance thereafter.
func NewIdentityCache(path string) *IdentityCache {
	return &IdentityCache{path: path}
}

func (c *IdentityCache) load() (*identity.Document, string, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, "", fmt.Errorf("impulse: stat identity doc: %w", err)
	}
	if c.doc != nil && !info.ModTime().After(c.mtime) {
		return c.doc, c.content, nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, "", fmt.Errorf("impulse: read identity doc: %w", err)
	}
	doc, err := identity.Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("impulse: parse identity doc: %w", err)
	}
	c.doc = doc
	c.content = string(data)
	c.mtime = info.ModTime()
	return doc, c.content, nil
}

// FireResult is what one fire pass produced, for logging.
type FireResult struct {
	Type      Type
	Content   string
	Fired     bool
	SkipReason string
}

// Fire runs one full fire pass: reload, select, generate, trim, deliver,
// track, and persist.
func (s *Scheduler) Fire(ctx context.Context, gen generator.Generator, cache *IdentityCache, deliver Delivery, affectState *affect.State) (FireResult, error) {
	doc, _, err := cache.load()
	if err != nil {
		return FireResult{}, err
	}

	mood, vector := affectState.Snapshot()
	impulseType := s.Select(time.Now(), mood, vector)

	system := buildSystemPrompt(impulseType, doc)
	budget, ok := tokenBudgets[impulseType]
	if !ok {
		budget = 256
	}

	result, err := gen.Generate(ctx, system, nil, "", generator.Options{MaxTokens: budget, Temperature: 0.85})
	if err != nil {
		return FireResult{Type: impulseType}, fmt.Errorf("impulse: generate: %w", err)
	}

	content := trimImpulseContent(result.Content)
	if content == "" {
		return FireResult{Type: impulseType, SkipReason: "empty generation"}, nil
	}

	if deliver != nil {
		if err := deliver.Deliver(ctx, impulseType, content); err != nil {
			return FireResult{Type: impulseType, Content: content}, fmt.Errorf("impulse: deliver: %w", err)
		}
	}

	s.trackFiring(impulseType)

	if s.bus != nil {
		s.bus.Emit("impulse.fired", "impulse", map[string]any{
			"type":    string(impulseType),
			"chars":   len(content),
		})
	}

	return FireResult{Type: impulseType, Content: content, Fired: true}, nil
}

func (s *Scheduler) trackFiring(t Type) {
	now := time.Now()
	s.mu.Lock()
	s.state.LastImpulseTS = now
	s.state.RecentTypes = append(s.state.RecentTypes, TypedTick{Type: t, At: now})
	if len(s.state.RecentTypes) > recentTypesWindow {
		s.state.RecentTypes = s.state.RecentTypes[len(s.state.RecentTypes)-recentTypesWindow:]
	}
	today := now.Format("2006-01-02")
	if s.state.DailyDate != today {
		s.state.DailyDate = today
		s.state.DailyCount = 0
	}
	s.state.DailyCount++
	s.state.Engagement = clamp01(s.state.Engagement - engagementDecayOnFire)
	s.state.responseDeadlineHandled = false
	s.mu.Unlock()

	s.Persist()
}

// trimImpulseContent strips markdown headings and clamps length, per the
// fire loop's delivery-prep step.
func trimImpulseContent(raw string) string {
	text := headingPattern.ReplaceAllString(raw, "")
	text = strings.TrimSpace(text)
	if len(text) > maxContentChars {
		text = text[:maxContentChars]
	}
	return text
}

// buildSystemPrompt assembles the generation prompt for impulseType from
// the identity document. The actual prose is an external collaborator's
// concern; this lays out the structural scaffold every type shares.
func buildSystemPrompt(impulseType Type, doc *identity.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are producing one proactive message of type %q.\n", impulseType)
	if self, ok := doc.Blocks["SELF"]; ok {
		fmt.Fprintf(&sb, "Self: %s\n", formatPairsForPrompt(self.Pairs))
	}
	if state, ok := doc.Blocks["STATE"]; ok {
		fmt.Fprintf(&sb, "Current state: %s\n", formatPairsForPrompt(state.Pairs))
	}
	sb.WriteString("Write in your own voice, one short message, no markdown headings.\n")
	return sb.String()
}

func formatPairsForPrompt(pairs map[string]string) string {
	var parts []string
	for k, v := range pairs {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ", ")
}
