package consolidator

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
	"github.com/hbcaspa/soulengine/internal/soulerr"
)

// dailyNotesTailBytes bounds how much of the daily notes file the STATE
// and MEM prompts embed.
const dailyNotesTailBytes = 2 * 1024

func (c *Consolidator) doDeepGenerate(ctx context.Context, now time.Time) error {
	raw, err := os.ReadFile(c.identPath)
	if err != nil {
		return soulerr.New(soulerr.Fatal, "consolidator.deep.read", err)
	}
	doc, err := identity.Parse(raw)
	if err != nil {
		return soulerr.New(soulerr.Integrity, "consolidator.deep.parse", err)
	}

	dailyNotes := truncateTail(readFileBestEffort(c.dailyNotesPath), dailyNotesTailBytes)
	external := readFileBestEffort(c.externalConsciousnessPath)

	var mood affect.Mood
	var vector affect.Vector
	if c.mood != nil {
		export := c.mood.Export()
		mood, vector = export.Mood, export.Vector
	}

	stateSystem, stateUser := buildStatePrompt(doc, external, dailyNotes, mood, vector)
	stateResult, err := c.gen.Generate(ctx, stateSystem, nil, stateUser, generator.Options{MaxTokens: deepTokenBudget})
	if err != nil {
		return soulerr.New(soulerr.Transient, "consolidator.deep.state", err)
	}
	newState := stripBlockWrapper("STATE", stateResult.Content)

	memSystem, memUser := buildMemPrompt(doc, dailyNotes)
	memResult, err := c.gen.Generate(ctx, memSystem, nil, memUser, generator.Options{MaxTokens: deepTokenBudget})
	if err != nil {
		return soulerr.New(soulerr.Transient, "consolidator.deep.mem", err)
	}
	newMem := stripBlockWrapper("MEM", memResult.Content)

	text := identity.ReplaceBlocks(string(raw), map[string]string{"STATE": newState, "MEM": newMem})
	text = identity.UpdateHeader(text, now, doc.Header.Sessions)

	newDoc, err := identity.Parse([]byte(text))
	if err != nil {
		return soulerr.New(soulerr.Integrity, "consolidator.deep.reparse", err)
	}
	result := identity.Validate(text, newDoc)
	if !result.Valid {
		c.handleFailure("deep", result)
		return soulerr.New(soulerr.Validation, "consolidator.deep.validate", fmt.Errorf("%s", strings.Join(result.Errors, "; ")))
	}

	if err := identity.WriteAtomic(c.identPath, text); err != nil {
		return soulerr.New(soulerr.External, "consolidator.deep.write", err)
	}

	c.mu.Lock()
	delete(c.dirtyBlocks, "STATE")
	delete(c.dirtyBlocks, "MEM")
	c.lastDeepTS = now
	c.eventsSinceDeep = 0
	c.consecutiveFailures = 0
	c.mu.Unlock()

	if c.ver != nil {
		c.ver.Queue("consolidate", "deep pass")
	}
	if c.bus != nil {
		c.bus.Emit("seed.consolidated", "consolidator", map[string]any{"kind": "deep"})
	}
	c.log.Info().Msg("deep consolidation complete")
	return nil
}

// buildStatePrompt assembles the STATE-rewrite call's system and user
// turns, per the contract: key:value|… format, exactly the mandatory
// lines, no accidental wrapper.
func buildStatePrompt(doc *identity.Document, external, dailyNotes string, mood affect.Mood, vector affect.Vector) (system, user string) {
	system = "You rewrite the @STATE block of an identity document. " +
		"Respond with only the block body, using key:value|key:value format on a single line, " +
		"keeping exactly the keys already present in the current block. " +
		"Never wrap the response in @STATE{...} and never invent new keys."

	var stateBody string
	if b, ok := doc.Blocks["STATE"]; ok {
		stateBody = strings.Join(b.RawLines, "\n")
	}
	user = fmt.Sprintf(
		"Current STATE:\n%s\n\nExternal consciousness notes:\n%s\n\nRecent daily notes:\n%s\n\nMood: valence=%.2f energy=%.2f label=%s\nAllostatic vector: %s",
		stateBody, external, dailyNotes, mood.Valence, mood.Energy, mood.Label, formatVector(vector),
	)
	return system, user
}

func formatVector(v affect.Vector) string {
	parts := make([]string, 0, len(affect.AllDimensions))
	for _, d := range affect.AllDimensions {
		parts = append(parts, fmt.Sprintf("%s=%.2f", d, v[d]))
	}
	return strings.Join(parts, " ")
}

// buildMemPrompt assembles the MEM-condense call's system and user turns,
// per the contract: never touch [core], near-never archive r>3, increment
// r on recurrence, insert new [active] entries, drop stale low-confidence
// ones, stay under 30 lines.
func buildMemPrompt(doc *identity.Document, dailyNotes string) (system, user string) {
	system = "You condense the @MEM block of an identity document. " +
		"Never modify [core] entries. Near-never archive entries with r greater than 3. " +
		"Increment r when an entry's subject recurs in the notes below. " +
		"Insert new [active|c:0.5|r:1] entries for meaningful events in the notes. " +
		"Drop [active] entries with c less than 0.3 and r less than 2 that are older than one month. " +
		"Keep the block under 30 lines total. Respond with only the block body, one entry per line, " +
		"never wrapped in @MEM{...}."

	var memBody string
	if b, ok := doc.Blocks["MEM"]; ok {
		memBody = strings.Join(b.RawLines, "\n")
	}
	user = fmt.Sprintf("Current MEM:\n%s\n\nRecent daily notes:\n%s", memBody, dailyNotes)
	return system, user
}

// stripBlockWrapper removes an accidental `@NAME{...}` wrapper a generator
// call may have echoed back despite instructions, returning content
// unchanged if no such wrapper is present.
func stripBlockWrapper(name, content string) string {
	content = strings.TrimSpace(content)
	pattern := regexp.MustCompile(`(?s)^@` + regexp.QuoteMeta(name) + `\{(.*)\}\s*$`)
	if m := pattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return content
}

func readFileBestEffort(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// truncateTail keeps only the last max bytes of s, the same "truncated
// daily notes" shape the STATE rewrite prompt calls for.
func truncateTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
