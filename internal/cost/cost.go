// Package cost implements the Soul Engine's token-usage accounting as a
// transparent decorator over any generator.Generator: every call is
// measured, aggregated into a 90-day trailing window, and checked against
// an optional daily budget.
//
// It generalizes the teacher's internal/modules.LearningModule, which
// tracked success/failure counters in SQLite with periodic persistence;
// here the counters are token sums instead of outcome tallies, and
// persistence is debounced the same way.
package cost

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/hbcaspa/soulengine/internal/bus"
	"github.com/hbcaspa/soulengine/internal/generator"
	"github.com/hbcaspa/soulengine/internal/store"
)

// Category is one of the five token-spend buckets usage is tracked under.
type Category string

const (
	CategoryConversation  Category = "conversation"
	CategoryImpulse       Category = "impulse"
	CategoryHeartbeat     Category = "heartbeat"
	CategoryReflection    Category = "reflection"
	CategoryConsolidation Category = "consolidation"
)

// Record is one aggregated day/category row.
type Record struct {
	Date         string   `json:"date"`
	Category     Category `json:"category"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	Calls        int      `json:"calls"`
}

const (
	trailingWindowDays = 90
	persistEveryNCalls = 10
)

// Tracker wraps a Generator, measuring every call and persisting
// aggregates both to a JSON file (authoritative) and the store's
// cost_ledger mirror table.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record // keyed by date+category

	statePath      string
	store          *store.Store
	bus            *bus.Bus
	dailyBudget    int
	callsSinceSave int
	budgetHitToday string
}

// NewTracker loads existing records from statePath (tolerating absence or
// corruption) and returns a ready Tracker.
func NewTracker(statePath string, st *store.Store, b *bus.Bus, dailyBudget int) *Tracker {
	t := &Tracker{
		records:     make(map[string]*Record),
		statePath:   statePath,
		store:       st,
		bus:         b,
		dailyBudget: dailyBudget,
	}
	t.load()
	t.prune()
	return t
}

func key(date string, cat Category) string { return date + "|" + string(cat) }

func (t *Tracker) load() {
	data, err := os.ReadFile(t.statePath)
	if err != nil {
		return
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return
	}
	for i := range records {
		r := records[i]
		t.records[key(r.Date, r.Category)] = &r
	}
}

func (t *Tracker) prune() {
	cutoff := time.Now().AddDate(0, 0, -trailingWindowDays).Format("2006-01-02")
	for k, r := range t.records {
		if r.Date < cutoff {
			delete(t.records, k)
		}
	}
}

// Today sums every category's usage for the current date, for the CLI's
// status banner.
func (t *Tracker) Today() (inputTokens, outputTokens, calls int) {
	today := time.Now().Format("2006-01-02")
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		if r.Date != today {
			continue
		}
		inputTokens += r.InputTokens
		outputTokens += r.OutputTokens
		calls += r.Calls
	}
	return inputTokens, outputTokens, calls
}

// EstimateTokens applies a ⌈chars/4⌉ heuristic for pre-call estimation,
// e.g. for budget checks before issuing a request.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// Record adds one completed call's usage into today's bucket for
// category, persisting every persistEveryNCalls calls.
func (t *Tracker) Record(category Category, inputTokens, outputTokens int) {
	t.mu.Lock()
	today := time.Now().Format("2006-01-02")
	k := key(today, category)
	r, ok := t.records[k]
	if !ok {
		r = &Record{Date: today, Category: category}
		t.records[k] = r
	}
	r.InputTokens += inputTokens
	r.OutputTokens += outputTokens
	r.Calls++
	t.callsSinceSave++
	shouldSave := t.callsSinceSave >= persistEveryNCalls
	if shouldSave {
		t.callsSinceSave = 0
	}
	t.mu.Unlock()

	if t.store != nil {
		_ = t.store.RecordCost(today, string(category), inputTokens, outputTokens, 1)
	}
	if shouldSave {
		t.Persist()
	}
	t.checkBudget(today)
}

func (t *Tracker) checkBudget(today string) {
	if t.dailyBudget <= 0 || t.bus == nil {
		return
	}
	t.mu.Lock()
	total := 0
	for _, r := range t.records {
		if r.Date == today {
			total += r.InputTokens + r.OutputTokens
		}
	}
	alreadyFired := t.budgetHitToday == today
	exceeded := total >= t.dailyBudget
	if exceeded && !alreadyFired {
		t.budgetHitToday = today
	}
	t.mu.Unlock()

	if exceeded && !alreadyFired {
		t.bus.Emit("cost.budget-exceeded", "cost", map[string]any{"date": today, "total_tokens": total, "budget": t.dailyBudget})
	}
}

// Persist writes the JSON state file. Best-effort, like every other
// checkpoint file in this codebase.
func (t *Tracker) Persist() {
	t.mu.Lock()
	records := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		records = append(records, *r)
	}
	t.mu.Unlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return
	}
	tmp := t.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, t.statePath)
}

// Wrap returns a generator.Generator that records usage against category
// for every call made through inner.
func (t *Tracker) Wrap(inner generator.Generator, category Category) generator.Generator {
	return trackedGenerator{inner: inner, tracker: t, category: category}
}

type trackedGenerator struct {
	inner    generator.Generator
	tracker  *Tracker
	category Category
}

func (g trackedGenerator) Generate(ctx context.Context, system string, history []generator.Message, user string, opts generator.Options) (generator.Result, error) {
	result, err := g.inner.Generate(ctx, system, history, user, opts)
	if err != nil {
		return result, err
	}
	g.tracker.Record(g.category, result.InputTokens, result.OutputTokens)
	return result, nil
}
