// Package config loads the Soul Engine's immutable configuration record
// from the process environment. A .env file is loaded first, if present, the way the teacher
// loads flags once at startup and passes them down — here the loader is
// github.com/joho/godotenv instead of flag parsing, since the daemon's
// CLI surface (cmd/soulengine) has no interactive flags of its own beyond
// the six operator subcommands.
package config

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable configuration record every component receives
// at construction. Fields that loops must observe at runtime are exposed
// as atomic values instead of being re-read from the environment.
type Config struct {
	SoulRoot string

	BusDebug         bool
	ImpulseEnabled   *atomic.Bool
	ConsolidatorOn   *atomic.Bool
	VersioningOn     *atomic.Bool
	AntiPerformance  bool
	ReflectionOn     bool
	ReflectionBudget int

	TokenBudgetConversation  int
	TokenBudgetImpulse       int
	TokenBudgetHeartbeat     int
	TokenBudgetReflection    int
	TokenBudgetConsolidation int
	DailyTokenBudget         int

	HeartbeatCron string

	ImpulseMinDelay  time.Duration
	ImpulseMaxDelay  time.Duration
	ImpulseNightFrom int
	ImpulseNightTo   int

	SecretKey string

	GeneratorBaseURL string
	GeneratorAPIKey  string
	GeneratorModel   string

	MetricsAddr string
}

// Load reads a .env file (if present) then builds a Config from the
// environment, applying the documented defaults.
func Load() (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is not an error

	cfg := &Config{
		SoulRoot:         getenv("SOUL_ROOT", "."),
		BusDebug:         getenvBool("SOUL_BUS_DEBUG", false),
		ImpulseEnabled:   atomicBool(getenvBool("SOUL_IMPULSE", true)),
		ConsolidatorOn:   atomicBool(getenvBool("SOUL_CONSOLIDATOR", true)),
		VersioningOn:     atomicBool(getenvBool("SOUL_VERSIONING", true)),
		AntiPerformance:  getenvBool("SOUL_ANTI_PERFORMANCE", false),
		ReflectionOn:     getenvBool("SOUL_REFLECTION", false),
		ReflectionBudget: getenvInt("SOUL_REFLECTION_LLM_BUDGET", 1024),

		TokenBudgetConversation:  getenvInt("SOUL_TOKEN_BUDGET_CONVERSATION", 2048),
		TokenBudgetImpulse:       getenvInt("SOUL_TOKEN_BUDGET_IMPULSE", 512),
		TokenBudgetHeartbeat:     getenvInt("SOUL_TOKEN_BUDGET_HEARTBEAT", 1024),
		TokenBudgetReflection:    getenvInt("SOUL_TOKEN_BUDGET_REFLECTION", 1024),
		TokenBudgetConsolidation: getenvInt("SOUL_TOKEN_BUDGET_CONSOLIDATION", 1024),
		DailyTokenBudget:         getenvInt("SOUL_DAILY_TOKEN_BUDGET", 0),

		HeartbeatCron: getenv("HEARTBEAT_CRON", "0 */4 * * *"),

		ImpulseMinDelay:  time.Duration(getenvInt("IMPULSE_MIN_DELAY", 900)) * time.Second,
		ImpulseMaxDelay:  time.Duration(getenvInt("IMPULSE_MAX_DELAY", 14400)) * time.Second,
		ImpulseNightFrom: getenvInt("IMPULSE_NIGHT_START", 23),
		ImpulseNightTo:   getenvInt("IMPULSE_NIGHT_END", 7),

		SecretKey: os.Getenv("SOUL_SECRET_KEY"),

		GeneratorBaseURL: getenv("GENERATOR_BASE_URL", "https://openrouter.ai/api/v1"),
		GeneratorAPIKey:  os.Getenv("GENERATOR_API_KEY"),
		GeneratorModel:   getenv("GENERATOR_MODEL", "openrouter/auto"),

		MetricsAddr: getenv("SOUL_METRICS_ADDR", ""),
	}

	return cfg, nil
}

func atomicBool(v bool) *atomic.Bool {
	b := &atomic.Bool{}
	b.Store(v)
	return b
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
