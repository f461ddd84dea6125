package consolidator

import (
	"strings"

	"github.com/hbcaspa/soulengine/internal/identity"
)

// handleFailure runs the recovery path after a validation failure,
// incrementing the shared failure counter and entering mechanical-only
// mode once it crosses maxFailures. The counter is shared across fast and
// deep failures, since both paths write the same document under the same
// single-writer discipline.
func (c *Consolidator) handleFailure(stage string, result identity.ValidationResult) {
	c.log.Warn().Str("stage", stage).Strs("errors", result.Errors).Msg("consolidation validation failed, recovering")

	if c.bus != nil {
		c.bus.Emit("seed.validation-failed", "consolidator", map[string]any{
			"stage":  stage,
			"detail": strings.Join(result.Errors, "; "),
		})
	}

	if c.ver != nil {
		if _, err := c.ver.RecoverLastValid(); err != nil {
			c.log.Error().Err(err).Msg("recovery from last valid revision failed")
		}
	}

	c.mu.Lock()
	c.consecutiveFailures++
	failures := c.consecutiveFailures
	c.mu.Unlock()

	if failures >= c.maxFailures {
		c.enterRecoveryMode()
	}
}

func (c *Consolidator) enterRecoveryMode() {
	c.mu.Lock()
	c.mechanicalOnly = true
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Emit("seed.recovery-mode-entered", "consolidator", map[string]any{"consecutive_failures": c.maxFailures})
	}
	c.log.Error().Msg("entering mechanical-only recovery mode after repeated consolidation failures")
}

// ResetRecoveryState exits mechanical-only mode and zeroes the failure
// counter. Intended for an operator to call (via the CLI) after
// investigating why deep consolidation kept failing.
func (c *Consolidator) ResetRecoveryState() {
	c.mu.Lock()
	c.mechanicalOnly = false
	c.consecutiveFailures = 0
	c.mu.Unlock()
	c.log.Info().Msg("recovery state reset")
}

// InRecoveryMode reports whether the consolidator is currently restricted
// to mechanical-only passes.
func (c *Consolidator) InRecoveryMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mechanicalOnly
}
