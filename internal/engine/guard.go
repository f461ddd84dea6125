package engine

import (
	"os"
	"time"
)

// checkSessionGuard reports whether a guard sentinel from a prior run is
// still present, meaning that run never reached a clean shutdown.
func (e *Engine) checkSessionGuard() bool {
	_, err := os.Stat(e.paths.SessionGuard)
	return err == nil
}

// armSessionGuard creates the sentinel marking a session in progress.
func (e *Engine) armSessionGuard() error {
	return os.WriteFile(e.paths.SessionGuard, []byte(time.Now().Format(time.RFC3339)), 0o644)
}

// disarmSessionGuard removes the sentinel on clean shutdown. Best-effort:
// a failed removal here just means the next start sees a (harmless) false
// warning.
func (e *Engine) disarmSessionGuard() {
	_ = os.Remove(e.paths.SessionGuard)
}
