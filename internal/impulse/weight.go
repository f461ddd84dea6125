package impulse

import (
	"time"

	"github.com/hbcaspa/soulengine/internal/affect"
)

// weightInput is everything a weight function needs, gathered once per
// selection so each function stays a pure computation.
type weightInput struct {
	now      time.Time
	mood     affect.Mood
	vector   affect.Vector
	state    *State
	baseRate float64
	cooldown time.Duration

	// recentInCooldown is how many times this type fired within its own
	// cooldown window, precomputed by the caller.
	recentInCooldown int
}

// weightFunc computes one type's selection weight in [0, 1].
type weightFunc func(in weightInput) float64

var weightFuncs = map[Type]weightFunc{
	ShareThought:   weightDefault,
	AskQuestion:    weightDefault,
	NewsResearch:   weightCurious,
	ServerCheck:    weightVigilant,
	HobbyPursuit:   weightCurious,
	ExpressEmotion: weightEmotional,
	TechSuggestion: weightDefault,
	Provoke:        weightProvoke,
	DreamShare:     weightNight,
	MemoryReflect:  weightDefault,
	GithubCheck:    weightVigilant,
}

// recentCount returns how many times t fired within window of now.
func recentCount(in weightInput, t Type, window time.Duration) int {
	n := 0
	cutoff := in.now.Add(-window)
	for _, tick := range in.state.RecentTypes {
		if tick.Type == t && tick.At.After(cutoff) {
			n++
		}
	}
	return n
}

// lastFired returns the most recent firing time of t, or the zero time.
func lastFired(in weightInput, t Type) time.Time {
	var last time.Time
	for _, tick := range in.state.RecentTypes {
		if tick.Type == t && tick.At.After(last) {
			last = tick.At
		}
	}
	return last
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

// weightDefault: base rate, nudged by engagement and mood valence, reduced
// by recent repetition within its declared cooldown.
func weightDefault(in weightInput) float64 {
	w := in.baseRate
	w *= 0.6 + 0.4*in.state.Engagement
	w *= 0.8 + 0.2*(in.mood.Valence+1)/2
	w = applyCooldownDecay(in, w)
	return clampWeight(w)
}

// weightCurious favors high-openness, daytime states.
func weightCurious(in weightInput) float64 {
	w := in.baseRate
	w *= 0.5 + 0.5*in.vector[affect.Openness]
	if hour := in.now.Hour(); hour >= 8 && hour < 20 {
		w *= 1.2
	}
	return clampWeight(applyCooldownDecay(in, w))
}

// weightVigilant favors high-vigilance states, independent of mood.
func weightVigilant(in weightInput) float64 {
	w := in.baseRate * (0.4 + 0.6*in.vector[affect.Vigilance])
	return clampWeight(applyCooldownDecay(in, w))
}

// weightEmotional favors states of high arousal in either valence
// direction.
func weightEmotional(in weightInput) float64 {
	intensity := absF(in.mood.Valence)
	w := in.baseRate * (0.5 + 0.5*intensity) * (0.5 + 0.5*in.mood.Energy)
	return clampWeight(applyCooldownDecay(in, w))
}

// weightNight favors late hours and high creative tension.
func weightNight(in weightInput) float64 {
	w := in.baseRate
	if hour := in.now.Hour(); hour >= 22 || hour < 5 {
		w *= 1.8
	} else {
		w *= 0.3
	}
	w *= 0.5 + 0.5*in.vector[affect.CreativeTension]
	return clampWeight(applyCooldownDecay(in, w))
}

// weightProvoke carries a hard 2-hour cooldown on top of the usual decay.
func weightProvoke(in weightInput) float64 {
	if in.now.Sub(lastFired(in, Provoke)) < 2*time.Hour {
		return 0
	}
	w := in.baseRate * (0.4 + 0.6*in.vector[affect.IntegrationPressure])
	return clampWeight(applyCooldownDecay(in, w))
}

// applyCooldownDecay halves the weight for every recent firing of this
// type within its configured cooldown window, approximating "reduced
// weight if fired in the last window" without a hard cutoff.
func applyCooldownDecay(in weightInput, w float64) float64 {
	for i := 0; i < in.recentInCooldown; i++ {
		w *= 0.5
	}
	return w
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
