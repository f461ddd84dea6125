package affect

// Modulations are derived, read-only multipliers downstream consumers use
// to scale their own behavior without reaching into the raw vector.
type Modulations struct {
	ImpulseCadence         float64 `json:"impulse_cadence"`
	HeartbeatDepth         float64 `json:"heartbeat_depth"`
	RouterSensitivity      float64 `json:"router_sensitivity"`
	ConsolidationFrequency float64 `json:"consolidation_frequency"`
	MemoryEncodingStrength float64 `json:"memory_encoding_strength"`
}

// Export is the full state snapshot external consumers read: the mood,
// vector, derived modulations, and dominant dimension.
type Export struct {
	Mood        Mood        `json:"mood"`
	Vector      Vector      `json:"vector"`
	Modulations Modulations `json:"modulations"`
	Dominant    Dimension   `json:"dominant"`
}

// Snapshot's companion: Export computes the full read model in one call.
func (s *State) Export() Export {
	mood, vector := s.Snapshot()
	return Export{
		Mood:        mood,
		Vector:      vector,
		Modulations: computeModulations(vector),
		Dominant:    vector.Dominant(),
	}
}

// computeModulations derives each multiplier from the dimensions it
// plausibly tracks. Higher arousal quickens impulses; higher vigilance and
// integration pressure deepen heartbeat reflection and router caution;
// higher creative tension and openness favor richer memory encoding.
func computeModulations(v Vector) Modulations {
	return Modulations{
		ImpulseCadence:         0.5 + 0.5*v[Arousal],
		HeartbeatDepth:         0.5 + 0.5*v[IntegrationPressure],
		RouterSensitivity:      0.5 + 0.5*v[Vigilance],
		ConsolidationFrequency: 0.5 + 0.5*v[IntegrationPressure],
		MemoryEncodingStrength: 0.5*v[CreativeTension] + 0.5*v[Openness],
	}
}
