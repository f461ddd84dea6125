package store

import "strings"

// InterestPattern is one keyword → topic mapping used by the impulse
// scheduler's onUserMessage interest extraction.
type InterestPattern struct {
	Topic   string
	Keyword string
	Weight  float64
}

// InterestPatterns returns every enabled pattern.
func (s *Store) InterestPatterns() ([]InterestPattern, error) {
	rows, err := s.db.Query(`SELECT topic, keyword, weight FROM interest_patterns WHERE enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InterestPattern
	for rows.Next() {
		var p InterestPattern
		if err := rows.Scan(&p.Topic, &p.Keyword, &p.Weight); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MatchInterests returns the topics whose keyword appears in text
// (case-insensitive substring match), paired with their configured
// weight.
func MatchInterests(text string, patterns []InterestPattern) map[string]float64 {
	lower := strings.ToLower(text)
	hits := make(map[string]float64)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p.Keyword)) {
			if existing, ok := hits[p.Topic]; !ok || p.Weight > existing {
				hits[p.Topic] = p.Weight
			}
		}
	}
	return hits
}
