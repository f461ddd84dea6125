package identity

import (
	"fmt"
	"regexp"
)

// ValidationResult is the `{valid, errors[], warnings[]}` outcome of Validate.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

var kernAxiomPattern = regexp.MustCompile(`^\d+`)

// Validate checks the document's structural invariants: size ceiling, every
// mandatory block present and non-empty, bonds present via any alias,
// KERN has at least one numbered axiom, sessions is non-negative.
func Validate(content string, doc *Document) ValidationResult {
	res := ValidationResult{Valid: true}

	size := len(content)
	if size > MaxSizeBytes {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("document size %d exceeds hard limit %d", size, MaxSizeBytes))
	} else if size > WarnSizeBytes {
		res.Warnings = append(res.Warnings, fmt.Sprintf("document size %d exceeds warning threshold %d", size, WarnSizeBytes))
	}

	for _, name := range MandatoryBlocks {
		b, ok := doc.Blocks[name]
		if !ok || b == nil || (len(b.Pairs) == 0 && len(b.RawLines) == 0) {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf("missing or empty mandatory block %s", name))
		}
	}

	if _, ok := doc.HasBondsBlock(); !ok {
		res.Valid = false
		res.Errors = append(res.Errors, "no bonds block present under any accepted alias")
	}

	if kern, ok := doc.Blocks["KERN"]; ok {
		hasAxiom := false
		for _, line := range kern.RawLines {
			if kernAxiomPattern.MatchString(line) {
				hasAxiom = true
				break
			}
		}
		if !hasAxiom {
			res.Valid = false
			res.Errors = append(res.Errors, "KERN has no numbered axiom")
		}
	}

	if doc.Header.Sessions < 0 {
		res.Valid = false
		res.Errors = append(res.Errors, "sessions is negative")
	}

	return res
}
