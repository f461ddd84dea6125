package identity

import (
	"fmt"
	"os"
)

// Migration transforms a document from one version to the next. Each
// migration in the registry must be the sole transform from N to N+1.
type Migration struct {
	FromVersion int
	Apply       func(content string) (string, error)
}

// Registry is the ordered vN -> vN+1 transform list. New migrations are
// appended; the migrator applies them stepwise from the document's
// current version up to the highest registered FromVersion+1.
var Registry []Migration

// Migrate loads path, applies every pending migration in order, and
// writes the result back only if every step validates. A sibling backup
// is written before the first mutation. On validation failure after any
// step, the original content is restored and the error is returned.
func Migrate(path string) (*Document, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read for migration: %w", err)
	}

	doc, err := Parse(original)
	if err != nil {
		return nil, fmt.Errorf("identity: parse for migration: %w", err)
	}

	pending := pendingMigrations(doc.Header.Version)
	if len(pending) == 0 {
		return doc, nil
	}

	backupPath := path + fmt.Sprintf(".v%d.bak", doc.Header.Version)
	if err := os.WriteFile(backupPath, original, 0o644); err != nil {
		return nil, fmt.Errorf("identity: write migration backup: %w", err)
	}

	content := string(original)
	for _, m := range pending {
		next, err := m.Apply(content)
		if err != nil {
			return nil, fmt.Errorf("identity: migration v%d: %w", m.FromVersion, err)
		}
		nextDoc, err := Parse([]byte(next))
		if err != nil {
			return nil, fmt.Errorf("identity: migration v%d produced unparseable document: %w", m.FromVersion, err)
		}
		result := Validate(next, nextDoc)
		if !result.Valid {
			return nil, fmt.Errorf("identity: migration v%d failed validation, rolled back: %v", m.FromVersion, result.Errors)
		}
		content = next
		doc = nextDoc
	}

	if err := WriteAtomic(path, content); err != nil {
		return nil, fmt.Errorf("identity: write migrated document: %w", err)
	}
	return doc, nil
}

func pendingMigrations(from int) []Migration {
	var out []Migration
	for _, m := range Registry {
		if m.FromVersion >= from {
			out = append(out, m)
		}
	}
	return out
}
