package identity

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// replaceBlock finds `@name{...}` in content (nested-brace-safe) and
// substitutes newBody; if absent, the block is appended. Used to apply
// one rewrite without re-serializing the whole document, preserving
// everything the consolidator did not touch.
func replaceBlock(content, name, newBody string) string {
	prefix := "@" + name + "{"
	start := strings.Index(content, prefix)
	if start < 0 {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + prefix + newBody + "}\n"
	}

	bodyStart := start + len(prefix)
	depth := 1
	j := bodyStart
	for j < len(content) && depth > 0 {
		switch content[j] {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 {
			break
		}
		j++
	}
	if depth != 0 {
		// Malformed existing block: treat the rest of the document as lost
		// and append a fresh one rather than guess at a boundary.
		return content[:start] + prefix + newBody + "}\n"
	}
	return content[:bodyStart] + newBody + content[j:]
}

// ReplaceBlocks applies replaceBlock for every entry in newBodies, in map
// iteration order — callers that care about a specific order should call
// replaceBlock directly in sequence instead.
func ReplaceBlocks(content string, newBodies map[string]string) string {
	for name, body := range newBodies {
		content = replaceBlock(content, name, body)
	}
	return content
}

// UpdateHeader patches the META block's condensed timestamp and sessions
// counter in place, leaving every other header field untouched.
func UpdateHeader(content string, condensed time.Time, sessions int) string {
	doc, err := Parse([]byte(content))
	var existing map[string]string
	if err == nil {
		if b, ok := doc.Blocks["META"]; ok {
			existing = b.Pairs
		}
	}
	if existing == nil {
		existing = make(map[string]string)
	}
	existing["condensed"] = condensed.UTC().Format(time.RFC3339)
	existing["sessions"] = fmt.Sprintf("%d", sessions)

	body := formatPairs(existing, []string{"version", "born", "condensed", "sessions"})
	return replaceBlock(content, "META", body)
}

// formatPairs renders a pairs map as `key:value|key:value`, using order
// for any keys present, falling back to map order for the rest.
func formatPairs(pairs map[string]string, order []string) string {
	seen := make(map[string]bool, len(order))
	var segs []string
	for _, k := range order {
		if v, ok := pairs[k]; ok {
			segs = append(segs, k+":"+v)
			seen[k] = true
		}
	}
	for k, v := range pairs {
		if !seen[k] {
			segs = append(segs, k+":"+v)
		}
	}
	return strings.Join(segs, "|")
}

// WriteAtomic writes content to path via a sibling `.tmp` file and
// rename, matching the teacher's write-then-commit discipline in
// ui.Chat.applyChanges.
func WriteAtomic(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("identity: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("identity: rename: %w", err)
	}
	return nil
}
