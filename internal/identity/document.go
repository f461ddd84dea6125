// Package identity implements the parser, writer, validator, migrator and
// differ for the Soul Engine's identity document (the "seed"): a
// structured text artifact of a header line plus named `@NAME{ body }`
// blocks.
//
// It is grounded on the teacher's surgical substitute-then-atomic-write
// style in ui.Chat.applyChanges (regex-scan a body of text, substitute
// a section, write via a sibling .tmp file then rename) generalized here
// from "replace a code block in a markdown reply" to "replace a named
// block in a structured document".
package identity

import "time"

// Header carries the document's top-line metadata.
type Header struct {
	Version     int
	Born        time.Time
	CondensedTS time.Time
	Sessions    int
}

// Block is one parsed `@NAME{ ... }` section: an ordered set of key/value
// segments. Later duplicate keys within a block win.
type Block struct {
	Name string
	// Pairs maps each key to its value (a later duplicate key wins) and
	// keeps no order; RawLines keeps the body lines in their original
	// order, which MEM's tag-preserving round trip relies on.
	Pairs    map[string]string
	RawLines []string
}

// Document is the parsed identity document.
type Document struct {
	Header Header
	Blocks map[string]*Block
}

// MandatoryBlocks lists the blocks every valid document must have,
// non-empty. Bonds is satisfied by any of BondsAliases.
var MandatoryBlocks = []string{"META", "KERN", "SELF", "STATE", "MEM"}

// BondsAliases are the three accepted bilingual spellings of the bonds
// block.
var BondsAliases = []string{"BONDS", "BINDUNGEN", "VINCULOS"}

// OptionalBlocks lists blocks a document may or may not carry.
var OptionalBlocks = []string{"INTERESTS", "CONNECTIONS", "DREAMS", "SHADOW", "OPEN", "GROWTH", "VORSCHLAG"}

// HasBondsBlock reports whether the document carries any accepted bonds
// alias, and returns which one.
func (d *Document) HasBondsBlock() (string, bool) {
	for _, alias := range BondsAliases {
		if b, ok := d.Blocks[alias]; ok && b != nil {
			return alias, true
		}
	}
	return "", false
}

// MemClass is the tag class on a MEM entry.
type MemClass string

const (
	MemCore    MemClass = "core"
	MemActive  MemClass = "active"
	MemArchive MemClass = "archive"
)

// MemEntry is one parsed MEM line: the tag metadata plus the raw line for
// lossless round trip.
type MemEntry struct {
	Class      MemClass
	Confidence float64
	Recurrence int
	Raw        string
}

// Immutable reports whether this MEM entry must never be rewritten:
// core entries, and entries with recurrence above 3.
func (m MemEntry) Immutable() bool {
	return m.Class == MemCore || m.Recurrence > 3
}

const (
	// MaxSizeBytes is the hard ceiling on total document size.
	MaxSizeBytes = 8 * 1024
	// WarnSizeBytes is the threshold at which a warning is raised but the
	// document may still be written.
	WarnSizeBytes = 5 * 1024
)
