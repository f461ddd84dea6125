package consolidator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hbcaspa/soulengine/internal/identity"
)

// templater renders the new body for one dirty block from on-disk state
// plus whatever collaborator the consolidator holds for it. It never sees
// the raw document text, only the parsed form, so it cannot corrupt
// neighboring blocks.
type templater func(c *Consolidator, doc *identity.Document, name string) string

// mechanicalTemplaters lists every block fast consolidation knows how to
// rewrite without a generator call. STATE and MEM are deliberately absent:
// per the deep consolidation contract they are only ever rewritten by the
// two generator passes, never mechanically.
//
// BONDS/DREAMS/SHADOW/GROWTH have no defined rewrite rule of their own;
// this repo's decision (see DESIGN.md) is to treat them as mechanical
// passthroughs that clear the dirty flag without changing content, rather
// than leaving them dirty forever or inventing an undocumented rewrite.
var mechanicalTemplaters = map[string]templater{
	"INTERESTS": templateInterests,
	"BONDS":     templatePassthrough,
	"BINDUNGEN": templatePassthrough,
	"VINCULOS":  templatePassthrough,
	"DREAMS":    templatePassthrough,
	"SHADOW":    templatePassthrough,
	"GROWTH":    templatePassthrough,
}

// maxTemplatedInterests caps how many topics the INTERESTS block carries,
// keeping it well inside the document's size budget.
const maxTemplatedInterests = 8

// templateInterests renders the top accumulated interest weights, one
// topic per line, heaviest first.
func templateInterests(c *Consolidator, doc *identity.Document, name string) string {
	var weights map[string]float64
	if c.interests != nil {
		weights = c.interests.Interests()
	}
	type topicWeight struct {
		topic  string
		weight float64
	}
	list := make([]topicWeight, 0, len(weights))
	for topic, w := range weights {
		list = append(list, topicWeight{topic, w})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].weight > list[j].weight })
	if len(list) > maxTemplatedInterests {
		list = list[:maxTemplatedInterests]
	}
	lines := make([]string, 0, len(list))
	for _, e := range list {
		lines = append(lines, fmt.Sprintf("%s:%.2f", e.topic, e.weight))
	}
	return strings.Join(lines, "\n")
}

// templatePassthrough re-renders a block's existing raw lines unchanged,
// clearing its dirty flag without altering content.
func templatePassthrough(c *Consolidator, doc *identity.Document, name string) string {
	b, ok := doc.Blocks[name]
	if !ok || b == nil {
		return ""
	}
	return strings.Join(b.RawLines, "\n")
}
