package content

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"
	"go.uber.org/multierr"

	"tplgen/utils/debug"
)

// String returns a readable tree of the whole Content starting with fragment
// sequence. It exists solely for manual inspection during debugging.
func (c *Content) String() string {
	if c == nil {
		return "<nil Content>"
	}

	out := c.Seq.Dump(c.SrcName)

	counts := make(map[string]int)
	sizes := make(map[string]int)
	for _, f := range c.Seq {
		counts[f.Kind.String()]++
		sizes[f.Kind.String()] += len(f.Content)
	}
	if len(counts) > 0 {
		tw := debug.NewTreeWriter()
		tw.Line(0, "Summary: %d byte(s) of source", len(c.Source))
		keys := slices.Collect(maps.Keys(counts))
		sort.Sort(natural.StringSlice(keys))
		for _, k := range keys {
			tw.Line(1, "%s: %d fragment(s), %d byte(s)", k, counts[k], sizes[k])
		}
		out += "\n" + tw.String()
	}

	if c.Problems != nil {
		tw := debug.NewTreeWriter()
		tw.Line(0, "Problems")
		for _, p := range multierr.Errors(c.Problems) {
			tw.Line(1, "%v", p)
		}
		out += "\n" + tw.String()
	}
	return out
}
