// Package splitter breaks a template document into an ordered sequence of
// literal text and embedded Go code fragments.
package splitter

import (
	"fmt"
	"strings"

	"tplgen/utils/debug"
)

// Delimiters recognized by the automaton. They are not configurable.
const (
	CodeStart = "<?rs"
	EchoStart = "<?="
	CodeEnd   = "?>"
)

// Kind classifies fragment content.
type Kind int

const (
	// KindText is literal output.
	KindText Kind = iota
	// KindCode is a sequence of statements executed for side effect.
	KindCode
	// KindEcho is a single expression whose value is appended to the output.
	KindEcho
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCode:
		return "code"
	case KindEcho:
		return "echo"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// startMarker returns delimiter which opens region of this kind.
func (k Kind) startMarker() string {
	switch k {
	case KindCode:
		return CodeStart
	case KindEcho:
		return EchoStart
	default:
		return ""
	}
}

// Fragment is one classified span of the input document.
type Fragment struct {
	Kind    Kind
	Content string
}

func Text(s string) Fragment { return Fragment{Kind: KindText, Content: s} }
func Code(s string) Fragment { return Fragment{Kind: KindCode, Content: s} }
func Echo(s string) Fragment { return Fragment{Kind: KindEcho, Content: s} }

func (f Fragment) String() string {
	return fmt.Sprintf("%s(%q)", f.Kind, f.Content)
}

// Sequence is ordered output of the automaton. Adjacent fragments never share
// the same kind.
type Sequence []Fragment

// HasEcho reports whether any fragment is an echo expression.
func (s Sequence) HasEcho() bool {
	for _, f := range s {
		if f.Kind == KindEcho {
			return true
		}
	}
	return false
}

// Merged reports whether merge invariant holds: no two adjacent fragments of
// the same kind and no empty fragments.
func (s Sequence) Merged() bool {
	for i, f := range s {
		if len(f.Content) == 0 {
			return false
		}
		if i > 0 && s[i-1].Kind == f.Kind {
			return false
		}
	}
	return true
}

// Reconstruct concatenates fragment content putting delimiters back around
// code and echo regions. For documents with balanced markers it yields the
// original input.
func (s Sequence) Reconstruct() string {
	var b strings.Builder
	for _, f := range s {
		if f.Kind == KindText {
			b.WriteString(f.Content)
			continue
		}
		b.WriteString(f.Kind.startMarker())
		b.WriteString(f.Content)
		b.WriteString(CodeEnd)
	}
	return b.String()
}

// Dump returns readable tree of the sequence, used for debugging reports and
// the split command.
func (s Sequence) Dump(name string) string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Template %q: %d fragment(s)", name, len(s))
	for i, f := range s {
		tw.Line(1, "[%d] %s, %d byte(s)", i, f.Kind, len(f.Content))
		if f.Kind == KindText {
			tw.TextBlock(2, "content", f.Content)
			continue
		}
		tw.CodeBlock(2, f.Content)
	}
	return tw.String()
}
