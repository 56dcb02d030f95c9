package splitter

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Mode is the automaton's current interpretation of incoming characters.
type Mode int

const (
	ModeText Mode = iota
	ModeCode
	ModeEcho
)

func (m Mode) String() string {
	return m.kind().String()
}

func (m Mode) kind() Kind {
	switch m {
	case ModeCode:
		return KindCode
	case ModeEcho:
		return KindEcho
	default:
		return KindText
	}
}

// Option modifies automaton behavior.
type Option func(*Automaton)

// WithLogger sets logger used to report marker decisions.
func WithLogger(log *zap.Logger) Option {
	return func(a *Automaton) {
		if log != nil {
			a.log = log
		}
	}
}

// WithEcho enables or disables recognition of echo regions. When disabled
// echo start marker is ordinary text.
func WithEcho(enable bool) Option {
	return func(a *Automaton) {
		a.echo = enable
	}
}

// Automaton splits single document into fragments. It is not reusable: Run
// may be called only once, a fresh instance is needed for every document.
type Automaton struct {
	tok  Tokenizer
	log  *zap.Logger
	echo bool

	mode Mode
	seq  Sequence
	// current fragment, not yet in seq
	cur     strings.Builder
	curKind Kind
	curUsed bool

	done bool
}

// New returns automaton which consults tok to decide whether end marker in
// code position terminates the region.
func New(tok Tokenizer, opts ...Option) *Automaton {
	a := &Automaton{
		tok:  tok,
		log:  zap.NewNop(),
		echo: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Split is a shortcut running fresh automaton over doc.
func Split(doc string, tok Tokenizer, opts ...Option) Sequence {
	return New(tok, opts...).Run(doc)
}

// Run scans document and returns resulting fragment sequence. It never fails:
// document ending inside code region is accepted as is.
func (a *Automaton) Run(doc string) Sequence {
	if a.done {
		panic("splitter: automaton has already been used")
	}
	a.done = true

	for pos := 0; pos < len(doc); {
		rest := doc[pos:]

		switch a.mode {
		case ModeText:
			if strings.HasPrefix(rest, CodeStart) {
				pos += len(CodeStart)
				a.mode = ModeCode
				continue
			}
			if a.echo && strings.HasPrefix(rest, EchoStart) {
				pos += len(EchoStart)
				a.mode = ModeEcho
				continue
			}
		case ModeCode, ModeEcho:
			if strings.HasPrefix(rest, CodeEnd) && a.live(pos) {
				pos += len(CodeEnd)
				a.mode = ModeText
				continue
			}
		}

		_, w := utf8.DecodeRuneInString(rest)
		a.push(rest[:w])
		pos += w
	}
	a.flush()

	seq := a.seq
	a.seq = nil
	return seq
}

// live decides whether end marker at pos terminates current region. Only the
// last token of the region accumulated so far is considered. Markers inside
// unterminated block comments are not recognized as inert.
func (a *Automaton) live(pos int) bool {
	code := a.current()

	tokens, err := a.tok.Tokenize(code)
	if err != nil {
		// when in doubt end the region
		a.log.Debug("Unable to tokenize code, treating end marker as live", zap.Int("offset", pos), zap.Error(err))
		return true
	}
	if len(tokens) == 0 {
		return true
	}

	last := tokens[len(tokens)-1]
	switch {
	case last.Kind == TokenString && !last.Terminated:
		a.log.Debug("End marker inside string literal", zap.Int("offset", pos), zap.Stringer("mode", a.mode))
		return false
	case last.Kind == TokenLineComment:
		a.log.Debug("End marker inside line comment", zap.Int("offset", pos), zap.Stringer("mode", a.mode))
		return false
	}
	return true
}

// current returns content of the fragment being accumulated for present mode.
func (a *Automaton) current() string {
	if a.curUsed && a.curKind == a.mode.kind() {
		return a.cur.String()
	}
	return ""
}

// push appends s to the last fragment when its kind matches the mode or
// starts new fragment otherwise.
func (a *Automaton) push(s string) {
	kind := a.mode.kind()
	if a.curUsed && a.curKind != kind {
		a.flush()
	}
	a.curKind, a.curUsed = kind, true
	a.cur.WriteString(s)
}

func (a *Automaton) flush() {
	if !a.curUsed {
		return
	}
	a.seq = append(a.seq, Fragment{Kind: a.curKind, Content: a.cur.String()})
	a.cur.Reset()
	a.curUsed = false
}
