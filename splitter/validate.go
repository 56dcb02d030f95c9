package splitter

import (
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"

	"go.uber.org/multierr"
)

// FragmentError describes problem found in a single code or echo fragment.
type FragmentError struct {
	Index int
	Kind  Kind
	Err   error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("%s fragment %d: %v", e.Kind, e.Index, e.Err)
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}

// Validate performs optional pre-validation of embedded code. Statements are
// frequently split across several code fragments (loops, conditionals), so
// code fragments are only checked lexically. Echo fragments must be complete
// expressions. All problems are returned combined, nil when none were found.
func Validate(seq Sequence) (err error) {
	for i, f := range seq {
		var ferr error
		switch f.Kind {
		case KindCode:
			ferr = checkLexical(f.Content)
		case KindEcho:
			if _, perr := parser.ParseExpr(f.Content); perr != nil {
				ferr = perr
			}
		default:
			continue
		}
		if ferr != nil {
			err = multierr.Append(err, &FragmentError{Index: i, Kind: f.Kind, Err: ferr})
		}
	}
	return err
}

func checkLexical(code string) error {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(code))

	var (
		s    scanner.Scanner
		errs scanner.ErrorList
	)
	s.Init(file, []byte(code), errs.Add, scanner.ScanComments)
	for {
		if _, tok, _ := s.Scan(); tok == token.EOF {
			break
		}
	}
	errs.Sort()
	return errs.Err()
}
