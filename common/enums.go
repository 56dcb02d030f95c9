// Package common keeps enums shared between configuration and code generation
// so that neither has to import the other.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Specification of generated source formatting.
// ENUM(none, gofmt, goimports)
type FormatMode int

const (
	FormatModeNone FormatMode = iota
	FormatModeGofmt
	FormatModeGoimports
)

var ErrInvalidFormatMode = errors.New("not a valid FormatMode")

var formatModeNames = []string{"none", "gofmt", "goimports"}

// FormatModeNames returns list of possible string values of FormatMode.
func FormatModeNames() []string {
	return append([]string(nil), formatModeNames...)
}

func (m FormatMode) String() string {
	if m.IsValid() {
		return formatModeNames[m]
	}
	return fmt.Sprintf("FormatMode(%d)", int(m))
}

func (m FormatMode) IsValid() bool {
	return m >= FormatModeNone && int(m) < len(formatModeNames)
}

// ParseFormatMode is case insensitive.
func ParseFormatMode(name string) (FormatMode, error) {
	for i, n := range formatModeNames {
		if strings.EqualFold(n, name) {
			return FormatMode(i), nil
		}
	}
	return FormatModeNone, fmt.Errorf("%s is %w, allowed values are [%s]", name, ErrInvalidFormatMode, strings.Join(formatModeNames, ", "))
}

func (m FormatMode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%d is %w", int(m), ErrInvalidFormatMode)
	}
	return []byte(m.String()), nil
}

func (m *FormatMode) UnmarshalText(text []byte) error {
	v, err := ParseFormatMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Specification of embedded code pre-validation.
// ENUM(none, warn, strict)
type ValidateMode int

const (
	ValidateModeNone ValidateMode = iota
	ValidateModeWarn
	ValidateModeStrict
)

var ErrInvalidValidateMode = errors.New("not a valid ValidateMode")

var validateModeNames = []string{"none", "warn", "strict"}

// ValidateModeNames returns list of possible string values of ValidateMode.
func ValidateModeNames() []string {
	return append([]string(nil), validateModeNames...)
}

func (m ValidateMode) String() string {
	if m.IsValid() {
		return validateModeNames[m]
	}
	return fmt.Sprintf("ValidateMode(%d)", int(m))
}

func (m ValidateMode) IsValid() bool {
	return m >= ValidateModeNone && int(m) < len(validateModeNames)
}

// Enabled reports whether fragments should be checked at all.
func (m ValidateMode) Enabled() bool {
	return m == ValidateModeWarn || m == ValidateModeStrict
}

// ParseValidateMode is case insensitive.
func ParseValidateMode(name string) (ValidateMode, error) {
	for i, n := range validateModeNames {
		if strings.EqualFold(n, name) {
			return ValidateMode(i), nil
		}
	}
	return ValidateModeNone, fmt.Errorf("%s is %w, allowed values are [%s]", name, ErrInvalidValidateMode, strings.Join(validateModeNames, ", "))
}

func (m ValidateMode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%d is %w", int(m), ErrInvalidValidateMode)
	}
	return []byte(m.String()), nil
}

func (m *ValidateMode) UnmarshalText(text []byte) error {
	v, err := ParseValidateMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
