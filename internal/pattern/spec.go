// Package pattern parses placeholder specifications of the form
// "<template>:<first>:<last>" and expands them into candidate file names.
package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// ConfigurationError reports a malformed placeholder specification.
type ConfigurationError struct {
	Value  string // Raw placeholder value
	Reason string
	Err    error // Underlying error (optional)
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid placeholder %q: %s: %v", e.Value, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid placeholder %q: %s", e.Value, e.Reason)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Spec is an immutable placeholder specification.
type Spec struct {
	Template string
	First    int
	Last     int
}

// String renders the spec in its textual form.
func (s Spec) String() string {
	return fmt.Sprintf("%s:%d:%d", s.Template, s.First, s.Last)
}

// Parse reads a placeholder value. The template may itself contain colons, so
// the bounds are taken from the last two separators.
func Parse(value string) (Spec, error) {
	v := strings.TrimSpace(value)
	last := strings.LastIndex(v, ":")
	if last < 0 {
		return Spec{}, &ConfigurationError{Value: value, Reason: "expected <template>:<first>:<last>"}
	}
	mid := strings.LastIndex(v[:last], ":")
	if mid < 0 {
		return Spec{}, &ConfigurationError{Value: value, Reason: "expected <template>:<first>:<last>"}
	}

	template := v[:mid]
	first, err := strconv.Atoi(strings.TrimSpace(v[mid+1 : last]))
	if err != nil {
		return Spec{}, &ConfigurationError{Value: value, Reason: "first index is not an integer", Err: err}
	}
	lastIdx, err := strconv.Atoi(strings.TrimSpace(v[last+1:]))
	if err != nil {
		return Spec{}, &ConfigurationError{Value: value, Reason: "last index is not an integer", Err: err}
	}
	if first > lastIdx {
		return Spec{}, &ConfigurationError{
			Value:  value,
			Reason: fmt.Sprintf("first index %d is greater than last index %d", first, lastIdx),
		}
	}
	if template == "" {
		return Spec{}, &ConfigurationError{Value: value, Reason: "empty file name template"}
	}
	if _, err := goFormat(template); err != nil {
		return Spec{}, &ConfigurationError{Value: value, Reason: err.Error()}
	}
	return Spec{Template: template, First: first, Last: lastIdx}, nil
}

// goFormat checks that template holds exactly one integer conversion,
// %[flags][width][.precision][length]d (or i, u), and returns it as a Go
// format string. Length modifiers are dropped and i and u become d.
func goFormat(template string) (string, error) {
	var sb strings.Builder
	conversions := 0
	for i := 0; i < len(template); i++ {
		if template[i] != '%' {
			sb.WriteByte(template[i])
			continue
		}
		start := i
		i++
		if i < len(template) && template[i] == '%' {
			sb.WriteString("%%")
			continue
		}
		for i < len(template) && strings.IndexByte("-+ 0#", template[i]) >= 0 {
			i++
		}
		i = skipDigits(template, i)
		if i < len(template) && template[i] == '.' {
			i = skipDigits(template, i+1)
		}
		spec := template[start:i]
		for i < len(template) && strings.IndexByte("hlLqjzt", template[i]) >= 0 {
			i++
		}
		if i >= len(template) {
			return "", fmt.Errorf("truncated conversion at end of template")
		}
		switch template[i] {
		case 'd', 'i', 'u':
		default:
			return "", fmt.Errorf("unsupported conversion %%%c, only integer conversions are allowed", template[i])
		}
		sb.WriteString(spec)
		sb.WriteByte('d')
		conversions++
	}
	switch conversions {
	case 0:
		return "", fmt.Errorf("template has no integer conversion")
	case 1:
		return sb.String(), nil
	default:
		return "", fmt.Errorf("template has %d integer conversions, want one", conversions)
	}
}

func skipDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}
