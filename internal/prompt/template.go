// Package prompt renders prompt templates with a delimiter pair chosen so it
// never collides with the JSON braces the prompts themselves contain.
//
// A placeholder is the start delimiter, an identifier, and the end delimiter:
// ¶name¶. Any other occurrence of a delimiter is literal text. Substituted
// values are written out verbatim and never scanned again, so a value that
// contains ¶other¶ cannot pull in another variable.
package prompt

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Delims is a start/end delimiter pair.
type Delims struct {
	Start string
	End   string
}

// DefaultDelims is the pilcrow pair used by every embedded template.
var DefaultDelims = Delims{Start: "¶", End: "¶"}

// Vars maps placeholder names to values.
type Vars map[string]any

// Template is a named prompt text.
type Template struct {
	Name   string
	Text   string
	Delims Delims
}

// New returns a template using DefaultDelims.
func New(name, text string) *Template {
	return &Template{Name: name, Text: text, Delims: DefaultDelims}
}

// UnresolvedError reports a placeholder with no value in Vars.
type UnresolvedError struct {
	Template string
	Variable string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("template %q: unresolved variable %q", e.Template, e.Variable)
}

// Render substitutes every placeholder with its value from vars.
func (t *Template) Render(vars Vars) (string, error) {
	d := t.Delims
	if d.Start == "" || d.End == "" {
		d = DefaultDelims
	}

	var b strings.Builder
	b.Grow(len(t.Text))

	rest := t.Text
	for {
		i := strings.Index(rest, d.Start)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		after := rest[i+len(d.Start):]

		n := identLen(after)
		if n == 0 || !strings.HasPrefix(after[n:], d.End) {
			b.WriteString(d.Start)
			rest = after
			continue
		}

		name := after[:n]
		v, ok := vars[name]
		if !ok {
			return "", &UnresolvedError{Template: t.Name, Variable: name}
		}
		s, err := format(v)
		if err != nil {
			return "", fmt.Errorf("template %q: variable %q: %w", t.Name, name, err)
		}
		b.WriteString(s)
		rest = after[n+len(d.End):]
	}
	return b.String(), nil
}

// Placeholders lists the distinct variable names the template references, in
// order of first appearance.
func (t *Template) Placeholders() []string {
	d := t.Delims
	if d.Start == "" || d.End == "" {
		d = DefaultDelims
	}

	var out []string
	seen := make(map[string]bool)
	rest := t.Text
	for {
		i := strings.Index(rest, d.Start)
		if i < 0 {
			return out
		}
		after := rest[i+len(d.Start):]
		n := identLen(after)
		if n == 0 || !strings.HasPrefix(after[n:], d.End) {
			rest = after
			continue
		}
		if name := after[:n]; !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
		rest = after[n+len(d.End):]
	}
}

// identLen returns the byte length of the identifier at the start of s.
// Identifiers start with a letter or underscore and continue with letters,
// digits, or underscores.
func identLen(s string) int {
	n := 0
	for n < len(s) {
		r, size := utf8.DecodeRuneInString(s[n:])
		ok := r == '_' || unicode.IsLetter(r) || (n > 0 && unicode.IsDigit(r))
		if !ok {
			break
		}
		n += size
	}
	return n
}

// format renders a typed value. Slices of scalars are joined with ", ".
func format(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	case []string:
		return strings.Join(x, ", "), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			s, err := format(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ", "), nil
	}
	return "", fmt.Errorf("unsupported value type %T", v)
}
