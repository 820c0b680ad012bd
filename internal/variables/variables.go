// Package variables resolves {{name}} placeholders in step text.
package variables

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
)

// ErrInvalidKey is returned when a variable key is not an identifier.
var ErrInvalidKey = errors.New("invalid variable key")

var (
	keyPattern         = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)
)

// ValidKey reports whether key can be used as a variable name.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// Resolve replaces every {{key}} in text with the value of the first variable
// carrying that key. The text is scanned once, so substituted values are never
// expanded again. Placeholders without a matching variable are left as is.
func Resolve(text string, vars []domain.Variable) string {
	if len(vars) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	values := make(map[string]string, len(vars))
	for _, v := range vars {
		if _, seen := values[v.Key]; !seen {
			values[v.Key] = v.Value
		}
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-2]
		if value, ok := values[key]; ok {
			return value
		}
		return match
	})
}

// Table is an insertion-ordered set of variables with unique keys.
// The zero value is ready to use. A Table is not safe for concurrent use.
type Table struct {
	order  []string
	values map[string]string
}

// NewTable returns a table seeded with vars. Invalid keys are rejected. When
// a key repeats the first value is kept, the same rule Resolve applies.
func NewTable(vars ...domain.Variable) (*Table, error) {
	t := &Table{}
	for _, v := range vars {
		if _, exists := t.Get(strings.TrimSpace(v.Key)); exists {
			continue
		}
		if err := t.Set(v.Key, v.Value); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Set adds or updates a variable. Updating keeps the original position.
func (t *Table) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, exists := t.values[key]; !exists {
		t.order = append(t.order, key)
	}
	t.values[key] = value
	return nil
}

// Delete removes a variable and reports whether it existed.
func (t *Table) Delete(key string) bool {
	if _, exists := t.values[key]; !exists {
		return false
	}
	delete(t.values, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the value stored for key.
func (t *Table) Get(key string) (string, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Len returns the number of variables.
func (t *Table) Len() int {
	return len(t.order)
}

// List returns the variables in insertion order.
func (t *Table) List() []domain.Variable {
	vars := make([]domain.Variable, 0, len(t.order))
	for _, k := range t.order {
		vars = append(vars, domain.Variable{Key: k, Value: t.values[k]})
	}
	return vars
}

// Resolve substitutes the table's variables into text.
func (t *Table) Resolve(text string) string {
	return Resolve(text, t.List())
}
