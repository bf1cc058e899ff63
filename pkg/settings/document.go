// Package settings loads the vision configuration document.
//
// The document is a YAML tree addressed by dotted paths such as
// "filter.contourarea.min". Typed accessors report the offending key
// through *KeyError so startup failures say exactly what to fix.
package settings

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is a parsed configuration tree.
type Document struct {
	root map[string]any
}

// ParseDocument decodes YAML bytes into a Document.
func ParseDocument(data []byte) (*Document, error) {
	root := map[string]any{}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("settings: parse: %w", err)
	}
	return &Document{root: root}, nil
}

// NewDocument wraps an already decoded tree.
func NewDocument(root map[string]any) *Document {
	if root == nil {
		root = map[string]any{}
	}
	return &Document{root: root}
}

// Lookup returns the raw value at path.
func (d *Document) Lookup(path string) (any, bool) {
	var cur any = d.root
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// Has reports whether path is present and non-null.
func (d *Document) Has(path string) bool {
	_, ok := d.Lookup(path)
	return ok
}

// Set overrides a value, creating intermediate groups.
func (d *Document) Set(path string, value any) {
	parts := strings.Split(path, ".")
	cur := d.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// Sub returns the group at path as its own Document, keys relative to it.
func (d *Document) Sub(path string) *Document {
	v, ok := d.Lookup(path)
	if !ok {
		return NewDocument(nil)
	}
	m, ok := asMap(v)
	if !ok {
		return NewDocument(nil)
	}
	return &Document{root: m}
}

// Int returns a required integer.
func (d *Document) Int(path string) (int, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return 0, missing(path, "integer")
	}
	n, ok := toInt(v)
	if !ok {
		return 0, wrongType(path, "integer", v)
	}
	return n, nil
}

// IntOr returns an integer or def when the key is absent.
func (d *Document) IntOr(path string, def int) (int, error) {
	if !d.Has(path) {
		return def, nil
	}
	return d.Int(path)
}

// Float returns a required number. Integers are accepted.
func (d *Document) Float(path string) (float64, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return 0, missing(path, "number")
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, wrongType(path, "number", v)
	}
	return f, nil
}

// FloatOr returns a number or def when the key is absent.
func (d *Document) FloatOr(path string, def float64) (float64, error) {
	if !d.Has(path) {
		return def, nil
	}
	return d.Float(path)
}

// String returns a required non-empty string.
func (d *Document) String(path string) (string, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return "", missing(path, "string")
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(path, "string", v)
	}
	if s == "" {
		return "", invalid(path, "must not be empty", s)
	}
	return s, nil
}

// StringOr returns a string or def when the key is absent.
func (d *Document) StringOr(path, def string) (string, error) {
	if !d.Has(path) {
		return def, nil
	}
	return d.String(path)
}

// BoolOr returns a boolean or def when the key is absent.
func (d *Document) BoolOr(path string, def bool) (bool, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, wrongType(path, "boolean", v)
	}
	return b, nil
}

// DurationOr parses a Go duration string ("250ms") or def when absent.
func (d *Document) DurationOr(path string, def time.Duration) (time.Duration, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, wrongType(path, "duration string", v)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, invalid(path, err.Error(), s)
	}
	return dur, nil
}

// Strings returns a list of strings; absent means empty.
func (d *Document) Strings(path string) ([]string, error) {
	items, err := d.list(path)
	if err != nil || items == nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, wrongType(fmt.Sprintf("%s[%d]", path, i), "string", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// Ints returns a required list of integers of exactly n elements (n<0: any).
func (d *Document) Ints(path string, n int) ([]int, error) {
	items, err := d.list(path)
	if err != nil {
		return nil, err
	}
	if items == nil {
		return nil, missing(path, "list of integers")
	}
	if n >= 0 && len(items) != n {
		return nil, invalid(path, fmt.Sprintf("want %d elements", n), items)
	}
	out := make([]int, 0, len(items))
	for i, item := range items {
		v, ok := toInt(item)
		if !ok {
			return nil, wrongType(fmt.Sprintf("%s[%d]", path, i), "integer", item)
		}
		out = append(out, v)
	}
	return out, nil
}

// Maps returns a list of groups, each as its own Document.
func (d *Document) Maps(path string) ([]*Document, error) {
	items, err := d.list(path)
	if err != nil || items == nil {
		return nil, err
	}
	out := make([]*Document, 0, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, wrongType(fmt.Sprintf("%s[%d]", path, i), "group", item)
		}
		out = append(out, &Document{root: m})
	}
	return out, nil
}

func (d *Document) list(path string) ([]any, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, wrongType(path, "list", v)
	}
	return items, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
