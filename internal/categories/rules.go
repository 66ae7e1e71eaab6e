// Package categories resolves expense categories from keyword rules loaded
// once at startup.
package categories

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Category is a named list of keywords, kept in configuration order.
type Category struct {
	Name     string
	Keywords []string
}

// Rules is the immutable, ordered keyword configuration. The zero value has
// no categories and is ready to use.
type Rules struct {
	categories []Category
}

var ErrInvalidRules = errors.New("invalid category rules")

// NewRules builds rules from categories in priority order. A repeated name
// replaces the keywords of the earlier entry but keeps its position.
func NewRules(cats ...Category) Rules {
	var r Rules
	index := make(map[string]int, len(cats))
	for _, c := range cats {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		kws := cleanKeywords(c.Keywords)
		if i, ok := index[name]; ok {
			r.categories[i].Keywords = kws
			continue
		}
		index[name] = len(r.categories)
		r.categories = append(r.categories, Category{Name: name, Keywords: kws})
	}
	return r
}

// Load reads a category file. JSON and YAML are accepted; YAML is chosen by
// a .yaml or .yml extension. A missing file is an error.
func Load(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read categories file: %w", err)
	}

	var cats []Category
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cats, err = decodeYAML(data)
	default:
		cats, err = decodeJSON(data)
	}
	if err != nil {
		return Rules{}, fmt.Errorf("parse categories file %s: %w", path, err)
	}
	return NewRules(cats...), nil
}

// Categories returns a copy of the configured categories.
func (r Rules) Categories() []Category {
	out := make([]Category, len(r.categories))
	for i, c := range r.categories {
		out[i] = Category{Name: c.Name, Keywords: slices.Clone(c.Keywords)}
	}
	return out
}

// Names returns category names in configuration order.
func (r Rules) Names() []string {
	names := make([]string, len(r.categories))
	for i, c := range r.categories {
		names[i] = c.Name
	}
	return names
}

func (r Rules) Len() int {
	return len(r.categories)
}

// decodeJSON walks the object token by token; decoding into a map would lose
// the key order that matching depends on.
func decodeJSON(data []byte) ([]Category, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: root must be an object of keyword lists", ErrInvalidRules)
	}

	var cats []Category
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
		}
		name, _ := tok.(string)

		var keywords []string
		if err := dec.Decode(&keywords); err != nil {
			return nil, fmt.Errorf("%w: category %q: %v", ErrInvalidRules, name, err)
		}
		cats = append(cats, Category{Name: name, Keywords: keywords})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return cats, nil
}

func decodeYAML(data []byte) ([]Category, error) {
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	cats := make([]Category, 0, len(doc))
	for _, item := range doc {
		name := fmt.Sprint(item.Key)
		var keywords []string
		switch v := item.Value.(type) {
		case nil:
		case []any:
			for _, kw := range v {
				switch kw.(type) {
				case map[string]any, []any, yaml.MapSlice:
					return nil, fmt.Errorf("%w: category %q: keywords must be scalars", ErrInvalidRules, name)
				}
				keywords = append(keywords, fmt.Sprint(kw))
			}
		default:
			return nil, fmt.Errorf("%w: category %q: expected a list of keywords", ErrInvalidRules, name)
		}
		cats = append(cats, Category{Name: name, Keywords: keywords})
	}
	return cats, nil
}

// cleanKeywords drops blank entries, which would otherwise match every description.
func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		out = append(out, kw)
	}
	return out
}
