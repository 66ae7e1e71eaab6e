package categories

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSONKeepsFileOrder(t *testing.T) {
	path := writeFile(t, "categories.json", `{
  "Transport": ["taxi", "metro"],
  "Food": ["cafe", "  ", "bakery"],
  "Home": []
}`)

	rules, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []Category{
		{Name: "Transport", Keywords: []string{"taxi", "metro"}},
		{Name: "Food", Keywords: []string{"cafe", "bakery"}},
		{Name: "Home", Keywords: []string{}},
	}
	if got := rules.Categories(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected categories:\n got %#v\nwant %#v", got, want)
	}
}

func TestLoadJSONDuplicateNameKeepsFirstPosition(t *testing.T) {
	path := writeFile(t, "categories.json", `{"A": ["x"], "B": ["y"], "A": ["z"]}`)

	rules, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cats := rules.Categories()
	if len(cats) != 2 || cats[0].Name != "A" || cats[0].Keywords[0] != "z" {
		t.Fatalf("unexpected categories %#v", cats)
	}
}

func TestLoadYAMLKeepsFileOrder(t *testing.T) {
	path := writeFile(t, "categories.yaml", "Zoo:\n  - lion\nFood:\n  - cafe\n  - 99\nEmpty:\n")

	rules, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := rules.Names(); !reflect.DeepEqual(got, []string{"Zoo", "Food", "Empty"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if kws := rules.Categories()[1].Keywords; !reflect.DeepEqual(kws, []string{"cafe", "99"}) {
		t.Fatalf("unexpected keywords %v", kws)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	rules, err := Load(writeFile(t, "categories.json", "  \n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rules.Len() != 0 {
		t.Fatalf("expected no categories, got %d", rules.Len())
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	bad := []struct {
		name, content string
	}{
		{"array.json", `["a", "b"]`},
		{"scalar-list.json", `{"Food": "cafe"}`},
		{"truncated.json", `{"Food": ["cafe"]`},
		{"scalar.yaml", "Food: cafe\n"},
	}
	for _, tc := range bad {
		if _, err := Load(writeFile(t, tc.name, tc.content)); !errors.Is(err, ErrInvalidRules) {
			t.Errorf("%s: expected ErrInvalidRules, got %v", tc.name, err)
		}
	}
}
