package categories

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"expenses/internal/cache"
)

func testRules() Rules {
	return NewRules(
		Category{Name: "Food", Keywords: []string{"cafe"}},
		Category{Name: "Transport", Keywords: []string{"taxi", "cafe"}},
	)
}

func TestDetermineCategoryFirstMatchWins(t *testing.T) {
	m := NewMatcher(testRules())

	cases := []struct {
		desc   string
		amount int64
		want   string
	}{
		{"cafe taxi", 100, "Food"},
		{"taxi cafe", 100, "Food"},
		{"Night TAXI ride", 100, "Transport"},
		{"new sofa", 6000, FallbackLarge},
		{"new sofa", 3000, FallbackOther},
		{"new sofa", 5000, FallbackOther},
		{"CAFE au lait", 9000, "Food"},
	}
	for _, tc := range cases {
		if got := m.DetermineCategory(tc.desc, decimal.NewFromInt(tc.amount)); got != tc.want {
			t.Errorf("DetermineCategory(%q, %d) = %q, want %q", tc.desc, tc.amount, got, tc.want)
		}
	}
}

func TestDetermineCategoryUnicodeFolding(t *testing.T) {
	m := NewMatcher(NewRules(Category{Name: "Продукты", Keywords: []string{"Магазин"}}))

	if got := m.DetermineCategory("МАГАЗИН у дома", decimal.NewFromInt(10)); got != "Продукты" {
		t.Fatalf("expected Cyrillic match, got %q", got)
	}
}

func TestDetermineCategoryWithCache(t *testing.T) {
	lru := cache.NewLRUCache[string](8, 0)
	m := NewMatcher(testRules(), WithCache(lru))

	for i := 0; i < 3; i++ {
		if got := m.DetermineCategory("Big TV", decimal.NewFromInt(7000)); got != FallbackLarge {
			t.Fatalf("expected %q, got %q", FallbackLarge, got)
		}
	}
	// Same description, small amount, must not reuse the large result.
	if got := m.DetermineCategory("big tv", decimal.NewFromInt(70)); got != FallbackOther {
		t.Fatalf("expected %q, got %q", FallbackOther, got)
	}

	st := lru.Stats()
	if st.Hits != 2 || st.Misses != 2 {
		t.Fatalf("unexpected cache stats %+v", st)
	}
}

func TestAvailableCategories(t *testing.T) {
	m := NewMatcher(NewRules(
		Category{Name: "Food"},
		Category{Name: FallbackOther},
		Category{Name: "Transport"},
	))

	want := []string{"Food", FallbackOther, "Transport", FallbackLarge}
	if got := m.AvailableCategories(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEqualFold(t *testing.T) {
	if !EqualFold("Coffee", "COFFEE") {
		t.Fatal("expected Coffee and COFFEE to be equal")
	}
	if EqualFold("Coffee", "Coffees") {
		t.Fatal("expected different strings to differ")
	}
}
