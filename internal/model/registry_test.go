package model

import "testing"

// --- ContextWindowFor ---

func TestContextWindowFor_SmallIsUnscaled(t *testing.T) {
	s := Spec{DefaultContextWindow: 16384}
	if got := s.ContextWindowFor(SizeSmall); got != 16384 {
		t.Errorf("ContextWindowFor(small) = %d, want 16384", got)
	}
}

func TestContextWindowFor_MediumScales1_5x(t *testing.T) {
	s := Spec{DefaultContextWindow: 16384}
	if got := s.ContextWindowFor(SizeMedium); got != 24576 {
		t.Errorf("ContextWindowFor(medium) = %d, want 24576", got)
	}
}

func TestContextWindowFor_LargeScales2x(t *testing.T) {
	s := Spec{DefaultContextWindow: 16384}
	if got := s.ContextWindowFor(SizeLarge); got != 32768 {
		t.Errorf("ContextWindowFor(large) = %d, want 32768", got)
	}
}

// --- Lookup / ByCategory ---

func TestLookup_FindsKnownModel(t *testing.T) {
	spec, ok := Lookup("qwen2.5-coder:14b")
	if !ok {
		t.Fatal("expected qwen2.5-coder:14b to be in the registry")
	}
	if spec.Category != CategoryCoding {
		t.Errorf("Category = %s, want coding", spec.Category)
	}
}

func TestLookup_UnknownModelReturnsFalse(t *testing.T) {
	_, ok := Lookup("not-a-real-model:1b")
	if ok {
		t.Error("expected ok = false for an unknown model")
	}
}

func TestByCategory_OrdersByDescendingPriority(t *testing.T) {
	specs := ByCategory(CategoryCoding)
	if len(specs) < 2 {
		t.Fatal("expected at least two coding models in the registry")
	}
	for i := 1; i < len(specs); i++ {
		if specs[i].Priority > specs[i-1].Priority {
			t.Errorf("specs not sorted descending: %s (%d) before %s (%d)",
				specs[i-1].Name, specs[i-1].Priority, specs[i].Name, specs[i].Priority)
		}
	}
}

// --- RouteTable ---

func TestRouteTable_CoderHeavyLargePrefersLargestTier(t *testing.T) {
	prefs := RouteTable[RoleCoder][ComplexityHeavy][SizeLarge]
	if len(prefs) == 0 {
		t.Fatal("expected a non-empty preference list")
	}
	if prefs[0] != "qwen2.5-coder:32b" {
		t.Errorf("top preference = %s, want qwen2.5-coder:32b", prefs[0])
	}
}

func TestRouteTable_NonGeneralRoleAppendsGeneralFallback(t *testing.T) {
	prefs := RouteTable[RoleCoder][ComplexitySimple][SizeSmall]
	found := false
	for _, name := range prefs {
		if spec, ok := Lookup(name); ok && spec.Category == CategoryGeneral {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected coder's preference list to end with a general-category fallback")
	}
}

func TestRouteTable_GeneralRoleHasNoDuplicateFallback(t *testing.T) {
	prefs := RouteTable[RoleGeneral][ComplexityMedium][SizeMedium]
	seen := make(map[string]int)
	for _, name := range prefs {
		seen[name]++
	}
	for name, count := range seen {
		if count > 1 {
			t.Errorf("model %s appears %d times in general's own preference list", name, count)
		}
	}
}
