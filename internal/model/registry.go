package model

// Registry is the static set of ModelSpecs the engine knows about, defined once at
// startup. It never mutates — the Router consults the model server's installed-model
// list separately and walks a Spec's preference list against it.
var Registry = []Spec{
	{Name: "qwen2.5-coder:32b", Category: CategoryCoding, Tier: TierLarge, Priority: 90, DefaultContextWindow: 32768},
	{Name: "qwen2.5-coder:14b", Category: CategoryCoding, Tier: TierMedium, Priority: 80, DefaultContextWindow: 32768},
	{Name: "qwen2.5-coder:7b", Category: CategoryCoding, Tier: TierSmall, Priority: 70, DefaultContextWindow: 32768},
	{Name: "deepseek-coder:33b", Category: CategoryCoding, Tier: TierLarge, Priority: 85, DefaultContextWindow: 16384},
	{Name: "deepseek-coder:6.7b", Category: CategoryCoding, Tier: TierSmall, Priority: 65, DefaultContextWindow: 16384},
	{Name: "codellama:13b", Category: CategoryCoding, Tier: TierMedium, Priority: 60, DefaultContextWindow: 16384},

	{Name: "qwen2.5:72b", Category: CategoryReasoning, Tier: TierLarge, Priority: 90, SupportsReasoningTrace: true, DefaultContextWindow: 32768},
	{Name: "qwen2.5:32b", Category: CategoryReasoning, Tier: TierMedium, Priority: 80, SupportsReasoningTrace: true, DefaultContextWindow: 32768},
	{Name: "deepseek-r1:32b", Category: CategoryReasoning, Tier: TierMedium, Priority: 85, SupportsReasoningTrace: true, DefaultContextWindow: 32768},
	{Name: "deepseek-r1:7b", Category: CategoryReasoning, Tier: TierSmall, Priority: 60, SupportsReasoningTrace: true, DefaultContextWindow: 32768},

	{Name: "llama3.1:70b", Category: CategoryAgentic, Tier: TierLarge, Priority: 85, DefaultContextWindow: 128000},
	{Name: "llama3.1:8b", Category: CategoryAgentic, Tier: TierSmall, Priority: 60, DefaultContextWindow: 128000},
	{Name: "mistral-nemo:12b", Category: CategoryAgentic, Tier: TierMedium, Priority: 65, DefaultContextWindow: 128000},

	{Name: "llama3.2:3b", Category: CategorySummarizer, Tier: TierSmall, Priority: 60, DefaultContextWindow: 128000},
	{Name: "phi4:14b", Category: CategorySummarizer, Tier: TierMedium, Priority: 65, DefaultContextWindow: 16384},

	{Name: "nomic-embed-text", Category: CategoryEmbedding, Tier: TierSmall, Priority: 50, DefaultContextWindow: 8192},

	{Name: "gemma2:27b", Category: CategoryGeneral, Tier: TierLarge, Priority: 70, DefaultContextWindow: 8192},
	{Name: "gemma2:9b", Category: CategoryGeneral, Tier: TierMedium, Priority: 60, DefaultContextWindow: 8192},
	{Name: "llama3.2:1b", Category: CategoryGeneral, Tier: TierSmall, Priority: 40, DefaultContextWindow: 128000},
}

// Lookup returns the Spec with the given name, if known to the registry.
func Lookup(name string) (Spec, bool) {
	for _, s := range Registry {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// ByCategory returns every registry entry in a category, in descending priority order.
func ByCategory(cat Category) []Spec {
	var out []Spec
	for _, s := range Registry {
		if s.Category == cat {
			out = append(out, s)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority > out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// roleCategory is the category a role draws its models from.
var roleCategory = map[Role]Category{
	RolePlanner:    CategoryReasoning,
	RoleCoder:      CategoryCoding,
	RoleReviewer:   CategoryReasoning,
	RoleAnalyzer:   CategoryReasoning,
	RoleClassifier: CategorySummarizer,
	RoleAgentic:    CategoryAgentic,
	RoleGeneral:    CategoryGeneral,
}

// CategoryForRole returns the category a role draws its models from, falling back to
// CategoryGeneral for any role not in the static table (there shouldn't be one).
func CategoryForRole(role Role) Category {
	if cat, ok := roleCategory[role]; ok {
		return cat
	}
	return CategoryGeneral
}

// Route is a (role, complexity, size) -> ordered preference list of model names,
// resolved to a concrete, installed Spec by the Router.
type Route struct {
	Role       Role
	Complexity Complexity
	Size       Size
	Preferred  []string // ordered; first installed match wins
}

// RouteTable maps every (role, complexity, size) combination the Classifier can
// produce to an ordered preference list. Built once at startup; never mutated.
var RouteTable = buildRouteTable()

func buildRouteTable() map[Role]map[Complexity]map[Size][]string {
	complexities := []Complexity{ComplexitySimple, ComplexityMedium, ComplexityHeavy}
	sizes := []Size{SizeSmall, SizeMedium, SizeLarge}

	table := make(map[Role]map[Complexity]map[Size][]string)
	for role, cat := range roleCategory {
		specs := ByCategory(cat)
		table[role] = make(map[Complexity]map[Size][]string)
		for _, c := range complexities {
			table[role][c] = make(map[Size][]string)
			for _, sz := range sizes {
				table[role][c][sz] = preferenceListFor(role, cat, c, sz, specs)
			}
		}
	}
	return table
}

// preferenceListFor orders a category's specs for one (complexity, size) cell:
// heavier complexity/larger size prefers larger tiers first, and vice versa.
func preferenceListFor(role Role, cat Category, c Complexity, sz Size, specs []Spec) []string {
	wantTier := tierFor(c, sz)

	ordered := make([]Spec, len(specs))
	copy(ordered, specs)

	// Stable-ish preference: exact tier match first (already priority-sorted within
	// tier by ByCategory), then the rest by how close their tier is to wantTier.
	score := func(t Tier) int {
		if t == wantTier {
			return 0
		}
		d := map[Tier]int{TierSmall: 0, TierMedium: 1, TierLarge: 2}
		diff := d[t] - d[wantTier]
		if diff < 0 {
			diff = -diff
		}
		return diff
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && score(ordered[j].Tier) < score(ordered[j-1].Tier); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	names := make([]string, 0, len(ordered)+1)
	for _, s := range ordered {
		names = append(names, s.Name)
	}
	if cat != CategoryGeneral {
		// general models are always the last-resort fallback, per Router contract:
		// "no category match -> returns a general model".
		for _, g := range ByCategory(CategoryGeneral) {
			names = append(names, g.Name)
		}
	}
	return names
}

func tierFor(c Complexity, sz Size) Tier {
	rank := map[Complexity]int{ComplexitySimple: 0, ComplexityMedium: 1, ComplexityHeavy: 2}
	szRank := map[Size]int{SizeSmall: 0, SizeMedium: 1, SizeLarge: 2}
	total := rank[c] + szRank[sz]
	switch {
	case total <= 1:
		return TierSmall
	case total <= 3:
		return TierMedium
	default:
		return TierLarge
	}
}
