// Package classify maps a request and a workspace snapshot to a (complexity, size)
// route, fusing cheap keyword scoring with one optional LLM call.
package classify

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"forge/internal/client"
	"forge/internal/model"
)

// ModelCaller is the subset of the Model Client the Classifier needs for its Phase B
// LLM call, kept as an interface so tests can fake it without a real model server.
type ModelCaller interface {
	Call(ctx context.Context, role model.Role, messages []client.Message, opts client.CallOptions) (*client.StreamingResponse, error)
}

// Resolver picks the fastest available model for Phase B, same contract as router.Router.
type Resolver interface {
	Resolve(ctx context.Context, role model.Role, complexity model.Complexity, size model.Size) (model.Spec, error)
}

// Classifier implements classify(prompt, workspace) -> (complexity, size).
type Classifier struct {
	caller       ModelCaller
	resolver     Resolver
	phaseBEnable bool
}

// New creates a Classifier. caller/resolver may be nil to force Phase A alone (the
// contractual behavior when no model is available).
func New(caller ModelCaller, resolver Resolver) *Classifier {
	return &Classifier{caller: caller, resolver: resolver, phaseBEnable: caller != nil && resolver != nil}
}

// complexityRank and sizeRank give each axis an ordinal so fusion can take "the higher
// of the two" — erring toward more resources on disagreement.
var complexityRank = map[model.Complexity]int{model.ComplexitySimple: 0, model.ComplexityMedium: 1, model.ComplexityHeavy: 2}
var sizeRank = map[model.Size]int{model.SizeSmall: 0, model.SizeMedium: 1, model.SizeLarge: 2}

func maxComplexity(a, b model.Complexity) model.Complexity {
	if complexityRank[b] > complexityRank[a] {
		return b
	}
	return a
}

func maxSize(a, b model.Size) model.Size {
	if sizeRank[b] > sizeRank[a] {
		return b
	}
	return a
}

// heavySignals, mediumSignals, simpleSignals are Phase A's three disjoint keyword sets.
var heavySignals = []string{
	"like tinder", "uber for", "a spotify",
	"social network", "marketplace", "dating app", "matching system",
	"recommendation engine", "booking", "saas", "fintech",
}

var mediumSignals = []string{
	"web app", "mobile app", "game", "analytics", "profile", "search", "forum",
}

var simpleSignals = []string{
	"simple", "basic", "calculator", "todo", "landing page",
}

// buildSignals mark an explicit construction intent; matched weight is multiplied by
// 1.5 and used to break ties in favor of build over chat intent.
var buildSignals = []string{"build", "create", "make me"}

// knownApps are well-known consumer apps whose name alone, anywhere in the
// prompt, signals an app-clone request — "a tinder for linkedin" never
// literally contains any of heavySignals' "like X"/"a X" phrasing, but
// naming the app is the same clone intent.
var knownApps = []string{
	"tinder", "uber", "spotify", "airbnb", "instagram", "netflix",
	"doordash", "venmo", "slack", "discord", "linkedin", "tiktok", "snapchat",
}

var knownAppPattern = regexp.MustCompile(`\b(` + strings.Join(knownApps, "|") + `)\b`)

// IsBuildRequest reports whether prompt reads as a multi-file construction
// request (route to the DAG Orchestrator) rather than a narrower one-shot
// task (route to the Agentic Executor) — the same construction-intent
// signal phaseA's weighting already keys off, surfaced for the engine
// layer's route decision instead of staying private to complexity scoring.
func IsBuildRequest(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, sig := range buildSignals {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// Classify implements the Classifier contract. workspaceFileCount is the number of
// files in the target workspace, used for the size axis's independent signal.
func (c *Classifier) Classify(ctx context.Context, prompt string, workspaceFileCount int) (model.Complexity, model.Size, error) {
	pComplexity, pSize := phaseA(prompt)

	complexity, size := pComplexity, pSize
	if c.phaseBEnable {
		if bComplexity, bSize, ok := c.phaseB(ctx, prompt); ok {
			complexity = maxComplexity(complexity, bComplexity)
			size = maxSize(size, bSize)
		}
	}

	size = maxSize(size, sizeFromWorkspace(workspaceFileCount))

	return complexity, size, nil
}

// phaseA scores keyword signals against prompt. A match with no signal at all, and no
// Phase B available, defaults to medium/medium per contract — never simple/small.
func phaseA(prompt string) (model.Complexity, model.Size) {
	lower := strings.ToLower(prompt)

	isBuild := false
	for _, sig := range buildSignals {
		if strings.Contains(lower, sig) {
			isBuild = true
			break
		}
	}

	heavyWeight := matchWeight(lower, heavySignals, isBuild) + knownAppWeight(lower, isBuild)
	mediumWeight := matchWeight(lower, mediumSignals, isBuild)
	simpleWeight := matchWeight(lower, simpleSignals, isBuild)

	if heavyWeight == 0 && mediumWeight == 0 && simpleWeight == 0 {
		return model.ComplexityMedium, model.SizeMedium
	}

	// Err toward more resources: ties (or a heavier category with any weight at all)
	// favor heavy over medium over simple.
	switch {
	case heavyWeight > 0 && heavyWeight >= mediumWeight && heavyWeight >= simpleWeight:
		return model.ComplexityHeavy, model.SizeLarge
	case mediumWeight > 0 && mediumWeight >= simpleWeight:
		return model.ComplexityMedium, model.SizeMedium
	default:
		return model.ComplexitySimple, model.SizeSmall
	}
}

func matchWeight(lower string, signals []string, isBuild bool) float64 {
	var weight float64
	for _, sig := range signals {
		if strings.Contains(lower, sig) {
			weight++
		}
	}
	if isBuild {
		weight *= 1.5
	}
	return weight
}

// knownAppWeight reports whether prompt names a known app anywhere, the
// structural pattern behind "a <app> for <domain>"/"a <app>"-style clone
// requests that heavySignals' literal "like X"/"a X" phrases don't cover.
func knownAppWeight(lower string, isBuild bool) float64 {
	if !knownAppPattern.MatchString(lower) {
		return 0
	}
	weight := 1.0
	if isBuild {
		weight *= 1.5
	}
	return weight
}

// sizeFromWorkspace implements the contract's workspace-file-count signal.
func sizeFromWorkspace(fileCount int) model.Size {
	switch {
	case fileCount <= 3:
		return model.SizeSmall
	case fileCount <= 10:
		return model.SizeMedium
	default:
		return model.SizeLarge
	}
}

// classifyLabel is the nine-way {heavy,medium,simple}x{small,medium,large} label Phase
// B's model is prompted to return.
type classifyLabel struct {
	Label string `json:"label"`
}

var validLabels = map[string][2]string{
	"heavy_small": {"heavy", "small"}, "heavy_medium": {"heavy", "medium"}, "heavy_large": {"heavy", "large"},
	"medium_small": {"medium", "small"}, "medium_medium": {"medium", "medium"}, "medium_large": {"medium", "large"},
	"simple_small": {"simple", "small"}, "simple_medium": {"simple", "medium"}, "simple_large": {"simple", "large"},
}

const phaseBPrompt = `Classify the following request into exactly one label from this set:
heavy_small, heavy_medium, heavy_large, medium_small, medium_medium, medium_large,
simple_small, simple_medium, simple_large.

The first part is complexity (heavy = a full clone of a known app or a multi-domain
system; medium = a typical web/mobile app feature; simple = a small, well-scoped task).
The second part is project size (small, medium, large).

Respond with ONLY a JSON object: {"label": "<one of the nine values above>"}

Request:
`

// phaseB makes the Classifier's single LLM call, using the fastest available model.
// ok is false when no model is available or the response can't be parsed — callers
// fall back to Phase A alone.
func (c *Classifier) phaseB(ctx context.Context, prompt string) (model.Complexity, model.Size, bool) {
	spec, err := c.resolver.Resolve(ctx, model.RoleClassifier, model.ComplexitySimple, model.SizeSmall)
	if err != nil {
		return "", "", false
	}

	messages := []client.Message{{Role: "user", Content: phaseBPrompt + prompt}}
	stream, err := c.caller.Call(ctx, model.RoleClassifier, messages, client.CallOptions{Spec: spec, Size: model.SizeSmall})
	if err != nil {
		return "", "", false
	}

	text, err := stream.Collect(ctx)
	if err != nil && text == "" {
		return "", "", false
	}

	label, ok := extractLabel(text)
	if !ok {
		return "", "", false
	}
	pair := validLabels[label]
	return model.Complexity(pair[0]), model.Size(pair[1]), true
}

func extractLabel(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	var parsed classifyLabel
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return "", false
	}
	if _, ok := validLabels[parsed.Label]; !ok {
		return "", false
	}
	return parsed.Label, true
}
