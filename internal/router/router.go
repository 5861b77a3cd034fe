// Package router resolves a (role, complexity, size) triple to an installed model,
// walking the role's ordered preference table against what the model server actually
// has and degrading gracefully when the top choice isn't installed.
package router

import (
	"context"
	"fmt"

	"forge/internal/client"
	"forge/internal/logging"
	"forge/internal/model"
)

// ModelUnavailable means no model in the requested role's category, nor any general
// model, is installed on the server. Surfaced only after every degradation step fails.
type ModelUnavailable struct {
	Role       model.Role
	Complexity model.Complexity
	Size       model.Size
}

func (e *ModelUnavailable) Error() string {
	return fmt.Sprintf("no installed model available for role=%s complexity=%s size=%s", e.Role, e.Complexity, e.Size)
}

// Lister is the subset of the Model Client the Router needs. Kept as an interface so
// tests can fake the installed-model set without a real Ollama server.
type Lister interface {
	ListModels(ctx context.Context) ([]string, error)
	IsModelAvailable(ctx context.Context, modelName string) (bool, error)
	PullModel(ctx context.Context, modelName string, progressFn func(client.PullProgress)) error
}

// DownloadOffer is invoked when the Router's top preference isn't installed and the
// caller is interactive. Returning false declines the download — non-fatal, the Router
// continues degrading.
type DownloadOffer func(modelName string) bool

// Router resolves roles to installed models.
type Router struct {
	models Lister
	offer  DownloadOffer
}

// New creates a Router against the given Model Client. offer may be nil for
// non-interactive callers (agentic mode), in which case missing models are
// never auto-downloaded.
func New(models Lister, offer DownloadOffer) *Router {
	return &Router{models: models, offer: offer}
}

// Resolve implements the Model Router contract: walk role's preference list for
// (complexity, size), degrading one complexity tier then one size tier on no match,
// falling back to the highest-priority installed model in role's category, then to
// any installed general model, then ModelUnavailable.
func (r *Router) Resolve(ctx context.Context, role model.Role, complexity model.Complexity, size model.Size) (model.Spec, error) {
	installed, err := r.models.ListModels(ctx)
	if err != nil {
		return model.Spec{}, fmt.Errorf("listing installed models: %w", err)
	}
	installedSet := make(map[string]bool, len(installed))
	for _, m := range installed {
		installedSet[m] = true
	}

	if spec, ok := r.walkPreferenceList(role, complexity, size, installedSet); ok {
		return spec, nil
	}

	if spec, ok := r.degradeComplexity(role, complexity, size, installedSet); ok {
		return spec, nil
	}

	if spec, ok := r.degradeSize(role, complexity, size, installedSet); ok {
		return spec, nil
	}

	if spec, ok := highestPriorityInstalled(model.CategoryForRole(role), installedSet); ok {
		logging.Warn("router fell back to category's highest-priority installed model",
			"role", role, "complexity", complexity, "size", size, "resolved", spec.Name)
		return spec, nil
	}

	if spec, ok := highestPriorityInstalled(model.CategoryGeneral, installedSet); ok {
		logging.Warn("router fell back to a general model", "role", role, "resolved", spec.Name)
		return spec, nil
	}

	return model.Spec{}, &ModelUnavailable{Role: role, Complexity: complexity, Size: size}
}

func (r *Router) walkPreferenceList(role model.Role, complexity model.Complexity, size model.Size, installedSet map[string]bool) (model.Spec, bool) {
	prefs := model.RouteTable[role][complexity][size]
	for _, name := range prefs {
		if installedSet[name] {
			if spec, ok := model.Lookup(name); ok {
				return spec, true
			}
		}
	}
	if len(prefs) > 0 && r.offer != nil {
		top := prefs[0]
		if r.offer(top) {
			if err := r.models.PullModel(context.Background(), top, nil); err == nil {
				if spec, ok := model.Lookup(top); ok {
					return spec, true
				}
			}
		}
	}
	return model.Spec{}, false
}

// degradeComplexity steps heavy -> medium -> simple at the same size, skipping the
// complexity tier already tried.
func (r *Router) degradeComplexity(role model.Role, complexity model.Complexity, size model.Size, installedSet map[string]bool) (model.Spec, bool) {
	order := []model.Complexity{model.ComplexityHeavy, model.ComplexityMedium, model.ComplexitySimple}
	for _, c := range order {
		if c == complexity {
			continue
		}
		prefs := model.RouteTable[role][c][size]
		for _, name := range prefs {
			if installedSet[name] {
				if spec, ok := model.Lookup(name); ok {
					return spec, true
				}
			}
		}
	}
	return model.Spec{}, false
}

// degradeSize steps large -> medium -> small at the original complexity, skipping the
// size tier already tried.
func (r *Router) degradeSize(role model.Role, complexity model.Complexity, size model.Size, installedSet map[string]bool) (model.Spec, bool) {
	order := []model.Size{model.SizeLarge, model.SizeMedium, model.SizeSmall}
	for _, sz := range order {
		if sz == size {
			continue
		}
		prefs := model.RouteTable[role][complexity][sz]
		for _, name := range prefs {
			if installedSet[name] {
				if spec, ok := model.Lookup(name); ok {
					return spec, true
				}
			}
		}
	}
	return model.Spec{}, false
}

// highestPriorityInstalled returns the first installed spec in cat; ByCategory already
// orders by descending priority.
func highestPriorityInstalled(cat model.Category, installedSet map[string]bool) (model.Spec, bool) {
	for _, spec := range model.ByCategory(cat) {
		if installedSet[spec.Name] {
			return spec, true
		}
	}
	return model.Spec{}, false
}
