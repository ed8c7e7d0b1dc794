package analytics

import (
	"context"
	"slices"

	"github.com/kazz187/taskpulse/internal/instance"
)

// Loader fetches instances in batches. Aggregations read through it so that
// they never fetch one instance at a time.
type Loader struct {
	repo instance.Repository
}

func NewLoader(repo instance.Repository) *Loader {
	return &Loader{repo: repo}
}

// LoadInstances returns all visible instances of the user, or only the
// completed ones, in one store call.
func (l *Loader) LoadInstances(ctx context.Context, userID string, completedOnly bool) ([]*instance.TaskInstance, error) {
	if completedOnly {
		return l.repo.ListCompleted(ctx, userID, nil)
	}
	return l.repo.ListAll(ctx, userID)
}

// GetInstancesBulk resolves ids in one store call. Missing and foreign ids
// are absent from the result.
func (l *Loader) GetInstancesBulk(ctx context.Context, ids []string, userID string) (map[string]*instance.TaskInstance, error) {
	if len(ids) == 0 {
		return map[string]*instance.TaskInstance{}, nil
	}
	unique := slices.Clone(ids)
	slices.Sort(unique)
	return l.repo.GetBulk(ctx, slices.Compact(unique), userID)
}
