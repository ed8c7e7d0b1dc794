package instance

import (
	"context"
	"time"
)

// Repository is the instance store. Every read and write is scoped by
// userID: rows owned by another user behave exactly like missing rows.
//
// Implementations must return identical results for identical inputs;
// repositoryimpl runs one conformance suite against all of them.
type Repository interface {
	// Create stores inst and returns its id. An empty ID gets a fresh
	// ULID; a supplied ID that already exists fails with AlreadyExists.
	Create(ctx context.Context, inst *TaskInstance) (string, error)
	// Get fails with NotFound for absent, deleted or foreign rows.
	Get(ctx context.Context, id, userID string) (*TaskInstance, error)
	// GetBulk omits absent, deleted and foreign ids instead of failing.
	GetBulk(ctx context.Context, ids []string, userID string) (map[string]*TaskInstance, error)
	// Update applies patch with TaskInstance.Apply and returns the result.
	Update(ctx context.Context, id, userID string, patch *Patch) (*TaskInstance, error)
	// ListActive returns instances that are neither completed nor
	// cancelled, ordered by (created_at, id).
	ListActive(ctx context.Context, userID string) ([]*TaskInstance, error)
	// ListCompleted returns completed instances with completed_at >= since
	// when since is non-nil, ordered by (completed_at, id).
	ListCompleted(ctx context.Context, userID string, since *time.Time) ([]*TaskInstance, error)
	// ListAll returns every non-deleted instance, ordered by (created_at, id).
	ListAll(ctx context.Context, userID string) ([]*TaskInstance, error)
	// SoftDelete marks the row deleted. Deleting a deleted row is a no-op.
	SoftDelete(ctx context.Context, id, userID string) error
}
