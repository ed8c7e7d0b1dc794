package repositoryimpl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kazz187/taskpulse/internal/config"
	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/pkg/storage"
)

// New builds the instance store selected by env. The returned close function
// releases the backend and is never nil.
func New(ctx context.Context, env *config.StorageEnv, opts ...Option) (instance.Repository, func() error, error) {
	noop := func() error { return nil }
	if err := env.Validate(); err != nil {
		return nil, noop, err
	}

	switch env.Backend {
	case config.BackendSQL:
		if env.SQLDriver == "sqlite" && !strings.HasPrefix(env.SQLDSN, "file:") && !strings.Contains(env.SQLDSN, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(env.SQLDSN), 0o755); err != nil {
				return nil, noop, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
		repo, err := OpenSQLRepository(ctx, env.SQLDriver, env.SQLDSN, opts...)
		if err != nil {
			return nil, noop, err
		}
		return repo, repo.Close, nil
	default:
		var store storage.Storage
		var err error
		switch env.Type {
		case "s3":
			store, err = storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
			if err != nil {
				return nil, noop, fmt.Errorf("failed to create S3 storage: %w", err)
			}
		default:
			store, err = storage.NewLocalStorage(env.BaseDir)
			if err != nil {
				return nil, noop, fmt.Errorf("failed to create local storage: %w", err)
			}
		}
		return NewYAMLRepository(store, env.TablePath, opts...), noop, nil
	}
}
