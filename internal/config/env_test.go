package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDefaults(t *testing.T) {
	env, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendFile, env.Backend)
	assert.Equal(t, "local", env.Type)
	assert.Equal(t, "instances/table.yaml", env.TablePath)
	assert.Equal(t, 14, env.ConsistencyWindowDays)
	assert.InDelta(t, 1.0, env.CompositeWeights["execution"], 1e-9)
	assert.InDelta(t, 0.4, env.ExecutionWeights["completion"], 1e-9)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TASKPULSE_STORE_BACKEND", "sql")
	t.Setenv("TASKPULSE_SQL_DRIVER", "pgx")
	t.Setenv("TASKPULSE_SQL_DSN", "postgres://localhost/taskpulse")
	t.Setenv("TASKPULSE_COMPOSITE_WEIGHTS", "execution:2,grit:0")
	t.Setenv("TASKPULSE_LOG_LEVEL", "warn")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendSQL, env.Backend)
	assert.Equal(t, "pgx", env.SQLDriver)
	assert.Equal(t, map[string]float64{"execution": 2, "grit": 0}, env.CompositeWeights)
	assert.Equal(t, slog.LevelWarn, env.SlogLevel())
}

func TestLoadEnvRejectsUnknownBackend(t *testing.T) {
	t.Setenv("TASKPULSE_STORE_BACKEND", "csv")
	_, err := LoadEnv()
	require.Error(t, err)
}

func TestStorageEnvValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     StorageEnv
		wantErr bool
	}{
		{"local file", StorageEnv{Backend: BackendFile, Type: "local"}, false},
		{"s3 without bucket", StorageEnv{Backend: BackendFile, Type: "s3"}, true},
		{"s3 with bucket", StorageEnv{Backend: BackendFile, Type: "s3", S3Bucket: "b"}, false},
		{"sqlite", StorageEnv{Backend: BackendSQL, SQLDriver: "sqlite", SQLDSN: "x.db"}, false},
		{"mysql", StorageEnv{Backend: BackendSQL, SQLDriver: "mysql", SQLDSN: "x"}, true},
		{"empty dsn", StorageEnv{Backend: BackendSQL, SQLDriver: "sqlite"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
