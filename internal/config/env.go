package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY"`
}

const (
	BackendFile = "file"
	BackendSQL  = "sql"
)

type StorageEnv struct {
	// Backend selects the instance store: "file" (YAML table) or "sql".
	Backend string `envconfig:"STORE_BACKEND" default:"file"`

	// File backend: where the YAML table lives.
	Type      string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir   string `envconfig:"STORAGE_BASE_DIR" default:".taskpulse/data"`
	TablePath string `envconfig:"STORAGE_TABLE_PATH" default:"instances/table.yaml"`
	S3Bucket  string `envconfig:"S3_BUCKET"`
	S3Prefix  string `envconfig:"S3_PREFIX" default:"taskpulse/"`
	S3Region  string `envconfig:"S3_REGION" default:"ap-northeast-1"`

	// SQL backend: "sqlite" or "pgx".
	SQLDriver string `envconfig:"SQL_DRIVER" default:"sqlite"`
	SQLDSN    string `envconfig:"SQL_DSN" default:".taskpulse/taskpulse.db"`
}

type ScoringEnv struct {
	CompositeWeights       map[string]float64 `envconfig:"COMPOSITE_WEIGHTS" default:"execution:1,grit:1,productivity:1,consistency:0.5,relief:1,thoroughness:0.5"`
	ExecutionWeights       map[string]float64 `envconfig:"EXECUTION_WEIGHTS" default:"completion:0.4,speed:0.2,start_speed:0.2,difficulty:0.2"`
	ConsistencyWindowDays  int                `envconfig:"CONSISTENCY_WINDOW_DAYS" default:"14"`
	DailyWorkTargetMinutes float64            `envconfig:"DAILY_WORK_TARGET_MINUTES" default:"360"`
}

type Env struct {
	BaseEnv
	StorageEnv
	ScoringEnv
}

const namespace = "TASKPULSE"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.StorageEnv.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *StorageEnv) Validate() error {
	switch e.Backend {
	case BackendFile:
		switch e.Type {
		case "local", "s3":
		default:
			return fmt.Errorf("unknown storage type %q", e.Type)
		}
		if e.Type == "s3" && e.S3Bucket == "" {
			return fmt.Errorf("TASKPULSE_S3_BUCKET is required for s3 storage")
		}
	case BackendSQL:
		switch e.SQLDriver {
		case "sqlite", "pgx":
		default:
			return fmt.Errorf("unknown sql driver %q", e.SQLDriver)
		}
		if e.SQLDSN == "" {
			return fmt.Errorf("TASKPULSE_SQL_DSN is required for the sql backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", e.Backend)
	}
	return nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
