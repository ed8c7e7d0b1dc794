package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/pkg/cerr"
	"github.com/kazz187/taskpulse/pkg/storage"
)

// YAMLRepository keeps the whole instance table in one YAML document.
//
// Every write reads the full table, mutates it in memory and writes the full
// table back. Two concurrent writers can therefore lose one of the updates.
// A failure before the write step leaves the table untouched; with S3 a
// failed PutObject also keeps the previous table, while LocalStorage replaces
// the file through rename.
type YAMLRepository struct {
	storage storage.Storage
	path    string
	opts    options
}

var _ instance.Repository = (*YAMLRepository)(nil)

func NewYAMLRepository(s storage.Storage, path string, opts ...Option) *YAMLRepository {
	return &YAMLRepository{
		storage: s,
		path:    path,
		opts:    buildOptions(opts),
	}
}

type yamlTable struct {
	Instances []*yamlRow `yaml:"instances"`
}

type yamlRow struct {
	InstanceID           string              `yaml:"instance_id"`
	TaskID               string              `yaml:"task_id"`
	TaskName             string              `yaml:"task_name"`
	TaskVersion          int                 `yaml:"task_version"`
	UserID               string              `yaml:"user_id"`
	CreatedAt            string              `yaml:"created_at"`
	InitializedAt        string              `yaml:"initialized_at,omitempty"`
	StartedAt            string              `yaml:"started_at,omitempty"`
	CompletedAt          string              `yaml:"completed_at,omitempty"`
	CancelledAt          string              `yaml:"cancelled_at,omitempty"`
	Predicted            instance.Attributes `yaml:"predicted,omitempty"`
	Actual               instance.Attributes `yaml:"actual,omitempty"`
	Status               string              `yaml:"status"`
	IsCompleted          bool                `yaml:"is_completed"`
	IsDeleted            bool                `yaml:"is_deleted"`
	NetRelief            *float64            `yaml:"net_relief,omitempty"`
	SerendipityFactor    *float64            `yaml:"serendipity_factor,omitempty"`
	DisappointmentFactor *float64            `yaml:"disappointment_factor,omitempty"`
}

func toYAMLRow(t *instance.TaskInstance) *yamlRow {
	return &yamlRow{
		InstanceID:           t.ID,
		TaskID:               t.TaskID,
		TaskName:             t.TaskName,
		TaskVersion:          t.TaskVersion,
		UserID:               t.UserID,
		CreatedAt:            formatTime(t.CreatedAt),
		InitializedAt:        formatTimePtr(t.InitializedAt),
		StartedAt:            formatTimePtr(t.StartedAt),
		CompletedAt:          formatTimePtr(t.CompletedAt),
		CancelledAt:          formatTimePtr(t.CancelledAt),
		Predicted:            t.Predicted.Normalize(),
		Actual:               t.Actual.Normalize(),
		Status:               string(t.Status),
		IsCompleted:          t.IsCompleted,
		IsDeleted:            t.IsDeleted,
		NetRelief:            t.NetRelief,
		SerendipityFactor:    t.SerendipityFactor,
		DisappointmentFactor: t.DisappointmentFactor,
	}
}

func (r *yamlRow) toInstance() (*instance.TaskInstance, error) {
	status, err := instance.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	t := &instance.TaskInstance{
		ID:                   r.InstanceID,
		TaskID:               r.TaskID,
		TaskName:             r.TaskName,
		TaskVersion:          r.TaskVersion,
		UserID:               r.UserID,
		CreatedAt:            createdAt,
		Predicted:            r.Predicted.Normalize(),
		Actual:               r.Actual.Normalize(),
		Status:               status,
		IsCompleted:          r.IsCompleted,
		IsDeleted:            r.IsDeleted,
		NetRelief:            r.NetRelief,
		SerendipityFactor:    r.SerendipityFactor,
		DisappointmentFactor: r.DisappointmentFactor,
	}
	if t.InitializedAt, err = parseTimePtr(r.InitializedAt); err != nil {
		return nil, err
	}
	if t.StartedAt, err = parseTimePtr(r.StartedAt); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseTimePtr(r.CompletedAt); err != nil {
		return nil, err
	}
	if t.CancelledAt, err = parseTimePtr(r.CancelledAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *YAMLRepository) Create(ctx context.Context, inst *instance.TaskInstance) (string, error) {
	t, err := prepareCreate(inst, r.opts.newID)
	if err != nil {
		return "", err
	}
	rows, err := r.load(ctx)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if row.ID == t.ID {
			return "", cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("instance %s already exists", t.ID), nil)
		}
	}
	rows = append(rows, t)
	if err := r.save(ctx, rows); err != nil {
		return "", err
	}
	return t.ID, nil
}

func (r *YAMLRepository) Get(ctx context.Context, id, userID string) (*instance.TaskInstance, error) {
	rows, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	_, t := find(rows, id, userID)
	if t == nil {
		return nil, notFound(id)
	}
	return t, nil
}

func (r *YAMLRepository) GetBulk(ctx context.Context, ids []string, userID string) (map[string]*instance.TaskInstance, error) {
	result := make(map[string]*instance.TaskInstance, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for _, t := range rows {
		if _, ok := wanted[t.ID]; ok && t.UserID == userID && !t.IsDeleted {
			result[t.ID] = t
		}
	}
	return result, nil
}

func (r *YAMLRepository) Update(ctx context.Context, id, userID string, patch *instance.Patch) (*instance.TaskInstance, error) {
	rows, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	i, t := find(rows, id, userID)
	if t == nil {
		return nil, notFound(id)
	}
	p := *patch
	p.Normalize()
	if err := t.Apply(&p); err != nil {
		return nil, err
	}
	rows[i] = t
	if err := r.save(ctx, rows); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

func (r *YAMLRepository) ListActive(ctx context.Context, userID string) ([]*instance.TaskInstance, error) {
	return r.list(ctx, userID, isActive, byCreated)
}

func (r *YAMLRepository) ListCompleted(ctx context.Context, userID string, since *time.Time) ([]*instance.TaskInstance, error) {
	return r.list(ctx, userID, func(t *instance.TaskInstance) bool {
		return isCompletedSince(t, since)
	}, byCompleted)
}

func (r *YAMLRepository) ListAll(ctx context.Context, userID string) ([]*instance.TaskInstance, error) {
	return r.list(ctx, userID, func(t *instance.TaskInstance) bool {
		return !t.IsDeleted
	}, byCreated)
}

func (r *YAMLRepository) SoftDelete(ctx context.Context, id, userID string) error {
	rows, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, t := range rows {
		if t.ID != id || t.UserID != userID {
			continue
		}
		if t.IsDeleted {
			return nil
		}
		t.IsDeleted = true
		return r.save(ctx, rows)
	}
	return notFound(id)
}

func (r *YAMLRepository) list(ctx context.Context, userID string, keep func(*instance.TaskInstance) bool, order func(a, b *instance.TaskInstance) int) ([]*instance.TaskInstance, error) {
	rows, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*instance.TaskInstance, 0)
	for _, t := range rows {
		if t.UserID == userID && keep(t) {
			result = append(result, t)
		}
	}
	sortInstances(result, order)
	return result, nil
}

// find returns the visible row for (id, userID). Deleted rows are invisible.
func find(rows []*instance.TaskInstance, id, userID string) (int, *instance.TaskInstance) {
	for i, t := range rows {
		if t.ID == id && t.UserID == userID && !t.IsDeleted {
			return i, t
		}
	}
	return -1, nil
}

func (r *YAMLRepository) load(ctx context.Context) ([]*instance.TaskInstance, error) {
	data, err := r.storage.Read(ctx, r.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("instance table", err)
	}
	var table yamlTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, cerr.NewError(cerr.DataLoss, "instance table is corrupt", fmt.Errorf("failed to unmarshal %s: %w", r.path, err))
	}
	rows := make([]*instance.TaskInstance, 0, len(table.Instances))
	for _, row := range table.Instances {
		t, err := row.toInstance()
		if err != nil {
			return nil, cerr.NewError(cerr.DataLoss, "instance table is corrupt", fmt.Errorf("row %s: %w", row.InstanceID, err))
		}
		rows = append(rows, t)
	}
	return rows, nil
}

func (r *YAMLRepository) save(ctx context.Context, rows []*instance.TaskInstance) error {
	table := yamlTable{Instances: make([]*yamlRow, 0, len(rows))}
	for _, t := range rows {
		table.Instances = append(table.Instances, toYAMLRow(t))
	}
	data, err := yaml.Marshal(&table)
	if err != nil {
		return cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to marshal instance table: %w", err))
	}
	if err := r.storage.Write(ctx, r.path, data); err != nil {
		return cerr.WrapStorageWriteError("instance table", err)
	}
	return nil
}

func notFound(id string) error {
	return cerr.NewError(cerr.NotFound, fmt.Sprintf("instance %s not found", id), nil)
}
