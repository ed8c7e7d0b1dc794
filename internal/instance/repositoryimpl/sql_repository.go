package repositoryimpl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/pkg/cerr"
)

// maxBulkIDs bounds the IN list of one GetBulk query. SQLite limits bound
// parameters per statement.
const maxBulkIDs = 500

var schema = []string{
	`CREATE TABLE IF NOT EXISTS task_instances (
		instance_id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		task_name TEXT NOT NULL,
		task_version INTEGER NOT NULL DEFAULT 0,
		user_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		initialized_at TEXT NULL,
		started_at TEXT NULL,
		completed_at TEXT NULL,
		cancelled_at TEXT NULL,
		predicted TEXT NOT NULL DEFAULT '{}',
		actual TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		is_completed INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		net_relief DOUBLE PRECISION NULL,
		serendipity_factor DOUBLE PRECISION NULL,
		disappointment_factor DOUBLE PRECISION NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_instances_user_status ON task_instances (user_id, is_deleted, status)`,
	`CREATE INDEX IF NOT EXISTS idx_task_instances_user_completed ON task_instances (user_id, is_deleted, completed_at)`,
}

const selectColumns = `instance_id, task_id, task_name, task_version, user_id,
	created_at, initialized_at, started_at, completed_at, cancelled_at,
	predicted, actual, status, is_completed, is_deleted,
	net_relief, serendipity_factor, disappointment_factor`

// SQLRepository stores instances in a relational table through sqlx.
// Supported drivers are "sqlite" (modernc.org/sqlite) and "pgx".
type SQLRepository struct {
	db   *sqlx.DB
	opts options
}

var _ instance.Repository = (*SQLRepository)(nil)

// OpenSQLRepository opens the database and creates the schema if needed.
func OpenSQLRepository(ctx context.Context, driver, dsn string, opts ...Option) (*SQLRepository, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// One connection serializes writers and keeps in-memory databases
		// shared across calls.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	}
	r := NewSQLRepository(db, opts...)
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func NewSQLRepository(db *sqlx.DB, opts ...Option) *SQLRepository {
	return &SQLRepository{db: db, opts: buildOptions(opts)}
}

func (r *SQLRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type sqlRow struct {
	InstanceID           string          `db:"instance_id"`
	TaskID               string          `db:"task_id"`
	TaskName             string          `db:"task_name"`
	TaskVersion          int64           `db:"task_version"`
	UserID               string          `db:"user_id"`
	CreatedAt            string          `db:"created_at"`
	InitializedAt        sql.NullString  `db:"initialized_at"`
	StartedAt            sql.NullString  `db:"started_at"`
	CompletedAt          sql.NullString  `db:"completed_at"`
	CancelledAt          sql.NullString  `db:"cancelled_at"`
	Predicted            string          `db:"predicted"`
	Actual               string          `db:"actual"`
	Status               string          `db:"status"`
	IsCompleted          int64           `db:"is_completed"`
	IsDeleted            int64           `db:"is_deleted"`
	NetRelief            sql.NullFloat64 `db:"net_relief"`
	SerendipityFactor    sql.NullFloat64 `db:"serendipity_factor"`
	DisappointmentFactor sql.NullFloat64 `db:"disappointment_factor"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func toSQLRow(t *instance.TaskInstance) (*sqlRow, error) {
	predicted, err := encodeAttributes(t.Predicted)
	if err != nil {
		return nil, err
	}
	actual, err := encodeAttributes(t.Actual)
	if err != nil {
		return nil, err
	}
	return &sqlRow{
		InstanceID:           t.ID,
		TaskID:               t.TaskID,
		TaskName:             t.TaskName,
		TaskVersion:          int64(t.TaskVersion),
		UserID:               t.UserID,
		CreatedAt:            formatTime(t.CreatedAt),
		InitializedAt:        nullString(formatTimePtr(t.InitializedAt)),
		StartedAt:            nullString(formatTimePtr(t.StartedAt)),
		CompletedAt:          nullString(formatTimePtr(t.CompletedAt)),
		CancelledAt:          nullString(formatTimePtr(t.CancelledAt)),
		Predicted:            predicted,
		Actual:               actual,
		Status:               string(t.Status),
		IsCompleted:          boolInt(t.IsCompleted),
		IsDeleted:            boolInt(t.IsDeleted),
		NetRelief:            nullFloat(t.NetRelief),
		SerendipityFactor:    nullFloat(t.SerendipityFactor),
		DisappointmentFactor: nullFloat(t.DisappointmentFactor),
	}, nil
}

func (r *sqlRow) toInstance() (*instance.TaskInstance, error) {
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
		TaskVersion:          int(r.TaskVersion),
		UserID:               r.UserID,
		CreatedAt:            createdAt,
		Status:               status,
		IsCompleted:          r.IsCompleted != 0,
		IsDeleted:            r.IsDeleted != 0,
		NetRelief:            floatPtr(r.NetRelief),
		SerendipityFactor:    floatPtr(r.SerendipityFactor),
		DisappointmentFactor: floatPtr(r.DisappointmentFactor),
	}
	if t.Predicted, err = decodeAttributes(r.Predicted); err != nil {
		return nil, err
	}
	if t.Actual, err = decodeAttributes(r.Actual); err != nil {
		return nil, err
	}
	if t.InitializedAt, err = parseTimePtr(r.InitializedAt.String); err != nil {
		return nil, err
	}
	if t.StartedAt, err = parseTimePtr(r.StartedAt.String); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseTimePtr(r.CompletedAt.String); err != nil {
		return nil, err
	}
	if t.CancelledAt, err = parseTimePtr(r.CancelledAt.String); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLRepository) Create(ctx context.Context, inst *instance.TaskInstance) (string, error) {
	t, err := prepareCreate(inst, r.opts.newID)
	if err != nil {
		return "", err
	}
	row, err := toSQLRow(t)
	if err != nil {
		return "", cerr.NewError(cerr.InvalidArgument, "invalid attributes", err)
	}

	err = r.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM task_instances WHERE instance_id = ?`), t.ID)
		if err != nil {
			return cerr.WrapDBError("instance", "check", err)
		}
		if exists > 0 {
			return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("instance %s already exists", t.ID), nil)
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO task_instances (`+selectColumns+`) VALUES (
			:instance_id, :task_id, :task_name, :task_version, :user_id,
			:created_at, :initialized_at, :started_at, :completed_at, :cancelled_at,
			:predicted, :actual, :status, :is_completed, :is_deleted,
			:net_relief, :serendipity_factor, :disappointment_factor)`, row)
		if err != nil {
			return insertError(t.ID, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// insertError maps a primary key violation to AlreadyExists. The COUNT check
// before the insert does not hold under concurrent creates on Postgres.
func insertError(id string, err error) error {
	if isUniqueViolation(err) {
		return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("instance %s already exists", id), err)
	}
	return cerr.WrapDBError("instance", "insert", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func (r *SQLRepository) Get(ctx context.Context, id, userID string) (*instance.TaskInstance, error) {
	return r.get(ctx, r.db, id, userID, false)
}

func (r *SQLRepository) get(ctx context.Context, q sqlx.QueryerContext, id, userID string, forUpdate bool) (*instance.TaskInstance, error) {
	query := `SELECT ` + selectColumns + ` FROM task_instances
		WHERE instance_id = ? AND user_id = ? AND is_deleted = 0`
	if forUpdate && r.db.DriverName() == "pgx" {
		query += ` FOR UPDATE`
	}
	var row sqlRow
	if err := sqlx.GetContext(ctx, q, &row, r.db.Rebind(query), id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, cerr.WrapDBError("instance", "get", err)
	}
	t, err := row.toInstance()
	if err != nil {
		return nil, cerr.NewError(cerr.DataLoss, "instance row is corrupt", err)
	}
	return t, nil
}

func (r *SQLRepository) GetBulk(ctx context.Context, ids []string, userID string) (map[string]*instance.TaskInstance, error) {
	result := make(map[string]*instance.TaskInstance, len(ids))
	for start := 0; start < len(ids); start += maxBulkIDs {
		chunk := ids[start:min(start+maxBulkIDs, len(ids))]
		query, args, err := sqlx.In(`SELECT `+selectColumns+` FROM task_instances
			WHERE user_id = ? AND is_deleted = 0 AND instance_id IN (?)`, userID, chunk)
		if err != nil {
			return nil, cerr.WrapDBError("instances", "build bulk query for", err)
		}
		rows, err := r.selectRows(ctx, r.db.Rebind(query), args...)
		if err != nil {
			return nil, err
		}
		for _, t := range rows {
			result[t.ID] = t
		}
	}
	return result, nil
}

func (r *SQLRepository) Update(ctx context.Context, id, userID string, patch *instance.Patch) (*instance.TaskInstance, error) {
	p := *patch
	p.Normalize()

	var updated *instance.TaskInstance
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		t, err := r.get(ctx, tx, id, userID, true)
		if err != nil {
			return err
		}
		if err := t.Apply(&p); err != nil {
			return err
		}
		row, err := toSQLRow(t)
		if err != nil {
			return cerr.NewError(cerr.InvalidArgument, "invalid attributes", err)
		}
		_, err = tx.NamedExecContext(ctx, `UPDATE task_instances SET
			initialized_at = :initialized_at,
			started_at = :started_at,
			completed_at = :completed_at,
			cancelled_at = :cancelled_at,
			predicted = :predicted,
			actual = :actual,
			status = :status,
			is_completed = :is_completed,
			net_relief = :net_relief,
			serendipity_factor = :serendipity_factor,
			disappointment_factor = :disappointment_factor
			WHERE instance_id = :instance_id AND user_id = :user_id AND is_deleted = 0`, row)
		if err != nil {
			return cerr.WrapDBError("instance", "update", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *SQLRepository) ListActive(ctx context.Context, userID string) ([]*instance.TaskInstance, error) {
	rows, err := r.selectRows(ctx, r.db.Rebind(`SELECT `+selectColumns+` FROM task_instances
		WHERE user_id = ? AND is_deleted = 0 AND is_completed = 0 AND status NOT IN ('completed', 'cancelled')
		ORDER BY created_at, instance_id`), userID)
	if err != nil {
		return nil, err
	}
	sortInstances(rows, byCreated)
	return rows, nil
}

func (r *SQLRepository) ListCompleted(ctx context.Context, userID string, since *time.Time) ([]*instance.TaskInstance, error) {
	query := `SELECT ` + selectColumns + ` FROM task_instances
		WHERE user_id = ? AND is_deleted = 0 AND is_completed = 1 AND completed_at IS NOT NULL`
	args := []any{userID}
	if since != nil {
		query += ` AND completed_at >= ?`
		args = append(args, formatTime(*since))
	}
	query += ` ORDER BY completed_at, instance_id`
	rows, err := r.selectRows(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	sortInstances(rows, byCompleted)
	return rows, nil
}

func (r *SQLRepository) ListAll(ctx context.Context, userID string) ([]*instance.TaskInstance, error) {
	rows, err := r.selectRows(ctx, r.db.Rebind(`SELECT `+selectColumns+` FROM task_instances
		WHERE user_id = ? AND is_deleted = 0
		ORDER BY created_at, instance_id`), userID)
	if err != nil {
		return nil, err
	}
	sortInstances(rows, byCreated)
	return rows, nil
}

// SoftDelete is a single UPDATE; a second call matches the row again and
// rewrites the same flag.
func (r *SQLRepository) SoftDelete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE task_instances SET is_deleted = 1
		WHERE instance_id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return cerr.WrapDBError("instance", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return cerr.WrapDBError("instance", "delete", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (r *SQLRepository) selectRows(ctx context.Context, query string, args ...any) ([]*instance.TaskInstance, error) {
	var rows []sqlRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, cerr.WrapDBError("instances", "list", err)
	}
	result := make([]*instance.TaskInstance, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toInstance()
		if err != nil {
			return nil, cerr.NewError(cerr.DataLoss, "instance row is corrupt", err)
		}
		result = append(result, t)
	}
	return result, nil
}

func (r *SQLRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return cerr.WrapDBError("transaction", "begin", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return cerr.WrapDBError("transaction", "commit", err)
	}
	return nil
}
