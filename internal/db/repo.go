package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hostpilot/internal/models"
)

var (
	ErrTargetExists   = errors.New("target already exists")
	ErrTargetNotFound = errors.New("target not found")
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sql.DB { return r.db }

// Append records an operation as soon as it is requested, before its outcome
// is known.
func (r *Repository) Append(ctx context.Context, op models.RemoteOperation) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO operations (id,target,kind,status,ts,command,error,duration_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		op.ID, op.Target, string(op.Kind), string(op.Status), op.Timestamp.UTC(), op.Command, nullString(op.Error), op.DurationMillis)
	if err != nil {
		return fmt.Errorf("append operation %s: %w", op.ID, err)
	}
	return nil
}

// Settle applies the one pending -> terminal transition. Settling an entry
// that is no longer pending is a no-op.
func (r *Repository) Settle(ctx context.Context, op models.RemoteOperation) error {
	if !op.Settled() {
		return fmt.Errorf("settle operation %s: status %q is not terminal", op.ID, op.Status)
	}
	_, err := r.db.ExecContext(ctx, `UPDATE operations SET status=?, command=?, error=?, duration_ms=? WHERE id=? AND status=?`,
		string(op.Status), op.Command, nullString(op.Error), op.DurationMillis, op.ID, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("settle operation %s: %w", op.ID, err)
	}
	return nil
}

// Recent returns the last limit operations in chronological order.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.RemoteOperation, error) {
	ops, err := r.queryOperations(ctx, `SELECT id,target,kind,status,ts,command,error,duration_ms FROM operations ORDER BY seq DESC LIMIT ?`, clampLimit(limit))
	return chronological(ops), err
}

func (r *Repository) RecentForTarget(ctx context.Context, target string, limit int) ([]models.RemoteOperation, error) {
	ops, err := r.queryOperations(ctx, `SELECT id,target,kind,status,ts,command,error,duration_ms FROM operations WHERE target = ? ORDER BY seq DESC LIMIT ?`, target, clampLimit(limit))
	return chronological(ops), err
}

func (r *Repository) Operation(ctx context.Context, id string) (models.RemoteOperation, error) {
	ops, err := r.queryOperations(ctx, `SELECT id,target,kind,status,ts,command,error,duration_ms FROM operations WHERE id = ?`, id)
	if err != nil {
		return models.RemoteOperation{}, err
	}
	if len(ops) == 0 {
		return models.RemoteOperation{}, sql.ErrNoRows
	}
	return ops[0], nil
}

func (r *Repository) CountOperations(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations`).Scan(&n)
	return n, err
}

func (r *Repository) ClearOperations(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM operations`)
	return err
}

// PruneOperations keeps at most max entries and drops settled entries older
// than cutoff. Pending entries are never dropped by age.
func (r *Repository) PruneOperations(ctx context.Context, max int, cutoff time.Time) (int64, error) {
	var total int64
	if !cutoff.IsZero() {
		res, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE ts < ? AND status != ?`, cutoff.UTC(), string(models.StatusPending))
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if max > 0 {
		res, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE seq NOT IN (SELECT seq FROM operations ORDER BY seq DESC LIMIT ?)`, max)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (r *Repository) queryOperations(ctx context.Context, query string, args ...any) ([]models.RemoteOperation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.RemoteOperation{}
	for rows.Next() {
		var (
			op             models.RemoteOperation
			kind, status   string
			errText        sql.NullString
			durationMillis sql.NullInt64
		)
		if err := rows.Scan(&op.ID, &op.Target, &kind, &status, &op.Timestamp, &op.Command, &errText, &durationMillis); err != nil {
			return nil, err
		}
		op.Kind = models.OperationKind(kind)
		op.Status = models.OperationStatus(status)
		op.Timestamp = op.Timestamp.UTC()
		op.Error = errText.String
		if durationMillis.Valid {
			d := durationMillis.Int64
			op.DurationMillis = &d
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (r *Repository) AddTarget(ctx context.Context, t models.RemoteTarget) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO targets (name,ip,mac,platform,port) VALUES (?,?,?,?,?)`,
		t.Name, t.IP, t.MAC, t.Platform, t.Port)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrTargetExists, t.Name)
	}
	return err
}

// UpsertTarget registers or replaces a target; used for configured defaults.
func (r *Repository) UpsertTarget(ctx context.Context, t models.RemoteTarget) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO targets (name,ip,mac,platform,port) VALUES (?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET ip=excluded.ip,mac=excluded.mac,platform=excluded.platform,port=excluded.port`,
		t.Name, t.IP, t.MAC, t.Platform, t.Port)
	return err
}

func (r *Repository) RemoveTarget(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM targets WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, name)
	}
	return nil
}

func (r *Repository) Target(ctx context.Context, name string) (models.RemoteTarget, error) {
	var t models.RemoteTarget
	err := r.db.QueryRowContext(ctx, `SELECT name,ip,mac,platform,port FROM targets WHERE name = ?`, name).
		Scan(&t.Name, &t.IP, &t.MAC, &t.Platform, &t.Port)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: %s", ErrTargetNotFound, name)
	}
	return t, err
}

func (r *Repository) ListTargets(ctx context.Context) ([]models.RemoteTarget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name,ip,mac,platform,port FROM targets ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.RemoteTarget{}
	for rows.Next() {
		var t models.RemoteTarget
		if err := rows.Scan(&t.Name, &t.IP, &t.MAC, &t.Platform, &t.Port); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func chronological(ops []models.RemoteOperation) []models.RemoteOperation {
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
